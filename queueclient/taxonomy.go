package queueclient

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/verdictlabs/verdict"
)

// Protocol-tier kinds for the queue backend. The set is closed:
// unmapped signals settle as verdict.KindUnknown.
const (
	KindQueueNotFound   verdict.Kind = "queue-not-found"
	KindMessageNotFound verdict.Kind = "message-not-found"
	KindMessageTooLarge verdict.Kind = "message-too-large"
	KindCommandError    verdict.Kind = "command-error"
)

// Native failure signals raised by the client and mapped by Taxonomy.
var (
	ErrQueueNotFound   = errors.New("queueclient: queue not declared")
	ErrMessageNotFound = errors.New("queueclient: message not found")
	ErrMessageTooLarge = errors.New("queueclient: message too large")
)

// Taxonomy classifies native queue failure signals. Transport-level
// signals win first; timeout/abort values pass through untouched.
func Taxonomy(err error) *verdict.Error {
	if verr := verdict.TransportError(err); verr != nil {
		return verr
	}

	switch {
	case errors.Is(err, ErrQueueNotFound):
		return verdict.NewProtocol(KindQueueNotFound, err.Error(), err)
	case errors.Is(err, ErrMessageNotFound):
		return verdict.NewProtocol(KindMessageNotFound, err.Error(), err)
	case errors.Is(err, ErrMessageTooLarge):
		return verdict.NewProtocol(KindMessageTooLarge, err.Error(), err)
	case errors.Is(err, redis.Nil):
		return verdict.NewProtocol(KindMessageNotFound, err.Error(), err)
	}

	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return verdict.NewProtocol(KindCommandError, redisErr.Error(), err)
	}

	return verdict.NewUnknown(err)
}
