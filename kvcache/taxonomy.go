package kvcache

import (
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/verdictlabs/verdict"
)

// Protocol-tier kinds for the cache backend. The set is closed:
// unmapped signals settle as verdict.KindUnknown.
const (
	KindWrongType       verdict.Kind = "wrong-type"
	KindValueNotInteger verdict.Kind = "value-not-integer"
	KindCommandError    verdict.Kind = "command-error"
)

// Taxonomy classifies native cache failure signals. Server error
// replies are distinguished by their reply prefix; transport-level
// signals win first and timeout/abort values pass through untouched.
func Taxonomy(err error) *verdict.Error {
	if verr := verdict.TransportError(err); verr != nil {
		return verr
	}

	var redisErr redis.Error
	if !errors.As(err, &redisErr) {
		return verdict.NewUnknown(err)
	}

	msg := redisErr.Error()
	switch {
	case strings.HasPrefix(msg, "WRONGTYPE"):
		return verdict.NewProtocol(KindWrongType, msg, err)
	case strings.Contains(msg, "not an integer"):
		return verdict.NewProtocol(KindValueNotInteger, msg, err)
	default:
		return verdict.NewProtocol(KindCommandError, msg, err)
	}
}
