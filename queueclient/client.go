// Package queueclient is the message-queue client of the verdict
// family, backed by Redis lists. Queues are declared into a registry
// set; receive is a single bounded server-side blocking pop, never a
// client-side poll loop.
package queueclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/verdictlabs/verdict"
	"github.com/verdictlabs/verdict/metrics"
)

// Operation kinds used on queue results.
const (
	OpDeclare   = "queue:declare"
	OpSend      = "queue:send"
	OpSendBatch = "queue:send-batch"
	OpReceive   = "queue:receive"
	OpDelete    = "queue:delete"
)

// DefaultMaxMessageSize caps message bodies at 256 KiB unless
// configured otherwise.
const DefaultMaxMessageSize = 256 << 10

// Config holds queue backend configuration.
type Config struct {
	URL            string `yaml:"url"`
	Password       string `yaml:"password"`
	MaxMessageSize int    `yaml:"max_message_size"`
}

// Message is one queued message. Receipt identifies the in-flight copy
// on the processing list and is required to Delete it.
type Message struct {
	ID         string    `json:"id"`
	Body       []byte    `json:"body"`
	EnqueuedAt time.Time `json:"enqueued_at"`

	Receipt string `json:"-"`
}

// Backend is the subset of Redis commands the client issues.
// *redis.Client satisfies it; tests supply stubs.
type Backend interface {
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SIsMember(ctx context.Context, key string, member any) *redis.BoolCmd
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	BLMove(ctx context.Context, source, destination, srcpos, destpos string, timeout time.Duration) *redis.StringCmd
	LRem(ctx context.Context, key string, count int64, value any) *redis.IntCmd
	Close() error
}

// Client sends and receives queue messages settling into classified
// results. State is instance-scoped; Close releases the connection.
type Client struct {
	rdb     Backend
	maxSize int

	closeOnce sync.Once
	closeErr  error
}

// New connects to the queue backend and verifies the connection.
func New(ctx context.Context, cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithBackend(rdb, cfg.MaxMessageSize), nil
}

// NewWithBackend wraps an existing backend. Used by tests and callers
// that manage the connection themselves.
func NewWithBackend(b Backend, maxMessageSize int) *Client {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	return &Client{rdb: b, maxSize: maxMessageSize}
}

// Close releases the backend connection. Idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.rdb.Close()
	})
	return c.closeErr
}

// Key helpers
func registryKey() string {
	return "queues"
}

func queueKey(name string) string {
	return fmt.Sprintf("queue:%s", name)
}

func processingKey(name string) string {
	return fmt.Sprintf("queue:%s:processing", name)
}

// Declare registers a queue so that sends to it are accepted. Payload
// reports whether the queue was newly created.
func (c *Client) Declare(ctx context.Context, opts verdict.Options, name string) (*verdict.Result[bool], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (bool, error) {
			added, err := c.rdb.SAdd(ctx, registryKey(), name).Result()
			if err != nil {
				return false, err
			}
			return added > 0, nil
		})

	res, verr := verdict.Settle(OpDeclare, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

// Send enqueues one message and settles into the stored Message.
func (c *Client) Send(ctx context.Context, opts verdict.Options, queue string, body []byte) (*verdict.Result[*Message], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (*Message, error) {
			if err := c.checkDeclared(ctx, queue); err != nil {
				return nil, err
			}
			if len(body) > c.maxSize {
				return nil, fmt.Errorf("%w: %d bytes over %d cap", ErrMessageTooLarge, len(body), c.maxSize)
			}

			msg := &Message{
				ID:         uuid.NewString(),
				Body:       body,
				EnqueuedAt: time.Now().UTC(),
			}
			raw, err := json.Marshal(msg)
			if err != nil {
				return nil, fmt.Errorf("marshal message: %w", err)
			}
			if err := c.rdb.LPush(ctx, queueKey(queue), raw).Err(); err != nil {
				return nil, err
			}
			return msg, nil
		})

	res, verr := verdict.Settle(OpSend, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

// SendBatch enqueues an ordered batch. Acceptance is per-item: items
// over the size cap fail individually while the call as a whole still
// succeeds. A batch rejected before dispatch (undeclared queue)
// settles as a whole-call failure with nil partitions.
func (c *Client) SendBatch(
	ctx context.Context,
	opts verdict.Options,
	queue string,
	items []verdict.BatchItem,
) (*verdict.Result[*verdict.BatchResult], error) {
	outcomes, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) ([]verdict.ItemOutcome, error) {
			return c.sendBatch(ctx, queue, items)
		})

	res, verr := verdict.SettleBatch(OpSendBatch, outcomes, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

func (c *Client) sendBatch(ctx context.Context, queue string, items []verdict.BatchItem) ([]verdict.ItemOutcome, error) {
	if err := c.checkDeclared(ctx, queue); err != nil {
		return nil, err
	}

	outcomes := make([]verdict.ItemOutcome, len(items))
	for i, item := range items {
		if len(item.Payload) > c.maxSize {
			outcomes[i] = verdict.ItemOutcome{
				ID:      item.ID,
				Code:    string(KindMessageTooLarge),
				Message: fmt.Sprintf("%d bytes over %d cap", len(item.Payload), c.maxSize),
			}
			continue
		}

		msg := &Message{
			ID:         item.ID,
			Body:       item.Payload,
			EnqueuedAt: time.Now().UTC(),
		}
		raw, err := json.Marshal(msg)
		if err != nil {
			outcomes[i] = verdict.ItemOutcome{
				ID:      item.ID,
				Code:    string(KindCommandError),
				Message: fmt.Sprintf("marshal message: %v", err),
			}
			continue
		}

		if err := c.rdb.LPush(ctx, queueKey(queue), raw).Err(); err != nil {
			// Transport loss aborts the rest of the batch: the backend
			// is gone, so the remaining items cannot produce genuine
			// per-item outcomes.
			if verdict.TransportError(err) != nil {
				return nil, err
			}
			outcomes[i] = verdict.ItemOutcome{
				ID:      item.ID,
				Code:    string(KindCommandError),
				Message: err.Error(),
			}
			continue
		}
		outcomes[i] = verdict.ItemOutcome{ID: item.ID, OK: true, Payload: msg}
	}
	return outcomes, nil
}

// Receive waits up to wait for one message using a single blocking
// server-side pop; it never polls. The message moves to the processing
// list and must be acknowledged with Delete. An empty wait settles
// successfully with a nil Message.
func (c *Client) Receive(ctx context.Context, opts verdict.Options, queue string, wait time.Duration) (*verdict.Result[*Message], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (*Message, error) {
			if err := c.checkDeclared(ctx, queue); err != nil {
				return nil, err
			}

			raw, err := c.rdb.BLMove(ctx, queueKey(queue), processingKey(queue), "RIGHT", "LEFT", wait).Result()
			if err == redis.Nil {
				return nil, nil // wait elapsed with no message
			}
			if err != nil {
				return nil, err
			}

			var msg Message
			if err := json.Unmarshal([]byte(raw), &msg); err != nil {
				return nil, fmt.Errorf("decode message envelope: %w", err)
			}
			msg.Receipt = raw
			return &msg, nil
		})

	res, verr := verdict.Settle(OpReceive, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

// Delete acknowledges a received message by its receipt handle.
func (c *Client) Delete(ctx context.Context, opts verdict.Options, queue string, receipt string) (*verdict.Result[bool], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (bool, error) {
			removed, err := c.rdb.LRem(ctx, processingKey(queue), 1, receipt).Result()
			if err != nil {
				return false, err
			}
			if removed == 0 {
				return false, fmt.Errorf("%w: receipt not on processing list", ErrMessageNotFound)
			}
			return true, nil
		})

	res, verr := verdict.Settle(OpDelete, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

func (c *Client) checkDeclared(ctx context.Context, queue string) error {
	declared, err := c.rdb.SIsMember(ctx, registryKey(), queue).Result()
	if err != nil {
		return err
	}
	if !declared {
		return fmt.Errorf("%w: %q", ErrQueueNotFound, queue)
	}
	return nil
}
