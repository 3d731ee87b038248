package kvcache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verdictlabs/verdict"
)

type storedValue struct {
	data    []byte
	expires time.Time
}

// fakeBackend implements Backend in memory.
type fakeBackend struct {
	values map[string]storedValue
	getErr error
	closes int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{values: make(map[string]storedValue)}
}

func (f *fakeBackend) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v.data), nil)
}

func (f *fakeBackend) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	var expires time.Time
	if expiration > 0 {
		expires = time.Now().Add(expiration)
	}
	f.values[key] = storedValue{data: value.([]byte), expires: expires}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeBackend) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	removed := int64(0)
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func (f *fakeBackend) Incr(ctx context.Context, key string) *redis.IntCmd {
	cur := f.values[key]
	n := int64(0)
	if len(cur.data) > 0 {
		parsed, err := strconv.ParseInt(string(cur.data), 10, 64)
		if err != nil {
			return redis.NewIntResult(0, fakeRedisError("ERR value is not an integer or out of range"))
		}
		n = parsed
	}
	n++
	f.values[key] = storedValue{data: []byte(strconv.FormatInt(n, 10))}
	return redis.NewIntResult(n, nil)
}

func (f *fakeBackend) TTL(ctx context.Context, key string) *redis.DurationCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewDurationResult(-2*time.Second, nil)
	}
	if v.expires.IsZero() {
		return redis.NewDurationResult(-1*time.Second, nil)
	}
	return redis.NewDurationResult(time.Until(v.expires), nil)
}

func (f *fakeBackend) Close() error {
	f.closes++
	return nil
}

type fakeRedisError string

func (e fakeRedisError) Error() string { return string(e) }
func (e fakeRedisError) RedisError()   {}

func TestGet_MissIsSuccessfulNotFound(t *testing.T) {
	c := NewWithBackend(newFakeBackend())
	defer c.Close()

	res, err := c.Get(context.Background(), verdict.Options{}, "absent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !res.OK {
		t.Fatalf("a miss must settle successfully, got %+v", res.Err)
	}
	if res.Payload.Found {
		t.Error("Found = true for an absent key")
	}
}

func TestSetGetDelete_RoundTrip(t *testing.T) {
	c := NewWithBackend(newFakeBackend())
	defer c.Close()
	ctx := context.Background()

	if _, err := c.Set(ctx, verdict.Options{}, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := c.Get(ctx, verdict.Options{}, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Payload.Found || string(got.Payload.Value) != "v" {
		t.Errorf("Get payload = %+v, want v", got.Payload)
	}

	del, err := c.Delete(ctx, verdict.Options{}, "k")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !del.Payload {
		t.Error("Delete payload = false, want existed")
	}

	again, _ := c.Delete(ctx, verdict.Options{}, "k")
	if again.Payload {
		t.Error("second delete reported an existing key")
	}
}

func TestIncr_Counter(t *testing.T) {
	c := NewWithBackend(newFakeBackend())
	defer c.Close()
	ctx := context.Background()

	res, err := c.Incr(ctx, verdict.Options{}, "hits")
	if err != nil || res.Payload != 1 {
		t.Fatalf("first Incr = %v (%v), want 1", res.Payload, err)
	}
	res, err = c.Incr(ctx, verdict.Options{}, "hits")
	if err != nil || res.Payload != 2 {
		t.Fatalf("second Incr = %v (%v), want 2", res.Payload, err)
	}
}

func TestIncr_NonIntegerValueClassified(t *testing.T) {
	c := NewWithBackend(newFakeBackend())
	defer c.Close()
	ctx := context.Background()

	if _, err := c.Set(ctx, verdict.Options{}, "hits", []byte("not a number"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	res, err := c.Incr(ctx, verdict.Options{}, "hits")
	if err != nil {
		t.Fatalf("default policy must not error, got %v", err)
	}
	if !res.Processed || res.OK {
		t.Fatalf("state processed=%v ok=%v, want processed failure", res.Processed, res.OK)
	}
	if res.Err.Kind != KindValueNotInteger {
		t.Errorf("Kind = %s, want %s", res.Err.Kind, KindValueNotInteger)
	}
}

func TestGet_ServerReplyErrorIsCommandError(t *testing.T) {
	b := newFakeBackend()
	b.getErr = fakeRedisError("ERR unknown command")
	c := NewWithBackend(b)
	defer c.Close()

	res, _ := c.Get(context.Background(), verdict.Options{}, "k")
	if res.Err == nil || res.Err.Kind != KindCommandError {
		t.Errorf("Err = %v, want %s", res.Err, KindCommandError)
	}
}

func TestTaxonomy_WrongType(t *testing.T) {
	verr := Taxonomy(fakeRedisError("WRONGTYPE Operation against a key holding the wrong kind of value"))
	if verr.Kind != KindWrongType {
		t.Errorf("Kind = %s, want %s", verr.Kind, KindWrongType)
	}
}

func TestTaxonomy_InterruptionsPassThrough(t *testing.T) {
	timeout := verdict.NewTimeout(time.Second)
	if got := Taxonomy(timeout); got != timeout {
		t.Errorf("timeout reclassified: %v", got)
	}
}

func TestTaxonomy_UnknownFallback(t *testing.T) {
	cause := errors.New("not a redis reply")
	verr := Taxonomy(cause)
	if verr.Kind != verdict.KindUnknown || !errors.Is(verr, cause) {
		t.Errorf("got %v, want unknown preserving cause", verr)
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	b := newFakeBackend()
	c := NewWithBackend(b)
	if err := c.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if b.closes != 1 {
		t.Errorf("backend closed %d times, want exactly 1", b.closes)
	}
}
