package queueclient

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verdictlabs/verdict"
)

// fakeBackend implements Backend in memory.
type fakeBackend struct {
	declared map[string]bool
	lists    map[string][]string

	pushErr error
	closes  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		declared: make(map[string]bool),
		lists:    make(map[string][]string),
	}
}

func (f *fakeBackend) SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd {
	added := int64(0)
	for _, m := range members {
		name := m.(string)
		if !f.declared[name] {
			f.declared[name] = true
			added++
		}
	}
	return redis.NewIntResult(added, nil)
}

func (f *fakeBackend) SIsMember(ctx context.Context, key string, member any) *redis.BoolCmd {
	return redis.NewBoolResult(f.declared[member.(string)], nil)
}

func (f *fakeBackend) LPush(ctx context.Context, key string, values ...any) *redis.IntCmd {
	if f.pushErr != nil {
		return redis.NewIntResult(0, f.pushErr)
	}
	for _, v := range values {
		f.lists[key] = append([]string{string(v.([]byte))}, f.lists[key]...)
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeBackend) BLMove(ctx context.Context, source, destination, srcpos, destpos string, timeout time.Duration) *redis.StringCmd {
	src := f.lists[source]
	if len(src) == 0 {
		return redis.NewStringResult("", redis.Nil)
	}
	v := src[len(src)-1]
	f.lists[source] = src[:len(src)-1]
	f.lists[destination] = append([]string{v}, f.lists[destination]...)
	return redis.NewStringResult(v, nil)
}

func (f *fakeBackend) LRem(ctx context.Context, key string, count int64, value any) *redis.IntCmd {
	target := value.(string)
	removed := int64(0)
	kept := f.lists[key][:0]
	for _, v := range f.lists[key] {
		if removed < count && v == target {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	f.lists[key] = kept
	return redis.NewIntResult(removed, nil)
}

func (f *fakeBackend) Close() error {
	f.closes++
	return nil
}

func declare(t *testing.T, c *Client, name string) {
	t.Helper()
	if _, err := c.Declare(context.Background(), verdict.Options{}, name); err != nil {
		t.Fatalf("Declare(%s): %v", name, err)
	}
}

func TestSend_UndeclaredQueue(t *testing.T) {
	c := NewWithBackend(newFakeBackend(), 0)
	defer c.Close()

	res, err := c.Send(context.Background(), verdict.Options{}, "ghost", []byte("hi"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Processed || res.OK {
		t.Fatalf("state processed=%v ok=%v, want processed failure", res.Processed, res.OK)
	}
	if res.Err.Kind != KindQueueNotFound {
		t.Errorf("Kind = %s, want %s", res.Err.Kind, KindQueueNotFound)
	}
}

func TestSend_Success(t *testing.T) {
	b := newFakeBackend()
	c := NewWithBackend(b, 0)
	defer c.Close()
	declare(t, c, "jobs")

	res, err := c.Send(context.Background(), verdict.Options{}, "jobs", []byte("payload"))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !res.OK {
		t.Fatalf("res = %+v, want success", res)
	}
	if res.Payload.ID == "" {
		t.Error("message not assigned an id")
	}
	if got := len(b.lists[queueKey("jobs")]); got != 1 {
		t.Errorf("list length = %d, want 1", got)
	}
}

func TestSend_TooLarge(t *testing.T) {
	c := NewWithBackend(newFakeBackend(), 8)
	defer c.Close()
	declare(t, c, "jobs")

	res, _ := c.Send(context.Background(), verdict.Options{}, "jobs", []byte("way past the eight byte cap"))
	if res.Err == nil || res.Err.Kind != KindMessageTooLarge {
		t.Errorf("Err = %v, want %s", res.Err, KindMessageTooLarge)
	}
	if !res.Processed {
		t.Error("size rejection settles as processed failure")
	}
}

func TestSendBatch_PartialAcceptance(t *testing.T) {
	c := NewWithBackend(newFakeBackend(), 8)
	defer c.Close()
	declare(t, c, "jobs")

	items := []verdict.BatchItem{
		{ID: "1", Payload: []byte("ok")},
		{ID: "2", Payload: []byte("definitely too large for the cap")},
		{ID: "3", Payload: []byte("fine")},
	}

	res, err := c.SendBatch(context.Background(), verdict.Options{}, "jobs", items)
	if err != nil {
		t.Fatalf("SendBatch: %v", err)
	}
	if !res.OK {
		t.Fatal("partial acceptance must settle the call successfully")
	}

	batch := res.Payload
	if len(batch.Successful) != 2 {
		t.Errorf("Successful = %d, want 2", len(batch.Successful))
	}
	if len(batch.Failed) != 1 {
		t.Errorf("Failed = %d, want 1", len(batch.Failed))
	}
	if !batch.OK {
		t.Error("BatchResult.OK = false, want true with per-item failures")
	}
	if batch.Failed[0].ID != "2" || batch.Failed[0].Code != string(KindMessageTooLarge) {
		t.Errorf("failed item = %+v, want id 2 / message-too-large", batch.Failed[0])
	}
	if batch.Successful[0].ID != "1" || batch.Successful[1].ID != "3" {
		t.Error("successful partition does not preserve input order")
	}
}

func TestSendBatch_WholeCallRejection(t *testing.T) {
	c := NewWithBackend(newFakeBackend(), 0)
	defer c.Close()

	res, err := c.SendBatch(context.Background(), verdict.Options{}, "ghost",
		[]verdict.BatchItem{{ID: "1", Payload: []byte("x")}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK {
		t.Fatal("undeclared queue must fail the whole call")
	}
	batch := res.Payload
	if batch.Successful != nil || batch.Failed != nil {
		t.Error("unattempted batch must carry nil partitions")
	}
	if batch.OK {
		t.Error("BatchResult.OK = true for an unattempted batch")
	}
}

func TestReceive_EmptyWaitSettlesWithNilMessage(t *testing.T) {
	c := NewWithBackend(newFakeBackend(), 0)
	defer c.Close()
	declare(t, c, "jobs")

	res, err := c.Receive(context.Background(), verdict.Options{}, "jobs", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !res.OK {
		t.Fatalf("empty wait must settle successfully, got %+v", res.Err)
	}
	if res.Payload != nil {
		t.Errorf("Payload = %+v, want nil message", res.Payload)
	}
}

func TestReceiveDelete_RoundTrip(t *testing.T) {
	b := newFakeBackend()
	c := NewWithBackend(b, 0)
	defer c.Close()
	declare(t, c, "jobs")

	ctx := context.Background()
	if _, err := c.Send(ctx, verdict.Options{}, "jobs", []byte("work")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	recv, err := c.Receive(ctx, verdict.Options{}, "jobs", time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	msg := recv.Payload
	if msg == nil {
		t.Fatal("expected a message")
	}
	if string(msg.Body) != "work" {
		t.Errorf("Body = %q, want work", msg.Body)
	}
	if msg.Receipt == "" {
		t.Fatal("received message has no receipt handle")
	}
	if got := len(b.lists[processingKey("jobs")]); got != 1 {
		t.Errorf("processing list = %d entries, want 1", got)
	}

	del, err := c.Delete(ctx, verdict.Options{}, "jobs", msg.Receipt)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !del.OK || !del.Payload {
		t.Errorf("Delete settled %+v, want success", del)
	}

	// Same receipt again: the backend no longer knows the message.
	again, err := c.Delete(ctx, verdict.Options{}, "jobs", msg.Receipt)
	if err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if again.OK || again.Err.Kind != KindMessageNotFound {
		t.Errorf("second delete = %+v, want %s", again.Err, KindMessageNotFound)
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	b := newFakeBackend()
	c := NewWithBackend(b, 0)

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
