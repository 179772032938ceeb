package push

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/graysky/push-notifs/internal/domain"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	kv := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { kv.Close() })
	return NewQueue(kv), mr
}

func TestQueueFIFO(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		msg := domain.Message{Recipient: fmt.Sprintf("did:%d", i), Title: "t", Body: "b"}
		if err := q.Enqueue(ctx, msg); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	got, err := q.DrainAll(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("drained %d messages, want 3", len(got))
	}
	for i, msg := range got {
		if want := fmt.Sprintf("did:%d", i); msg.Recipient != want {
			t.Errorf("message %d recipient = %q, want %q (FIFO order)", i, msg.Recipient, want)
		}
	}
}

func TestDrainBoundedness(t *testing.T) {
	// A drain pops exactly what was present when it started; later messages
	// wait for the next cycle.
	q, _ := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := q.Enqueue(ctx, domain.Message{Recipient: "did:b"}); err != nil {
			t.Fatal(err)
		}
	}

	first, err := q.DrainAll(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(first) != 4 {
		t.Fatalf("first drain = %d messages, want 4", len(first))
	}

	for i := 0; i < 2; i++ {
		if err := q.Enqueue(ctx, domain.Message{Recipient: "did:c"}); err != nil {
			t.Fatal(err)
		}
	}

	second, err := q.DrainAll(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(second) != 2 {
		t.Errorf("second drain = %d messages, want 2", len(second))
	}
}

func TestDrainEmpty(t *testing.T) {
	q, _ := newTestQueue(t)

	got, err := q.DrainAll(context.Background())
	if err != nil {
		t.Fatalf("drain empty queue: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("drained %d messages from empty queue", len(got))
	}
}

func TestDrainSkipsCorruptEntries(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, domain.Message{Recipient: "did:b"}); err != nil {
		t.Fatal(err)
	}
	mr.Push(queueKey, "{corrupt")

	got, err := q.DrainAll(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(got) != 1 || got[0].Recipient != "did:b" {
		t.Errorf("drained %+v, want only the valid message", got)
	}
}
