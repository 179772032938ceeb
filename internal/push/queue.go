package push

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/graysky/push-notifs/internal/domain"
)

const queueKey = "unsent-queue"

// Queue is a durable FIFO list of pending messages in the shared key-value
// store. The pop is destructive: a crash between pop and send loses those
// messages, which is the accepted at-most-once gap.
type Queue struct {
	kv redis.Cmdable
}

// NewQueue creates a Queue on the given Redis client.
func NewQueue(kv redis.Cmdable) *Queue {
	return &Queue{kv: kv}
}

// Enqueue appends a serialized message to the tail of the queue.
func (q *Queue) Enqueue(ctx context.Context, msg domain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := q.kv.RPush(ctx, queueKey, payload).Err(); err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	return nil
}

// DrainAll atomically pops exactly the number of messages present when the
// drain starts; messages enqueued during the drain wait for the next cycle,
// keeping each cycle bounded. Entries that fail to decode are skipped.
func (q *Queue) DrainAll(ctx context.Context) ([]domain.Message, error) {
	length, err := q.kv.LLen(ctx, queueKey).Result()
	if err != nil {
		return nil, fmt.Errorf("queue length: %w", err)
	}
	if length == 0 {
		return nil, nil
	}

	raw, err := q.kv.LPopCount(ctx, queueKey, int(length)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("pop messages: %w", err)
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, entry := range raw {
		var msg domain.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
