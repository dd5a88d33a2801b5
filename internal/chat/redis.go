package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultKey = "chat:history"

// RedisBoard keeps the history in a redis list, newest at the head, trimmed
// to capacity on every append.
type RedisBoard struct {
	client   *redis.Client
	key      string
	capacity int64
}

// NewRedisBoard creates a board over client.
func NewRedisBoard(client *redis.Client, capacity int) *RedisBoard {
	if capacity <= 0 {
		capacity = 1
	}
	return &RedisBoard{client: client, key: defaultKey, capacity: int64(capacity)}
}

func (b *RedisBoard) Append(ctx context.Context, m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode chat message: %w", err)
	}
	pipe := b.client.TxPipeline()
	pipe.LPush(ctx, b.key, payload)
	pipe.LTrim(ctx, b.key, 0, b.capacity-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append chat message: %w", err)
	}
	return nil
}

func (b *RedisBoard) Recent(ctx context.Context, n int) ([]Message, error) {
	if n <= 0 || int64(n) > b.capacity {
		n = int(b.capacity)
	}
	raw, err := b.client.LRange(ctx, b.key, 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read chat history: %w", err)
	}
	out := make([]Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var m Message
		if err := json.Unmarshal([]byte(raw[i]), &m); err != nil {
			return nil, fmt.Errorf("decode chat message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}
