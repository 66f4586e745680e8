package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps task progress in Redis so a separate process (or another
// API instance behind a load balancer) can observe a run it did not start.
// Entries are written without TTL, mirroring the process-lifetime semantics
// of MemoryStore.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, keyPrefix: "scrape:progress:"}
}

func (s *RedisStore) Set(ctx context.Context, taskID string, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal progress state: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+taskID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store progress: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, taskID string) (State, error) {
	data, err := s.client.Get(ctx, s.keyPrefix+taskID).Bytes()
	if err == redis.Nil {
		return DefaultState(), nil
	}
	if err != nil {
		return DefaultState(), fmt.Errorf("failed to read progress: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return DefaultState(), fmt.Errorf("failed to decode progress state: %w", err)
	}
	return state, nil
}
