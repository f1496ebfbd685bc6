package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatusStore keeps run state where both the submitter and the worker can
// reach it.
type StatusStore interface {
	Put(ctx context.Context, runID string, st RunStatus) error
	Get(ctx context.Context, runID string) (RunStatus, error)
}

type MemoryStatusStore struct {
	mu   sync.RWMutex
	runs map[string]RunStatus
}

func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{runs: make(map[string]RunStatus)}
}

func (m *MemoryStatusStore) Put(_ context.Context, runID string, st RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID] = st
	return nil
}

func (m *MemoryStatusStore) Get(_ context.Context, runID string) (RunStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.runs[runID]
	if !ok {
		return RunStatus{}, ErrRunNotFound
	}
	return st, nil
}

// RedisStatusStore keeps each run as a hash under run:<id> that expires after
// ttl.
type RedisStatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStatusStore(client *redis.Client, ttl time.Duration) *RedisStatusStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStatusStore{client: client, ttl: ttl}
}

func runKey(runID string) string { return fmt.Sprintf("run:%s", runID) }

func (r *RedisStatusStore) Put(ctx context.Context, runID string, st RunStatus) error {
	key := runKey(runID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			"state":   string(st.State),
			"message": st.Message,
			"output":  st.Output,
		})
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store run %s: %w", runID, err)
	}
	return nil
}

func (r *RedisStatusStore) Get(ctx context.Context, runID string) (RunStatus, error) {
	fields, err := r.client.HGetAll(ctx, runKey(runID)).Result()
	if err != nil {
		return RunStatus{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	if len(fields) == 0 {
		return RunStatus{}, ErrRunNotFound
	}
	return RunStatus{
		State:   State(fields["state"]),
		Message: fields["message"],
		Output:  fields["output"],
	}, nil
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
