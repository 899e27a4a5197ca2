package progress

import (
	"community-intelligence-backend/config"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const subscribeBuffer = 16

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ Store = &RedisStore{}

func NewRedisStore(cfg config.RedisConfig, ttl time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %v", err)
	}

	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

func (s *RedisStore) Save(ctx context.Context, snapshot Snapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %v", err)
	}

	key := Key(snapshot.JobID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, raw, s.ttl)
		pipe.Publish(ctx, key, raw)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save progress %s: %v", key, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, jobID string) (*Snapshot, error) {
	raw, err := s.rdb.Get(ctx, Key(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load progress: %v", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %v", err)
	}
	return &snapshot, nil
}

func (s *RedisStore) Subscribe(ctx context.Context, jobID string) (<-chan Snapshot, func(), error) {
	sub := s.rdb.Subscribe(ctx, Key(jobID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %v", err)
	}

	out := make(chan Snapshot, subscribeBuffer)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var snapshot Snapshot
			if err := json.Unmarshal([]byte(msg.Payload), &snapshot); err != nil {
				slog.Warn("Failed to parse progress message", "channel", msg.Channel, "err", err)
				continue
			}
			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = sub.Close() }, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
