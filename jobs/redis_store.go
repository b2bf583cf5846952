package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/docuquery/policy-search/domain"
	"github.com/redis/go-redis/v9"
)

const jobTTL = 24 * time.Hour

// RedisStore persists jobs in redis so status survives restarts and is
// visible across instances. Entries expire after jobTTL.
type RedisStore struct {
	client *redis.Client
}

func ProvideRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context, job *Job) error {
	now := time.Now()
	job.State = StateQueued
	job.CreatedAt = now
	job.UpdatedAt = now

	ok, err := s.client.SetNX(ctx, jobKey(job.ID), mustMarshal(job), jobTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to store job %s: %w", job.ID, err)
	}
	if !ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	return nil
}

func (s *RedisStore) MarkRunning(ctx context.Context, id string) error {
	return s.update(ctx, id, func(job *Job) error {
		return job.transition(StateRunning)
	})
}

func (s *RedisStore) Complete(ctx context.Context, id string, stats *domain.ProcessingStats) error {
	return s.update(ctx, id, func(job *Job) error {
		if err := job.transition(StateCompleted); err != nil {
			return err
		}
		job.Stats = stats
		return nil
	})
}

func (s *RedisStore) Fail(ctx context.Context, id string, cause error) error {
	return s.update(ctx, id, func(job *Job) error {
		if err := job.transition(StateFailed); err != nil {
			return err
		}
		job.Error = cause.Error()
		return nil
	})
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Job, error) {
	data, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

func (s *RedisStore) update(ctx context.Context, id string, fn func(*Job) error) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(job); err != nil {
		return err
	}
	if err := s.client.Set(ctx, jobKey(id), mustMarshal(job), jobTTL).Err(); err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	return nil
}

func jobKey(id string) string {
	return "ingest:job:" + id
}

func mustMarshal(job *Job) []byte {
	data, _ := json.Marshal(job)
	return data
}
