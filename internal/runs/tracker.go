// Package runs keeps ephemeral status snapshots of pipeline runs in Redis.
package runs

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"offer-crew/internal/common/config"
	"offer-crew/internal/common/errors"
)

const (
	DefaultKeyPrefix = "offer-crew:run:"
	DefaultTTL       = 24 * time.Hour
)

var ErrRunNotFound = stderrors.New("run not found")

// Snapshot is the latest known state of one run.
type Snapshot struct {
	RunID      string `json:"runId"`
	TenantName string `json:"tenantName,omitempty"`
	State      string `json:"state"`
	Error      string `json:"error,omitempty"`
	UpdatedAt  string `json:"updatedAt"`
}

type Tracker struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewTracker(client redis.Cmdable, prefix string, ttl time.Duration) *Tracker {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

// NewRedisClient opens the client used by the tracker.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

func (t *Tracker) Key(runID string) string {
	return t.prefix + runID
}

// RecordState overwrites the run snapshot and refreshes its TTL.
func (t *Tracker) RecordState(ctx context.Context, runID, tenantName, state, errMsg string) error {
	snap := Snapshot{
		RunID:      runID,
		TenantName: tenantName,
		State:      state,
		Error:      errMsg,
		UpdatedAt:  t.now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.NewStorageFailedError(err)
	}
	if err := t.client.Set(ctx, t.Key(runID), data, t.ttl).Err(); err != nil {
		return errors.NewStorageFailedError(fmt.Errorf("redis set %s: %w", t.Key(runID), err))
	}
	return nil
}

func (t *Tracker) Get(ctx context.Context, runID string) (*Snapshot, error) {
	raw, err := t.client.Get(ctx, t.Key(runID)).Result()
	if err == redis.Nil {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, errors.NewStorageFailedError(fmt.Errorf("redis get %s: %w", t.Key(runID), err))
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, errors.NewStorageFailedError(fmt.Errorf("decode snapshot %s: %w", runID, err))
	}
	return &snap, nil
}

func (t *Tracker) Ping(ctx context.Context) error {
	if err := t.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
