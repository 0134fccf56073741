package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	// KeyPrefix namespaces every key. Defaults to "plangraph:".
	KeyPrefix string
	// TTL expires run data; zero keeps it forever.
	TTL time.Duration
}

// RedisStore persists run histories in Redis. Each run is stored as a JSON
// string; sorted sets scored by start time index all runs, runs per
// workflow and runs per status.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(client redis.UniversalClient, opts RedisOptions, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "plangraph:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: prefix + "run:",
		ttl:       opts.TTL,
		logger:    logger.With(zap.String("component", "history_redis")),
	}
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) dataKey(runID string) string {
	return s.keyPrefix + "data:" + runID
}

func (s *RedisStore) allKey() string {
	return s.keyPrefix + "index:all"
}

func (s *RedisStore) workflowKey(workflow string) string {
	return s.keyPrefix + "index:workflow:" + workflow
}

func (s *RedisStore) statusKey(status Status) string {
	return s.keyPrefix + "index:status:" + string(status)
}

// Save stores or replaces a run and updates its indexes.
func (s *RedisStore) Save(ctx context.Context, run *Run) error {
	if run == nil || run.RunID == "" {
		return ErrRunIDRequired
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	old, err := s.Get(ctx, run.RunID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	run.mu.RLock()
	status := run.Status
	workflow := run.Workflow
	score := float64(run.StartTime.UnixNano())
	run.mu.RUnlock()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.dataKey(run.RunID), data, s.ttl)
	if old != nil && old.Status != status {
		pipe.ZRem(ctx, s.statusKey(old.Status), run.RunID)
	}
	member := redis.Z{Score: score, Member: run.RunID}
	pipe.ZAdd(ctx, s.allKey(), member)
	pipe.ZAdd(ctx, s.statusKey(status), member)
	if workflow != "" {
		pipe.ZAdd(ctx, s.workflowKey(workflow), member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save run %s: %w", run.RunID, err)
	}

	s.logger.Debug("run saved",
		zap.String("run_id", run.RunID),
		zap.String("status", string(status)))
	return nil
}

// Get loads a run by id.
func (s *RedisStore) Get(ctx context.Context, runID string) (*Run, error) {
	data, err := s.client.Get(ctx, s.dataKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(runID)
	}
	if err != nil {
		return nil, err
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &run, nil
}

// ListByWorkflow returns the runs of a workflow, oldest first.
func (s *RedisStore) ListByWorkflow(ctx context.Context, workflow string) ([]*Run, error) {
	return s.load(ctx, s.workflowKey(workflow), "-inf", "+inf")
}

// ListByStatus returns the runs with the given status, oldest first.
func (s *RedisStore) ListByStatus(ctx context.Context, status Status) ([]*Run, error) {
	return s.load(ctx, s.statusKey(status), "-inf", "+inf")
}

// ListByTimeRange returns the runs started within [start, end], oldest first.
func (s *RedisStore) ListByTimeRange(ctx context.Context, start, end time.Time) ([]*Run, error) {
	return s.load(ctx, s.allKey(),
		strconv.FormatInt(start.UnixNano(), 10),
		strconv.FormatInt(end.UnixNano(), 10))
}

// Delete removes a run and its index entries.
func (s *RedisStore) Delete(ctx context.Context, runID string) error {
	run, err := s.Get(ctx, runID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.dataKey(runID))
	pipe.ZRem(ctx, s.allKey(), runID)
	pipe.ZRem(ctx, s.statusKey(run.Status), runID)
	if run.Workflow != "" {
		pipe.ZRem(ctx, s.workflowKey(run.Workflow), runID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// load reads the members of an index within a score range. Index entries
// whose data key has expired are removed on the way.
func (s *RedisStore) load(ctx context.Context, index, minScore, maxScore string) ([]*Run, error) {
	ids, err := s.client.ZRangeByScore(ctx, index, &redis.ZRangeBy{Min: minScore, Max: maxScore}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*Run, 0, len(ids))
	var stale []any
	for _, id := range ids {
		run, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}

	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, index, stale...).Err(); err != nil {
			s.logger.Warn("failed to drop expired index entries",
				zap.String("index", index), zap.Error(err))
		}
	}
	sortByStart(out)
	return out, nil
}
