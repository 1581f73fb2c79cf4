package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is the key prefix used when none is configured.
const DefaultRedisPrefix = "itergraph:"

type redisConfig struct {
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*redisConfig)

// WithKeyPrefix sets the prefix of every key the store writes.
func WithKeyPrefix(prefix string) RedisOption {
	return func(c *redisConfig) {
		c.prefix = prefix
	}
}

// WithTTL sets the expiration of journals and checkpoints. Zero keeps them
// forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(c *redisConfig) {
		c.ttl = ttl
	}
}

// RedisStore is a Store backed by Redis. Each run keeps its records in a hash
// keyed by step and a sorted set of steps:
//
//	{prefix}run:{runID}:steps       HASH  step -> {"graph":..., "state":...}
//	{prefix}run:{runID}:index       ZSET  step (score = step)
//	{prefix}checkpoint:{checkpoint} STRING {"step":..., "state":...}
type RedisStore[S any] struct {
	client *backend.Client
	cfg    redisConfig

	mu     sync.RWMutex
	closed bool
}

// NewRedisStore connects to the Redis server at addr. The connection is made
// lazily; call Ping to check it.
func NewRedisStore[S any](addr, password string, db int, opts ...RedisOption) *RedisStore[S] {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient[S](client, opts...)
}

// NewRedisStoreFromClient wraps an existing client. Close closes the client.
func NewRedisStoreFromClient[S any](client *backend.Client, opts ...RedisOption) *RedisStore[S] {
	cfg := redisConfig{prefix: DefaultRedisPrefix}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &RedisStore[S]{client: client, cfg: cfg}
}

type redisStep struct {
	Graph string          `json:"graph"`
	State json.RawMessage `json:"state"`
}

type redisCheckpoint struct {
	Step  int             `json:"step"`
	State json.RawMessage `json:"state"`
}

func (s *RedisStore[S]) stepsKey(runID string) string {
	return s.cfg.prefix + "run:" + runID + ":steps"
}

func (s *RedisStore[S]) indexKey(runID string) string {
	return s.cfg.prefix + "run:" + runID + ":index"
}

func (s *RedisStore[S]) checkpointKey(cpID string) string {
	return s.cfg.prefix + "checkpoint:" + cpID
}

func (s *RedisStore[S]) open() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// SaveStep implements Store.
func (s *RedisStore[S]) SaveStep(ctx context.Context, runID string, step int, graph string, state S) error {
	if err := s.open(); err != nil {
		return err
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	data, err := json.Marshal(redisStep{Graph: graph, State: raw})
	if err != nil {
		return fmt.Errorf("failed to marshal step: %w", err)
	}

	field := strconv.Itoa(step)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.stepsKey(runID), field, data)
	pipe.ZAdd(ctx, s.indexKey(runID), backend.Z{Score: float64(step), Member: field})
	if s.cfg.ttl > 0 {
		pipe.Expire(ctx, s.stepsKey(runID), s.cfg.ttl)
		pipe.Expire(ctx, s.indexKey(runID), s.cfg.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}
	return nil
}

// LoadLatest implements Store.
func (s *RedisStore[S]) LoadLatest(ctx context.Context, runID string) (state S, step int, err error) {
	if err := s.open(); err != nil {
		return state, 0, err
	}
	members, err := s.client.ZRevRange(ctx, s.indexKey(runID), 0, 0).Result()
	if err != nil {
		return state, 0, fmt.Errorf("failed to load latest step: %w", err)
	}
	if len(members) == 0 {
		return state, 0, ErrNotFound
	}
	data, err := s.client.HGet(ctx, s.stepsKey(runID), members[0]).Result()
	if errors.Is(err, backend.Nil) {
		return state, 0, ErrNotFound
	}
	if err != nil {
		return state, 0, fmt.Errorf("failed to load latest step: %w", err)
	}
	rec, err := decodeStep[S](members[0], data)
	if err != nil {
		return state, 0, err
	}
	return rec.State, rec.Step, nil
}

// LoadSteps implements Store.
func (s *RedisStore[S]) LoadSteps(ctx context.Context, runID string) ([]StepRecord[S], error) {
	if err := s.open(); err != nil {
		return nil, err
	}
	members, err := s.client.ZRange(ctx, s.indexKey(runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}
	out := make([]StepRecord[S], 0, len(members))
	if len(members) == 0 {
		return out, nil
	}
	values, err := s.client.HMGet(ctx, s.stepsKey(runID), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}
	for i, v := range values {
		data, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("step %s of run %s has no record", members[i], runID)
		}
		rec, err := decodeStep[S](members[i], data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeStep[S any](member, data string) (StepRecord[S], error) {
	var rec StepRecord[S]
	step, err := strconv.Atoi(member)
	if err != nil {
		return rec, fmt.Errorf("invalid step %q: %w", member, err)
	}
	var stored redisStep
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return rec, fmt.Errorf("failed to unmarshal step: %w", err)
	}
	if err := json.Unmarshal(stored.State, &rec.State); err != nil {
		return rec, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	rec.Step = step
	rec.Graph = stored.Graph
	return rec, nil
}

// SaveCheckpoint implements Store.
func (s *RedisStore[S]) SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error {
	if err := s.open(); err != nil {
		return err
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	data, err := json.Marshal(redisCheckpoint{Step: step, State: raw})
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, s.checkpointKey(cpID), data, s.cfg.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint implements Store.
func (s *RedisStore[S]) LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error) {
	if err := s.open(); err != nil {
		return state, 0, err
	}
	data, err := s.client.Get(ctx, s.checkpointKey(cpID)).Result()
	if errors.Is(err, backend.Nil) {
		return state, 0, ErrNotFound
	}
	if err != nil {
		return state, 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	var stored redisCheckpoint
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return state, 0, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	if err := json.Unmarshal(stored.State, &state); err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, stored.Step, nil
}

// Ping checks that the server answers.
func (s *RedisStore[S]) Ping(ctx context.Context) error {
	if err := s.open(); err != nil {
		return err
	}
	return s.client.Ping(ctx).Err()
}

// Close closes the client. Later calls return ErrClosed; closing twice is a
// no-op.
func (s *RedisStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
