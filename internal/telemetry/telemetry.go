// Package telemetry fetches raw user signals pushed by desktop agents.
// The production provider reads JSON blobs from Redis; a static provider
// backs tests and replay.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoTelemetry marks a user with no signal blob available. Callers fall
// back to normalization defaults rather than failing the decision.
var ErrNoTelemetry = errors.New("no telemetry for user")

// #region provider

// Provider yields the latest raw signal payload for a user.
type Provider interface {
	Fetch(ctx context.Context, userID string) ([]byte, error)
}

// Publisher accepts agent-pushed signal payloads. Both providers
// implement it; the ingestion endpoint feeds it.
type Publisher interface {
	Publish(ctx context.Context, userID string, payload any) error
}

// #endregion provider

// #region redis-provider

const (
	defaultKeyPrefix = "telemetry:"
	defaultTTL       = 15 * time.Minute
)

// RedisProvider reads agent-pushed signal blobs from Redis. Keys are
// telemetry:<user_id>; agents overwrite the blob on every sample, and the
// TTL bounds how stale a snapshot can get before we treat it as absent.
type RedisProvider struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisProvider wraps a Redis client.
func NewRedisProvider(client *redis.Client) *RedisProvider {
	return &RedisProvider{client: client, prefix: defaultKeyPrefix, ttl: defaultTTL}
}

// Fetch returns the raw blob for a user, or ErrNoTelemetry on a miss.
func (p *RedisProvider) Fetch(ctx context.Context, userID string) ([]byte, error) {
	raw, err := p.client.Get(ctx, p.prefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNoTelemetry, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch telemetry: %w", err)
	}
	return raw, nil
}

// Publish stores a signal blob for a user with the provider TTL. The
// server's ingestion endpoint writes through here.
func (p *RedisProvider) Publish(ctx context.Context, userID string, payload any) error {
	blob, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}
	if err := p.client.Set(ctx, p.prefix+userID, blob, p.ttl).Err(); err != nil {
		return fmt.Errorf("publish telemetry: %w", err)
	}
	return nil
}

// Ping verifies connectivity for health checks.
func (p *RedisProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// #endregion redis-provider

// #region static-provider

// StaticProvider serves blobs from memory. Tests and the replay harness
// use it in place of Redis.
type StaticProvider struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewStaticProvider builds a provider over pre-encoded payloads.
func NewStaticProvider(payloads map[string]any) (*StaticProvider, error) {
	blobs := make(map[string][]byte, len(payloads))
	for user, payload := range payloads {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode telemetry for %s: %w", user, err)
		}
		blobs[user] = b
	}
	return &StaticProvider{blobs: blobs}, nil
}

// Fetch returns the stored blob, or ErrNoTelemetry.
func (p *StaticProvider) Fetch(_ context.Context, userID string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.blobs[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTelemetry, userID)
	}
	return b, nil
}

// Publish stores a blob for a user, overwriting any previous one.
func (p *StaticProvider) Publish(_ context.Context, userID string, payload any) error {
	blob, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blobs[userID] = blob
	return nil
}

// #endregion static-provider
