// Package cache provides Redis-backed caching with graceful degradation for
// the correlation matrix. When Redis is unavailable the cache falls back to
// an in-memory copy so the correlation filter keeps working.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"contrarian-trading-bot/internal/logging"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	correlationKey = "correlation:matrix"

	// DefaultMatrixTTL bounds how stale a cached matrix may get
	DefaultMatrixTTL = 30 * time.Minute
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// Matrix is a symbol-by-symbol weighted correlation matrix
type Matrix struct {
	Values    map[string]map[string]float64 `json:"values"`
	UpdatedAt time.Time                     `json:"updated_at"`
}

// CorrelationCache stores the correlation matrix in Redis with an in-memory
// fallback. A small circuit breaker stops hammering a dead Redis: after
// maxFailures consecutive errors the cache goes unhealthy and only re-probes
// once per checkInterval.
type CorrelationCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time
	memory       *Matrix

	maxFailures   int
	checkInterval time.Duration
}

// NewCorrelationCache connects to Redis if enabled. A failed connection
// returns a degraded cache rather than an error; the in-memory fallback
// carries the matrix until Redis recovers.
func NewCorrelationCache(cfg RedisConfig, ttl time.Duration) *CorrelationCache {
	cc := &CorrelationCache{
		ttl:           ttl,
		logger:        logging.Component("cache"),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}
	if ttl <= 0 {
		cc.ttl = DefaultMatrixTTL
	}

	if !cfg.Enabled {
		return cc
	}

	cc.client = redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cc.client.Ping(ctx).Err(); err != nil {
		cc.logger.Warn().Err(err).Msg("initial redis connection failed, running degraded")
		return cc
	}

	cc.healthy = true
	cc.lastCheck = time.Now()
	cc.logger.Info().Str("address", cfg.Address).Msg("redis connected")
	return cc
}

// IsHealthy reports whether Redis is currently usable
func (cc *CorrelationCache) IsHealthy() bool {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.healthy
}

func (cc *CorrelationCache) recordFailure() {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	cc.failureCount++
	if cc.failureCount >= cc.maxFailures && cc.healthy {
		cc.logger.Warn().Int("failures", cc.failureCount).Msg("circuit breaker open, redis marked unhealthy")
		cc.healthy = false
	}
}

func (cc *CorrelationCache) recordSuccess() {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	cc.failureCount = 0
	if !cc.healthy {
		cc.logger.Info().Msg("redis recovered")
	}
	cc.healthy = true
	cc.lastCheck = time.Now()
}

// shouldRetry allows one probe per check interval while unhealthy
func (cc *CorrelationCache) shouldRetry() bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if cc.healthy {
		return true
	}
	if cc.client == nil {
		return false
	}
	if time.Since(cc.lastCheck) < cc.checkInterval {
		return false
	}
	cc.lastCheck = time.Now()
	return true
}

// GetMatrix returns the cached matrix and whether it is still fresh
func (cc *CorrelationCache) GetMatrix(ctx context.Context) (*Matrix, bool) {
	if cc.shouldRetry() {
		data, err := cc.client.Get(ctx, correlationKey).Bytes()
		if err == nil {
			cc.recordSuccess()
			var m Matrix
			if jsonErr := json.Unmarshal(data, &m); jsonErr == nil {
				return &m, time.Since(m.UpdatedAt) < cc.ttl
			}
		} else if err != redis.Nil {
			cc.recordFailure()
		} else {
			cc.recordSuccess()
		}
	}

	cc.mu.RLock()
	defer cc.mu.RUnlock()
	if cc.memory == nil {
		return nil, false
	}
	return cc.memory, time.Since(cc.memory.UpdatedAt) < cc.ttl
}

// SetMatrix stores the matrix in Redis and the in-memory fallback
func (cc *CorrelationCache) SetMatrix(ctx context.Context, m *Matrix) error {
	cc.mu.Lock()
	cc.memory = m
	cc.mu.Unlock()

	if !cc.shouldRetry() {
		return nil
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling correlation matrix: %w", err)
	}

	if err := cc.client.Set(ctx, correlationKey, data, cc.ttl).Err(); err != nil {
		cc.recordFailure()
		return fmt.Errorf("caching correlation matrix: %w", err)
	}
	cc.recordSuccess()
	return nil
}

// Close shuts down the Redis client
func (cc *CorrelationCache) Close() error {
	if cc.client != nil {
		return cc.client.Close()
	}
	return nil
}
