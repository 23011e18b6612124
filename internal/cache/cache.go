// Package cache carries routing cache invalidations between instances and
// holds the local copies they evict.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/merchantops/merchantops/internal/metrics"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

// Publisher broadcasts keys that every instance must evict.
type Publisher interface {
	Publish(ctx context.Context, keys ...string) error
}

type message struct {
	Keys []string `json:"keys"`
}

func encodeKeys(keys []string) (string, error) {
	if len(keys) == 0 {
		return "", errors.New("no keys to invalidate")
	}
	raw, err := json.Marshal(message{Keys: keys})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeKeys(payload string) ([]string, error) {
	var msg message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return nil, fmt.Errorf("decode invalidation message: %w", err)
	}
	return msg.Keys, nil
}

// applyInvalidation evicts the keys carried by one channel message.
func applyInvalidation(local *Local, channel, payload string, logger *slog.Logger) {
	keys, err := decodeKeys(payload)
	if err != nil {
		logger.Warn("dropping invalidation message", "channel", channel, "err", err)
		return
	}
	local.Evict(keys...)
	logger.Debug("evicted cache keys", "channel", channel, "keys", keys)
}

func observe(backend string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.CacheInvalidationsTotal.WithLabelValues(backend, status).Inc()
}

// Noop accepts every publish. Used when no backend is configured.
type Noop struct{}

func (Noop) Publish(_ context.Context, keys ...string) error {
	observe(BackendNone, nil)
	return nil
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Local is an in-process TTL cache.
type Local struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	// evictions counts Evict calls; GetOrLoad drops values loaded across one.
	evictions uint64
}

func NewLocal(ttl time.Duration) *Local {
	return &Local{entries: make(map[string]entry), ttl: ttl, now: time.Now}
}

func (l *Local) Get(key string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return nil, false
	}
	if l.ttl > 0 && !l.now().Before(e.expiresAt) {
		delete(l.entries, key)
		return nil, false
	}
	return e.value, true
}

func (l *Local) Set(key string, value []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[key] = entry{value: value, expiresAt: l.now().Add(l.ttl)}
}

// GetOrLoad returns the cached value of key, calling load on a miss. A value
// loaded while any eviction happened is returned but not kept, since it may
// predate the change that caused the eviction.
func (l *Local) GetOrLoad(key string, load func() ([]byte, error)) ([]byte, error) {
	if v, ok := l.Get(key); ok {
		return v, nil
	}
	l.mu.Lock()
	seen := l.evictions
	l.mu.Unlock()

	v, err := load()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.evictions == seen {
		l.entries[key] = entry{value: v, expiresAt: l.now().Add(l.ttl)}
	}
	return v, nil
}

// Evict removes keys; unknown keys are ignored.
func (l *Local) Evict(keys ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictions++
	for _, k := range keys {
		delete(l.entries, k)
	}
}

func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
