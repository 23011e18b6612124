package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/merchantops/merchantops/internal/metrics"
)

func TestLocalExpiresAndEvicts(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocal(time.Minute)
	l.now = func() time.Time { return now }

	l.Set("routing_config_m_p", []byte("cfg"))
	l.Set("other", []byte("x"))
	if got, ok := l.Get("routing_config_m_p"); !ok || string(got) != "cfg" {
		t.Fatalf("Get() = %q, %v", got, ok)
	}

	l.Evict("routing_config_m_p", "missing")
	if _, ok := l.Get("routing_config_m_p"); ok {
		t.Fatalf("Get() after Evict ok = true")
	}

	now = now.Add(time.Minute)
	if _, ok := l.Get("other"); ok {
		t.Fatalf("Get() after ttl ok = true")
	}
	if l.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", l.Len())
	}
}

func TestGetOrLoad(t *testing.T) {
	t.Parallel()

	l := NewLocal(time.Minute)
	loads := 0
	load := func() ([]byte, error) {
		loads++
		return []byte("v1"), nil
	}
	for range 2 {
		got, err := l.GetOrLoad("routing_config_m_p", load)
		if err != nil || string(got) != "v1" {
			t.Fatalf("GetOrLoad() = %q, %v", got, err)
		}
	}
	if loads != 1 {
		t.Fatalf("loads = %d, want 1", loads)
	}

	if _, err := l.GetOrLoad("failing", func() ([]byte, error) { return nil, errors.New("boom") }); err == nil {
		t.Fatalf("GetOrLoad(failing) error = nil")
	}
	if _, ok := l.Get("failing"); ok {
		t.Fatalf("failed load was cached")
	}
}

func TestGetOrLoadDropsValueLoadedAcrossEviction(t *testing.T) {
	t.Parallel()

	l := NewLocal(time.Minute)
	got, err := l.GetOrLoad("routing_config_m_p", func() ([]byte, error) {
		l.Evict("routing_config_m_p")
		return []byte("stale"), nil
	})
	if err != nil || string(got) != "stale" {
		t.Fatalf("GetOrLoad() = %q, %v", got, err)
	}
	if _, ok := l.Get("routing_config_m_p"); ok {
		t.Fatalf("value loaded across an eviction was cached")
	}
}

func TestApplyInvalidation(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := NewLocal(time.Minute)
	l.Set("routing_config_m_p1", []byte("a"))
	l.Set("routing_config_m_p2", []byte("b"))

	applyInvalidation(l, "merchantops_invalidate", "not json", logger)
	if l.Len() != 2 {
		t.Fatalf("Len() after garbage = %d, want 2", l.Len())
	}

	payload, err := encodeKeys([]string{"routing_config_m_p1"})
	if err != nil {
		t.Fatalf("encodeKeys() error = %v", err)
	}
	applyInvalidation(l, "merchantops_invalidate", payload, logger)
	if _, ok := l.Get("routing_config_m_p1"); ok {
		t.Fatalf("published key still cached")
	}
	if _, ok := l.Get("routing_config_m_p2"); !ok {
		t.Fatalf("unrelated key evicted")
	}
}

func TestEncodeDecodeKeys(t *testing.T) {
	t.Parallel()

	payload, err := encodeKeys([]string{"a", "b"})
	if err != nil {
		t.Fatalf("encodeKeys() error = %v", err)
	}
	if payload != `{"keys":["a","b"]}` {
		t.Fatalf("encodeKeys() = %s", payload)
	}
	keys, err := decodeKeys(payload)
	if err != nil || len(keys) != 2 {
		t.Fatalf("decodeKeys() = %v, %v", keys, err)
	}
	if _, err := encodeKeys(nil); err == nil {
		t.Fatalf("encodeKeys(nil) error = nil")
	}
	if _, err := decodeKeys("not json"); err == nil {
		t.Fatalf("decodeKeys(garbage) error = nil")
	}
}

func TestRedisPublisherReportsFailure(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	failures := metrics.CacheInvalidationsTotal.WithLabelValues(BackendRedis, "error")
	before := testutil.ToFloat64(failures)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := NewRedisPublisher(client, "merchantops_invalidate").Publish(ctx, "routing_config_m_p"); err == nil {
		t.Fatalf("Publish() error = nil, want connection error")
	}
	if got := testutil.ToFloat64(failures) - before; got != 1 {
		t.Fatalf("error count delta = %v, want 1", got)
	}
}

func TestNoopPublish(t *testing.T) {
	t.Parallel()

	if err := (Noop{}).Publish(context.Background(), "k"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}
