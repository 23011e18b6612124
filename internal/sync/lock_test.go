package sync

import (
	"context"
	"errors"
	"testing"
)

type fakeLock struct {
	kind, name string
	released   int
	releaseErr error
}

func (l *fakeLock) ScopeKind() string { return l.kind }
func (l *fakeLock) ScopeName() string { return l.name }

func (l *fakeLock) Release(context.Context) error {
	l.released++
	return l.releaseErr
}

type fakeLockManager struct {
	held bool
	err  error
	lock *fakeLock
}

func (m *fakeLockManager) TryAcquire(_ context.Context, kind, name string) (Lock, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	if m.held {
		return nil, false, nil
	}
	m.lock = &fakeLock{kind: kind, name: name}
	return m.lock, true, nil
}

func TestRunExclusive(t *testing.T) {
	t.Parallel()

	t.Run("runs and releases", func(t *testing.T) {
		t.Parallel()

		locks := &fakeLockManager{}
		ran := false
		err := RunExclusive(context.Background(), locks, "admin", "key_transfer", func(context.Context) error {
			ran = true
			return nil
		})
		if err != nil || !ran {
			t.Fatalf("RunExclusive() = %v, ran = %v", err, ran)
		}
		if locks.lock.released != 1 {
			t.Fatalf("released %d times, want 1", locks.lock.released)
		}
	})

	t.Run("held elsewhere", func(t *testing.T) {
		t.Parallel()

		err := RunExclusive(context.Background(), &fakeLockManager{held: true}, "admin", "key_transfer", func(context.Context) error {
			t.Fatalf("run called while the lock is held")
			return nil
		})
		if !errors.Is(err, ErrAlreadyRunning) {
			t.Fatalf("RunExclusive() error = %v, want ErrAlreadyRunning", err)
		}
	})

	t.Run("run error is returned and lock released", func(t *testing.T) {
		t.Parallel()

		locks := &fakeLockManager{}
		boom := errors.New("boom")
		err := RunExclusive(context.Background(), locks, "admin", "kv_all", func(context.Context) error { return boom })
		if !errors.Is(err, boom) {
			t.Fatalf("RunExclusive() error = %v, want %v", err, boom)
		}
		if locks.lock.released != 1 {
			t.Fatalf("released %d times, want 1", locks.lock.released)
		}
	})

	t.Run("acquire error", func(t *testing.T) {
		t.Parallel()

		acquireErr := errors.New("pool closed")
		err := RunExclusive(context.Background(), &fakeLockManager{err: acquireErr}, "admin", "kv_all", func(context.Context) error { return nil })
		if !errors.Is(err, acquireErr) {
			t.Fatalf("RunExclusive() error = %v, want %v", err, acquireErr)
		}
	})
}

func TestLockKeyIsStablePerScope(t *testing.T) {
	t.Parallel()

	if LockKey("admin", "kv_all") != LockKey("admin", "kv_all") {
		t.Fatalf("LockKey is not deterministic")
	}
	if LockKey("admin", "kv_all") == LockKey("admin", "key_transfer") {
		t.Fatalf("distinct scopes share a lock key")
	}
}

func TestNormalizeScope(t *testing.T) {
	t.Parallel()

	kind, name, err := normalizeScope(" Admin ", "KV_All")
	if err != nil || kind != "admin" || name != "kv_all" {
		t.Fatalf("normalizeScope() = %q, %q, %v", kind, name, err)
	}
	if _, _, err := normalizeScope("", "x"); err == nil {
		t.Fatalf("normalizeScope(empty kind) error = nil")
	}
	if _, _, err := normalizeScope("x", " "); err == nil {
		t.Fatalf("normalizeScope(empty name) error = nil")
	}
}
