package sync

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"strings"
	gosync "sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAlreadyRunning is returned when another process holds the job lock.
var ErrAlreadyRunning = errors.New("job is already running")

const releaseTimeout = 5 * time.Second

type Lock interface {
	ScopeKind() string
	ScopeName() string
	Release(ctx context.Context) error
}

type LockManager interface {
	TryAcquire(ctx context.Context, scopeKind, scopeName string) (Lock, bool, error)
}

// LockKey maps a scope onto a Postgres advisory lock key.
func LockKey(scopeKind, scopeName string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(scopeKind + ":" + scopeName))
	return int64(h.Sum64())
}

func normalizeScope(kind, name string) (string, string, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	name = strings.ToLower(strings.TrimSpace(name))
	if kind == "" {
		return "", "", errors.New("scope kind is required")
	}
	if name == "" {
		return "", "", errors.New("scope name is required")
	}
	return kind, name, nil
}

// NewAdvisoryLockManager locks scopes with session level advisory locks. A
// held lock pins one pool connection until it is released.
func NewAdvisoryLockManager(pool *pgxpool.Pool) (LockManager, error) {
	if pool == nil {
		return nil, errors.New("lock pool is nil")
	}
	return &advisoryLockManager{pool: pool}, nil
}

type advisoryLockManager struct {
	pool *pgxpool.Pool
}

func (m *advisoryLockManager) TryAcquire(ctx context.Context, scopeKind, scopeName string) (Lock, bool, error) {
	scopeKind, scopeName, err := normalizeScope(scopeKind, scopeName)
	if err != nil {
		return nil, false, err
	}

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	key := LockKey(scopeKind, scopeName)

	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, err
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}
	return &advisoryLock{conn: conn, key: key, scopeKind: scopeKind, scopeName: scopeName}, true, nil
}

type advisoryLock struct {
	conn      *pgxpool.Conn
	key       int64
	scopeKind string
	scopeName string

	releaseOnce gosync.Once
}

func (l *advisoryLock) ScopeKind() string { return l.scopeKind }
func (l *advisoryLock) ScopeName() string { return l.scopeName }

func (l *advisoryLock) Release(ctx context.Context) error {
	var unlockErr error
	l.releaseOnce.Do(func() {
		_, unlockErr = l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.key)
		l.conn.Release()
	})
	return unlockErr
}

// RunExclusive runs fn while holding the lock of the scope. It does not wait:
// when the lock is held elsewhere it returns ErrAlreadyRunning.
func RunExclusive(ctx context.Context, locks LockManager, scopeKind, scopeName string, fn func(context.Context) error) error {
	if locks == nil {
		return errors.New("lock manager is nil")
	}
	if fn == nil {
		return errors.New("run function is nil")
	}

	lock, ok, err := locks.TryAcquire(ctx, scopeKind, scopeName)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := lock.Release(unlockCtx); err != nil {
			slog.Warn("failed to release job lock", "scope_kind", lock.ScopeKind(), "scope_name", lock.ScopeName(), "err", err)
		}
	}()
	return fn(ctx)
}
