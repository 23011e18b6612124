package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPublisher publishes invalidations with NOTIFY.
type PostgresPublisher struct {
	pool    *pgxpool.Pool
	channel string
}

func NewPostgresPublisher(pool *pgxpool.Pool, channel string) *PostgresPublisher {
	return &PostgresPublisher{pool: pool, channel: channel}
}

func (p *PostgresPublisher) Publish(ctx context.Context, keys ...string) error {
	payload, err := encodeKeys(keys)
	if err == nil {
		_, err = p.pool.Exec(ctx, "SELECT pg_notify($1, $2)", p.channel, payload)
	}
	observe(BackendPostgres, err)
	if err != nil {
		return fmt.Errorf("notify %s: %w", p.channel, err)
	}
	return nil
}

// ListenPostgres evicts every key received on channel from local until ctx ends.
func ListenPostgres(ctx context.Context, pool *pgxpool.Pool, channel string, local *Local, logger *slog.Logger) error {
	if pool == nil {
		return errors.New("cache pool is nil")
	}
	if local == nil {
		return errors.New("local cache is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return err
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		applyInvalidation(local, channel, n.Payload, logger)
	}
}
