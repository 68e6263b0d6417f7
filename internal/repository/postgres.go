package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/josh-kwaku/corebank/internal/domain"
)

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// ApplicationName shows up in pg_stat_activity next to the locks we hold.
	ApplicationName string
}

// OpenPostgres opens a pool and waits for the server to answer. Only
// failures that classify as ErrStoreUnavailable are retried; bad credentials
// or an unknown database fail on the first attempt.
func OpenPostgres(ctx context.Context, databaseURL string, pool PoolConfig, attempts int, backoff time.Duration) (*sql.DB, error) {
	dsn := databaseURL
	if pool.ApplicationName != "" {
		var err error
		dsn, err = withApplicationName(databaseURL, pool.ApplicationName)
		if err != nil {
			return nil, fmt.Errorf("OpenPostgres: %w", err)
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("OpenPostgres: open: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	if err := waitForPostgres(ctx, db.PingContext, attempts, backoff); err != nil {
		db.Close()
		return nil, fmt.Errorf("OpenPostgres: %w", err)
	}
	return db, nil
}

func waitForPostgres(ctx context.Context, ping func(context.Context) error, attempts int, backoff time.Duration) error {
	var err error
	for i := range attempts {
		if err = classify(ping(ctx)); err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			return fmt.Errorf("ping: %w", err)
		}
		slog.Info("waiting for database", "attempt", i+1, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("ping: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("ping: gave up after %d attempts: %w", attempts, err)
}

// withApplicationName sets application_name on either DSN form lib/pq
// accepts: a postgres:// URL or space separated key=value pairs.
func withApplicationName(dsn, name string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse database url: %w", err)
		}
		q := u.Query()
		q.Set("application_name", name)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	return strings.TrimSpace(dsn) + " application_name=" + name, nil
}
