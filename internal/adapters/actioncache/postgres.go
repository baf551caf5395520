package actioncache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ActionCache = (*PostgresCache)(nil)

const (
	pingTimeout     = 2 * time.Second
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

const schema = `CREATE TABLE IF NOT EXISTS rex_action_results (
	fingerprint BYTEA PRIMARY KEY,
	result      BYTEA NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresCache shares results between machines through a single table.
type PostgresCache struct {
	db *sql.DB
}

// OpenPostgres connects to url, verifies the connection and ensures the table exists.
func OpenPostgres(ctx context.Context, url string) (*PostgresCache, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, domain.Infrastructure("open action cache", zerr.Wrap(err, "failed to open database"))
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, domain.Infrastructure("open action cache", zerr.Wrap(err, "failed to ping database"))
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, domain.Infrastructure("open action cache", zerr.Wrap(err, "failed to create action cache table"))
	}

	return &PostgresCache{db: db}, nil
}

// NewPostgresCache wraps an existing connection pool. The table must exist.
func NewPostgresCache(db *sql.DB) *PostgresCache {
	return &PostgresCache{db: db}
}

// Get implements ports.ActionCache.
func (c *PostgresCache) Get(ctx context.Context, fp domain.Fingerprint) (domain.ExecutionResult, bool, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT result FROM rex_action_results WHERE fingerprint = $1`, fp[:],
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExecutionResult{}, false, nil
	}
	if err != nil {
		return domain.ExecutionResult{}, false, zerr.With(
			zerr.Wrap(err, domain.ErrActionCacheReadFailed.Error()), "fingerprint", fp.String())
	}

	result, err := domain.DecodeResult(data)
	if err != nil {
		return domain.ExecutionResult{}, false, nil
	}
	return result, true, nil
}

// Put implements ports.ActionCache.
func (c *PostgresCache) Put(ctx context.Context, fp domain.Fingerprint, result domain.ExecutionResult) error {
	data, err := domain.EncodeResult(result)
	if err != nil {
		return zerr.Wrap(err, domain.ErrActionCacheWriteFailed.Error())
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO rex_action_results (fingerprint, result, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (fingerprint) DO UPDATE SET result = EXCLUDED.result, updated_at = now()`,
		fp[:], data,
	)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrActionCacheWriteFailed.Error()), "fingerprint", fp.String())
	}
	return nil
}

// Close releases the connection pool.
func (c *PostgresCache) Close() error {
	return c.db.Close()
}
