// Package postgres provides the Postgres-backed URL repository.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/page-analyzer/internal/store"
)

// uniqueViolation is the SQLSTATE Postgres reports for a UNIQUE conflict.
const uniqueViolation = "23505"

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// querier is the subset of pgx shared by *pgxpool.Conn, *pgxpool.Pool and pgxmock.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is what NewWithPool needs from a connection pool (primarily for testing).
type Pool interface {
	querier
	Ping(ctx context.Context) error
	Close()
}

// Store implements store.Repository on top of pgx.
type Store struct {
	acquire func(ctx context.Context) (querier, func(), error)
	ping    func(ctx context.Context) error
	close   func()
	clock   store.Clock
}

// New connects a pgxpool using cfg and verifies the connection.
func New(ctx context.Context, cfg Config, clock store.Clock) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{
		acquire: func(ctx context.Context) (querier, func(), error) {
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("acquire connection: %w", err)
			}
			return conn, conn.Release, nil
		},
		ping:  pool.Ping,
		close: pool.Close,
		clock: clock,
	}, nil
}

// NewWithPool constructs a store whose sessions share pool directly.
func NewWithPool(pool Pool, clock store.Clock) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &Store{
		acquire: func(context.Context) (querier, func(), error) {
			return pool, func() {}, nil
		},
		ping:  pool.Ping,
		close: pool.Close,
		clock: clock,
	}, nil
}

// Acquire reserves one pooled connection for the caller.
func (s *Store) Acquire(ctx context.Context) (store.Session, error) {
	q, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &session{q: q, release: release, clock: s.clock}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.close == nil {
		return
	}
	s.close()
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	q, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	if _, err := q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS urls (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS url_checks (
	id          BIGSERIAL PRIMARY KEY,
	url_id      BIGINT NOT NULL REFERENCES urls (id),
	status_code INTEGER,
	h1          TEXT,
	title       TEXT,
	description TEXT,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_url_checks_url_id_id ON url_checks (url_id, id DESC);
`
