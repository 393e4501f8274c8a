// Package postgres implements storage.BlobStore backed by PostgreSQL.
//
// Blobs live in a single lockbox_blobs table keyed by blob key. Each Put is
// one UPSERT statement, so a concurrent reader sees either the previous or
// the new ciphertext.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/lockbox/internal/logger"
	"github.com/jmcleod/lockbox/storage"
)

// Store implements storage.BlobStore backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for schema and write-failure events. The DSN
// is never logged.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l.Component("storage.postgres")
		}
	}
}

var _ storage.BlobStore = (*Store)(nil)

// New returns a Store backed by the given pgx connection pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a connection pool from a DSN string, ensures the schema
// exists, and returns a new Store.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	s := New(pool, opts...)
	s.log.Info().Msg("schema ensured")
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}

	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM lockbox_blobs WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob: %w", err)
	}
	return data, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO lockbox_blobs (key, data, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		key, data)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("write failed")
		return fmt.Errorf("writing blob: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM lockbox_blobs WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("deleting blob: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
