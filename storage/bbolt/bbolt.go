// Package bbolt provides a BBolt-backed storage.BlobStore.
package bbolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/lockbox/internal/logger"
	"github.com/jmcleod/lockbox/storage"
)

var blobsBucket = []byte("blobs")

// Store implements storage.BlobStore backed by a BBolt database. Each Put
// runs in its own write transaction, which BBolt commits atomically.
type Store struct {
	db  *bbolt.DB
	log *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for open and write-failure events.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l.Component("storage.bbolt")
		}
	}
}

var _ storage.BlobStore = (*Store)(nil)

// New returns a Store backed by the given BBolt database.
func New(db *bbolt.DB, opts ...Option) *Store {
	s := &Store{db: db, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens (or creates) a BBolt database at path with 0600 permissions.
// A nil options value uses a one second file-lock timeout so a second
// process fails fast instead of blocking.
func Open(path string, options *bbolt.Options, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating bbolt directory: %w", err)
	}
	if options == nil {
		options = &bbolt.Options{Timeout: time.Second}
	}
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s := New(db, opts...)
	s.log.Info().Str("path", path).Msg("store opened")
	return s, nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}

	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(blobsBucket)
		if b == nil {
			return storage.ErrNotFound
		}
		data := b.Get([]byte(key))
		if data == nil {
			return storage.ErrNotFound
		}
		// Values are only valid for the life of the transaction.
		out = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(blobsBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), append([]byte(nil), data...))
	})
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("write failed")
	}
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(blobsBucket)
		if b == nil || b.Get([]byte(key)) == nil {
			return storage.ErrNotFound
		}
		return b.Delete([]byte(key))
	})
}
