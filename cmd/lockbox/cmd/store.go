package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/jmcleod/lockbox/internal/config"
	"github.com/jmcleod/lockbox/internal/logger"
	"github.com/jmcleod/lockbox/storage"
	bboltstorage "github.com/jmcleod/lockbox/storage/bbolt"
	filestorage "github.com/jmcleod/lockbox/storage/file"
	"github.com/jmcleod/lockbox/storage/memory"
	"github.com/jmcleod/lockbox/storage/postgres"
	"github.com/jmcleod/lockbox/storage/sqlite"
	"github.com/jmcleod/lockbox/vault"
)

// openStore opens the blob store selected by cfg. The returned close
// function is never nil.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.BlobStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Vault.Backend {
	case config.BackendBBolt:
		s, err := bboltstorage.Open(cfg.Vault.Path, nil, bboltstorage.WithLogger(log))
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, cfg.Vault.Path, sqlite.WithLogger(log))
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case config.BackendPostgres:
		s, err := postgres.Open(ctx, cfg.Vault.DSN, postgres.WithLogger(log))
		if err != nil {
			return nil, noop, err
		}
		return s, func() error { s.Close(); return nil }, nil
	case config.BackendFile:
		s, err := filestorage.New(cfg.Vault.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case config.BackendMemory:
		return memory.New(), noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidVaultConfig, cfg.Vault.Backend)
	}
}

// newVault builds a Vault over store using the session settings in cfg.
func newVault(cfg *config.Config, store storage.BlobStore, log *logger.Logger) *vault.Vault {
	return vault.New(cfg.Vault.ID, store,
		vault.WithLogger(log),
		vault.WithKDFIterations(cfg.Vault.KDFIterations),
		vault.WithAutoLock(cfg.AutoLockAfter()),
	)
}

// env is what a vault command runs against.
type env struct {
	cfg   *config.Config
	log   *logger.Logger
	vault *vault.Vault
	close func() error
}

func openEnv(ctx context.Context, role string) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.NewLoggerTo(zerolog.ConsoleWriter{Out: os.Stderr}, role, cfg.Log.Level)
	store, closeFn, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Vault.Backend, err)
	}
	return &env{cfg: cfg, log: log, vault: newVault(cfg, store, log), close: closeFn}, nil
}

// withSession unlocks the vault, runs fn and locks it again.
func withSession(ctx context.Context, e *env, prompt func() (string, error), fn func(*vault.Session) error) error {
	pass, err := prompt()
	if err != nil {
		return err
	}
	session, err := e.vault.Unlock(ctx, pass)
	if err != nil {
		return err
	}
	defer session.Lock()
	return fn(session)
}
