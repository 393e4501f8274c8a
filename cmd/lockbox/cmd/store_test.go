package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/lockbox/internal/config"
	"github.com/jmcleod/lockbox/internal/logger"
	"github.com/jmcleod/lockbox/storage"
	"github.com/jmcleod/lockbox/vault"
)

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		backend string
		path    string
	}{
		{config.BackendMemory, ""},
		{config.BackendBBolt, filepath.Join(dir, "bolt", "vault.db")},
		{config.BackendSQLite, filepath.Join(dir, "sqlite", "vault.db")},
		{config.BackendFile, filepath.Join(dir, "files")},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Vault.Backend = tt.backend
			cfg.Vault.Path = tt.path

			store, closeFn, err := openStore(t.Context(), cfg, logger.Nop())
			require.NoError(t, err)
			t.Cleanup(func() { closeFn() })

			require.NoError(t, store.Put(t.Context(), "default", []byte("blob")))
			got, err := store.Get(t.Context(), "default")
			require.NoError(t, err)
			assert.Equal(t, []byte("blob"), got)

			_, err = store.Get(t.Context(), "other")
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Vault.Backend = "s3"

	_, closeFn, err := openStore(t.Context(), cfg, logger.Nop())
	assert.ErrorIs(t, err, config.ErrInvalidVaultConfig)
	assert.NotNil(t, closeFn)
}

func TestNewVault_UsesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Vault.Backend = config.BackendMemory
	cfg.Vault.ID = "work"
	cfg.Vault.KDFIterations = 10000

	store, _, err := openStore(t.Context(), cfg, logger.Nop())
	require.NoError(t, err)
	v := newVault(cfg, store, logger.Nop())
	assert.Equal(t, "work", v.ID())

	s, err := v.Create(t.Context(), "Str0ng!Passphrase#2024")
	require.NoError(t, err)
	defer s.Lock()

	exists, err := v.Exists(t.Context())
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = v.Create(t.Context(), "Str0ng!Passphrase#2024")
	assert.ErrorIs(t, err, vault.ErrAlreadyExists)
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:7420", true},
		{"localhost:7420", true},
		{"[::1]:7420", true},
		{"0.0.0.0:7420", false},
		{":7420", false},
		{"192.168.1.10:7420", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isLoopback(tt.addr), tt.addr)
	}
}
