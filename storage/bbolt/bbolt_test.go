package bbolt

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/lockbox/internal/logger"
	"github.com/jmcleod/lockbox/storage/storagetest"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "vault-test.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestBBoltStore(t *testing.T) {
	s, _ := newTestStore(t)
	storagetest.Run(t, s)
}

func TestBBoltStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(t.Context(), "vault", []byte("persisted")))
	require.NoError(t, s.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(t.Context(), "vault")
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got)
}

func TestBBoltStore_Logging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(t.Context(), "vault", []byte("ciphertext")))
	require.NoError(t, s.Close())

	var buf bytes.Buffer
	ro, err := Open(path, &bbolt.Options{ReadOnly: true, Timeout: time.Second},
		WithLogger(logger.NewLoggerTo(&buf, "test", "debug")))
	require.NoError(t, err)
	defer ro.Close()
	assert.Contains(t, buf.String(), `"component":"storage.bbolt"`)
	assert.Contains(t, buf.String(), "store opened")

	require.Error(t, ro.Put(t.Context(), "vault", []byte("other")))
	assert.Contains(t, buf.String(), "write failed")
	assert.Contains(t, buf.String(), `"key":"vault"`)
	assert.NotContains(t, buf.String(), "ciphertext")
}
