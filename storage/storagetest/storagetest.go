// Package storagetest holds the behavioural checks every storage.BlobStore
// backend must pass.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/lockbox/storage"
)

// Run exercises store against the BlobStore contract.
func Run(t *testing.T, store storage.BlobStore) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(t.Context(), "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, store.Put(t.Context(), "vault", []byte("first")))
		got, err := store.Get(t.Context(), "vault")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), got)
	})

	t.Run("PutReplaces", func(t *testing.T) {
		require.NoError(t, store.Put(t.Context(), "vault", []byte("second")))
		got, err := store.Get(t.Context(), "vault")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), got)
	})

	t.Run("Isolation", func(t *testing.T) {
		data := []byte("mutable")
		require.NoError(t, store.Put(t.Context(), "iso", data))
		data[0] = 'X'

		got, err := store.Get(t.Context(), "iso")
		require.NoError(t, err)
		assert.Equal(t, []byte("mutable"), got)

		got[0] = 'Y'
		again, err := store.Get(t.Context(), "iso")
		require.NoError(t, err)
		assert.Equal(t, []byte("mutable"), again)
	})

	t.Run("InvalidKey", func(t *testing.T) {
		err := store.Put(t.Context(), "../escape", []byte("x"))
		assert.ErrorIs(t, err, storage.ErrInvalidKey)
		_, err = store.Get(t.Context(), "")
		assert.ErrorIs(t, err, storage.ErrInvalidKey)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		assert.Error(t, store.Put(ctx, "vault", []byte("late")))
	})

	t.Run("ConcurrentPutsNeverTear", func(t *testing.T) {
		var wg sync.WaitGroup
		values := make(map[string]bool)
		for i := 0; i < 8; i++ {
			v := fmt.Sprintf("value-%02d-%s", i, string(make([]byte, 256)))
			values[v] = true
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, store.Put(t.Context(), "race", []byte(v)))
			}()
		}
		wg.Wait()

		got, err := store.Get(t.Context(), "race")
		require.NoError(t, err)
		assert.True(t, values[string(got)], "stored value must be one complete write")
	})

	if d, ok := store.(storage.Deleter); ok {
		t.Run("Delete", func(t *testing.T) {
			require.NoError(t, store.Put(t.Context(), "gone", []byte("x")))
			require.NoError(t, d.Delete(t.Context(), "gone"))
			_, err := store.Get(t.Context(), "gone")
			assert.ErrorIs(t, err, storage.ErrNotFound)
			assert.ErrorIs(t, d.Delete(t.Context(), "gone"), storage.ErrNotFound)
		})
	}
}
