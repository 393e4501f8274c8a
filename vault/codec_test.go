package vault

import (
	"encoding/json"
	"testing"

	"github.com/jmcleod/lockbox/crypto"
	"github.com/jmcleod/lockbox/internal/util"
	"github.com/jmcleod/lockbox/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) (key, salt []byte) {
	t.Helper()
	salt, err := crypto.NewSalt()
	require.NoError(t, err)
	key, err = util.RandomBytes(util.AESKeySize)
	require.NoError(t, err)
	return key, salt
}

func putEnvelope(t *testing.T, store storage.BlobStore, env *storage.Envelope) {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, store.Put(t.Context(), "default", data))
}

func TestWrapUnwrap(t *testing.T) {
	key, salt := testKey(t)
	contents := &Contents{Entries: []Record{
		{ID: "1", Title: "Email", Username: "a@b.com", Password: "xyz123!", Tags: []string{"work"}},
		{ID: "2", Title: "Bank", Username: "me", Password: "pw", Tags: []string{}},
	}}

	env, err := Wrap(key, salt, contents)
	require.NoError(t, err)
	assert.Equal(t, storage.TypeVault, env.Type)
	assert.Equal(t, salt, env.Salt)
	assert.Len(t, env.Checksum, crypto.ChecksumSize)

	got, err := Unwrap(key, env)
	require.NoError(t, err)
	assert.Equal(t, contents, got)
}

func TestWrapNil(t *testing.T) {
	key, salt := testKey(t)
	_, err := Wrap(key, salt, nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestUnwrapWrongKey(t *testing.T) {
	key, salt := testKey(t)
	env, err := Wrap(key, salt, &Contents{Entries: []Record{}})
	require.NoError(t, err)

	other, _ := testKey(t)
	got, err := Unwrap(other, env)
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Nil(t, got)
}

func TestUnwrapChecksumMismatch(t *testing.T) {
	key, salt := testKey(t)
	env, err := Wrap(key, salt, &Contents{Entries: []Record{}})
	require.NoError(t, err)
	env.Checksum = util.Checksum([]byte("something else"))

	_, err = Unwrap(key, env)
	require.ErrorIs(t, err, ErrCorruptVault)
}

func TestUnwrapCorruptPlaintext(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
	}{
		{"not json", "{entries"},
		{"no entries", `{"records":[]}`},
		{"entries not a list", `{"entries":{}}`},
		{"wrong field type", `{"entries":[{"id":"1","title":5}]}`},
		{"missing id", `{"entries":[{"title":"x"}]}`},
		{"duplicate id", `{"entries":[{"id":"1"},{"id":"1"}]}`},
		{"trailing data", `{"entries":[]} {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, salt := testKey(t)
			env, err := storage.SealEnvelope(key, salt, []byte(tt.plaintext), storage.TypeVault)
			require.NoError(t, err)

			_, err = Unwrap(key, env)
			require.ErrorIs(t, err, ErrCorruptVault)
			assert.NotErrorIs(t, err, ErrAuthenticationFailed)
		})
	}
}

func TestUnwrapNullTagsBecomeEmpty(t *testing.T) {
	key, salt := testKey(t)
	env, err := storage.SealEnvelope(key, salt,
		[]byte(`{"entries":[{"id":"1","title":"t","username":"u","password":"p"}]}`), storage.TypeVault)
	require.NoError(t, err)

	got, err := Unwrap(key, env)
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, []string{}, got.Entries[0].Tags)
}
