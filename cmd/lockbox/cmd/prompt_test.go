package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPassword makes readPassword return the given answers in order.
func stubPassword(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func() ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("no more input")
		}
		a := answers[0]
		answers = answers[1:]
		return []byte(a), nil
	}
}

func TestPassphrase_FromEnv(t *testing.T) {
	t.Setenv(envPassphrase, "from-env")
	stubPassword(t)

	var out bytes.Buffer
	got, err := passphrase(&out, "Master passphrase", envPassphrase)
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
	assert.Empty(t, out.String(), "no prompt when the variable is set")
}

func TestPassphrase_Prompt(t *testing.T) {
	t.Setenv(envPassphrase, "")
	stubPassword(t, "typed")

	var out bytes.Buffer
	got, err := passphrase(&out, "Master passphrase", envPassphrase)
	require.NoError(t, err)
	assert.Equal(t, "typed", got)
	assert.Contains(t, out.String(), "Master passphrase (input hidden): ")
}

func TestPassphrase_ReadError(t *testing.T) {
	t.Setenv(envPassphrase, "")
	stubPassword(t)

	_, err := passphrase(&bytes.Buffer{}, "Master passphrase", envPassphrase)
	require.Error(t, err)
	assert.Contains(t, err.Error(), envPassphrase)
}

func TestNewPassphrase(t *testing.T) {
	t.Setenv(envPassphrase, "")

	t.Run("Confirmed", func(t *testing.T) {
		stubPassword(t, "Str0ng!Passphrase#2024", "Str0ng!Passphrase#2024")
		got, err := newPassphrase(&bytes.Buffer{}, "Master passphrase", envPassphrase)
		require.NoError(t, err)
		assert.Equal(t, "Str0ng!Passphrase#2024", got)
	})

	t.Run("Mismatch", func(t *testing.T) {
		stubPassword(t, "Str0ng!Passphrase#2024", "Str0ng!Passphrase#2025")
		_, err := newPassphrase(&bytes.Buffer{}, "Master passphrase", envPassphrase)
		assert.ErrorIs(t, err, errPassphraseMismatch)
	})
}
