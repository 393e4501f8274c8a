// Package storage provides the persistence layer for encrypted vault blobs.
//
// A BlobStore is an opaque single-key store: lockbox never asks it for more
// than "give me the bytes stored under this key" and "replace them". Every
// value written through it is a serialized Envelope, never plaintext.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotFound is returned by Get when no blob exists under the key.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidKey is returned for keys that are empty or contain characters
	// outside [A-Za-z0-9._-].
	ErrInvalidKey = errors.New("invalid blob key")
)

var keyRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// BlobStore is the persistence collaborator behind a vault. Put must replace
// the stored value in a single atomic step: a reader sees either the old
// bytes or the new bytes, never a mix.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Deleter is implemented by backends that can remove a blob.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// ValidateKey checks that key is usable by every backend, including the
// filesystem store where it becomes a file name.
func ValidateKey(key string) error {
	if !keyRE.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
