package crypto

import (
	"fmt"

	"github.com/jmcleod/lockbox/internal/util"
)

// DeriveOption is a functional option for DeriveKey.
type DeriveOption func(*deriveOptions)

type deriveOptions struct {
	iterations int
}

// WithIterations overrides the PBKDF2 iteration count. Values below
// MinIterations are rejected by DeriveKey.
func WithIterations(n int) DeriveOption {
	return func(o *deriveOptions) {
		o.iterations = n
	}
}

// DeriveKey stretches a passphrase into a 256-bit key with
// PBKDF2-HMAC-SHA256. The passphrase is NFKD-normalized first so that
// equivalent Unicode input derives the same key on every platform.
func DeriveKey(passphrase string, salt []byte, opts ...DeriveOption) ([]byte, error) {
	options := deriveOptions{iterations: DefaultIterations}
	for _, opt := range opts {
		opt(&options)
	}

	if passphrase == "" {
		return nil, fmt.Errorf("%w: passphrase must not be empty", ErrInvalidInput)
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d", ErrInvalidInput, SaltSize, len(salt))
	}
	if options.iterations < MinIterations {
		return nil, fmt.Errorf("%w: iteration count below %d", ErrInvalidInput, MinIterations)
	}

	normalized := []byte(util.Normalize(passphrase))
	defer util.WipeBytes(normalized)

	return util.DerivePBKDF2Key(normalized, salt, options.iterations)
}

// NewSalt returns a fresh random salt of SaltSize bytes.
func NewSalt() ([]byte, error) {
	return util.NewSalt()
}
