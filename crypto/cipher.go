package crypto

import (
	"fmt"

	"github.com/jmcleod/lockbox/internal/util"
)

// Sealed is the output of Seal. Checksum may be nil for messages produced
// before checksums were recorded.
type Sealed struct {
	Nonce      []byte
	Ciphertext []byte
	Tag        []byte
	Checksum   []byte
}

// Seal encrypts plaintext under key with a fresh nonce and records the
// SHA-256 digest of the plaintext.
func Seal(key, plaintext []byte) (*Sealed, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes", ErrInvalidInput, KeySize)
	}

	nonce, ciphertext, tag, err := util.EncryptAESGCM(plaintext, key, nil)
	if err != nil {
		return nil, fmt.Errorf("sealing: %w", err)
	}

	return &Sealed{
		Nonce:      nonce,
		Ciphertext: ciphertext,
		Tag:        tag,
		Checksum:   util.Checksum(plaintext),
	}, nil
}

// Open authenticates and decrypts s. When s carries a checksum it is
// verified with a constant-time comparison before the plaintext is returned.
func Open(key []byte, s *Sealed) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes", ErrInvalidInput, KeySize)
	}
	if s == nil {
		return nil, ErrAuthenticationFailed
	}

	plaintext, err := util.DecryptAESGCM(s.Nonce, s.Ciphertext, s.Tag, key, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}

	if s.Checksum != nil && !util.EqualConstantTime(s.Checksum, util.Checksum(plaintext)) {
		util.WipeBytes(plaintext)
		return nil, ErrChecksumMismatch
	}

	return plaintext, nil
}
