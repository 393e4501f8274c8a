// Package crypto exposes the primitives lockbox is built on: PBKDF2 key
// derivation and AES-256-GCM sealing with a secondary plaintext checksum.
package crypto

import (
	"errors"

	"github.com/jmcleod/lockbox/internal/util"
)

const (
	KeySize           = util.AESKeySize
	SaltSize          = util.SaltSize
	NonceSize         = util.GCMNonceSize
	TagSize           = util.GCMTagSize
	ChecksumSize      = 32
	DefaultIterations = util.PBKDF2Iterations
	MinIterations     = util.PBKDF2MinIterations
)

var (
	// ErrInvalidInput reports malformed arguments such as an empty passphrase
	// or a salt of the wrong length.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAuthenticationFailed is returned when a ciphertext does not verify
	// under the given key. No plaintext is ever returned alongside it.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrChecksumMismatch is returned when the plaintext decrypted cleanly but
	// its SHA-256 digest does not match the stored checksum.
	ErrChecksumMismatch = errors.New("plaintext checksum mismatch")
)
