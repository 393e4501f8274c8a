package util

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	PBKDF2Iterations    = 150000
	PBKDF2MinIterations = 10000
	PBKDF2KeyLen        = 32
	SaltSize            = 16
)

// DerivePBKDF2Key stretches passphrase with PBKDF2-HMAC-SHA256.
func DerivePBKDF2Key(passphrase []byte, salt []byte, iterations int) ([]byte, error) {
	if iterations < PBKDF2MinIterations {
		return nil, fmt.Errorf("pbkdf2 iterations must be at least %d", PBKDF2MinIterations)
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("pbkdf2 salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	return pbkdf2.Key(passphrase, salt, iterations, PBKDF2KeyLen, sha256.New), nil
}

func NewSalt() ([]byte, error) {
	salt, err := RandomBytes(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}
