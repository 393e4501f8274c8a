package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	AESKeySize   = 32
	GCMNonceSize = 12
	GCMTagSize   = 16
)

// ErrDecrypt is returned for every AES-GCM open failure. The underlying cause
// (tag mismatch, bad lengths) is deliberately not distinguished.
var ErrDecrypt = errors.New("aes-gcm: message authentication failed")

func newGCM(rawKey []byte) (cipher.AEAD, error) {
	if len(rawKey) != AESKeySize {
		return nil, fmt.Errorf("invalid AES key size: got %d, want %d", len(rawKey), AESKeySize)
	}

	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}

// EncryptAESGCM seals plainText under rawKey with a fresh random nonce and
// returns the nonce, ciphertext and authentication tag as separate slices.
func EncryptAESGCM(plainText, rawKey, aad []byte) (nonce, cipherText, tag []byte, err error) {
	gcm, err := newGCM(rawKey)
	if err != nil {
		return nil, nil, nil, err
	}

	nonce = make([]byte, GCMNonceSize)
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("generating nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plainText, aad)
	split := len(sealed) - GCMTagSize
	cipherText = sealed[:split:split]
	tag = sealed[split:]

	return nonce, cipherText, tag, nil
}

// DecryptAESGCM opens a message produced by EncryptAESGCM. It never returns
// partial plaintext.
func DecryptAESGCM(nonce, cipherText, tag, rawKey, aad []byte) ([]byte, error) {
	gcm, err := newGCM(rawKey)
	if err != nil {
		return nil, err
	}

	if len(nonce) != GCMNonceSize || len(tag) != GCMTagSize {
		return nil, ErrDecrypt
	}

	sealed := make([]byte, 0, len(cipherText)+len(tag))
	sealed = append(sealed, cipherText...)
	sealed = append(sealed, tag...)

	plainText, err := gcm.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, ErrDecrypt
	}

	return plainText, nil
}
