package util

import (
	"crypto/sha256"
	"crypto/subtle"
)

func CopyBytes(src []byte) []byte {
	if src == nil {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}

// WipeBytes best-effort zeroes the provided byte slice in place.
func WipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Checksum returns the SHA-256 digest of b.
func Checksum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// EqualConstantTime compares every byte of a and b regardless of where the
// first difference occurs. Slices of different length are never equal.
func EqualConstantTime(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
