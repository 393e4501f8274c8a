package vault

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmcleod/lockbox/crypto"
)

var (
	// ErrInvalidInput and ErrAuthenticationFailed are shared with the crypto
	// package so errors.Is matches regardless of which layer reported them.
	ErrInvalidInput         = crypto.ErrInvalidInput
	ErrAuthenticationFailed = crypto.ErrAuthenticationFailed

	ErrWrongPassphrase      = errors.New("incorrect passphrase")
	ErrCorruptVault         = errors.New("vault data is corrupted")
	ErrLockedOut            = errors.New("too many failed unlock attempts")
	ErrWeakPassphrase       = errors.New("passphrase does not meet the master policy")
	ErrWeakExportPassphrase = errors.New("passphrase does not meet the export policy")
	ErrNotFound             = errors.New("record not found")
	ErrInvalidFormat        = errors.New("invalid export format")
	ErrNoVault              = errors.New("no vault exists")
	ErrAlreadyExists        = errors.New("vault already exists")
	ErrSessionLocked        = errors.New("session is locked")
)

// errWrongPassphrase is returned for a failed unlock or import. It matches
// both ErrWrongPassphrase and ErrAuthenticationFailed.
var errWrongPassphrase = fmt.Errorf("%w: %w", ErrWrongPassphrase, ErrAuthenticationFailed)

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptVault, fmt.Sprintf(format, args...))
}

// LockedOutError is returned by Unlock while the guard refuses attempts.
// It matches ErrLockedOut.
type LockedOutError struct {
	Until     time.Time
	Remaining time.Duration
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("%s; retry in %s", ErrLockedOut, e.Remaining.Round(time.Second))
}

func (e *LockedOutError) Unwrap() error { return ErrLockedOut }

// PolicyError lists the requirements a rejected passphrase failed. It matches
// ErrWeakPassphrase or ErrWeakExportPassphrase depending on the policy.
type PolicyError struct {
	Kind      error
	MinLength int
	Missing   []Requirement
	// Patterns holds the common sequences found in the passphrase.
	Patterns []string
}

func (e *PolicyError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, r := range e.Missing {
		parts = append(parts, r.describe(e.MinLength))
	}
	return fmt.Sprintf("%s: %s", e.Kind, strings.Join(parts, ", "))
}

func (e *PolicyError) Unwrap() error { return e.Kind }
