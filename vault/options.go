package vault

import (
	"time"

	"github.com/jmcleod/lockbox/internal/logger"
)

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets the logger used for vault events.
func WithLogger(l *logger.Logger) Option {
	return func(v *Vault) {
		if l != nil {
			v.log = l.Component("vault")
		}
	}
}

// WithGuard replaces the vault's unlock guard, for example to share one
// guard between several handles on the same vault.
func WithGuard(g *Guard) Option {
	return func(v *Vault) {
		if g != nil {
			v.guard = g
		}
	}
}

// WithClock sets the time source used by the guard and for timestamps.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) {
		if now != nil {
			v.now = now
		}
	}
}

// WithKDFIterations sets the PBKDF2 iteration count for keys derived by
// this vault. Values below crypto.MinIterations cause derivation to fail.
func WithKDFIterations(n int) Option {
	return func(v *Vault) {
		v.iterations = n
	}
}

// WithAutoLock sets the idle duration after which sessions lock
// themselves. Zero disables auto-lock.
func WithAutoLock(d time.Duration) Option {
	return func(v *Vault) {
		if d >= 0 {
			v.autoLock = d
		}
	}
}
