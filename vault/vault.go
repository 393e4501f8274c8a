package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/jmcleod/lockbox/crypto"
	"github.com/jmcleod/lockbox/internal/logger"
	"github.com/jmcleod/lockbox/internal/util"
	"github.com/jmcleod/lockbox/storage"
)

// DefaultAutoLock is the idle duration after which a session locks itself.
const DefaultAutoLock = 10 * time.Minute

// Vault is a handle on one encrypted vault in a BlobStore. At most one
// Session is unlocked per Vault; opening a new one locks the previous.
type Vault struct {
	id         string
	store      storage.BlobStore
	guard      *Guard
	log        *logger.Logger
	now        func() time.Time
	iterations int
	autoLock   time.Duration
	derive     func(passphrase string, salt []byte, opts ...crypto.DeriveOption) ([]byte, error)

	// mu serializes persistence and session replacement.
	mu     sync.Mutex
	active *Session

	// unlockMu serializes unlock attempts so concurrent guesses cannot slip
	// past the guard together.
	unlockMu sync.Mutex
}

// New creates a Vault handle for the given id and storage backend.
func New(id string, store storage.BlobStore, opts ...Option) *Vault {
	v := &Vault{
		id:         id,
		store:      store,
		guard:      NewGuard(),
		log:        logger.Nop(),
		now:        time.Now,
		iterations: crypto.DefaultIterations,
		autoLock:   DefaultAutoLock,
		derive:     crypto.DeriveKey,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ID returns the vault's identifier.
func (v *Vault) ID() string {
	return v.id
}

// Guard returns the vault's unlock guard.
func (v *Vault) Guard() *Guard {
	return v.guard
}

// Exists reports whether a vault blob is stored under the vault's id.
func (v *Vault) Exists(ctx context.Context) (bool, error) {
	if err := storage.ValidateKey(v.id); err != nil {
		return false, validationErrorf("vault id: %v", err)
	}
	_, err := v.store.Get(ctx, v.id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("reading vault: %w", err)
	}
}

// Create initializes an empty vault protected by passphrase and returns an
// unlocked Session. The passphrase must satisfy MasterPolicy.
func (v *Vault) Create(ctx context.Context, passphrase string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := storage.ValidateKey(v.id); err != nil {
		return nil, validationErrorf("vault id: %v", err)
	}
	if err := MasterPolicy().enforce(passphrase, ErrWeakPassphrase); err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := v.store.Get(ctx, v.id); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("reading vault: %w", err)
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}
	key, err := v.deriveKey(ctx, passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(key)

	contents := &Contents{Entries: []Record{}}
	if err := v.persist(ctx, key, salt, contents); err != nil {
		return nil, err
	}

	v.log.Info().Str("vault_id", v.id).Msg("vault created")
	return v.openSessionLocked(key, salt, contents), nil
}

// Unlock derives the vault key from passphrase and returns an unlocked
// Session. The guard is consulted before any derivation; while it refuses,
// Unlock returns a *LockedOutError.
func (v *Vault) Unlock(ctx context.Context, passphrase string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.unlockMu.Lock()
	defer v.unlockMu.Unlock()

	if err := v.guard.CheckAllowed(v.now()); err != nil {
		v.log.Warn().Str("vault_id", v.id).Msg("unlock refused by guard")
		return nil, err
	}
	if passphrase == "" {
		return nil, validationErrorf("passphrase must not be empty")
	}
	if err := storage.ValidateKey(v.id); err != nil {
		return nil, validationErrorf("vault id: %v", err)
	}

	data, err := v.store.Get(ctx, v.id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoVault
	}
	if err != nil {
		return nil, fmt.Errorf("reading vault: %w", err)
	}
	env, err := storage.ParseEnvelope(data, storage.TypeVault)
	if err != nil {
		return nil, corruptf("%v", err)
	}

	key, err := v.deriveKey(ctx, passphrase, env.Salt)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(key)

	contents, err := Unwrap(key, env)
	if errors.Is(err, ErrAuthenticationFailed) {
		wait := v.guard.RecordFailure(v.now())
		v.log.Warn().
			Str("vault_id", v.id).
			Int("failures", v.guard.State().Failures).
			Dur("retry_after", wait).
			Msg("unlock failed")
		return nil, errWrongPassphrase
	}
	if err != nil {
		v.log.Error().Str("vault_id", v.id).Err(err).Msg("vault unreadable")
		return nil, err
	}
	v.guard.RecordSuccess()

	v.mu.Lock()
	defer v.mu.Unlock()
	v.log.Info().Str("vault_id", v.id).Int("records", len(contents.Entries)).Msg("vault unlocked")
	return v.openSessionLocked(key, env.Salt, contents), nil
}

// deriveKey runs the KDF with the vault's iteration count, checking ctx on
// either side since derivation is deliberately slow.
func (v *Vault) deriveKey(ctx context.Context, passphrase string, salt []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := v.derive(passphrase, salt, crypto.WithIterations(v.iterations))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		util.WipeBytes(key)
		return nil, err
	}
	return key, nil
}

// persist seals contents and replaces the stored blob in a single Put.
// The caller must hold v.mu.
func (v *Vault) persist(ctx context.Context, key, salt []byte, contents *Contents) error {
	env, err := Wrap(key, salt, contents)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := v.store.Put(ctx, v.id, data); err != nil {
		return fmt.Errorf("persisting vault: %w", err)
	}
	return nil
}

// openSessionLocked locks any previous session and starts a new one. The
// key is copied into a memguard enclave. The caller must hold v.mu.
func (v *Vault) openSessionLocked(key, salt []byte, contents *Contents) *Session {
	if v.active != nil {
		v.active.Lock()
	}
	s := &Session{
		vault:    v,
		key:      memguard.NewEnclave(util.CopyBytes(key)),
		salt:     util.CopyBytes(salt),
		contents: contents,
		idle:     v.autoLock,
	}
	s.mu.Lock()
	s.armLocked()
	s.mu.Unlock()
	v.active = s
	return s
}
