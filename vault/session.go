package vault

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/jmcleod/lockbox/internal/util"
	"github.com/jmcleod/lockbox/internal/uuid"
)

// Session is an unlocked vault. Every read and mutation goes through a
// Session; once locked it refuses all operations with ErrSessionLocked.
//
// Each successful operation resets the auto-lock timer.
type Session struct {
	vault *Vault

	mu       sync.Mutex
	key      *memguard.Enclave
	salt     []byte
	contents *Contents
	locked   bool

	idle   time.Duration
	timer  *time.Timer
	gen    uint64
	onLock []func()
}

// VaultID returns the id of the vault this session belongs to.
func (s *Session) VaultID() string {
	return s.vault.id
}

// Locked reports whether the session has been locked.
func (s *Session) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// OnLock registers fn to run once when the session locks, whether
// explicitly or by auto-lock. fn must not call back into the vault.
func (s *Session) OnLock(fn func()) {
	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		fn()
		return
	}
	s.onLock = append(s.onLock, fn)
	s.mu.Unlock()
}

// Touch resets the auto-lock timer.
func (s *Session) Touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return ErrSessionLocked
	}
	s.armLocked()
	return nil
}

// Lock discards the key and plaintext contents. It is idempotent.
func (s *Session) Lock() {
	s.mu.Lock()
	callbacks := s.lockLocked()
	s.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

// Close is an alias for Lock.
func (s *Session) Close() {
	s.Lock()
}

func (s *Session) lockLocked() []func() {
	if s.locked {
		return nil
	}
	s.locked = true
	s.key = nil
	s.contents = nil
	s.salt = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	callbacks := s.onLock
	s.onLock = nil
	return callbacks
}

// armLocked (re)schedules the auto-lock timer. Each call bumps the
// generation so a timer that already fired but lost the race for s.mu
// becomes a no-op.
func (s *Session) armLocked() {
	if s.locked || s.idle <= 0 {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.idle, func() { s.expire(gen) })
}

func (s *Session) expire(gen uint64) {
	s.mu.Lock()
	if s.locked || gen != s.gen {
		s.mu.Unlock()
		return
	}
	callbacks := s.lockLocked()
	s.mu.Unlock()

	s.vault.log.Info().Str("vault_id", s.vault.id).Msg("session auto-locked")
	for _, fn := range callbacks {
		fn()
	}
}

// read runs fn against the current contents under the session lock.
func (s *Session) read(ctx context.Context, fn func(c *Contents) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return ErrSessionLocked
	}
	s.armLocked()
	return fn(s.contents)
}

// mutate applies fn to a copy of the contents, persists the copy in one
// atomic write and only then makes it current. Mutations on a vault are
// serialized.
func (s *Session) mutate(ctx context.Context, fn func(c *Contents) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.vault.mu.Lock()
	defer s.vault.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return ErrSessionLocked
	}

	next := s.contents.clone()
	if err := fn(next); err != nil {
		return err
	}

	buf, err := s.key.Open()
	if err != nil {
		return fmt.Errorf("opening session key: %w", err)
	}
	defer buf.Destroy()

	if err := s.vault.persist(ctx, buf.Bytes(), s.salt, next); err != nil {
		return err
	}
	s.contents = next
	s.armLocked()
	return nil
}

// keyEquals reports whether candidate equals the session key, comparing in
// constant time.
func (s *Session) keyEquals(candidate []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return false, ErrSessionLocked
	}
	buf, err := s.key.Open()
	if err != nil {
		return false, fmt.Errorf("opening session key: %w", err)
	}
	defer buf.Destroy()
	return util.EqualConstantTime(buf.Bytes(), candidate), nil
}

// List returns all records in insertion order.
func (s *Session) List(ctx context.Context) ([]Record, error) {
	var out []Record
	err := s.read(ctx, func(c *Contents) error {
		out = make([]Record, len(c.Entries))
		for i, r := range c.Entries {
			out[i] = r.clone()
		}
		return nil
	})
	return out, err
}

// Get returns the record with the given id.
func (s *Session) Get(ctx context.Context, id string) (Record, error) {
	var out Record
	err := s.read(ctx, func(c *Contents) error {
		i := c.indexOf(id)
		if i < 0 {
			return ErrNotFound
		}
		out = c.Entries[i].clone()
		return nil
	})
	return out, err
}

// Search returns records whose title, username or any tag contains term,
// case-insensitively, in insertion order. An empty term matches everything.
func (s *Session) Search(ctx context.Context, term string) ([]Record, error) {
	needle := strings.ToLower(term)
	var out []Record
	err := s.read(ctx, func(c *Contents) error {
		out = make([]Record, 0, len(c.Entries))
		for _, r := range c.Entries {
			if needle == "" || matches(r, needle) {
				out = append(out, r.clone())
			}
		}
		return nil
	})
	return out, err
}

func matches(r Record, needle string) bool {
	if strings.Contains(strings.ToLower(r.Title), needle) ||
		strings.Contains(strings.ToLower(r.Username), needle) {
		return true
	}
	for _, t := range r.Tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

// Add stores a new record with a freshly generated id and returns it.
func (s *Session) Add(ctx context.Context, nr NewRecord) (Record, error) {
	var rec Record
	err := s.mutate(ctx, func(c *Contents) error {
		rec = Record{
			ID:       newRecordID(c.ids()),
			Title:    nr.Title,
			Username: nr.Username,
			Password: nr.Password,
			Tags:     normalizeTags(nr.Tags),
		}
		if err := validateRecord(rec); err != nil {
			return err
		}
		c.Entries = append(c.Entries, rec)
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	s.vault.log.Debug().Str("vault_id", s.vault.id).Str("record_id", rec.ID).Msg("record added")
	return rec.clone(), nil
}

// Update applies a partial update to the record with the given id. The id
// itself never changes.
func (s *Session) Update(ctx context.Context, id string, u RecordUpdate) (Record, error) {
	var rec Record
	err := s.mutate(ctx, func(c *Contents) error {
		i := c.indexOf(id)
		if i < 0 {
			return ErrNotFound
		}
		rec = c.Entries[i]
		u.apply(&rec)
		if err := validateRecord(rec); err != nil {
			return err
		}
		c.Entries[i] = rec
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	s.vault.log.Debug().Str("vault_id", s.vault.id).Str("record_id", id).Msg("record updated")
	return rec.clone(), nil
}

// Remove deletes the record with the given id.
func (s *Session) Remove(ctx context.Context, id string) error {
	err := s.mutate(ctx, func(c *Contents) error {
		i := c.indexOf(id)
		if i < 0 {
			return ErrNotFound
		}
		c.Entries = append(c.Entries[:i], c.Entries[i+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	s.vault.log.Debug().Str("vault_id", s.vault.id).Str("record_id", id).Msg("record removed")
	return nil
}

// newRecordID returns a fresh id not present in taken.
func newRecordID(taken map[string]struct{}) string {
	for {
		id := uuid.New()
		if _, dup := taken[id]; !dup {
			return id
		}
	}
}
