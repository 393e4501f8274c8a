package vault

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmcleod/lockbox/crypto"
	"github.com/jmcleod/lockbox/internal/util"
	"github.com/jmcleod/lockbox/storage"
)

// Wrap serializes contents and seals them into a vault envelope under key.
// The salt is recorded in the envelope so the key can be re-derived.
func Wrap(key, salt []byte, contents *Contents) (*storage.Envelope, error) {
	if contents == nil {
		return nil, validationErrorf("contents must not be nil")
	}
	plaintext, err := json.Marshal(contents)
	if err != nil {
		return nil, fmt.Errorf("encoding contents: %w", err)
	}
	defer util.WipeBytes(plaintext)

	return storage.SealEnvelope(key, salt, plaintext, storage.TypeVault)
}

// Unwrap opens a vault envelope. A failed authentication is reported as
// ErrAuthenticationFailed; anything wrong with the plaintext after a
// successful decrypt is ErrCorruptVault.
func Unwrap(key []byte, env *storage.Envelope) (*Contents, error) {
	if env == nil {
		return nil, validationErrorf("envelope must not be nil")
	}
	plaintext, err := env.Open(key)
	if err != nil {
		return nil, openError(err)
	}
	defer util.WipeBytes(plaintext)

	return decodeContents(plaintext)
}

// openError maps envelope decryption failures onto the vault taxonomy.
func openError(err error) error {
	switch {
	case errors.Is(err, crypto.ErrChecksumMismatch):
		return corruptf("checksum does not match decrypted data")
	case errors.Is(err, crypto.ErrAuthenticationFailed):
		return ErrAuthenticationFailed
	default:
		return err
	}
}

type contentsJSON struct {
	Entries *[]Record `json:"entries"`
}

func decodeContents(plaintext []byte) (*Contents, error) {
	var doc contentsJSON
	dec := json.NewDecoder(bytes.NewReader(plaintext))
	if err := dec.Decode(&doc); err != nil {
		return nil, corruptf("decrypted data is not a vault document")
	}
	if dec.More() {
		return nil, corruptf("trailing data after vault document")
	}
	if doc.Entries == nil {
		return nil, corruptf("vault document has no entries list")
	}

	contents := &Contents{Entries: make([]Record, 0, len(*doc.Entries))}
	seen := make(map[string]struct{}, len(*doc.Entries))
	for i, r := range *doc.Entries {
		if r.ID == "" {
			return nil, corruptf("entry %d has no id", i)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, corruptf("entry %d has a duplicate id", i)
		}
		seen[r.ID] = struct{}{}
		contents.Entries = append(contents.Entries, r.clone())
	}
	return contents, nil
}
