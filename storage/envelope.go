package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmcleod/lockbox/crypto"
	"github.com/jmcleod/lockbox/internal/util"
)

// Envelope discriminators.
const (
	TypeVault       = "password-vault"
	TypeExport      = "password-vault-export"
	EnvelopeVersion = "1.0"
)

// ErrInvalidEnvelope is returned by ParseEnvelope when the document is not a
// well-formed envelope of the expected type and version. It is always
// returned before any cryptographic work is attempted.
var ErrInvalidEnvelope = errors.New("invalid envelope")

// Envelope is the only form in which vault contents are persisted or
// exported. Binary fields are base64 encoded on the wire.
type Envelope struct {
	Type       string
	Version    string
	Salt       []byte
	Nonce      []byte
	Ciphertext []byte
	Tag        []byte
	// Checksum is the SHA-256 of the plaintext. Older envelopes may omit it.
	Checksum []byte

	// Export metadata, zero for vault blobs.
	ExportedAt  time.Time
	RecordCount int
}

type envelopeJSON struct {
	Type        string     `json:"type"`
	Version     string     `json:"version"`
	ExportedAt  *time.Time `json:"exportedAt,omitempty"`
	RecordCount *int       `json:"recordCount,omitempty"`
	Salt        string     `json:"salt"`
	Nonce       string     `json:"nonce"`
	Ciphertext  string     `json:"ciphertext"`
	Tag         string     `json:"tag"`
	Checksum    string     `json:"checksum,omitempty"`
}

// SealEnvelope encrypts plaintext under key and bundles the result with the
// caller-supplied salt.
func SealEnvelope(key, salt, plaintext []byte, typ string) (*Envelope, error) {
	sealed, err := crypto.Seal(key, plaintext)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Type:       typ,
		Version:    EnvelopeVersion,
		Salt:       util.CopyBytes(salt),
		Nonce:      sealed.Nonce,
		Ciphertext: sealed.Ciphertext,
		Tag:        sealed.Tag,
		Checksum:   sealed.Checksum,
	}, nil
}

// Open authenticates and decrypts the envelope. It returns
// crypto.ErrAuthenticationFailed or crypto.ErrChecksumMismatch on failure.
func (e *Envelope) Open(key []byte) ([]byte, error) {
	return crypto.Open(key, &crypto.Sealed{
		Nonce:      e.Nonce,
		Ciphertext: e.Ciphertext,
		Tag:        e.Tag,
		Checksum:   e.Checksum,
	})
}

func (e *Envelope) MarshalJSON() ([]byte, error) {
	doc := envelopeJSON{
		Type:       e.Type,
		Version:    e.Version,
		Salt:       util.Base64Encode(e.Salt),
		Nonce:      util.Base64Encode(e.Nonce),
		Ciphertext: util.Base64Encode(e.Ciphertext),
		Tag:        util.Base64Encode(e.Tag),
	}
	if len(e.Checksum) > 0 {
		doc.Checksum = util.Base64Encode(e.Checksum)
	}
	if e.Type == TypeExport {
		exportedAt := e.ExportedAt.UTC()
		count := e.RecordCount
		doc.ExportedAt = &exportedAt
		doc.RecordCount = &count
	}
	return json.Marshal(doc)
}

// ParseEnvelope decodes data and checks that it is an envelope of wantType
// with a supported version, that every required field is present and that
// all binary fields have the expected lengths.
func ParseEnvelope(data []byte, wantType string) (*Envelope, error) {
	var doc envelopeJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: not a JSON document", ErrInvalidEnvelope)
	}

	if doc.Type != wantType {
		return nil, fmt.Errorf("%w: unexpected type %q", ErrInvalidEnvelope, doc.Type)
	}
	if doc.Version != EnvelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidEnvelope, doc.Version)
	}

	env := &Envelope{Type: doc.Type, Version: doc.Version}
	fields := []struct {
		name  string
		value string
		dst   *[]byte
		size  int
	}{
		{"salt", doc.Salt, &env.Salt, crypto.SaltSize},
		{"nonce", doc.Nonce, &env.Nonce, crypto.NonceSize},
		{"tag", doc.Tag, &env.Tag, crypto.TagSize},
		{"ciphertext", doc.Ciphertext, &env.Ciphertext, -1},
	}
	for _, f := range fields {
		if f.value == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrInvalidEnvelope, f.name)
		}
		b, err := util.Base64Decode(f.value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not valid base64", ErrInvalidEnvelope, f.name)
		}
		if f.size > 0 && len(b) != f.size {
			return nil, fmt.Errorf("%w: %s must be %d bytes, got %d", ErrInvalidEnvelope, f.name, f.size, len(b))
		}
		*f.dst = b
	}

	if doc.Checksum != "" {
		sum, err := util.Base64Decode(doc.Checksum)
		if err != nil || len(sum) != crypto.ChecksumSize {
			return nil, fmt.Errorf("%w: malformed checksum", ErrInvalidEnvelope)
		}
		env.Checksum = sum
	}

	if wantType == TypeExport {
		if doc.ExportedAt == nil {
			return nil, fmt.Errorf("%w: missing exportedAt", ErrInvalidEnvelope)
		}
		env.ExportedAt = *doc.ExportedAt
		if doc.RecordCount == nil || *doc.RecordCount < 0 {
			return nil, fmt.Errorf("%w: missing or negative recordCount", ErrInvalidEnvelope)
		}
		env.RecordCount = *doc.RecordCount
	}

	return env, nil
}
