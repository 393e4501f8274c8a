package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmcleod/lockbox/crypto"
	"github.com/jmcleod/lockbox/internal/util"
	"github.com/jmcleod/lockbox/storage"
)

// ExportVersion is the version of the encrypted export package.
const ExportVersion = "1.0"

const exportDescription = "Password Vault Export"

// exportPackage is the plaintext sealed inside an export envelope.
type exportPackage struct {
	Version    string         `json:"version"`
	ExportedAt time.Time      `json:"exportedAt"`
	VaultData  *Contents      `json:"vaultData"`
	Metadata   exportMetadata `json:"metadata"`
}

type exportMetadata struct {
	Entries     int    `json:"entries"`
	Description string `json:"description"`
}

type exportPackageJSON struct {
	Version    *string          `json:"version"`
	ExportedAt *time.Time       `json:"exportedAt"`
	VaultData  *json.RawMessage `json:"vaultData"`
	Metadata   *exportMetadata  `json:"metadata"`
}

// ExportFile is a sealed export document ready to be written out.
type ExportFile struct {
	Data        []byte
	RecordCount int
	ExportedAt  time.Time
}

// Export seals a snapshot of the session's records under a separate export
// passphrase and a fresh salt. The passphrase must satisfy ExportPolicy and
// must not be the master passphrase.
func (s *Session) Export(ctx context.Context, exportPassphrase string) (*ExportFile, error) {
	if err := ExportPolicy().enforce(exportPassphrase, ErrWeakExportPassphrase); err != nil {
		return nil, err
	}

	var snapshot *Contents
	var masterSalt []byte
	if err := s.read(ctx, func(c *Contents) error {
		snapshot = c.clone()
		masterSalt = util.CopyBytes(s.salt)
		return nil
	}); err != nil {
		return nil, err
	}

	v := s.vault
	if err := s.rejectMasterPassphrase(ctx, exportPassphrase, masterSalt); err != nil {
		return nil, err
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}
	key, err := v.deriveKey(ctx, exportPassphrase, salt)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(key)

	exportedAt := v.now().UTC()
	pkg := exportPackage{
		Version:    ExportVersion,
		ExportedAt: exportedAt,
		VaultData:  snapshot,
		Metadata: exportMetadata{
			Entries:     len(snapshot.Entries),
			Description: exportDescription,
		},
	}
	plaintext, err := json.Marshal(pkg)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(plaintext)

	env, err := storage.SealEnvelope(key, salt, plaintext, storage.TypeExport)
	if err != nil {
		return nil, err
	}
	env.ExportedAt = exportedAt
	env.RecordCount = len(snapshot.Entries)

	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, err
	}
	v.log.Info().Str("vault_id", v.id).Int("records", env.RecordCount).Msg("vault exported")
	return &ExportFile{Data: out, RecordCount: env.RecordCount, ExportedAt: exportedAt}, nil
}

// rejectMasterPassphrase derives a key from passphrase under the vault salt
// and fails with a policy error when it equals the session key.
func (s *Session) rejectMasterPassphrase(ctx context.Context, passphrase string, masterSalt []byte) error {
	candidate, err := s.vault.deriveKey(ctx, passphrase, masterSalt)
	if err != nil {
		return err
	}
	defer util.WipeBytes(candidate)

	same, err := s.keyEquals(candidate)
	if err != nil {
		return err
	}
	if same {
		return &PolicyError{
			Kind:      ErrWeakExportPassphrase,
			MinLength: ExportPolicy().MinLength,
			Missing:   []Requirement{RequireDistinctFromMaster},
		}
	}
	return nil
}

// Import validates and decrypts an export document. The outer document is
// checked before any key derivation. Every record must be well formed or the
// whole import is rejected. Import does not touch the vault; pass the
// result to Session.Merge.
func (v *Vault) Import(ctx context.Context, exportPassphrase string, data []byte) (*ImportResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env, err := storage.ParseEnvelope(data, storage.TypeExport)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	if exportPassphrase == "" {
		return nil, validationErrorf("passphrase must not be empty")
	}

	key, err := v.deriveKey(ctx, exportPassphrase, env.Salt)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(key)

	plaintext, err := env.Open(key)
	if err != nil {
		if err = openError(err); errors.Is(err, ErrAuthenticationFailed) {
			return nil, errWrongPassphrase
		}
		return nil, err
	}
	defer util.WipeBytes(plaintext)

	pkg, err := decodeExportPackage(plaintext)
	if err != nil {
		return nil, err
	}
	if env.RecordCount != len(pkg.VaultData.Entries) {
		return nil, corruptf("record count %d does not match %d decrypted records",
			env.RecordCount, len(pkg.VaultData.Entries))
	}

	return &ImportResult{
		Contents: pkg.VaultData,
		Metadata: ImportMetadata{
			ImportedAt:         v.now().UTC(),
			OriginalExportDate: pkg.ExportedAt,
			EntriesCount:       len(pkg.VaultData.Entries),
			Version:            pkg.Version,
		},
	}, nil
}

func decodeExportPackage(plaintext []byte) (*exportPackage, error) {
	var doc exportPackageJSON
	dec := json.NewDecoder(bytes.NewReader(plaintext))
	if err := dec.Decode(&doc); err != nil {
		return nil, corruptf("decrypted data is not an export package")
	}
	if doc.Version == nil || doc.ExportedAt == nil || doc.VaultData == nil || doc.Metadata == nil {
		return nil, corruptf("export package is missing required fields")
	}
	if *doc.Version != ExportVersion {
		return nil, corruptf("unsupported export package version %q", *doc.Version)
	}

	contents, err := decodeContents(*doc.VaultData)
	if err != nil {
		return nil, err
	}
	if doc.Metadata.Entries != len(contents.Entries) {
		return nil, corruptf("package metadata lists %d entries, found %d",
			doc.Metadata.Entries, len(contents.Entries))
	}
	for i := range contents.Entries {
		contents.Entries[i].Tags = normalizeTags(contents.Entries[i].Tags)
		if err := validateRecord(contents.Entries[i]); err != nil {
			return nil, corruptf("record %d: %v", i, err)
		}
	}

	return &exportPackage{
		Version:    *doc.Version,
		ExportedAt: *doc.ExportedAt,
		VaultData:  contents,
		Metadata:   *doc.Metadata,
	}, nil
}

// Merge appends every imported record to the vault. Existing records are
// never modified; an imported record whose id is already taken is stored
// under a new id. The merged state is persisted in one write.
func (s *Session) Merge(ctx context.Context, imported *Contents) (*MergeReport, error) {
	if imported == nil {
		return nil, validationErrorf("imported contents must not be nil")
	}
	incoming := make([]Record, len(imported.Entries))
	for i, r := range imported.Entries {
		r.Tags = normalizeTags(r.Tags)
		if err := validateRecord(r); err != nil {
			return nil, err
		}
		incoming[i] = r
	}

	report := &MergeReport{TotalImported: len(incoming)}
	err := s.mutate(ctx, func(c *Contents) error {
		taken := c.ids()
		for _, rec := range incoming {
			if _, dup := taken[rec.ID]; dup {
				rec.ID = newRecordID(taken)
				report.ConflictsResolved++
			}
			taken[rec.ID] = struct{}{}
			c.Entries = append(c.Entries, rec)
			report.NewEntriesAdded++
		}
		report.TotalEntries = len(c.Entries)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.vault.log.Info().
		Str("vault_id", s.vault.id).
		Int("imported", report.TotalImported).
		Int("conflicts", report.ConflictsResolved).
		Msg("records merged")
	return report, nil
}
