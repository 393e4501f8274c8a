package vault

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jmcleod/lockbox/crypto"
	"github.com/jmcleod/lockbox/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exportPassphrase = "Exp0rt!Passphrase"

// sealExport builds an export document around an arbitrary plaintext.
func sealExport(t *testing.T, passphrase, plaintext string, count int) []byte {
	t.Helper()
	salt, err := crypto.NewSalt()
	require.NoError(t, err)
	key, err := crypto.DeriveKey(passphrase, salt, crypto.WithIterations(crypto.MinIterations))
	require.NoError(t, err)

	env, err := storage.SealEnvelope(key, salt, []byte(plaintext), storage.TypeExport)
	require.NoError(t, err)
	env.ExportedAt = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	env.RecordCount = count
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

func exportData(t *testing.T, s *Session, passphrase string) []byte {
	t.Helper()
	file, err := s.Export(t.Context(), passphrase)
	require.NoError(t, err)
	return file.Data
}

func seed(t *testing.T, s *Session, records ...NewRecord) []Record {
	t.Helper()
	out := make([]Record, 0, len(records))
	for _, nr := range records {
		rec, err := s.Add(t.Context(), nr)
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := t.Context()
	clock := newFakeClock()
	v, session := createTestVault(t, WithClock(clock.Now))
	added := seed(t, session,
		NewRecord{Title: "Email", Username: "a@b.com", Password: "xyz123!", Tags: []string{"work"}},
		NewRecord{Title: "Bank", Username: "me", Password: "pw"},
	)

	file, err := session.Export(ctx, exportPassphrase)
	require.NoError(t, err)
	assert.Equal(t, 2, file.RecordCount)
	assert.Equal(t, clock.Now(), file.ExportedAt)
	data := file.Data

	clock.Advance(time.Hour)
	result, err := v.Import(ctx, exportPassphrase, data)
	require.NoError(t, err)

	assert.Equal(t, added, result.Contents.Entries)
	assert.Equal(t, ImportMetadata{
		ImportedAt:         clock.Now(),
		OriginalExportDate: clock.Now().Add(-time.Hour),
		EntriesCount:       2,
		Version:            ExportVersion,
	}, result.Metadata)
}

func TestExportDocumentShape(t *testing.T) {
	ctx := t.Context()
	v, session := createTestVault(t)
	seed(t, session, emailRecord())

	data := exportData(t, session, exportPassphrase)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, storage.TypeExport, doc["type"])
	assert.Equal(t, storage.EnvelopeVersion, doc["version"])
	assert.EqualValues(t, 1, doc["recordCount"])
	assert.NotEmpty(t, doc["exportedAt"])
	for _, field := range []string{"salt", "nonce", "ciphertext", "tag", "checksum"} {
		assert.NotEmpty(t, doc[field], field)
	}
	assert.NotContains(t, string(data), "xyz123!")

	blob, err := v.store.Get(ctx, "default")
	require.NoError(t, err)
	vaultEnv, err := storage.ParseEnvelope(blob, storage.TypeVault)
	require.NoError(t, err)
	exportEnv, err := storage.ParseEnvelope(data, storage.TypeExport)
	require.NoError(t, err)
	assert.NotEqual(t, vaultEnv.Salt, exportEnv.Salt, "exports use a fresh salt")
}

func TestExportWeakPassphrase(t *testing.T) {
	_, session := createTestVault(t)

	_, err := session.Export(t.Context(), "weak")
	require.ErrorIs(t, err, ErrWeakExportPassphrase)
	var perr *PolicyError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Missing, RequireLength)
}

func TestExportRejectsMasterPassphrase(t *testing.T) {
	ctx := t.Context()
	v, session := createTestVault(t)
	seed(t, session, emailRecord())

	file, err := session.Export(ctx, testPassphrase)
	require.ErrorIs(t, err, ErrWeakExportPassphrase)
	assert.Nil(t, file)
	var perr *PolicyError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, []Requirement{RequireDistinctFromMaster}, perr.Missing)
	assert.NotContains(t, err.Error(), testPassphrase)

	assert.False(t, session.Locked())
	assert.Zero(t, v.Guard().State().Failures)

	file, err = session.Export(ctx, exportPassphrase)
	require.NoError(t, err)
	assert.Equal(t, 1, file.RecordCount)
}

func TestImportWrongPassphrase(t *testing.T) {
	ctx := t.Context()
	v, session := createTestVault(t)
	seed(t, session, emailRecord())
	data := exportData(t, session, exportPassphrase)

	result, err := v.Import(ctx, "Other!Passphrase9", data)
	require.ErrorIs(t, err, ErrWrongPassphrase)
	assert.Nil(t, result)
	assert.Zero(t, v.Guard().State().Failures, "imports do not count against the unlock guard")
}

func TestImportInvalidFormat(t *testing.T) {
	ctx := t.Context()
	v, session := createTestVault(t)
	vaultBlob, err := v.store.Get(ctx, "default")
	require.NoError(t, err)
	valid := exportData(t, session, exportPassphrase)

	mutate := func(fn func(doc map[string]any)) []byte {
		var doc map[string]any
		require.NoError(t, json.Unmarshal(valid, &doc))
		fn(doc)
		out, err := json.Marshal(doc)
		require.NoError(t, err)
		return out
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("hello")},
		{"vault blob", vaultBlob},
		{"wrong version", mutate(func(d map[string]any) { d["version"] = "2.0" })},
		{"missing salt", mutate(func(d map[string]any) { delete(d, "salt") })},
		{"missing exportedAt", mutate(func(d map[string]any) { delete(d, "exportedAt") })},
		{"bad base64", mutate(func(d map[string]any) { d["nonce"] = "!!" })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			derivations := countDerivations(v)
			_, err := v.Import(ctx, exportPassphrase, tt.data)
			require.ErrorIs(t, err, ErrInvalidFormat)
			assert.Zero(t, derivations.Load(), "shape is checked before derivation")
		})
	}
}

func TestImportRejectsMalformedRecords(t *testing.T) {
	v, _ := createTestVault(t)

	tests := []struct {
		name      string
		plaintext string
		count     int
	}{
		{"not a package", `[]`, 0},
		{"missing vaultData", `{"version":"1.0","exportedAt":"2024-02-01T00:00:00Z","metadata":{"entries":0}}`, 0},
		{"missing password", `{"version":"1.0","exportedAt":"2024-02-01T00:00:00Z","metadata":{"entries":2},
			"vaultData":{"entries":[
				{"id":"1","title":"ok","username":"u","password":"p","tags":[]},
				{"id":"2","title":"bad","username":"u","tags":[]}]}}`, 2},
		{"metadata entries mismatch", `{"version":"1.0","exportedAt":"2024-02-01T00:00:00Z","metadata":{"entries":5},
			"vaultData":{"entries":[{"id":"1","title":"ok","username":"u","password":"p","tags":[]}]}}`, 1},
		{"count mismatch", `{"version":"1.0","exportedAt":"2024-02-01T00:00:00Z","metadata":{"entries":1},
			"vaultData":{"entries":[{"id":"1","title":"ok","username":"u","password":"p","tags":[]}]}}`, 3},
		{"unknown package version", `{"version":"9.9","exportedAt":"2024-02-01T00:00:00Z","metadata":{"entries":0},
			"vaultData":{"entries":[]}}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := sealExport(t, exportPassphrase, tt.plaintext, tt.count)
			result, err := v.Import(t.Context(), exportPassphrase, data)
			require.ErrorIs(t, err, ErrCorruptVault)
			assert.Nil(t, result)
		})
	}
}

func TestImportNormalizesTags(t *testing.T) {
	v, _ := createTestVault(t)
	data := sealExport(t, exportPassphrase, `{"version":"1.0","exportedAt":"2024-02-01T00:00:00Z",
		"metadata":{"entries":1,"description":"Password Vault Export"},
		"vaultData":{"entries":[{"id":"1","title":"t","username":"u","password":"p","tags":[" a ","a",""]}]}}`, 1)

	result, err := v.Import(t.Context(), exportPassphrase, data)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, result.Contents.Entries[0].Tags)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), result.Metadata.OriginalExportDate)
}

func TestMergeResolvesConflicts(t *testing.T) {
	ctx := t.Context()
	v, session := createTestVault(t)
	existing := seed(t, session, emailRecord())

	imported := &Contents{Entries: []Record{
		{ID: existing[0].ID, Title: "Email (old laptop)", Username: "a@b.com", Password: "older", Tags: []string{}},
		{ID: "fresh-id", Title: "Bank", Username: "me", Password: "pw", Tags: []string{}},
	}}

	report, err := session.Merge(ctx, imported)
	require.NoError(t, err)
	assert.Equal(t, &MergeReport{
		TotalImported:     2,
		ConflictsResolved: 1,
		NewEntriesAdded:   2,
		TotalEntries:      3,
	}, report)

	records, err := session.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, existing[0], records[0], "existing records are untouched")
	assert.NotEqual(t, existing[0].ID, records[1].ID)
	assert.Equal(t, "Email (old laptop)", records[1].Title)
	assert.Equal(t, "fresh-id", records[2].ID)

	// The merge is persisted.
	session.Lock()
	reopened, err := v.Unlock(ctx, testPassphrase)
	require.NoError(t, err)
	defer reopened.Close()
	again, err := reopened.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, again)
}

func TestMergeDuplicateIDsWithinImport(t *testing.T) {
	_, session := createTestVault(t)
	report, err := session.Merge(t.Context(), &Contents{Entries: []Record{
		{ID: "same", Title: "a", Username: "u", Password: "p"},
		{ID: "same", Title: "b", Username: "u", Password: "p"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.ConflictsResolved)
	assert.Equal(t, 2, report.TotalEntries)
}

func TestMergeEmpty(t *testing.T) {
	_, session := createTestVault(t)
	seed(t, session, emailRecord())

	report, err := session.Merge(t.Context(), &Contents{Entries: []Record{}})
	require.NoError(t, err)
	assert.Equal(t, &MergeReport{TotalEntries: 1}, report)
}

func TestMergeRejectsInvalidRecords(t *testing.T) {
	ctx := t.Context()
	_, session := createTestVault(t)
	seed(t, session, emailRecord())

	_, err := session.Merge(ctx, &Contents{Entries: []Record{
		{ID: "ok", Title: "a", Username: "u", Password: "p"},
		{ID: "bad", Title: "", Username: "u", Password: "p"},
	}})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = session.Merge(ctx, nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	records, err := session.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestExportImportMergeAcrossVaults(t *testing.T) {
	ctx := t.Context()
	_, source := createTestVault(t)
	added := seed(t, source, emailRecord(), NewRecord{Title: "Bank", Username: "me", Password: "pw"})
	data := exportData(t, source, exportPassphrase)

	target, targetSession := createTestVault(t)
	result, err := target.Import(ctx, exportPassphrase, data)
	require.NoError(t, err)
	report, err := targetSession.Merge(ctx, result.Contents)
	require.NoError(t, err)
	assert.Equal(t, 0, report.ConflictsResolved)

	records, err := targetSession.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, added, records)
}
