package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/lockbox/vault"
)

const (
	testMaster = "Str0ng!Passphrase#2024"
	testExport = "An0ther!Export#Secret"
)

// cliEnv points every command at a fresh bbolt vault and supplies the
// passphrases through the environment.
func cliEnv(t *testing.T) string {
	t.Helper()
	color.NoColor = true
	path := filepath.Join(t.TempDir(), "vault.db")
	t.Setenv("LOCKBOX_CONFIG", "")
	t.Setenv("LOCKBOX_VAULT_KDF_ITERATIONS", "10000")
	t.Setenv("LOCKBOX_LOG_LEVEL", "error")
	t.Setenv(envPassphrase, testMaster)
	t.Setenv(envExportPassphrase, testExport)
	return path
}

func runCLI(t *testing.T, path string, args ...string) (string, error) {
	t.Helper()
	configFile, backend, vaultPath, vaultDSN, vaultID, logLevel = "", "", "", "", "", ""
	entryTitle, entryUsername, entryPasswordEnv = "", "", ""
	entryTags = nil
	entryNewPassword, entryShow, entryJSON = false, false, false
	exportOut = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--backend", "bbolt", "--path", path}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}

func listJSON(t *testing.T, path string, args ...string) []vault.Record {
	t.Helper()
	out, err := runCLI(t, path, append([]string{"entry", "list", "--json"}, args...)...)
	require.NoError(t, err)
	var records []vault.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	return records
}

func TestCLI_Lifecycle(t *testing.T) {
	path := cliEnv(t)
	t.Setenv("SITE_PASSWORD", "hunter2")

	out, err := runCLI(t, path, "init")
	require.NoError(t, err)
	assert.Contains(t, out, `Vault "default" created`)

	out, err = runCLI(t, path, "entry", "add", "--title", "Email", "--username", "alice@example.com",
		"--tag", "work,mail", "--password-env", "SITE_PASSWORD")
	require.NoError(t, err)
	assert.Contains(t, out, "Entry added: ")

	records := listJSON(t, path)
	require.Len(t, records, 1)
	assert.Equal(t, "Email", records[0].Title)
	assert.Equal(t, []string{"work", "mail"}, records[0].Tags)
	assert.Equal(t, redacted, records[0].Password, "list never prints passwords")
	id := records[0].ID

	out, err = runCLI(t, path, "entry", "get", id, "--show")
	require.NoError(t, err)
	assert.Contains(t, out, "Password: hunter2")

	_, err = runCLI(t, path, "entry", "update", id, "--title", "Personal Email")
	require.NoError(t, err)

	out, err = runCLI(t, path, "entry", "search", "personal")
	require.NoError(t, err)
	assert.Contains(t, out, "Personal Email")
	assert.NotContains(t, out, "hunter2")

	out, err = runCLI(t, path, "entry", "search", "nothing-matches")
	require.NoError(t, err)
	assert.Contains(t, out, "No entries found")

	_, err = runCLI(t, path, "entry", "remove", id)
	require.NoError(t, err)
	assert.Empty(t, listJSON(t, path))

	_, err = runCLI(t, path, "entry", "remove", id)
	assert.ErrorIs(t, err, vault.ErrNotFound)
}

func TestCLI_ExportImport(t *testing.T) {
	path := cliEnv(t)
	t.Setenv("SITE_PASSWORD", "hunter2")
	exportFile := filepath.Join(t.TempDir(), "export.json")

	_, err := runCLI(t, path, "init")
	require.NoError(t, err)
	_, err = runCLI(t, path, "entry", "add", "--title", "Bank", "--username", "alice", "--password-env", "SITE_PASSWORD")
	require.NoError(t, err)

	t.Setenv(envExportPassphrase, testMaster)
	_, err = runCLI(t, path, "export", "--out", exportFile)
	require.ErrorIs(t, err, vault.ErrWeakExportPassphrase)
	assert.NoFileExists(t, exportFile)

	t.Setenv(envExportPassphrase, testExport)
	out, err := runCLI(t, path, "export", "--out", exportFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 1 entries to "+exportFile)

	// Importing into the same vault collides on the id.
	out, err = runCLI(t, path, "import", exportFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 entries")
	assert.Contains(t, out, "1 entries were given new ids")
	assert.Contains(t, out, "Vault now holds 2 entries")

	records := listJSON(t, path)
	require.Len(t, records, 2)
	assert.NotEqual(t, records[0].ID, records[1].ID)
	assert.Equal(t, records[0].Title, records[1].Title)

	t.Setenv(envExportPassphrase, "Wr0ng!Export#Secret")
	_, err = runCLI(t, path, "import", exportFile)
	assert.ErrorIs(t, err, vault.ErrWrongPassphrase)
	assert.Len(t, listJSON(t, path), 2)
}

func TestCLI_InitErrors(t *testing.T) {
	path := cliEnv(t)

	t.Setenv(envPassphrase, "short")
	_, err := runCLI(t, path, "init")
	assert.ErrorIs(t, err, vault.ErrWeakPassphrase)

	t.Setenv(envPassphrase, testMaster)
	_, err = runCLI(t, path, "init")
	require.NoError(t, err)

	_, err = runCLI(t, path, "init")
	assert.ErrorIs(t, err, vault.ErrAlreadyExists)
}

func TestCLI_UnlockErrors(t *testing.T) {
	path := cliEnv(t)

	_, err := runCLI(t, path, "entry", "list")
	assert.ErrorIs(t, err, vault.ErrNoVault)

	_, err = runCLI(t, path, "init")
	require.NoError(t, err)

	t.Setenv(envPassphrase, "Wr0ng!Passphrase#2024")
	_, err = runCLI(t, path, "entry", "list")
	assert.ErrorIs(t, err, vault.ErrWrongPassphrase)
}

func TestCLI_Version(t *testing.T) {
	path := cliEnv(t)
	out, err := runCLI(t, path, "version")
	require.NoError(t, err)
	assert.Equal(t, "lockbox "+Version+"\n", out)
}
