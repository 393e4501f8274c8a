package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcleod/lockbox/vault"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write an encrypted export of the vault",
	Long: `Encrypt every entry under a separate export passphrase and write the
export file. The export passphrase is read from LOCKBOX_EXPORT_PASSPHRASE
when set, otherwise prompted for twice.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Merge an export file into the vault",
	Long: `Decrypt an export file and append its entries to the vault. Entries
whose id is already taken are given a new id; nothing is overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var exportOut string

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")
	rootCmd.AddCommand(exportCmd, importCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	return unlocked(cmd, func(s *vault.Session) error {
		pass, err := newPassphrase(cmd.ErrOrStderr(), "Export passphrase", envExportPassphrase)
		if err != nil {
			return err
		}
		file, err := s.Export(cmd.Context(), pass)
		if err != nil {
			return err
		}
		if exportOut == "" {
			_, err := cmd.OutOrStdout().Write(append(file.Data, '\n'))
			return err
		}
		if err := os.WriteFile(exportOut, file.Data, 0o600); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
		printSuccess(cmd.ErrOrStderr(), "Exported %d entries to %s", file.RecordCount, exportOut)
		return nil
	})
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading export: %w", err)
	}
	return unlockedEnv(cmd, func(e *env, s *vault.Session) error {
		pass, err := passphrase(cmd.ErrOrStderr(), "Export passphrase", envExportPassphrase)
		if err != nil {
			return err
		}
		result, err := e.vault.Import(cmd.Context(), pass, data)
		if err != nil {
			return err
		}
		report, err := s.Merge(cmd.Context(), result.Contents)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		printSuccess(w, "Imported %d entries exported %s", report.TotalImported,
			result.Metadata.OriginalExportDate.Format("2006-01-02 15:04:05"))
		if report.ConflictsResolved > 0 {
			printWarning(w, "%d entries were given new ids", report.ConflictsResolved)
		}
		fmt.Fprintf(w, "Vault now holds %d entries\n", report.TotalEntries)
		return nil
	})
}
