package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jmcleod/lockbox/vault"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new empty vault",
	Long: `Create a new vault protected by a master passphrase.

The passphrase must be at least 12 characters and contain upper and lower
case letters, a digit and a symbol. It is read from LOCKBOX_PASSPHRASE when
set, otherwise prompted for twice.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, "cli")
	if err != nil {
		return err
	}
	defer e.close()

	exists, err := e.vault.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return vault.ErrAlreadyExists
	}

	pass, err := newPassphrase(cmd.ErrOrStderr(), "Master passphrase", envPassphrase)
	if err != nil {
		return err
	}
	session, err := e.vault.Create(ctx, pass)
	if err != nil {
		return err
	}
	session.Lock()

	printSuccess(cmd.OutOrStdout(), "Vault %q created (%s backend)", e.cfg.Vault.ID, e.cfg.Vault.Backend)
	return nil
}
