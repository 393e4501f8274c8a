package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcleod/lockbox/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "lockbox",
	Short: "lockbox is a local encrypted credential vault",
	Long: `A local credential vault. Records are encrypted with AES-256-GCM under a
key derived from your master passphrase and can be exported to, or merged
from, passphrase-protected export files.`,
	SilenceUsage: true,
}

var (
	configFile string
	backend    string
	vaultPath  string
	vaultDSN   string
	vaultID    string
	logLevel   string
)

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to a YAML configuration file")
	flags.StringVar(&backend, "backend", "", "Storage backend (bbolt, sqlite, postgres, file, memory)")
	flags.StringVar(&vaultPath, "path", "", "Database file or directory for the storage backend")
	flags.StringVar(&vaultDSN, "dsn", "", "PostgreSQL connection string")
	flags.StringVar(&vaultID, "vault", "", "Vault identifier")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// loadConfig merges flags over LOCKBOX_* environment variables, the config
// file and the defaults. Unset flags leave lower layers in effect.
func loadConfig() (*config.Config, error) {
	return config.Load(&config.Config{
		File: configFile,
		Vault: config.Vault{
			ID:      vaultID,
			Backend: backend,
			Path:    vaultPath,
			DSN:     vaultDSN,
		},
		Log: config.Log{Level: logLevel},
	})
}
