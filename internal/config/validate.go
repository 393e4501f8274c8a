package config

import "fmt"

func (c *Config) validate() error {
	switch c.Vault.Backend {
	case BackendBBolt, BackendSQLite, BackendFile:
		if c.Vault.Path == "" {
			return fmt.Errorf("%w: path is required for backend %q", ErrInvalidVaultConfig, c.Vault.Backend)
		}
	case BackendPostgres:
		if c.Vault.DSN == "" {
			return fmt.Errorf("%w: dsn is required for backend %q", ErrInvalidVaultConfig, c.Vault.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidVaultConfig, c.Vault.Backend)
	}

	if c.Vault.ID == "" {
		return fmt.Errorf("%w: vault id must not be empty", ErrInvalidVaultConfig)
	}
	if c.Vault.AutoLock < 0 {
		return fmt.Errorf("%w: auto_lock must not be negative", ErrInvalidVaultConfig)
	}
	if c.Vault.KDFIterations < 10000 {
		return fmt.Errorf("%w: kdf_iterations must be at least 10000", ErrInvalidVaultConfig)
	}

	if c.Server.Address == "" {
		return fmt.Errorf("%w: address must not be empty", ErrInvalidServerConfig)
	}
	if c.Server.RequestRate <= 0 || c.Server.RequestBurst <= 0 {
		return fmt.Errorf("%w: request_rate and request_burst must be positive", ErrInvalidServerConfig)
	}
	return nil
}
