package config

import "errors"

var (
	ErrInvalidVaultConfig  = errors.New("invalid vault configuration")
	ErrInvalidServerConfig = errors.New("invalid server configuration")
	ErrReadConfigFile      = errors.New("cannot read configuration file")
)
