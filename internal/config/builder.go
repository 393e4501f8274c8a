package config

import (
	"errors"
	"fmt"
	"os"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// configBuilder merges layers in precedence order: the first layer to set a
// field wins, later layers only fill fields that are still zero.
type configBuilder struct {
	configs []*Config
	err     error
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{configs: make([]*Config, 0, 4)}
}

// Load builds the configuration. overrides carries values set explicitly on
// the command line and may be nil.
func Load(overrides *Config) (*Config, error) {
	return newConfigBuilder().
		withOverrides(overrides).
		withEnv().
		withFile().
		withDefaults().
		build()
}

func (b *configBuilder) withOverrides(cfg *Config) *configBuilder {
	if cfg != nil {
		b.configs = append(b.configs, cfg)
	}
	return b
}

func (b *configBuilder) withEnv() *configBuilder {
	envCfg := &Config{}
	if err := env.ParseWithOptions(envCfg, env.Options{Prefix: envPrefix}); err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("parsing environment: %w", err))
		return b
	}
	b.configs = append(b.configs, envCfg)
	return b
}

func (b *configBuilder) withFile() *configBuilder {
	var path string
	for _, cfg := range b.configs {
		if cfg.File != "" {
			path = cfg.File
			break
		}
	}
	if path == "" {
		return b
	}

	fileCfg, err := parseYAML(path)
	if err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}
	b.configs = append(b.configs, fileCfg)
	return b
}

func (b *configBuilder) withDefaults() *configBuilder {
	b.configs = append(b.configs, Default())
	return b
}

func (b *configBuilder) build() (*Config, error) {
	if b.err != nil {
		return nil, fmt.Errorf("building config: %w", b.err)
	}

	cfg := new(Config)
	for _, layer := range b.configs {
		if err := mergo.Merge(cfg, layer); err != nil {
			return nil, fmt.Errorf("merging config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadConfigFile, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReadConfigFile, path, err)
	}
	cfg.File = path
	return cfg, nil
}
