package config

import (
	"errors"
	"fmt"
	"os"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// envPrefix namespaces every environment override, e.g. PLINTH_APP_BIND_PORT.
const envPrefix = "PLINTH_"

type builder struct {
	layers []*Config
	err    error
}

func newBuilder() *builder {
	return &builder{layers: make([]*Config, 0, 4)}
}

// build merges the collected layers in order. Earlier layers win: a field is
// only filled from a later layer when every earlier one left it empty.
func (b *builder) build() (Config, error) {
	if b.err != nil {
		return Config{}, fmt.Errorf("failed to assemble config: %w", b.err)
	}

	merged := new(Config)
	for _, layer := range b.layers {
		if err := mergo.Merge(merged, layer); err != nil {
			return Config{}, fmt.Errorf("failed to merge config layers: %w", err)
		}
	}
	return *merged, nil
}

func (b *builder) withOverrides(over Config) *builder {
	b.layers = append(b.layers, &over)
	return b
}

func (b *builder) withEnv() *builder {
	envCfg := &Config{}
	if err := env.ParseWithOptions(envCfg, env.Options{Prefix: envPrefix}); err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("failed to read %s* environment: %w", envPrefix, err))
		return b
	}
	b.layers = append(b.layers, envCfg)
	return b
}

// withFile loads a YAML config file. A missing file is only an error when the
// operator named it explicitly.
func (b *builder) withFile(path string, explicit bool) *builder {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return b
		}
		b.err = errors.Join(b.err, fmt.Errorf("failed to read config file %s: %w", path, err))
		return b
	}

	fileCfg := &Config{}
	if err := yaml.Unmarshal(raw, fileCfg); err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("failed to parse config file %s: %w", path, err))
		return b
	}
	b.layers = append(b.layers, fileCfg)
	return b
}

func (b *builder) withDefaults() *builder {
	def := Default()
	b.layers = append(b.layers, &def)
	return b
}
