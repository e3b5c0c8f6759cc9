package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"plinth/types"
)

// DefaultFile is the config file looked up in the working directory when no
// path is given.
const DefaultFile = "plinth.yaml"

// Config holds the full tool configuration. Values are assembled from four
// layers, earliest wins: explicit overrides (CLI flags), PLINTH_* environment
// variables, the config file, and the built-in defaults.
type Config struct {
	App       types.App          `yaml:"app" envPrefix:"APP_"`
	Domain    types.DomainConfig `yaml:"domain" envPrefix:"DOMAIN_"`
	StatePath string             `yaml:"state_path" env:"STATE_PATH"`
	Installer []string           `yaml:"installer" env:"INSTALLER" envSeparator:" "` // argv prefix of the dependency installer, e.g. "python3 -m pip"
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		App: types.App{
			Name:           defaultAppName(),
			Source:         ".",
			BaseImage:      "python:3.12-slim",
			Entrypoint:     []string{"streamlit", "run", "app.py"},
			Manifest:       "requirements.txt",
			BindAddress:    "0.0.0.0",
			BindPort:       8501,
			PublishPort:    8501,
			HealthPath:     "/",
			StartupTimeout: 60,
		},
		StatePath: defaultStatePath(),
		Installer: []string{"python3", "-m", "pip"},
	}
}

// Load assembles the configuration. path selects the config file; when empty,
// DefaultFile is used and may be absent. overrides carries values from CLI
// flags and takes precedence over every other layer.
func Load(path string, overrides Config) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	cfg, err := newBuilder().
		withOverrides(overrides).
		withEnv().
		withFile(path, explicit).
		withDefaults().
		build()
	if err != nil {
		return Config{}, err
	}

	cfg.App.Name = normalizeName(cfg.App.Name)
	cfg.App.Env = expandEnv(cfg.App.Env)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.App.Name) == "" {
		return ErrMissingAppName
	}
	if c.App.BindPort <= 0 || c.App.BindPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidBindPort, c.App.BindPort)
	}
	if c.App.PublishPort <= 0 || c.App.PublishPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPublishPort, c.App.PublishPort)
	}
	if len(c.App.Entrypoint) == 0 {
		return ErrMissingEntrypoint
	}
	if len(c.Installer) == 0 {
		return ErrMissingInstaller
	}
	if filepath.IsAbs(c.App.Manifest) || strings.HasPrefix(c.App.Manifest, "..") {
		return fmt.Errorf("%w: %s", ErrManifestOutsideSource, c.App.Manifest)
	}
	if c.Domain.Enabled {
		if c.Domain.APIToken == "" || c.Domain.ZoneID == "" || c.Domain.BaseDomain == "" {
			return ErrIncompleteDomain
		}
	}
	return nil
}

// ManifestPath returns the manifest location on the host.
func (c Config) ManifestPath() string {
	return filepath.Join(c.App.Source, c.App.Manifest)
}

// expandEnv resolves $VAR references in app env values against the host
// environment, so secrets can stay out of the config file.
func expandEnv(in map[string]string) map[string]string {
	if len(in) == 0 {
		return in
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = os.ExpandEnv(v)
	}
	return out
}

// normalizeName lowercases a name and squeezes anything outside [a-z0-9-]
// into single hyphens, so it is usable as an image repository, a container
// name and a DNS label.
func normalizeName(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r + 32
		}
		return '-'
	}, name)

	for strings.Contains(sanitized, "--") {
		sanitized = strings.ReplaceAll(sanitized, "--", "-")
	}

	return strings.Trim(sanitized, "-")
}

// defaultAppName derives an app name from the working directory.
func defaultAppName() string {
	wd, err := os.Getwd()
	if err != nil {
		return "app"
	}
	name := normalizeName(filepath.Base(wd))
	if name == "" {
		return "app"
	}
	return name
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".plinth", "state.json")
	}
	return filepath.Join(home, ".plinth", "state.json")
}
