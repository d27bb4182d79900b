// Package yaml implements the configuration file service on top of
// gopkg.in/yaml.v3.
package yaml

import (
	"os"
	"path/filepath"

	"github.com/mkrol/marginalia"
	"gopkg.in/yaml.v3"
)

const defaultAPIBase = "https://api.hypothes.is/api"

// EnvConfigPath overrides the default configuration file location.
const EnvConfigPath = "MARGINALIA_CONFIG"

// Ensure ConfigService implements marginalia.ConfigService at compile time.
var _ marginalia.ConfigService = (*ConfigService)(nil)

// ConfigService reads and writes the YAML configuration file.
type ConfigService struct {
	path string
}

// NewConfigService creates a service for the given file. An empty path
// selects the default location.
func NewConfigService(path string) *ConfigService {
	if path == "" {
		path = DefaultPath()
	}
	return &ConfigService{path: path}
}

// DefaultPath returns the configuration file location: the
// MARGINALIA_CONFIG environment variable when set, otherwise
// config.yaml under the user config directory.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "marginalia", "config.yaml")
}

// Path returns the configuration file location.
func (s *ConfigService) Path() string {
	return s.path
}

// Load reads the configuration. A missing file yields the defaults;
// fields absent from the file keep their default values.
func (s *ConfigService) Load() (*marginalia.Config, error) {
	cfg := defaults()

	buf, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, marginalia.Errorf(marginalia.EINTERNAL, "failed to read config %q: %v", s.path, err)
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, marginalia.Errorf(marginalia.EINVALID, "invalid config %q: %v", s.path, err)
	}

	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration, creating the parent directory if
// needed. The file is written with owner-only permissions since it may
// hold an API token.
func (s *ConfigService) Save(cfg *marginalia.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	buf, err := yaml.Marshal(cfg)
	if err != nil {
		return marginalia.Errorf(marginalia.EINTERNAL, "failed to encode config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return marginalia.Errorf(marginalia.EINTERNAL, "failed to create config directory: %v", err)
	}
	if err := os.WriteFile(s.path, buf, 0o600); err != nil {
		return marginalia.Errorf(marginalia.EINTERNAL, "failed to write config %q: %v", s.path, err)
	}
	return nil
}

func defaults() *marginalia.Config {
	return &marginalia.Config{
		APIBase: defaultAPIBase,
		DBPath:  defaultDBPath(),
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".marginalia", "marginalia.db")
}
