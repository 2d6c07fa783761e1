// Package clientconfig loads the motionlabctl configuration file.
package clientconfig

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/motionlab/backend/internal/client"
)

//go:embed sample_config.toml
var sampleConfig string

// EnvBaseURL overrides base_url from the file.
const EnvBaseURL = "MOTIONLAB_BASE_URL"

type Admin struct {
	Demo            bool `toml:"demo"`
	RefreshInterval int  `toml:"refresh_interval"`
}

type Config struct {
	BaseURL        string `toml:"base_url"`
	StateFile      string `toml:"state_file"`
	RequestTimeout int    `toml:"request_timeout"`
	Admin          Admin  `toml:"admin"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		BaseURL:        client.DefaultBaseURL,
		RequestTimeout: 30,
		Admin:          Admin{RefreshInterval: 5},
	}
}

// DefaultConfigPath is $XDG_CONFIG_HOME/motionlab/config.toml, or ~/.config when unset.
func DefaultConfigPath() (string, error) {
	if base, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "motionlab", "config.toml"), nil
	}
	return expandPath("~/.config/motionlab/config.toml")
}

// Load reads path, or the default path when empty. A missing file is not an error; the
// returned bool reports whether one was read.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if v, ok := os.LookupEnv(EnvBaseURL); ok && strings.TrimSpace(v) != "" {
		cfg.BaseURL = v
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return "", false, err
		}
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", expanded)
	}
	return expanded, true, nil
}

func (c *Config) normalize() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = client.DefaultBaseURL
	}

	if strings.TrimSpace(c.StateFile) == "" {
		c.StateFile = defaultStateFile()
	}
	state, err := expandPath(c.StateFile)
	if err != nil {
		return err
	}
	c.StateFile = state

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30
	}
	if c.Admin.RefreshInterval <= 0 {
		c.Admin.RefreshInterval = 5
	}
	return nil
}

// Validate checks the values Load cannot repair.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url %q must be an http or https address", c.BaseURL)
	}
	return nil
}

// Timeout is the per-request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// RefreshInterval is the admin dashboard refresh period.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Admin.RefreshInterval) * time.Second
}

// CreateSample writes a commented starter file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func defaultStateFile() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "motionlab", "session.json")
	}
	return "~/.local/state/motionlab/session.json"
}

func expandPath(value string) (string, error) {
	if value == "" {
		return value, nil
	}
	if strings.HasPrefix(value, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if value == "~" {
			value = home
		} else if len(value) > 1 && (value[1] == '/' || value[1] == '\\') {
			value = filepath.Join(home, value[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(value))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return absolute, nil
}
