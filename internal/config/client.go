package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	ClientConfigFileName = "config.toml"
	TokenFileName        = "token.json"
)

// Client is the kanban CLI configuration. Values are layered: defaults, then
// the TOML file, then KANBAN_* environment variables.
type Client struct {
	APIURL         string   `toml:"api_url"`
	TokenFile      string   `toml:"token_file"`
	Timeout        Duration `toml:"timeout"`
	SearchDebounce Duration `toml:"search_debounce"`
	Workers        int      `toml:"workers"`
	UserTTL        Duration `toml:"user_ttl"`
	LogLevel       string   `toml:"log_level"`
}

// Duration reads "300ms" style strings from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultDir is $XDG_CONFIG_HOME/kanban, or ~/.config/kanban.
func DefaultDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "kanban")
}

func DefaultClient() Client {
	dir := DefaultDir()
	return Client{
		APIURL:         "http://localhost:3100",
		TokenFile:      filepath.Join(dir, TokenFileName),
		Timeout:        Duration{15 * time.Second},
		SearchDebounce: Duration{300 * time.Millisecond},
		Workers:        4,
		UserTTL:        Duration{15 * time.Minute},
		LogLevel:       "warn",
	}
}

// LoadClient reads the client configuration. An empty path means the default
// location; a missing file is not an error.
func LoadClient(path string) (Client, error) {
	cfg := DefaultClient()
	if path == "" {
		path = filepath.Join(DefaultDir(), ClientConfigFileName)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Client{}, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Client{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.APIURL = getEnv("KANBAN_API_URL", cfg.APIURL)
	cfg.TokenFile = getEnv("KANBAN_TOKEN_FILE", cfg.TokenFile)
	cfg.Timeout.Duration = getDuration("KANBAN_TIMEOUT", cfg.Timeout.Duration)
	cfg.SearchDebounce.Duration = getDuration("KANBAN_SEARCH_DEBOUNCE", cfg.SearchDebounce.Duration)
	cfg.Workers = getInt("KANBAN_WORKERS", cfg.Workers)
	cfg.LogLevel = getEnv("KANBAN_LOG_LEVEL", cfg.LogLevel)

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return cfg, nil
}
