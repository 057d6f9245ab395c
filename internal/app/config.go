package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"walletconnect/internal/domain"
	"walletconnect/internal/logging"
	"walletconnect/internal/services/identity"
)

// EnvPassphrase supplies the keychain passphrase when the config file does
// not.
const EnvPassphrase = "WC_PASSPHRASE"

// Config holds runtime wiring options for building the app.
type Config struct {
	DataDir    string // keychain and stores; empty keeps everything in memory
	Passphrase string // keychain passphrase, required with DataDir
	RelayURL   string // ws:// or wss:// relay endpoint
	ProjectID  string
	LogLevel   string
	Manual     bool // connect only on explicit request

	PingInterval  time.Duration
	AckTimeout    time.Duration
	HistoryMaxAge time.Duration // history records older than this are dropped on start

	Metadata domain.AppMetadata
}

type fileConfig struct {
	DataDir       string   `toml:"data_dir"`
	Passphrase    string   `toml:"passphrase"`
	RelayURL      string   `toml:"relay_url"`
	ProjectID     string   `toml:"project_id"`
	LogLevel      string   `toml:"log_level"`
	Manual        bool     `toml:"manual"`
	PingInterval  string   `toml:"ping_interval"`
	AckTimeout    string   `toml:"ack_timeout"`
	HistoryMaxAge string   `toml:"history_max_age"`
	Metadata      metadata `toml:"metadata"`
}

type metadata struct {
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	URL         string   `toml:"url"`
	Icons       []string `toml:"icons"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	dir := ".walletconnect"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".walletconnect")
	}
	return Config{
		DataDir:       dir,
		RelayURL:      "wss://relay.walletconnect.com",
		LogLevel:      "info",
		PingInterval:  30 * time.Second,
		AckTimeout:    30 * time.Second,
		HistoryMaxAge: 30 * 24 * time.Hour,
		Metadata: domain.AppMetadata{
			Name:        "walletconnect-cli",
			Description: "WalletConnect command line client",
			URL:         "https://walletconnect.com",
			Icons:       []string{},
		},
	}
}

// LoadConfig reads path over the defaults and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadConfig reads path over the defaults without validating, so callers can
// apply overrides first. Keys missing from the file keep their default. An
// empty path returns the defaults. The passphrase falls back to
// WC_PASSPHRASE.
func ReadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := apply(&cfg, raw, meta); err != nil {
			return Config{}, err
		}
	}
	if cfg.Passphrase == "" {
		cfg.Passphrase = os.Getenv(EnvPassphrase)
	}
	return cfg, nil
}

func apply(cfg *Config, raw fileConfig, meta toml.MetaData) error {
	if meta.IsDefined("data_dir") {
		cfg.DataDir = strings.TrimSpace(raw.DataDir)
	}
	if meta.IsDefined("passphrase") {
		cfg.Passphrase = raw.Passphrase
	}
	if meta.IsDefined("relay_url") {
		cfg.RelayURL = strings.TrimSpace(raw.RelayURL)
	}
	if meta.IsDefined("project_id") {
		cfg.ProjectID = strings.TrimSpace(raw.ProjectID)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("manual") {
		cfg.Manual = raw.Manual
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"ping_interval", raw.PingInterval, &cfg.PingInterval},
		{"ack_timeout", raw.AckTimeout, &cfg.AckTimeout},
		{"history_max_age", raw.HistoryMaxAge, &cfg.HistoryMaxAge},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	if meta.IsDefined("metadata", "name") {
		cfg.Metadata.Name = raw.Metadata.Name
	}
	if meta.IsDefined("metadata", "description") {
		cfg.Metadata.Description = raw.Metadata.Description
	}
	if meta.IsDefined("metadata", "url") {
		cfg.Metadata.URL = raw.Metadata.URL
	}
	if meta.IsDefined("metadata", "icons") {
		cfg.Metadata.Icons = raw.Metadata.Icons
	}
	return nil
}

// Validate checks cfg for values the client cannot run with.
func (c Config) Validate() error {
	u, err := url.Parse(c.RelayURL)
	if err != nil {
		return fmt.Errorf("relay_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("relay_url must be ws:// or wss://, got %q", c.RelayURL)
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok && c.LogLevel != "" {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	if c.PingInterval < 0 || c.AckTimeout <= 0 {
		return errors.New("ping_interval must not be negative and ack_timeout must be positive")
	}
	if c.HistoryMaxAge <= 0 {
		return errors.New("history_max_age must be positive")
	}
	if c.DataDir != "" {
		if c.Passphrase == "" {
			return fmt.Errorf("passphrase required for data_dir (set passphrase or %s)", EnvPassphrase)
		}
		if err := identity.ValidatePassphrase(c.Passphrase); err != nil {
			return err
		}
	}
	return nil
}
