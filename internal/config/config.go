// Package config loads shortcuts.yaml, the settings shared by the
// shortcuts CLI and the shortcutd daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/appinfo"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/profile"
)

// FileName is the default config file name.
const FileName = "shortcuts.yaml"

// UserdataEnv overrides the configured userdata root.
const UserdataEnv = "DECK_USERDATA"

// Secret environment variables, each also read from <name>_FILE.
const (
	APIPasswordEnv  = "DECK_API_PASSWORD"
	MQTTPasswordEnv = "DECK_MQTT_PASSWORD"
)

// Journal drivers.
const (
	JournalSQLite   = "sqlite"
	JournalPostgres = "postgres"
	JournalNone     = "none"
)

type Config struct {
	Version int `yaml:"version"`
	Steam   struct {
		UserdataRoot string `yaml:"userdata_root"`
	} `yaml:"steam"`
	Launcher struct {
		Executable string   `yaml:"executable"`
		Protocol   string   `yaml:"protocol"`
		FlatpakID  string   `yaml:"flatpak_id"`
		ExtraArgs  []string `yaml:"extra_args"`
	} `yaml:"launcher"`
	Artwork struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"artwork"`
	Backup struct {
		Dir  string `yaml:"dir"`
		Keep int    `yaml:"keep"`
	} `yaml:"backup"`
	Journal struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
		DSN    string `yaml:"dsn"`
	} `yaml:"journal"`
	Notify struct {
		MQTTURL  string `yaml:"mqtt_url"`
		Topic    string `yaml:"topic"`
		ClientID string `yaml:"client_id"`
		Username string `yaml:"username"`
	} `yaml:"notify"`
	API struct {
		Bind     string `yaml:"bind"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
	} `yaml:"api"`
}

// Load reads and checks a config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported %s version: %d", filepath.Base(path), cfg.Version)
	}

	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{Version: 1}, nil
	}
	return cfg, err
}

// DefaultPath returns ~/.config/deck-shortcuts/shortcuts.yaml.
func DefaultPath(home string) string {
	return filepath.Join(home, ".config", "deck-shortcuts", FileName)
}

func stateDir(home string) string {
	return filepath.Join(home, ".local", "state", "deck-shortcuts")
}

// UserdataRoot picks the userdata root: DECK_USERDATA, then the config
// file, then the first existing default location. If none exists the
// native location is returned so callers get a UserdataDirMissing error
// naming it.
func (c *Config) UserdataRoot(home string) string {
	if v := os.Getenv(UserdataEnv); v != "" {
		return v
	}
	if c.Steam.UserdataRoot != "" {
		return c.Steam.UserdataRoot
	}
	if root, ok := profile.FindUserdataRoot(home); ok {
		return root
	}
	return profile.DefaultUserdataRoots(home)[0]
}

// AppLauncher returns the launcher used for store-managed apps.
func (c *Config) AppLauncher() appinfo.Launcher {
	return appinfo.Launcher{
		Executable: c.Launcher.Executable,
		Protocol:   c.Launcher.Protocol,
		FlatpakID:  c.Launcher.FlatpakID,
		ExtraArgs:  c.Launcher.ExtraArgs,
	}
}

// ArtworkEnabled reports whether artwork is staged, defaulting to true.
func (c *Config) ArtworkEnabled() bool {
	if c.Artwork.Enabled == nil {
		return true
	}
	return *c.Artwork.Enabled
}

// BackupKeep returns how many backups to keep per profile, defaulting
// to 5.
func (c *Config) BackupKeep() int {
	if c.Backup.Keep <= 0 {
		return 5
	}
	return c.Backup.Keep
}

// JournalDriver returns the journal driver, defaulting to sqlite.
func (c *Config) JournalDriver() string {
	if c.Journal.Driver == "" {
		return JournalSQLite
	}
	return c.Journal.Driver
}

// JournalPath returns the SQLite journal file, defaulting to
// ~/.local/state/deck-shortcuts/events.db.
func (c *Config) JournalPath(home string) string {
	if c.Journal.Path == "" {
		return filepath.Join(stateDir(home), "events.db")
	}
	return c.Journal.Path
}

// MQTTTopic returns the topic sync results are published to,
// defaulting to deck/shortcuts/results.
func (c *Config) MQTTTopic() string {
	if c.Notify.Topic == "" {
		return "deck/shortcuts/results"
	}
	return c.Notify.Topic
}

// MQTTClientID returns the MQTT client ID, defaulting to
// deck-shortcuts.
func (c *Config) MQTTClientID() string {
	if c.Notify.ClientID == "" {
		return "deck-shortcuts"
	}
	return c.Notify.ClientID
}

// APIAddr returns the daemon listen address, defaulting to
// 127.0.0.1:8787.
func (c *Config) APIAddr() string {
	bind := c.API.Bind
	if bind == "" {
		bind = "127.0.0.1"
	}
	port := c.API.Port
	if port == 0 {
		port = 8787
	}
	return fmt.Sprintf("%s:%d", bind, port)
}

// LoadApp reads one app description from a YAML file.
func LoadApp(path string) (appinfo.App, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return appinfo.App{}, err
	}
	var app appinfo.App
	if err := yaml.Unmarshal(b, &app); err != nil {
		return appinfo.App{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return app, nil
}
