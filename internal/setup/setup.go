// Package setup builds the engine and its optional collaborators from
// a loaded config. Both binaries use it.
package setup

import (
	"fmt"
	"os"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/config"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/mqtt"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/orchestrator"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/storage"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/storage/postgres"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/storage/sqlite"
)

// PostgresPasswordEnv holds the journal password, also read from
// PGPASSWORD_FILE.
const PostgresPasswordEnv = "PGPASSWORD"

// Engine returns an engine configured with the launcher, artwork and
// backup settings.
func Engine(cfg *config.Config) *orchestrator.Engine {
	e := orchestrator.NewEngine(cfg.AppLauncher())
	if !cfg.ArtworkEnabled() {
		e.SetStager(nil)
	}
	if cfg.Backup.Dir != "" {
		e.SetBackups(cfg.Backup.Dir, cfg.BackupKeep())
	}
	return e
}

// Journal opens the configured journal. It returns nil for the "none"
// driver.
func Journal(cfg *config.Config, home string) (storage.Journal, error) {
	host, _ := os.Hostname()
	if host == "" {
		host = "localhost"
	}

	switch cfg.JournalDriver() {
	case config.JournalNone:
		return nil, nil
	case config.JournalSQLite:
		return sqlite.Open(cfg.JournalPath(home), host)
	case config.JournalPostgres:
		dsn := cfg.Journal.DSN
		if dsn == "" {
			password, err := config.ResolveSecret(PostgresPasswordEnv)
			if err != nil {
				return nil, err
			}
			dsn = postgres.DSNFromEnv(password)
		}
		return postgres.New(dsn, host)
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Journal.Driver)
	}
}

// MQTTEnabled reports whether a broker is configured.
func MQTTEnabled(cfg *config.Config) bool {
	return cfg.Notify.MQTTURL != "" || os.Getenv("DECK_MQTT_URL") != ""
}

// MQTTClient builds (but does not connect) the broker client. suffix
// keeps the CLI and daemon client IDs distinct.
func MQTTClient(cfg *config.Config, suffix string) (*mqtt.Client, error) {
	password, err := config.ResolveSecret(config.MQTTPasswordEnv)
	if err != nil {
		return nil, err
	}
	return mqtt.NewClient(mqtt.Options{
		BrokerURL: cfg.Notify.MQTTURL,
		ClientID:  cfg.MQTTClientID() + "-" + suffix,
		Username:  cfg.Notify.Username,
		Password:  password,
	}), nil
}
