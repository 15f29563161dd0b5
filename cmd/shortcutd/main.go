// Command shortcutd serves the shortcut engine over local HTTP and,
// when a broker is configured, MQTT.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/api"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/config"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/events"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/mqtt"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/orchestrator"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/setup"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	home, _ := os.UserHomeDir()

	configPath := pflag.StringP("config", "c", config.DefaultPath(home), "Config file")
	addrFlag := pflag.StringP("addr", "a", "", "Listen address (default: from config, 127.0.0.1:8787)")
	versionFlag := pflag.BoolP("version", "V", false, "Print version information")
	pflag.Parse()

	if *versionFlag {
		log.Printf("shortcutd version %s\n", version.Version)
		return
	}

	events.SetOutput(os.Stdout)

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := api.InitAuth(cfg.API.Username); err != nil {
		log.Fatalf("failed to load API credentials: %v", err)
	}
	api.InitTLS()
	api.InitMetrics()

	journal, err := setup.Journal(cfg, home)
	if err != nil {
		// Postgres is the only journal that can be remote; without it
		// the daemon still runs, it just forgets history.
		events.Warn("system.error", "journal unavailable", map[string]interface{}{"error": err.Error()})
	}
	var history orchestrator.HistorySource
	if journal != nil {
		events.SetSink(journal)
		history = journal
		defer journal.Close()
	}
	api.SetJournalStatus(journal != nil, true)

	engine := setup.Engine(cfg)
	syncer := &lockedSyncer{engine: engine}
	root := func() string { return cfg.UserdataRoot(home) }

	var client *mqtt.Client
	if setup.MQTTEnabled(cfg) {
		client = connectMQTT(cfg, engine, syncer, root)
	}
	api.SetMQTTStatus(client != nil && client.IsConnected(), true)
	api.SetEngineReady(true)

	hostname, _ := os.Hostname()
	startup := map[string]interface{}{
		"service":  "shortcutd",
		"version":  version.Version,
		"hostname": hostname,
		"pid":      os.Getpid(),
		"root":     root(),
	}
	if recent, scanned, err := orchestrator.RecentResults(history, orchestrator.DefaultHistoryLimit); err == nil {
		startup["recent_results"] = len(recent)
		startup["journal_rows"] = scanned
	}
	events.Info("system.startup", startup)

	addr := *addrFlag
	if addr == "" {
		addr = cfg.APIAddr()
	}
	srv := api.NewServer(syncer, root, history).NewHTTPServer(addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- api.Serve(srv)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		events.Info("system.shutdown", map[string]interface{}{"signal": sig.String()})
	case err := <-errCh:
		if err != nil {
			events.Error("system.error", "api server failed", map[string]interface{}{"error": err.Error()})
		}
	}

	api.SetEngineReady(false)
	events.CloseAllSubscribers()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("api shutdown: %v", err)
	}
	if client != nil {
		client.Disconnect()
	}
}

// connectMQTT attaches the result publisher and starts the request
// handler. A broker that cannot be reached is logged and ignored.
func connectMQTT(cfg *config.Config, engine *orchestrator.Engine, syncer mqtt.Syncer, root func() string) *mqtt.Client {
	client, err := setup.MQTTClient(cfg, "daemon")
	if err != nil {
		events.Warn("system.error", "mqtt credentials", map[string]interface{}{"error": err.Error()})
		return nil
	}
	if err := client.Connect(); err != nil {
		events.Warn("system.error", "mqtt connect failed", map[string]interface{}{
			"broker": client.Broker(),
			"error":  err.Error(),
		})
		return nil
	}

	topic := cfg.MQTTTopic()
	engine.SetNotifier(mqtt.NewPublisher(client, topic))

	requests := mqtt.NewRequestHandler(client, syncer, topic, root)
	if err := requests.Start(); err != nil {
		events.Warn("system.error", "mqtt subscribe failed", map[string]interface{}{
			"topic": requests.Topic(),
			"error": err.Error(),
		})
	}
	return client
}
