package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/config"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/events"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/mqtt"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/orchestrator"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/setup"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/storage"
)

// cliEnv carries the options shared by every command and the resources
// opened from them.
type cliEnv struct {
	name string

	configPath string
	userdata   string
	jsonOut    bool
	verbose    bool
	noJournal  bool

	stdout io.Writer
	home   string
	cfg    *config.Config

	journal storage.Journal
	client  *mqtt.Client
}

func newEnv(name string, stdout io.Writer) *cliEnv {
	home, _ := os.UserHomeDir()
	return &cliEnv{name: name, stdout: stdout, home: home}
}

// flagSet returns a flag set for the command with the common flags
// bound.
func (env *cliEnv) flagSet(usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(env.name, pflag.ContinueOnError)
	fs.StringVarP(&env.configPath, "config", "c", config.DefaultPath(env.home), "Config file")
	fs.StringVarP(&env.userdata, "userdata", "u", "", "Steam userdata directory (default: detected)")
	fs.BoolVarP(&env.jsonOut, "json", "j", false, "Print results as JSON")
	fs.BoolVarP(&env.verbose, "verbose", "v", false, "Log events to stderr")
	fs.BoolVar(&env.noJournal, "no-journal", false, "Do not record events in the journal")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: shortcuts %s %s\n\nOptions:\n", env.name, usage)
		fs.PrintDefaults()
	}
	return fs
}

// load reads the config and wires logging and the journal.
func (env *cliEnv) load() error {
	cfg, err := config.LoadOrDefault(env.configPath)
	if err != nil {
		return err
	}
	env.cfg = cfg

	if env.verbose {
		events.SetOutput(os.Stderr)
	}

	if !env.noJournal {
		journal, err := setup.Journal(cfg, env.home)
		if err != nil {
			// The journal is a record, not a requirement.
			fmt.Fprintf(os.Stderr, "shortcuts: journal unavailable: %v\n", err)
		} else if journal != nil {
			env.journal = journal
			events.SetSink(journal)
		}
	}
	return nil
}

// root resolves the userdata root: --userdata first, then config.
func (env *cliEnv) root() string {
	if env.userdata != "" {
		return env.userdata
	}
	return env.cfg.UserdataRoot(env.home)
}

// engine builds the engine, attaching the MQTT publisher when a broker
// is configured. A broker that cannot be reached is reported and
// skipped.
func (env *cliEnv) engine(notify bool) *orchestrator.Engine {
	e := setup.Engine(env.cfg)
	if !notify || !setup.MQTTEnabled(env.cfg) {
		return e
	}

	client, err := setup.MQTTClient(env.cfg, "cli")
	if err == nil {
		err = client.Connect()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "shortcuts: notifications disabled: %v\n", err)
		return e
	}
	env.client = client
	e.SetNotifier(mqtt.NewPublisher(client, env.cfg.MQTTTopic()))
	return e
}

func (env *cliEnv) close() {
	if env.client != nil {
		env.client.Disconnect()
	}
	if env.journal != nil {
		events.SetSink(nil)
		env.journal.Close()
	}
}

func (env *cliEnv) printJSON(v interface{}) {
	enc := json.NewEncoder(env.stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// printResult prints an aggregate result, as JSON or as a summary with
// one line per profile.
func (env *cliEnv) printResult(r orchestrator.AggregateResult) {
	if env.jsonOut {
		env.printJSON(r)
		return
	}

	fmt.Fprintf(env.stdout, "%s %q: %s\n", r.Operation, r.Title, r.Status)
	for _, o := range r.Outcomes {
		line := fmt.Sprintf("  %-12s %s", o.ProfileID, o.Status)
		if o.Detail != "" {
			line += " (" + o.Detail + ")"
		}
		if o.ArtworkErr != "" {
			line += " [artwork: " + o.ArtworkErr + "]"
		}
		fmt.Fprintln(env.stdout, line)
	}
	if r.Changed() {
		fmt.Fprintln(env.stdout, "Restart Steam to see the change.")
	}
}
