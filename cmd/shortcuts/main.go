// Command shortcuts adds, removes and inspects non-Steam shortcuts in
// every local Steam profile.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/appinfo"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/orchestrator"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/profile"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/shortcutid"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/version"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailed  = 1
	exitPartial = 2
	exitUsage   = 64
)

type command struct {
	name    string
	summary string
	run     func(env *cliEnv, args []string) int
}

var commands = []command{
	{"add", "Add a shortcut to every profile", runAdd},
	{"remove", "Remove a shortcut from every profile", runRemove},
	{"check", "Report whether a shortcut exists in any profile", runCheck},
	{"list", "List the shortcuts in every profile", runList},
	{"profiles", "List the Steam profiles found", runProfiles},
	{"id", "Print the identifiers Steam derives for a shortcut", runID},
	{"dump", "Print a shortcuts.vdf file as text", runDump},
	{"backups", "List saved copies of a profile's shortcuts file", runBackups},
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: shortcuts <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "shortcuts manages non-Steam shortcuts in every local Steam profile.\n")
	fmt.Fprintf(os.Stderr, "Restart Steam after a change so it picks up the new file.\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(os.Stderr, "\nRun 'shortcuts <command> --help' for command options.\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  shortcuts add --title MyApp --exe /usr/bin/myapp\n")
	fmt.Fprintf(os.Stderr, "  shortcuts add --app hades.yaml --json\n")
	fmt.Fprintf(os.Stderr, "  shortcuts check --title MyApp\n")
	fmt.Fprintf(os.Stderr, "  shortcuts id --exe '\"/usr/bin/myapp\"' --name MyApp\n")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	if len(args) == 0 {
		usage()
		return exitUsage
	}

	switch args[0] {
	case "-h", "--help", "help":
		usage()
		return exitOK
	case "-V", "--version", "version":
		fmt.Fprintf(stdout, "shortcuts version %s\n", version.Version)
		return exitOK
	}

	for _, c := range commands {
		if c.name == args[0] {
			env := newEnv(c.name, stdout)
			return c.run(env, args[1:])
		}
	}

	fmt.Fprintf(os.Stderr, "shortcuts: unknown command %q\n\n", args[0])
	usage()
	return exitUsage
}

// exitCode maps an aggregate result to the process exit code.
func exitCode(r orchestrator.AggregateResult) int {
	switch r.Status {
	case orchestrator.OverallSuccess:
		return exitOK
	case orchestrator.OverallPartialSuccess:
		return exitPartial
	default:
		return exitFailed
	}
}

// errorCode reports err and returns the exit code for it.
func errorCode(err error) int {
	fmt.Fprintf(os.Stderr, "shortcuts: %v\n", err)
	switch {
	case errors.Is(err, appinfo.ErrInvalidApp), errors.Is(err, shortcutid.ErrInvalidArgument):
		return exitUsage
	case errors.Is(err, profile.ErrUserdataDirMissing):
		fmt.Fprintf(os.Stderr, "Has Steam been started on this machine? Set --userdata or DECK_USERDATA to override.\n")
	}
	return exitFailed
}

// parseFlags parses args into fs. When it returns false the command
// should exit with the returned code.
func parseFlags(fs *pflag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK, false
		}
		fmt.Fprintf(os.Stderr, "shortcuts %s: %v\n", fs.Name(), err)
		return exitUsage, false
	}
	return exitOK, true
}
