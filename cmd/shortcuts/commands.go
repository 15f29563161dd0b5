package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/appinfo"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/config"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/orchestrator"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/profile"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/shortcutid"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/vdf"
)

// appFlags are the flags describing an app on the command line.
type appFlags struct {
	file string
	app  appinfo.App
}

func (f *appFlags) merge() (appinfo.App, error) {
	app := f.app
	if f.file == "" {
		return app, nil
	}

	base, err := config.LoadApp(f.file)
	if err != nil {
		return appinfo.App{}, err
	}
	// Flags given on the command line win over the file.
	if app.Title != "" {
		base.Title = app.Title
	}
	if app.AppName != "" {
		base.AppName = app.AppName
	}
	if app.Runner != "" {
		base.Runner = app.Runner
	}
	if app.Executable != "" {
		base.Executable = app.Executable
	}
	if app.Arguments != "" {
		base.Arguments = app.Arguments
	}
	if app.WorkingDir != "" {
		base.WorkingDir = app.WorkingDir
	}
	if app.Hidden {
		base.Hidden = true
	}
	if len(app.Tags) > 0 {
		base.Tags = app.Tags
	}
	if app.Images.Cover != "" {
		base.Images.Cover = app.Images.Cover
	}
	if app.Images.Banner != "" {
		base.Images.Banner = app.Images.Banner
	}
	if app.Images.Icon != "" {
		base.Images.Icon = app.Images.Icon
	}
	return base, nil
}

func runAdd(env *cliEnv, args []string) int {
	var f appFlags
	var runner string
	fs := env.flagSet("--title TITLE (--exe PATH | --runner RUNNER --app-name NAME) [options]")
	fs.StringVar(&f.file, "app", "", "Read the app description from a YAML file")
	fs.StringVarP(&f.app.Title, "title", "t", "", "Title shown in Steam")
	fs.StringVar(&f.app.Executable, "exe", "", "Executable to run (sideloaded apps)")
	fs.StringVar(&f.app.Arguments, "args", "", "Launch arguments")
	fs.StringVar(&f.app.WorkingDir, "dir", "", "Working directory (default: the executable's directory)")
	fs.StringVar(&runner, "runner", "", "Runner: sideload, legendary, gog or nile")
	fs.StringVar(&f.app.AppName, "app-name", "", "Runner's identifier for the app")
	fs.BoolVar(&f.app.Hidden, "hidden", false, "Hide the shortcut in the library")
	fs.StringSliceVar(&f.app.Tags, "tag", nil, "Collection tag (repeatable)")
	fs.StringVar(&f.app.Images.Cover, "cover", "", "Cover image")
	fs.StringVar(&f.app.Images.Banner, "banner", "", "Banner image")
	fs.StringVar(&f.app.Images.Icon, "icon", "", "Icon image")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	f.app.Runner = appinfo.Runner(runner)

	app, err := f.merge()
	if err != nil {
		return errorCode(err)
	}
	if err := env.load(); err != nil {
		return errorCode(err)
	}
	defer env.close()

	result, err := env.engine(true).Add(env.root(), app)
	if err != nil {
		return errorCode(err)
	}
	env.printResult(result)
	return exitCode(result)
}

func runRemove(env *cliEnv, args []string) int {
	var f appFlags
	fs := env.flagSet("--title TITLE")
	fs.StringVar(&f.file, "app", "", "Read the app description from a YAML file")
	fs.StringVarP(&f.app.Title, "title", "t", "", "Title of the shortcut to remove")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	app, err := f.merge()
	if err != nil {
		return errorCode(err)
	}
	if err := env.load(); err != nil {
		return errorCode(err)
	}
	defer env.close()

	result, err := env.engine(true).Remove(env.root(), app)
	if err != nil {
		return errorCode(err)
	}
	env.printResult(result)
	return exitCode(result)
}

// runCheck exits 0 when the shortcut is present in some profile and 1
// otherwise.
func runCheck(env *cliEnv, args []string) int {
	var title string
	fs := env.flagSet("--title TITLE")
	fs.StringVarP(&title, "title", "t", "", "Title to look for")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if err := env.load(); err != nil {
		return errorCode(err)
	}
	defer env.close()

	result, err := env.engine(false).Check(env.root(), title)
	if err != nil {
		return errorCode(err)
	}
	env.printResult(result)
	if !result.Present {
		return exitFailed
	}
	return exitOK
}

type listedEntry struct {
	AppID         int32    `json:"appid"`
	Name          string   `json:"name"`
	Exe           string   `json:"exe"`
	StartDir      string   `json:"start_dir"`
	LaunchOptions string   `json:"launch_options,omitempty"`
	Hidden        bool     `json:"hidden,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

type listedProfile struct {
	orchestrator.ProfileListing
	Shortcuts []listedEntry `json:"shortcuts"`
}

func runList(env *cliEnv, args []string) int {
	fs := env.flagSet("[options]")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if err := env.load(); err != nil {
		return errorCode(err)
	}
	defer env.close()

	listings, err := env.engine(false).List(env.root())
	if err != nil {
		return errorCode(err)
	}

	out := make([]listedProfile, 0, len(listings))
	for _, l := range listings {
		p := listedProfile{ProfileListing: l, Shortcuts: []listedEntry{}}
		for _, e := range l.Entries {
			p.Shortcuts = append(p.Shortcuts, listedEntry{
				AppID:         e.AppID,
				Name:          e.AppName,
				Exe:           e.Exe,
				StartDir:      e.StartDir,
				LaunchOptions: e.LaunchOptions,
				Hidden:        e.IsHidden,
				Tags:          e.Tags,
			})
		}
		out = append(out, p)
	}

	if env.jsonOut {
		env.printJSON(out)
		return exitOK
	}
	for _, p := range out {
		if p.Status != orchestrator.StatusSuccess {
			fmt.Fprintf(env.stdout, "%s: %s (%s)\n", p.ProfileID, p.Status, p.Detail)
			continue
		}
		fmt.Fprintf(env.stdout, "%s: %d shortcut(s)\n", p.ProfileID, len(p.Shortcuts))
		for _, e := range p.Shortcuts {
			fmt.Fprintf(env.stdout, "  %-11d %s\t%s\n", uint32(e.AppID), e.Name, e.Exe)
		}
	}
	return exitOK
}

type listedUser struct {
	ID            string `json:"id"`
	ShortcutsPath string `json:"shortcuts_path"`
	HasShortcuts  bool   `json:"has_shortcuts"`
}

func runProfiles(env *cliEnv, args []string) int {
	fs := env.flagSet("[options]")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if err := env.load(); err != nil {
		return errorCode(err)
	}
	defer env.close()

	root := env.root()
	profiles, err := profile.List(root)
	if err != nil {
		return errorCode(err)
	}

	users := make([]listedUser, 0, len(profiles))
	for _, p := range profiles {
		_, statErr := os.Stat(p.ShortcutsPath())
		users = append(users, listedUser{ID: p.ID, ShortcutsPath: p.ShortcutsPath(), HasShortcuts: statErr == nil})
	}

	if env.jsonOut {
		env.printJSON(users)
		return exitOK
	}
	fmt.Fprintf(env.stdout, "%s\n", root)
	for _, u := range users {
		mark := "-"
		if u.HasShortcuts {
			mark = "+"
		}
		fmt.Fprintf(env.stdout, "  %s %s\n", mark, u.ID)
	}
	return exitOK
}

type idOutput struct {
	Exe     string `json:"exe"`
	Name    string `json:"name"`
	Legacy  string `json:"legacy_id"`
	Grid    string `json:"grid_id"`
	AppID   int32  `json:"appid"`
	Rungame string `json:"rungame_url"`
}

// runID computes identifiers without touching any file. exe is hashed
// exactly as given, so pass it quoted the way it is stored.
func runID(env *cliEnv, args []string) int {
	var exe, name string
	fs := env.flagSet("--exe EXE --name NAME")
	fs.StringVar(&exe, "exe", "", "Exe field exactly as stored, including quotes")
	fs.StringVar(&name, "name", "", "Shortcut name")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	id, err := shortcutid.Compute(exe, name)
	if err != nil {
		return errorCode(err)
	}

	out := idOutput{
		Exe:     exe,
		Name:    name,
		Legacy:  id.LegacyString(),
		Grid:    id.GridString(),
		AppID:   id.AppID(),
		Rungame: id.RungameURL(),
	}
	if env.jsonOut {
		env.printJSON(out)
		return exitOK
	}
	fmt.Fprintf(env.stdout, "legacy  %s\ngrid    %s\nappid   %d\nrungame %s\n", out.Legacy, out.Grid, out.AppID, out.Rungame)
	return exitOK
}

// runDump prints a shortcuts file as text. With --profile the file is
// taken from that profile under the userdata root.
func runDump(env *cliEnv, args []string) int {
	var profileID string
	fs := env.flagSet("(FILE | --profile ID)")
	fs.StringVarP(&profileID, "profile", "p", "", "Profile whose shortcuts.vdf to dump")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	var path string
	switch {
	case fs.NArg() == 1 && profileID == "":
		path = fs.Arg(0)
	case fs.NArg() == 0 && profileID != "":
		if err := env.load(); err != nil {
			return errorCode(err)
		}
		defer env.close()
		path = filepath.Join(env.root(), profileID, "config", profile.ShortcutsFile)
	default:
		fs.Usage()
		return exitUsage
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errorCode(err)
	}
	return env.dump(data)
}

func (env *cliEnv) dump(data []byte) int {
	m, err := vdf.Decode(data)
	if err != nil {
		return errorCode(err)
	}
	if err := vdf.WriteText(env.stdout, m); err != nil {
		return errorCode(err)
	}
	return exitOK
}

// runBackups lists a profile's saved copies, or prints one with --show.
func runBackups(env *cliEnv, args []string) int {
	var profileID, show string
	fs := env.flagSet("--profile ID [--show FILE]")
	fs.StringVarP(&profileID, "profile", "p", "", "Profile ID")
	fs.StringVar(&show, "show", "", "Print the content of one backup")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	if show != "" {
		data, err := orchestrator.ReadBackup(show)
		if err != nil {
			return errorCode(err)
		}
		return env.dump(data)
	}

	if profileID == "" {
		fs.Usage()
		return exitUsage
	}
	if err := env.load(); err != nil {
		return errorCode(err)
	}
	defer env.close()

	if env.cfg.Backup.Dir == "" {
		return errorCode(errors.New("backups are disabled; set backup.dir in the config"))
	}
	names, err := orchestrator.ListBackups(filepath.Join(env.cfg.Backup.Dir, profileID))
	if err != nil {
		return errorCode(err)
	}

	if env.jsonOut {
		if names == nil {
			names = []string{}
		}
		env.printJSON(names)
		return exitOK
	}
	for _, name := range names {
		fmt.Fprintln(env.stdout, name)
	}
	return exitOK
}
