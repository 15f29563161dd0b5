// Package appinfo describes an application the launcher wants to show
// in Steam and turns it into the command Steam should run.
package appinfo

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidApp is returned by Validate.
var ErrInvalidApp = errors.New("invalid app info")

// Runner identifies who installs and launches an app.
type Runner string

const (
	RunnerSideload  Runner = "sideload"
	RunnerLegendary Runner = "legendary"
	RunnerGOG       Runner = "gog"
	RunnerNile      Runner = "nile"
)

// Images are the local artwork files for an app. Any may be empty.
type Images struct {
	Cover  string `json:"cover,omitempty" yaml:"cover,omitempty"`
	Banner string `json:"banner,omitempty" yaml:"banner,omitempty"`
	Icon   string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// App is the caller's description of one application. Title is the
// display name shown in Steam and is what shortcuts are keyed by;
// AppName is the runner's own identifier for the app.
type App struct {
	Title      string   `json:"title" yaml:"title"`
	AppName    string   `json:"app_name,omitempty" yaml:"app_name,omitempty"`
	Runner     Runner   `json:"runner,omitempty" yaml:"runner,omitempty"`
	Platform   string   `json:"platform,omitempty" yaml:"platform,omitempty"`
	Executable string   `json:"executable,omitempty" yaml:"executable,omitempty"`
	Arguments  string   `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	WorkingDir string   `json:"working_dir,omitempty" yaml:"working_dir,omitempty"`
	Hidden     bool     `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Tags       []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Images     Images   `json:"images,omitempty" yaml:"images,omitempty"`
}

// Validate checks that the app can be turned into a shortcut.
func (a App) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidApp)
	}
	if err := noNUL(map[string]string{
		"title":         a.Title,
		"app_name":      a.AppName,
		"runner":        string(a.Runner),
		"executable":    a.Executable,
		"arguments":     a.Arguments,
		"working_dir":   a.WorkingDir,
		"images.cover":  a.Images.Cover,
		"images.banner": a.Images.Banner,
		"images.icon":   a.Images.Icon,
	}); err != nil {
		return err
	}
	for i, tag := range a.Tags {
		if strings.ContainsRune(tag, 0) {
			return fmt.Errorf("%w: tags[%d] contains a NUL byte", ErrInvalidApp, i)
		}
	}
	if a.direct() {
		return nil
	}
	if a.AppName == "" {
		return fmt.Errorf("%w: app_name is required for runner %q", ErrInvalidApp, a.Runner)
	}
	return nil
}

// noNUL rejects values holding a NUL byte, which terminates strings in
// the shortcuts file.
func noNUL(fields map[string]string) error {
	for field, v := range fields {
		if strings.ContainsRune(v, 0) {
			return fmt.Errorf("%w: %s contains a NUL byte", ErrInvalidApp, field)
		}
	}
	return nil
}

// validate checks the launcher fields that end up in a shortcut.
func (l Launcher) validate() error {
	if err := noNUL(map[string]string{
		"launcher executable": l.Executable,
		"launcher protocol":   l.Protocol,
		"launcher flatpak_id": l.FlatpakID,
	}); err != nil {
		return err
	}
	for i, arg := range l.ExtraArgs {
		if strings.ContainsRune(arg, 0) {
			return fmt.Errorf("%w: launcher extra_args[%d] contains a NUL byte", ErrInvalidApp, i)
		}
	}
	return nil
}

// direct reports whether Steam should run the app's own executable
// rather than going through the launcher.
func (a App) direct() bool {
	return (a.Runner == "" || a.Runner == RunnerSideload) && a.Executable != ""
}

// Launcher describes how to start the launcher that owns the apps.
type Launcher struct {
	// Executable is the launcher binary (or AppImage).
	Executable string

	// Protocol is the URL scheme the launcher registers, e.g. "heroic".
	Protocol string

	// FlatpakID is set when the launcher is installed as a Flatpak.
	FlatpakID string

	// ExtraArgs are passed before the launch URL.
	ExtraArgs []string
}

// LaunchSpec is what goes into the shortcut's Exe, StartDir and
// LaunchOptions fields.
type LaunchSpec struct {
	Exe           string
	StartDir      string
	LaunchOptions string
	FlatpakAppID  string
}

// Launch formats the command for app. Sideloaded apps with an
// executable are started directly; everything else goes through the
// launcher's URL handler so it can set up the runner first.
func Launch(app App, launcher Launcher) (LaunchSpec, error) {
	if err := app.Validate(); err != nil {
		return LaunchSpec{}, err
	}

	if app.direct() {
		dir := app.WorkingDir
		if dir == "" {
			dir = filepath.Dir(app.Executable)
		}
		return LaunchSpec{
			Exe:           Quote(app.Executable),
			StartDir:      Quote(dir),
			LaunchOptions: app.Arguments,
		}, nil
	}

	if err := launcher.validate(); err != nil {
		return LaunchSpec{}, err
	}
	if launcher.Executable == "" && launcher.FlatpakID == "" {
		return LaunchSpec{}, fmt.Errorf("%w: no launcher executable configured for runner %q", ErrInvalidApp, app.Runner)
	}

	protocol := launcher.Protocol
	if protocol == "" {
		protocol = "heroic"
	}
	runner := app.Runner
	if runner == "" {
		runner = RunnerSideload
	}
	url := fmt.Sprintf("%s://launch/%s/%s", protocol, runner, app.AppName)

	args := append([]string{"--no-gui", "--no-sandbox"}, launcher.ExtraArgs...)
	args = append(args, Quote(url))

	if launcher.FlatpakID != "" {
		return LaunchSpec{
			Exe:           Quote("flatpak"),
			StartDir:      Quote("."),
			LaunchOptions: "run " + launcher.FlatpakID + " " + strings.Join(args, " "),
			FlatpakAppID:  launcher.FlatpakID,
		}, nil
	}

	return LaunchSpec{
		Exe:           Quote(launcher.Executable),
		StartDir:      Quote(filepath.Dir(launcher.Executable)),
		LaunchOptions: strings.Join(args, " "),
	}, nil
}

// Quote wraps s in double quotes the way Steam stores paths, leaving
// already-quoted values alone.
func Quote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s
	}
	return `"` + s + `"`
}
