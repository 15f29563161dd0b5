// Package orchestrator adds, removes and checks a shortcut in every
// Steam profile under a userdata root, and reduces the per-profile
// outcomes to one result.
//
// Profiles are handled one after another. A file that cannot be read,
// decoded or validated is reported and left exactly as found; it never
// stops the other profiles from being updated. Steam may overwrite the
// files while it is running, so callers should suggest a restart after
// any change.
package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/appinfo"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/artwork"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/events"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/profile"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/shortcut"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/shortcutid"
)

// ErrWriteFailed wraps errors writing a profile's shortcuts file.
var ErrWriteFailed = errors.New("write failed")

const (
	detailAlreadyPresent = "already present"
	detailNotPresent     = "not present"
	detailNoFile         = "no shortcuts file"
)

// ArtworkStager places and removes artwork for a shortcut. It allows
// tests to substitute a fake.
type ArtworkStager interface {
	Stage(id shortcutid.Identifier, images appinfo.Images, configDir string) error
	Unstage(id shortcutid.Identifier, configDir string) error
}

// Notifier is told about every completed call.
type Notifier interface {
	Notify(result AggregateResult) error
}

// Engine runs shortcut operations against a userdata root. The root is
// passed on every call and profiles are discovered fresh each time.
type Engine struct {
	launcher appinfo.Launcher
	stager   ArtworkStager
	notifier Notifier
	backups  *backups
	now      func() time.Time
}

// NewEngine creates an engine that formats launch commands for
// launcher-managed apps with launcher.
func NewEngine(launcher appinfo.Launcher) *Engine {
	return &Engine{
		launcher: launcher,
		stager:   artwork.New(),
		now:      time.Now,
	}
}

// SetStager replaces the artwork stager. nil disables artwork.
func (e *Engine) SetStager(s ArtworkStager) {
	e.stager = s
}

// SetNotifier sets the notifier told about every call. nil disables it.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// SetBackups enables compressed backups of every file before it is
// overwritten, keeping the newest keep copies per profile under dir.
// An empty dir disables backups.
func (e *Engine) SetBackups(dir string, keep int) {
	if dir == "" {
		e.backups = nil
		return
	}
	e.backups = &backups{dir: dir, keep: keep, now: e.clock}
}

func (e *Engine) clock() time.Time {
	return e.now()
}

// Add registers app in every profile. Profiles that already have an
// entry with the same title are left alone.
//
// An error is returned only when no profile could be examined: app is
// invalid, the userdata root is missing, or it holds no profiles.
func (e *Engine) Add(userdataRoot string, app appinfo.App) (AggregateResult, error) {
	launch, err := appinfo.Launch(app, e.launcher)
	if err != nil {
		events.Warn("shortcut.invalid_input", err.Error(), map[string]interface{}{"title": app.Title})
		return AggregateResult{}, err
	}
	id, err := shortcutid.Compute(launch.Exe, app.Title)
	if err != nil {
		events.Warn("shortcut.invalid_input", err.Error(), map[string]interface{}{"title": app.Title})
		return AggregateResult{}, err
	}

	profiles, err := e.profiles(userdataRoot)
	if err != nil {
		return AggregateResult{}, err
	}

	outcomes := make([]Outcome, 0, len(profiles))
	for _, p := range profiles {
		outcomes = append(outcomes, e.addTo(p, app, launch, id))
	}
	return e.finish(OperationAdd, app.Title, outcomes), nil
}

func (e *Engine) addTo(p profile.Profile, app appinfo.App, launch appinfo.LaunchSpec, id shortcutid.Identifier) Outcome {
	list, existing, out := e.load(p, true)
	if list == nil {
		return out
	}

	if _, ok := list.Find(app.Title); ok {
		return e.record(p, StatusSuccess, detailAlreadyPresent, "shortcut.present")
	}

	entry, err := shortcut.New(app.Title, launch.Exe, launch.StartDir, launch.LaunchOptions)
	if err != nil {
		return e.record(p, StatusWriteFailed, err.Error(), "shortcut.write_failed")
	}
	entry.IsHidden = app.Hidden
	entry.FlatpakAppID = launch.FlatpakAppID
	entry.Tags = app.Tags
	entry.Icon = artwork.IconPath(id, app.Images.Icon, p.ConfigDir())
	list.Add(entry)

	if err := e.encodeAndWrite(p, existing, list); err != nil {
		return e.record(p, StatusWriteFailed, err.Error(), "shortcut.write_failed")
	}

	out = e.record(p, StatusSuccess, "added", "shortcut.added")
	if e.stager != nil {
		if err := e.stager.Stage(id, app.Images, p.ConfigDir()); err != nil {
			out.ArtworkErr = err.Error()
			events.Warn("artwork.failed", err.Error(), map[string]interface{}{"profile_id": p.ID, "app_id": id.LegacyString()})
		} else {
			events.Info("artwork.staged", map[string]interface{}{"profile_id": p.ID, "app_id": id.LegacyString()})
		}
	}
	return out
}

// Remove deletes the entry titled app.Title from every profile and
// removes its artwork. Profiles without the entry are Skipped.
func (e *Engine) Remove(userdataRoot string, app appinfo.App) (AggregateResult, error) {
	if app.Title == "" {
		err := fmt.Errorf("%w: title is required", appinfo.ErrInvalidApp)
		events.Warn("shortcut.invalid_input", err.Error(), nil)
		return AggregateResult{}, err
	}

	profiles, err := e.profiles(userdataRoot)
	if err != nil {
		return AggregateResult{}, err
	}

	outcomes := make([]Outcome, 0, len(profiles))
	for _, p := range profiles {
		outcomes = append(outcomes, e.removeFrom(p, app.Title))
	}
	return e.finish(OperationRemove, app.Title, outcomes), nil
}

func (e *Engine) removeFrom(p profile.Profile, title string) Outcome {
	list, existing, out := e.load(p, false)
	if list == nil {
		return out
	}

	removed, ok := list.Remove(title)
	if !ok {
		return e.record(p, StatusSkipped, detailNotPresent, "shortcut.skipped")
	}

	if err := e.encodeAndWrite(p, existing, list); err != nil {
		return e.record(p, StatusWriteFailed, err.Error(), "shortcut.write_failed")
	}

	out = e.record(p, StatusSuccess, "removed", "shortcut.removed")
	if e.stager != nil {
		id, err := removed.Identifier()
		if err != nil {
			// Entries with an empty Exe still carry Steam's appid.
			var ok bool
			if id, ok = shortcutid.FromAppID(removed.AppID); !ok {
				return out
			}
		}
		if err := e.stager.Unstage(id, p.ConfigDir()); err != nil {
			out.ArtworkErr = err.Error()
			events.Warn("artwork.failed", err.Error(), map[string]interface{}{"profile_id": p.ID, "app_id": id.LegacyString()})
		} else {
			events.Info("artwork.unstaged", map[string]interface{}{"profile_id": p.ID, "app_id": id.LegacyString()})
		}
	}
	return out
}

// Check reports, per profile, whether an entry titled title exists.
// It never writes.
func (e *Engine) Check(userdataRoot, title string) (AggregateResult, error) {
	profiles, err := e.profiles(userdataRoot)
	if err != nil {
		return AggregateResult{}, err
	}

	outcomes := make([]Outcome, 0, len(profiles))
	for _, p := range profiles {
		list, _, out := e.load(p, false)
		if list != nil {
			if _, ok := list.Find(title); ok {
				out = e.record(p, StatusSuccess, "present", "shortcut.present")
				out.Present = true
			} else {
				out = e.record(p, StatusSkipped, detailNotPresent, "shortcut.skipped")
			}
		}
		outcomes = append(outcomes, out)
	}
	return e.finish(OperationCheck, title, outcomes), nil
}

// IsPresent reports whether any profile has an entry titled title.
func (e *Engine) IsPresent(userdataRoot, title string) (bool, error) {
	r, err := e.Check(userdataRoot, title)
	if err != nil {
		return false, err
	}
	return r.Present, nil
}

// ProfileListing is the content of one profile's shortcuts file.
type ProfileListing struct {
	ProfileID string           `json:"profile_id"`
	Status    Status           `json:"status"`
	Detail    string           `json:"detail,omitempty"`
	Entries   []shortcut.Entry `json:"-"`
}

// List reads every profile's shortcuts without changing anything.
// Unreadable files are reported in the listing's Status.
func (e *Engine) List(userdataRoot string) ([]ProfileListing, error) {
	profiles, err := e.profiles(userdataRoot)
	if err != nil {
		return nil, err
	}

	out := make([]ProfileListing, 0, len(profiles))
	for _, p := range profiles {
		data, err := os.ReadFile(p.ShortcutsPath())
		if err != nil {
			status, detail := StatusStructurallyInvalid, "read: "+err.Error()
			if errors.Is(err, os.ErrNotExist) {
				status, detail = StatusSkipped, detailNoFile
			}
			out = append(out, ProfileListing{ProfileID: p.ID, Status: status, Detail: detail})
			continue
		}
		list, err := shortcut.Decode(data)
		if err != nil {
			out = append(out, ProfileListing{ProfileID: p.ID, Status: StatusStructurallyInvalid, Detail: err.Error()})
			continue
		}
		out = append(out, ProfileListing{ProfileID: p.ID, Status: StatusSuccess, Entries: list.Entries})
	}
	return out, nil
}

func (e *Engine) profiles(userdataRoot string) ([]profile.Profile, error) {
	profiles, err := profile.List(userdataRoot)
	switch {
	case errors.Is(err, profile.ErrUserdataDirMissing):
		events.Error("profile.missing_root", err.Error(), map[string]interface{}{"root": userdataRoot})
		return nil, err
	case errors.Is(err, profile.ErrNoValidProfiles):
		events.Error("profile.none_found", err.Error(), map[string]interface{}{"root": userdataRoot})
		return nil, err
	case err != nil:
		return nil, err
	}

	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	events.Info("profile.scanned", map[string]interface{}{"root": userdataRoot, "profiles": ids})
	return profiles, nil
}

// load reads and validates a profile's file. A nil list means the
// returned Outcome is final for this profile. existing is the file's
// current content, or nil when there is none.
func (e *Engine) load(p profile.Profile, createMissing bool) (list *shortcut.List, existing []byte, out Outcome) {
	data, err := os.ReadFile(p.ShortcutsPath())
	if errors.Is(err, os.ErrNotExist) {
		if createMissing {
			list, _ := shortcut.Parse(nil)
			return list, nil, Outcome{}
		}
		return nil, nil, e.record(p, StatusSkipped, detailNoFile, "shortcut.skipped")
	}
	if err != nil {
		return nil, nil, e.record(p, StatusStructurallyInvalid, "read: "+err.Error(), "shortcut.invalid")
	}

	list, err = shortcut.Decode(data)
	if err != nil {
		return nil, nil, e.record(p, StatusStructurallyInvalid, err.Error(), "shortcut.invalid")
	}
	return list, data, Outcome{}
}

// encodeAndWrite serializes list and writes it. A list that cannot be
// encoded faithfully is never written.
func (e *Engine) encodeAndWrite(p profile.Profile, existing []byte, list *shortcut.List) error {
	data, err := list.Encode()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return e.write(p, existing, data)
}

func (e *Engine) write(p profile.Profile, existing, data []byte) error {
	if existing != nil && e.backups != nil {
		path, err := e.backups.save(p.ID, existing)
		if err != nil {
			events.Error("backup.failed", err.Error(), map[string]interface{}{"profile_id": p.ID})
			return fmt.Errorf("%w: backup: %v", ErrWriteFailed, err)
		}
		events.Info("backup.written", map[string]interface{}{"profile_id": p.ID, "path": path})
	}

	if err := os.MkdirAll(p.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := writeFileAtomic(p.ShortcutsPath(), data); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

func (e *Engine) record(p profile.Profile, status Status, detail, event string) Outcome {
	fields := map[string]interface{}{
		"profile_id": p.ID,
		"status":     string(status),
	}
	if status.Failed() {
		events.Error(event, detail, fields)
	} else {
		events.Emit("info", event, detail, fields)
	}
	return Outcome{ProfileID: p.ID, Status: status, Detail: detail}
}

func (e *Engine) finish(op Operation, title string, outcomes []Outcome) AggregateResult {
	r := aggregate(op, title, outcomes)

	fields := map[string]interface{}{
		"operation": string(op),
		"title":     title,
		"status":    string(r.Status),
		"profiles":  len(outcomes),
	}
	if op == OperationCheck {
		fields["present"] = r.Present
	}
	if len(r.Problems) > 0 {
		fields["problems"] = r.Problems
	}
	events.Info("sync.completed", fields)

	if e.notifier != nil {
		if err := e.notifier.Notify(r); err != nil {
			events.Error("system.error", "notify failed", map[string]interface{}{"error": err.Error()})
		} else {
			events.Info("sync.notified", map[string]interface{}{"operation": string(op), "title": title})
		}
	}
	return r
}
