// Package profile discovers the local Steam user profiles under a
// userdata directory. Profiles are listed fresh on every call; nothing
// is cached because users can log in or be removed between runs.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

var (
	// ErrUserdataDirMissing means the userdata root does not exist,
	// which almost always means Steam has never run on this machine.
	ErrUserdataDirMissing = errors.New("steam userdata directory missing")

	// ErrNoValidProfiles means the root exists but holds no profiles.
	ErrNoValidProfiles = errors.New("no valid steam profiles")
)

// ShortcutsFile is the name of the per-profile shortcuts document.
const ShortcutsFile = "shortcuts.vdf"

// reserved directory names that sit next to real profiles.
var reserved = map[string]struct{}{
	"0":  {},
	"ac": {},
}

// Profile is one local Steam user.
type Profile struct {
	ID  string
	Dir string
}

// ConfigDir is where the profile's shortcuts and artwork live.
func (p Profile) ConfigDir() string {
	return filepath.Join(p.Dir, "config")
}

// ShortcutsPath is the full path of the profile's shortcuts file.
func (p Profile) ShortcutsPath() string {
	return filepath.Join(p.ConfigDir(), ShortcutsFile)
}

// GridDir is where Steam looks for custom artwork.
func (p Profile) GridDir() string {
	return filepath.Join(p.ConfigDir(), "grid")
}

// List returns the profiles under userdataRoot, sorted by ID.
func List(userdataRoot string) ([]Profile, error) {
	info, err := os.Stat(userdataRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrUserdataDirMissing, userdataRoot)
		}
		return nil, fmt.Errorf("stat %s: %w", userdataRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrUserdataDirMissing, userdataRoot)
	}

	entries, err := os.ReadDir(userdataRoot)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", userdataRoot, err)
	}

	var profiles []Profile
	for _, entry := range entries {
		if _, skip := reserved[entry.Name()]; skip {
			continue
		}
		if !isDir(userdataRoot, entry) {
			continue
		}
		profiles = append(profiles, Profile{
			ID:  entry.Name(),
			Dir: filepath.Join(userdataRoot, entry.Name()),
		})
	}

	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoValidProfiles, userdataRoot)
	}

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
	return profiles, nil
}

// isDir follows symlinks, since some setups link profile directories
// onto another drive.
func isDir(root string, entry os.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(root, entry.Name()))
	return err == nil && info.IsDir()
}
