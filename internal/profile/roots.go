package profile

import (
	"os"
	"path/filepath"
)

// DefaultUserdataRoots lists where Steam keeps userdata on Linux, in
// the order they are tried: the native install, the ~/.steam symlink,
// and the Flatpak sandbox.
func DefaultUserdataRoots(home string) []string {
	return []string{
		filepath.Join(home, ".local", "share", "Steam", "userdata"),
		filepath.Join(home, ".steam", "steam", "userdata"),
		filepath.Join(home, ".var", "app", "com.valvesoftware.Steam", ".local", "share", "Steam", "userdata"),
		filepath.Join(home, ".var", "app", "com.valvesoftware.Steam", ".steam", "steam", "userdata"),
	}
}

// FindUserdataRoot returns the first default root that exists. The
// second return value is false if none do.
func FindUserdataRoot(home string) (string, bool) {
	for _, root := range DefaultUserdataRoots(home) {
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			return root, true
		}
	}
	return "", false
}
