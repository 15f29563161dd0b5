// Package artwork places a shortcut's images where Steam's library
// looks for them: <config>/grid/, named after the shortcut's IDs.
//
// Fetching, resizing and format conversion belong to the caller; this
// package only copies prepared files into place and removes them again.
package artwork

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/appinfo"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/shortcutid"
)

// ErrStagingFailed wraps every staging error. Callers treat it as a
// warning: a shortcut without artwork still works.
var ErrStagingFailed = errors.New("artwork staging failed")

const defaultExt = ".png"

// Suffixes appended to an ID to form Steam's artwork file names.
const (
	suffixCover  = "p"
	suffixBanner = ""
	suffixHero   = "_hero"
	suffixLogo   = "_logo"
	suffixIcon   = "_icon"
)

// Stager copies images into a profile's grid directory.
type Stager struct {
	dirMode  os.FileMode
	fileMode os.FileMode
}

// New returns a Stager with the permissions Steam uses for its own
// config files.
func New() *Stager {
	return &Stager{dirMode: 0o755, fileMode: 0o644}
}

// GridDir returns the artwork directory inside a profile config dir.
func GridDir(configDir string) string {
	return filepath.Join(configDir, "grid")
}

// target is one destination file for one source image.
type target struct {
	src  string
	name string
}

func targets(id shortcutid.Identifier, images appinfo.Images) []target {
	var out []target
	legacy := id.LegacyString()
	if images.Cover != "" {
		ext := extOf(images.Cover)
		out = append(out, target{images.Cover, legacy + suffixCover + ext})
	}
	if images.Banner != "" {
		ext := extOf(images.Banner)
		out = append(out,
			target{images.Banner, legacy + suffixBanner + ext},
			target{images.Banner, legacy + suffixHero + ext},
			target{images.Banner, id.GridString() + ext},
		)
	}
	if images.Icon != "" {
		out = append(out, target{images.Icon, legacy + suffixIcon + extOf(images.Icon)})
	}
	return out
}

func extOf(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return defaultExt
	}
	return ext
}

// IconPath returns the path the staged icon will have, for the
// shortcut's icon field. It is empty when there is no icon.
func IconPath(id shortcutid.Identifier, icon, configDir string) string {
	if icon == "" {
		return ""
	}
	return filepath.Join(GridDir(configDir), id.LegacyString()+suffixIcon+extOf(icon))
}

// Stage copies every non-empty image to its Steam file names. Files
// already holding identical content are left untouched. All images are
// attempted; the returned error joins every failure.
func (s *Stager) Stage(id shortcutid.Identifier, images appinfo.Images, configDir string) error {
	list := targets(id, images)
	if len(list) == 0 {
		return nil
	}

	grid := GridDir(configDir)
	if err := os.MkdirAll(grid, s.dirMode); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrStagingFailed, grid, err)
	}

	var errs []error
	for _, t := range list {
		if err := s.copyIfChanged(t.src, filepath.Join(grid, t.name)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrStagingFailed, errors.Join(errs...))
	}
	return nil
}

// Unstage removes every artwork file named after id. A missing grid
// directory or missing files are not errors.
func (s *Stager) Unstage(id shortcutid.Identifier, configDir string) error {
	grid := GridDir(configDir)
	entries, err := os.ReadDir(grid)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: reading %s: %v", ErrStagingFailed, grid, err)
	}

	owned := make(map[string]struct{})
	for _, base := range []string{id.LegacyString(), id.GridString()} {
		for _, suffix := range []string{suffixCover, suffixBanner, suffixHero, suffixLogo, suffixIcon} {
			owned[base+suffix] = struct{}{}
		}
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if _, ok := owned[stem]; !ok {
			continue
		}
		if err := os.Remove(filepath.Join(grid, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrStagingFailed, errors.Join(errs...))
	}
	return nil
}

func (s *Stager) copyIfChanged(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}

	if existing, err := digestFile(dst); err == nil && existing == blake3.Sum256(data) {
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".staging-*")
	if err != nil {
		return fmt.Errorf("staging %s: %w", dst, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	if err := tmp.Chmod(s.fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dst, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("renaming into %s: %w", dst, err)
	}
	return nil
}

// digestFile streams path through BLAKE3.
func digestFile(path string) ([32]byte, error) {
	var digest [32]byte
	f, err := os.Open(path)
	if err != nil {
		return digest, err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return digest, err
	}
	copy(digest[:], h.Sum(nil))
	return digest, nil
}
