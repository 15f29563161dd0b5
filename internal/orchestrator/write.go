package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/events"
)

// writeFileAtomic replaces path with data through a temporary file in
// the same directory, so a failed write leaves the old file intact.
// An existing file's permissions are kept.
func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

const (
	backupPrefix     = "shortcuts-"
	backupSuffix     = ".vdf.zst"
	backupTimeLayout = "20060102T150405.000000000Z"
)

// backups stores zstd-compressed copies of shortcuts files before they
// are overwritten, under <dir>/<profileID>/.
type backups struct {
	dir  string
	keep int
	now  func() time.Time
}

// save writes data as a new backup for profileID and prunes old ones.
// It returns the backup's path.
func (b *backups) save(profileID string, data []byte) (string, error) {
	dir := filepath.Join(b.dir, profileID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return "", err
	}
	compressed := enc.EncodeAll(data, nil)
	enc.Close()

	name := backupPrefix + b.now().UTC().Format(backupTimeLayout) + backupSuffix
	path := filepath.Join(dir, name)
	if err := writeFileAtomic(path, compressed); err != nil {
		return "", err
	}

	// The new copy exists, so a failed prune does not block the write.
	if err := b.prune(dir); err != nil {
		events.Warn("backup.failed", fmt.Sprintf("pruning %s: %v", dir, err), map[string]interface{}{"profile_id": profileID})
	}
	return path, nil
}

// prune removes all but the newest keep backups. keep <= 0 keeps all.
func (b *backups) prune(dir string) error {
	if b.keep <= 0 {
		return nil
	}
	names, err := ListBackups(dir)
	if err != nil {
		return err
	}
	if len(names) <= b.keep {
		return nil
	}
	var errs []error
	for _, name := range names[:len(names)-b.keep] {
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ListBackups returns the backup files in one profile's backup
// directory, oldest first.
func ListBackups(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), backupPrefix) || !strings.HasSuffix(e.Name(), backupSuffix) {
			continue
		}
		names = append(names, filepath.Join(dir, e.Name()))
	}
	sort.Strings(names)
	return names, nil
}

// ReadBackup returns the decompressed content of a backup file.
func ReadBackup(path string) ([]byte, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(compressed, nil)
}
