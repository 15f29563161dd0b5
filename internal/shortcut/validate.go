package shortcut

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/vdf"
)

// ErrStructurallyInvalid is returned when a decoded document does not
// have the shape of a shortcuts file. Such files are never rewritten.
var ErrStructurallyInvalid = errors.New("structurally invalid shortcuts document")

// RootKey is the single top-level key of a shortcuts document.
const RootKey = "shortcuts"

// ValidationResult lists every problem found in a document.
type ValidationResult struct {
	OK     bool
	Errors []string
}

// Err returns nil for a valid result, or ErrStructurallyInvalid wrapped
// with the collected problems.
func (r ValidationResult) Err() error {
	if r.OK {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrStructurallyInvalid, strings.Join(r.Errors, "; "))
}

// Validate checks a decoded document. Key lookup is case-insensitive
// because Steam has changed field casing across client versions. An
// empty document (a file with no content) is valid.
func Validate(root vdf.Map) ValidationResult {
	var errs []string

	if len(root) == 0 {
		return ValidationResult{OK: true}
	}
	if len(root) != 1 || !strings.EqualFold(root[0].Key, RootKey) {
		errs = append(errs, fmt.Sprintf("expected a single %q key at top level, found %v", RootKey, root.Keys()))
		return ValidationResult{Errors: errs}
	}
	list := root[0].Value
	if list.Kind() != vdf.KindMap {
		errs = append(errs, fmt.Sprintf("%q is a %s, not a map", root[0].Key, list.Kind()))
		return ValidationResult{Errors: errs}
	}

	for _, f := range list.Map() {
		if f.Value.Kind() != vdf.KindMap {
			errs = append(errs, fmt.Sprintf("entry %q is a %s, not a map", f.Key, f.Value.Kind()))
			continue
		}
		errs = append(errs, validateEntry(f.Key, f.Value.Map())...)
	}

	return ValidationResult{OK: len(errs) == 0, Errors: errs}
}

func validateEntry(key string, m vdf.Map) []string {
	var errs []string

	name, _, ok := m.Lookup(keyAppName)
	switch {
	case !ok:
		errs = append(errs, fmt.Sprintf("entry %q: missing %s", key, keyAppName))
	case name.Kind() != vdf.KindString:
		errs = append(errs, fmt.Sprintf("entry %q: %s is a %s", key, keyAppName, name.Kind()))
	case name.Str() == "":
		errs = append(errs, fmt.Sprintf("entry %q: empty %s", key, keyAppName))
	}

	for _, required := range []string{keyExe, keyLaunchOptions} {
		v, _, ok := m.Lookup(required)
		if !ok {
			errs = append(errs, fmt.Sprintf("entry %q: missing %s", key, required))
			continue
		}
		if v.Kind() != vdf.KindString {
			errs = append(errs, fmt.Sprintf("entry %q: %s is a %s", key, required, v.Kind()))
		}
	}
	return errs
}
