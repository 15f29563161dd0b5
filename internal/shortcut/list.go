// Package shortcut models the contents of a Steam shortcuts.vdf file:
// a typed Entry per shortcut, the ordered List of entries, and the
// structural validation that gates every rewrite.
package shortcut

import (
	"strconv"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/vdf"
)

// List is the ordered collection of entries in one shortcuts file.
// On disk the entries are keyed "0", "1", ...; decoding accepts sparse
// or out-of-order keys and keeps the order of appearance, and encoding
// always re-indexes from zero.
type List struct {
	Entries []Entry

	// rootKey keeps the spelling of the top-level key found on disk.
	rootKey string
}

// Decode parses and validates a shortcuts file. Decoding errors wrap
// vdf.ErrMalformed; validation errors wrap ErrStructurallyInvalid.
func Decode(data []byte) (*List, error) {
	root, err := vdf.Decode(data)
	if err != nil {
		return nil, err
	}
	return Parse(root)
}

// Parse validates root and converts it to a List.
func Parse(root vdf.Map) (*List, error) {
	if err := Validate(root).Err(); err != nil {
		return nil, err
	}

	l := &List{rootKey: RootKey}
	if len(root) == 0 {
		return l, nil
	}
	l.rootKey = root[0].Key
	for _, f := range root[0].Value.Map() {
		l.Entries = append(l.Entries, entryFromMap(f.Value.Map()))
	}
	return l, nil
}

// Map converts the list back to a document, re-indexing entries.
func (l *List) Map() vdf.Map {
	key := l.rootKey
	if key == "" {
		key = RootKey
	}
	entries := make(vdf.Map, 0, len(l.Entries))
	for i, e := range l.Entries {
		entries = append(entries, vdf.Field{Key: strconv.Itoa(i), Value: vdf.Object(e.Map())})
	}
	return vdf.Map{{Key: key, Value: vdf.Object(entries)}}
}

// Encode serializes the list. It fails, wrapping vdf.ErrUnencodable,
// when a field holds a NUL byte.
func (l *List) Encode() ([]byte, error) {
	m := l.Map()
	if err := vdf.Check(m); err != nil {
		return nil, err
	}
	return vdf.Encode(m), nil
}

// Find returns the index of the entry whose display name is exactly
// name. Matching is case-sensitive, as in Steam's library view.
func (l *List) Find(name string) (int, bool) {
	for i, e := range l.Entries {
		if e.AppName == name {
			return i, true
		}
	}
	return -1, false
}

// Add appends e unless an entry with the same display name exists. It
// reports whether the list changed.
func (l *List) Add(e Entry) bool {
	if _, ok := l.Find(e.AppName); ok {
		return false
	}
	l.Entries = append(l.Entries, e)
	return true
}

// Remove deletes the entry named name and returns it. Later entries
// move down so indices stay contiguous.
func (l *List) Remove(name string) (Entry, bool) {
	i, ok := l.Find(name)
	if !ok {
		return Entry{}, false
	}
	removed := l.Entries[i]
	l.Entries = append(l.Entries[:i], l.Entries[i+1:]...)
	return removed, true
}

// Names returns the display names in order.
func (l *List) Names() []string {
	names := make([]string, len(l.Entries))
	for i, e := range l.Entries {
		names[i] = e.AppName
	}
	return names
}
