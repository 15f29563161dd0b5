package shortcut

import (
	"strconv"
	"strings"
	"time"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/shortcutid"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/vdf"
)

// Field names as Steam spells them when it writes a new shortcut.
const (
	keyAppID               = "appid"
	keyAppName             = "AppName"
	keyExe                 = "Exe"
	keyStartDir            = "StartDir"
	keyIcon                = "icon"
	keyShortcutPath        = "ShortcutPath"
	keyLaunchOptions       = "LaunchOptions"
	keyIsHidden            = "IsHidden"
	keyAllowDesktopConfig  = "AllowDesktopConfig"
	keyAllowOverlay        = "AllowOverlay"
	keyOpenVR              = "OpenVR"
	keyDevkit              = "Devkit"
	keyDevkitGameID        = "DevkitGameID"
	keyDevkitOverrideAppID = "DevkitOverrideAppID"
	keyLastPlayTime        = "LastPlayTime"
	keyFlatpakAppID        = "FlatpakAppID"
	keyTags                = "tags"
)

// canonicalOrder is the order Steam writes fields in.
var canonicalOrder = []string{
	keyAppID, keyAppName, keyExe, keyStartDir, keyIcon, keyShortcutPath,
	keyLaunchOptions, keyIsHidden, keyAllowDesktopConfig, keyAllowOverlay,
	keyOpenVR, keyDevkit, keyDevkitGameID, keyDevkitOverrideAppID,
	keyLastPlayTime, keyFlatpakAppID, keyTags,
}

type fieldSpec struct {
	name string
	kind vdf.Kind
}

// knownFields maps the lowercased field name to its canonical spelling
// and on-disk kind.
var knownFields = func() map[string]fieldSpec {
	specs := []fieldSpec{
		{keyAppID, vdf.KindInt32},
		{keyAppName, vdf.KindString},
		{keyExe, vdf.KindString},
		{keyStartDir, vdf.KindString},
		{keyIcon, vdf.KindString},
		{keyShortcutPath, vdf.KindString},
		{keyLaunchOptions, vdf.KindString},
		{keyIsHidden, vdf.KindInt32},
		{keyAllowDesktopConfig, vdf.KindInt32},
		{keyAllowOverlay, vdf.KindInt32},
		{keyOpenVR, vdf.KindInt32},
		{keyDevkit, vdf.KindInt32},
		{keyDevkitGameID, vdf.KindString},
		{keyDevkitOverrideAppID, vdf.KindInt32},
		{keyLastPlayTime, vdf.KindInt32},
		{keyFlatpakAppID, vdf.KindString},
		{keyTags, vdf.KindMap},
	}
	out := make(map[string]fieldSpec, len(specs))
	for _, spec := range specs {
		out[strings.ToLower(spec.name)] = spec
	}
	return out
}()

// Entry is one non-Steam shortcut.
//
// Fields Steam defines are typed. Anything else found on disk, including
// a known field stored with an unexpected kind, is kept in Extra and
// written back untouched.
type Entry struct {
	AppID               int32
	AppName             string
	Exe                 string
	StartDir            string
	Icon                string
	ShortcutPath        string
	LaunchOptions       string
	IsHidden            bool
	AllowDesktopConfig  bool
	AllowOverlay        bool
	OpenVR              bool
	Devkit              bool
	DevkitGameID        string
	DevkitOverrideAppID int32
	LastPlayTime        int32
	FlatpakAppID        string
	Tags                []string

	Extra vdf.Map

	// order holds the keys as they appeared on disk; typed maps a
	// canonical name to the on-disk spelling of a field decoded into a
	// typed slot. Both are nil for entries built in memory.
	order []string
	typed map[string]string

	// tagKeys are the keys of the tags map on disk, which Steam does not
	// always number densely. They are reused while Tags keeps its length.
	tagKeys []string
}

// New builds an entry with the defaults Steam uses for a fresh
// shortcut and an appid derived from exe and name.
func New(name, exe, startDir, launchOptions string) (Entry, error) {
	id, err := shortcutid.Compute(exe, name)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		AppID:              id.AppID(),
		AppName:            name,
		Exe:                exe,
		StartDir:           startDir,
		LaunchOptions:      launchOptions,
		AllowDesktopConfig: true,
		AllowOverlay:       true,
	}, nil
}

// Identifier derives the entry's identifiers from its Exe and AppName.
func (e Entry) Identifier() (shortcutid.Identifier, error) {
	return shortcutid.Compute(e.Exe, e.AppName)
}

// LastPlayed returns LastPlayTime as a time, or the zero time if the
// shortcut was never launched.
func (e Entry) LastPlayed() time.Time {
	if e.LastPlayTime == 0 {
		return time.Time{}
	}
	return time.Unix(int64(e.LastPlayTime), 0).UTC()
}

// entryFromMap decodes one entry. The caller has already validated the
// required fields.
func entryFromMap(m vdf.Map) Entry {
	e := Entry{typed: make(map[string]string)}
	for _, f := range m {
		e.order = append(e.order, f.Key)
		known, ok := knownFields[strings.ToLower(f.Key)]
		if !ok || known.kind != f.Value.Kind() || e.typed[known.name] != "" {
			e.Extra = append(e.Extra, f)
			continue
		}
		if known.name == keyTags {
			tags, keys, ok := tagsFromMap(f.Value.Map())
			if !ok {
				e.Extra = append(e.Extra, f)
				continue
			}
			e.Tags = tags
			e.tagKeys = keys
		} else {
			e.setScalar(known.name, f.Value)
		}
		e.typed[known.name] = f.Key
	}
	return e
}

func tagsFromMap(m vdf.Map) (tags, keys []string, ok bool) {
	tags = make([]string, 0, len(m))
	keys = make([]string, 0, len(m))
	for _, f := range m {
		if f.Value.Kind() != vdf.KindString {
			return nil, nil, false
		}
		tags = append(tags, f.Value.Str())
		keys = append(keys, f.Key)
	}
	return tags, keys, true
}

func (e *Entry) setScalar(name string, v vdf.Value) {
	switch name {
	case keyAppID:
		e.AppID = v.Int32()
	case keyAppName:
		e.AppName = v.Str()
	case keyExe:
		e.Exe = v.Str()
	case keyStartDir:
		e.StartDir = v.Str()
	case keyIcon:
		e.Icon = v.Str()
	case keyShortcutPath:
		e.ShortcutPath = v.Str()
	case keyLaunchOptions:
		e.LaunchOptions = v.Str()
	case keyIsHidden:
		e.IsHidden = v.Int32() != 0
	case keyAllowDesktopConfig:
		e.AllowDesktopConfig = v.Int32() != 0
	case keyAllowOverlay:
		e.AllowOverlay = v.Int32() != 0
	case keyOpenVR:
		e.OpenVR = v.Int32() != 0
	case keyDevkit:
		e.Devkit = v.Int32() != 0
	case keyDevkitGameID:
		e.DevkitGameID = v.Str()
	case keyDevkitOverrideAppID:
		e.DevkitOverrideAppID = v.Int32()
	case keyLastPlayTime:
		e.LastPlayTime = v.Int32()
	case keyFlatpakAppID:
		e.FlatpakAppID = v.Str()
	}
}

func (e Entry) value(name string) vdf.Value {
	switch name {
	case keyAppID:
		return vdf.Int32(e.AppID)
	case keyAppName:
		return vdf.String(e.AppName)
	case keyExe:
		return vdf.String(e.Exe)
	case keyStartDir:
		return vdf.String(e.StartDir)
	case keyIcon:
		return vdf.String(e.Icon)
	case keyShortcutPath:
		return vdf.String(e.ShortcutPath)
	case keyLaunchOptions:
		return vdf.String(e.LaunchOptions)
	case keyIsHidden:
		return vdf.Bool(e.IsHidden)
	case keyAllowDesktopConfig:
		return vdf.Bool(e.AllowDesktopConfig)
	case keyAllowOverlay:
		return vdf.Bool(e.AllowOverlay)
	case keyOpenVR:
		return vdf.Bool(e.OpenVR)
	case keyDevkit:
		return vdf.Bool(e.Devkit)
	case keyDevkitGameID:
		return vdf.String(e.DevkitGameID)
	case keyDevkitOverrideAppID:
		return vdf.Int32(e.DevkitOverrideAppID)
	case keyLastPlayTime:
		return vdf.Int32(e.LastPlayTime)
	case keyFlatpakAppID:
		return vdf.String(e.FlatpakAppID)
	case keyTags:
		tags := make(vdf.Map, 0, len(e.Tags))
		for i, tag := range e.Tags {
			key := strconv.Itoa(i)
			if len(e.tagKeys) == len(e.Tags) {
				key = e.tagKeys[i]
			}
			tags = append(tags, vdf.Field{Key: key, Value: vdf.String(tag)})
		}
		return vdf.Object(tags)
	}
	return vdf.Value{}
}

// isZero reports whether a typed field holds its zero value, so fields
// absent on disk are not invented when the entry is written back.
func (e Entry) isZero(name string) bool {
	v := e.value(name)
	switch v.Kind() {
	case vdf.KindString:
		return v.Str() == ""
	case vdf.KindInt32:
		return v.Int32() == 0
	case vdf.KindMap:
		return len(v.Map()) == 0
	}
	return false
}

// Map encodes the entry. Entries read from disk keep their original key
// order and spelling; entries built in memory use Steam's layout.
func (e Entry) Map() vdf.Map {
	if e.order == nil {
		m := make(vdf.Map, 0, len(canonicalOrder)+len(e.Extra))
		for _, name := range canonicalOrder {
			m = append(m, vdf.Field{Key: name, Value: e.value(name)})
		}
		return append(m, e.Extra...)
	}

	m := make(vdf.Map, 0, len(e.order))
	emitted := make(map[string]bool)
	extras := e.Extra
	for _, key := range e.order {
		if known, ok := knownFields[strings.ToLower(key)]; ok && e.typed[known.name] == key && !emitted[known.name] {
			m = append(m, vdf.Field{Key: key, Value: e.value(known.name)})
			emitted[known.name] = true
			continue
		}
		for i, f := range extras {
			if f.Key == key {
				m = append(m, f)
				extras = append(extras[:i:i], extras[i+1:]...)
				break
			}
		}
	}
	m = append(m, extras...)
	for _, name := range canonicalOrder {
		if !emitted[name] && e.typed[name] == "" && !e.isZero(name) {
			m = append(m, vdf.Field{Key: name, Value: e.value(name)})
		}
	}
	return m
}
