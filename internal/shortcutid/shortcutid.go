// Package shortcutid derives the identifiers Steam assigns to non-Steam
// shortcuts.
//
// Steam computes both identifiers itself from the shortcut's Exe field
// and display name, so the values here must match its derivation bit
// for bit. A CRC-32 (IEEE) checksum over exe+name has its top bit set to
// mark the entry as a shortcut; that 32-bit value is the legacy ID
// stored in the entry's appid field and used for most artwork file
// names. The 64-bit grid ID places the legacy ID in the high word and a
// fixed tag in the low word; older Big Picture builds name artwork after
// it.
package shortcutid

import (
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
)

// ErrInvalidArgument is returned when an identifier is requested for an
// empty executable or name.
var ErrInvalidArgument = errors.New("invalid argument")

const (
	shortcutBit = 0x80000000
	gridTag     = 0x02000000
)

// Identifier is the pair of IDs derived from one (exe, name) pair.
type Identifier struct {
	Legacy uint32
	Grid   uint64
}

// Compute derives both identifiers. exe must be the Exe field exactly as
// written to the shortcut, including any quotes.
func Compute(exe, name string) (Identifier, error) {
	legacy, err := LegacyID(exe, name)
	if err != nil {
		return Identifier{}, err
	}
	return Identifier{Legacy: legacy, Grid: gridFromLegacy(legacy)}, nil
}

// LegacyID returns the 32-bit shortcut ID.
func LegacyID(exe, name string) (uint32, error) {
	if exe == "" {
		return 0, fmt.Errorf("%w: empty executable", ErrInvalidArgument)
	}
	if name == "" {
		return 0, fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}
	return crc32.ChecksumIEEE([]byte(exe+name)) | shortcutBit, nil
}

// GridID returns the 64-bit artwork ID.
func GridID(exe, name string) (uint64, error) {
	legacy, err := LegacyID(exe, name)
	if err != nil {
		return 0, err
	}
	return gridFromLegacy(legacy), nil
}

func gridFromLegacy(legacy uint32) uint64 {
	return uint64(legacy)<<32 | gridTag
}

// FromAppID rebuilds an Identifier from the signed appid field of an
// existing shortcut. It returns false if the value does not carry the
// shortcut bit.
func FromAppID(appid int32) (Identifier, bool) {
	legacy := uint32(appid)
	if legacy&shortcutBit == 0 {
		return Identifier{}, false
	}
	return Identifier{Legacy: legacy, Grid: gridFromLegacy(legacy)}, true
}

// AppID returns the legacy ID as the signed int32 Steam stores on disk.
func (id Identifier) AppID() int32 {
	return int32(id.Legacy)
}

// LegacyString is the decimal legacy ID used in artwork file names.
func (id Identifier) LegacyString() string {
	return strconv.FormatUint(uint64(id.Legacy), 10)
}

// GridString is the decimal grid ID used in legacy artwork file names.
func (id Identifier) GridString() string {
	return strconv.FormatUint(id.Grid, 10)
}

// RungameURL is the steam:// URL that launches the shortcut.
func (id Identifier) RungameURL() string {
	return "steam://rungameid/" + id.GridString()
}

func (id Identifier) String() string {
	return fmt.Sprintf("%s/%s", id.LegacyString(), id.GridString())
}
