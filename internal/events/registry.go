package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// profile discovery
	"profile.scanned":      {},
	"profile.missing_root": {},
	"profile.none_found":   {},

	// per-profile shortcut outcomes
	"shortcut.added":         {},
	"shortcut.removed":       {},
	"shortcut.present":       {},
	"shortcut.skipped":       {},
	"shortcut.invalid":       {},
	"shortcut.write_failed":  {},
	"shortcut.invalid_input": {},

	// artwork
	"artwork.staged":   {},
	"artwork.unstaged": {},
	"artwork.failed":   {},

	// backups
	"backup.written": {},
	"backup.failed":  {},

	// whole-call results
	"sync.completed": {},
	"sync.notified":  {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
