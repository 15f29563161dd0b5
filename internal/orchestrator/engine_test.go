package orchestrator

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/appinfo"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/profile"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/shortcut"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/shortcutid"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/vdf"
)

var myApp = appinfo.App{Title: "MyApp", Executable: "/usr/bin/myapp"}

// fakeStager records calls instead of touching the grid directory.
type fakeStager struct {
	staged   []shortcutid.Identifier
	unstaged []shortcutid.Identifier
	err      error
}

func (f *fakeStager) Stage(id shortcutid.Identifier, images appinfo.Images, configDir string) error {
	f.staged = append(f.staged, id)
	return f.err
}

func (f *fakeStager) Unstage(id shortcutid.Identifier, configDir string) error {
	f.unstaged = append(f.unstaged, id)
	return f.err
}

type fakeNotifier struct {
	results []AggregateResult
}

func (f *fakeNotifier) Notify(r AggregateResult) error {
	f.results = append(f.results, r)
	return nil
}

func newTestEngine() (*Engine, *fakeStager) {
	e := NewEngine(appinfo.Launcher{})
	stager := &fakeStager{}
	e.SetStager(stager)
	return e, stager
}

// makeRoot creates a userdata root with the given profile directories.
func makeRoot(t *testing.T, ids ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, id := range ids {
		if err := os.MkdirAll(filepath.Join(root, id), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	return root
}

func shortcutsPath(root, id string) string {
	return profile.Profile{ID: id, Dir: filepath.Join(root, id)}.ShortcutsPath()
}

func writeShortcuts(t *testing.T, root, id string, data []byte) {
	t.Helper()
	path := shortcutsPath(root, id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func writeEntries(t *testing.T, root, id string, names ...string) {
	t.Helper()
	list := &shortcut.List{}
	for _, name := range names {
		e, err := shortcut.New(name, `"/opt/`+name+`"`, `"/opt"`, "")
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		list.Add(e)
	}
	data, err := list.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	writeShortcuts(t, root, id, data)
}

func readList(t *testing.T, root, id string) *shortcut.List {
	t.Helper()
	data, err := os.ReadFile(shortcutsPath(root, id))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	list, err := shortcut.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return list
}

func readBytes(t *testing.T, root, id string) []byte {
	t.Helper()
	data, err := os.ReadFile(shortcutsPath(root, id))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return data
}

func outcomeFor(t *testing.T, r AggregateResult, id string) Outcome {
	t.Helper()
	for _, o := range r.Outcomes {
		if o.ProfileID == id {
			return o
		}
	}
	t.Fatalf("no outcome for profile %s in %+v", id, r.Outcomes)
	return Outcome{}
}

func TestAddCreatesMissingFiles(t *testing.T) {
	root := makeRoot(t, "100", "200")
	e, stager := newTestEngine()

	r, err := e.Add(root, myApp)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if r.Status != OverallSuccess {
		t.Errorf("expected Success, got %s (%v)", r.Status, r.Problems)
	}
	if len(r.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(r.Outcomes))
	}

	for _, id := range []string{"100", "200"} {
		list := readList(t, root, id)
		if len(list.Entries) != 1 {
			t.Fatalf("profile %s: expected 1 entry, got %d", id, len(list.Entries))
		}
		entry := list.Entries[0]
		if entry.AppName != "MyApp" || entry.Exe != `"/usr/bin/myapp"` {
			t.Errorf("profile %s: unexpected entry %+v", id, entry)
		}
		if entry.AppID != -1502516750 {
			t.Errorf("profile %s: expected appid -1502516750, got %d", id, entry.AppID)
		}
		if entry.StartDir != `"/usr/bin"` {
			t.Errorf("profile %s: unexpected start dir %s", id, entry.StartDir)
		}
	}

	if len(stager.staged) != 2 || stager.staged[0].Legacy != 2792450546 {
		t.Errorf("expected artwork staged per profile with legacy id 2792450546, got %v", stager.staged)
	}
}

func TestAddIsIdempotent(t *testing.T) {
	root := makeRoot(t, "100")
	e, stager := newTestEngine()

	if _, err := e.Add(root, myApp); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	before := readBytes(t, root, "100")

	r, err := e.Add(root, myApp)
	if err != nil {
		t.Fatalf("second Add: %v", err)
	}
	if r.Status != OverallSuccess {
		t.Errorf("expected Success, got %s", r.Status)
	}
	if o := outcomeFor(t, r, "100"); o.Status != StatusSuccess || o.Detail != detailAlreadyPresent {
		t.Errorf("expected already present, got %+v", o)
	}
	if r.Changed() {
		t.Error("expected no change on repeat add")
	}
	if !bytes.Equal(before, readBytes(t, root, "100")) {
		t.Error("expected file untouched by repeat add")
	}
	if len(stager.staged) != 1 {
		t.Errorf("expected artwork staged once, got %d", len(stager.staged))
	}
}

func TestAddPreservesExistingEntriesAndUnknownFields(t *testing.T) {
	root := makeRoot(t, "100")
	existing := vdf.Map{{Key: "shortcuts", Value: vdf.Object(vdf.Map{
		{Key: "0", Value: vdf.Object(vdf.Map{
			{Key: "appid", Value: vdf.Int32(-5)},
			{Key: "appname", Value: vdf.String("Other")},
			{Key: "exe", Value: vdf.String(`"/opt/other"`)},
			{Key: "LaunchOptions", Value: vdf.String("")},
			{Key: "SortAs", Value: vdf.String("zzz")},
			{Key: "Future", Value: vdf.Uint64(42)},
		})},
	})}}
	writeShortcuts(t, root, "100", vdf.Encode(existing))

	e, _ := newTestEngine()
	if _, err := e.Add(root, myApp); err != nil {
		t.Fatalf("Add: %v", err)
	}

	root2, err := vdf.Decode(readBytes(t, root, "100"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	entries := root2[0].Value.Map()
	if len(entries) != 2 || entries[0].Key != "0" || entries[1].Key != "1" {
		t.Fatalf("expected entries 0 and 1, got %v", entries.Keys())
	}
	if !entries[0].Value.Map().Equal(existing[0].Value.Map()[0].Value.Map()) {
		t.Error("expected existing entry to be written back unchanged")
	}
}

func TestAddPartialFailure(t *testing.T) {
	root := makeRoot(t, "100", "200", "300")
	corrupt := []byte("not a shortcuts file")
	writeShortcuts(t, root, "200", corrupt)

	e, _ := newTestEngine()
	r, err := e.Add(root, myApp)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if r.Status != OverallPartialSuccess {
		t.Errorf("expected PartialSuccess, got %s", r.Status)
	}
	if o := outcomeFor(t, r, "200"); o.Status != StatusStructurallyInvalid {
		t.Errorf("expected profile 200 StructurallyInvalid, got %s", o.Status)
	}
	if len(r.Problems) != 1 {
		t.Errorf("expected 1 problem, got %v", r.Problems)
	}
	if !bytes.Equal(readBytes(t, root, "200"), corrupt) {
		t.Error("expected corrupt file left exactly as found")
	}
	for _, id := range []string{"100", "300"} {
		if _, ok := readList(t, root, id).Find("MyApp"); !ok {
			t.Errorf("profile %s: expected entry added", id)
		}
	}
}

func TestAddInvalidDocumentNotRewritten(t *testing.T) {
	root := makeRoot(t, "100")
	// Decodes fine but the entry has no name.
	invalid := vdf.Encode(vdf.Map{{Key: "shortcuts", Value: vdf.Object(vdf.Map{
		{Key: "0", Value: vdf.Object(vdf.Map{{Key: "Exe", Value: vdf.String("x")}})},
	})}})
	writeShortcuts(t, root, "100", invalid)

	e, _ := newTestEngine()
	r, err := e.Add(root, myApp)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if r.Status != OverallFailed {
		t.Errorf("expected Failed, got %s", r.Status)
	}
	if !bytes.Equal(readBytes(t, root, "100"), invalid) {
		t.Error("expected invalid file untouched")
	}
}

func TestAddInvalidApp(t *testing.T) {
	root := makeRoot(t, "100")
	e, _ := newTestEngine()

	if _, err := e.Add(root, appinfo.App{Executable: "/bin/x"}); !errors.Is(err, appinfo.ErrInvalidApp) {
		t.Errorf("expected ErrInvalidApp, got %v", err)
	}
	if _, err := os.Stat(shortcutsPath(root, "100")); !errors.Is(err, os.ErrNotExist) {
		t.Error("expected no file written for invalid app")
	}
}

func TestAddUnusualInputsKeepFileReadable(t *testing.T) {
	longTag := strings.Repeat("t", 4096)
	tests := []struct {
		name     string
		app      appinfo.App
		launcher appinfo.Launcher
		rejected bool
	}{
		{"nul in title", appinfo.App{Title: "My\x00App", Executable: "/usr/bin/myapp"}, appinfo.Launcher{}, true},
		{"nul in tag", appinfo.App{Title: "MyApp", Executable: "/usr/bin/myapp", Tags: []string{"a\x00b"}}, appinfo.Launcher{}, true},
		{"nul in arguments", appinfo.App{Title: "MyApp", Executable: "/usr/bin/myapp", Arguments: "-x\x00"}, appinfo.Launcher{}, true},
		{"nul in launcher args", appinfo.App{Title: "MyApp", AppName: "Min", Runner: appinfo.RunnerGOG}, appinfo.Launcher{Executable: "/opt/l", ExtraArgs: []string{"\x00"}}, true},
		{"non-ascii title", appinfo.App{Title: "Ünïcode ✓ ゲーム", Executable: "/opt/ゲーム/run"}, appinfo.Launcher{}, false},
		{"long and many tags", appinfo.App{Title: "Tagged", Executable: "/bin/t", Tags: []string{longTag, "", "Heroic", "✓"}}, appinfo.Launcher{}, false},
		{"quotes and spaces in arguments", appinfo.App{Title: "Args", Executable: "/bin/a b", Arguments: `--name "x y" 'z'`}, appinfo.Launcher{}, false},
		{"control characters", appinfo.App{Title: "Tab\tNew\nLine", Executable: "/bin/c", Tags: []string{"\x01\x08\x0b"}}, appinfo.Launcher{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := makeRoot(t, "100")
			writeEntries(t, root, "100", "Existing")
			before := readBytes(t, root, "100")

			e := NewEngine(tt.launcher)
			e.SetStager(nil)
			r, err := e.Add(root, tt.app)

			if tt.rejected {
				if !errors.Is(err, appinfo.ErrInvalidApp) {
					t.Fatalf("expected ErrInvalidApp, got %v (%+v)", err, r)
				}
				if !bytes.Equal(readBytes(t, root, "100"), before) {
					t.Error("expected file untouched after rejected add")
				}
				return
			}

			if err != nil || r.Status != OverallSuccess {
				t.Fatalf("expected Success, got %+v %v", r, err)
			}
			list := readList(t, root, "100")
			i, ok := list.Find(tt.app.Title)
			if !ok {
				t.Fatalf("expected %q in %v", tt.app.Title, list.Names())
			}
			if got := strings.Join(list.Entries[i].Tags, "|"); got != strings.Join(tt.app.Tags, "|") {
				t.Errorf("expected tags %q, got %q", tt.app.Tags, list.Entries[i].Tags)
			}

			c, err := e.Check(root, tt.app.Title)
			if err != nil || !c.Present || c.Status != OverallSuccess {
				t.Errorf("expected later check to succeed, got %+v %v", c, err)
			}
		})
	}
}

func TestUnencodableListIsWriteFailed(t *testing.T) {
	root := makeRoot(t, "100")
	writeEntries(t, root, "100", "Existing")
	before := readBytes(t, root, "100")

	list := readList(t, root, "100")
	bad, err := shortcut.New("Bad", `"/bin/bad"`, `"/bin"`, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	bad.LaunchOptions = "x\x00y"
	list.Add(bad)

	e, _ := newTestEngine()
	p := profile.Profile{ID: "100", Dir: filepath.Join(root, "100")}
	if err := e.encodeAndWrite(p, before, list); !errors.Is(err, ErrWriteFailed) || !errors.Is(err, vdf.ErrUnencodable) {
		t.Errorf("expected ErrWriteFailed wrapping ErrUnencodable, got %v", err)
	}
	if !bytes.Equal(readBytes(t, root, "100"), before) {
		t.Error("expected file untouched")
	}
}

func TestLocatorErrorsAbort(t *testing.T) {
	e, _ := newTestEngine()

	if _, err := e.Add(filepath.Join(t.TempDir(), "missing"), myApp); !errors.Is(err, profile.ErrUserdataDirMissing) {
		t.Errorf("expected ErrUserdataDirMissing, got %v", err)
	}
	if _, err := e.Check(makeRoot(t, "0", "ac"), "MyApp"); !errors.Is(err, profile.ErrNoValidProfiles) {
		t.Errorf("expected ErrNoValidProfiles, got %v", err)
	}
}

func TestRemoveCompactsAndUnstages(t *testing.T) {
	root := makeRoot(t, "100")
	writeEntries(t, root, "100", "A", "B", "C")

	e, stager := newTestEngine()
	r, err := e.Remove(root, appinfo.App{Title: "B"})
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if r.Status != OverallSuccess || outcomeFor(t, r, "100").Status != StatusSuccess {
		t.Errorf("unexpected result %+v", r)
	}

	raw, err := vdf.Decode(readBytes(t, root, "100"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	keys := raw[0].Value.Map().Keys()
	if len(keys) != 2 || keys[0] != "0" || keys[1] != "1" {
		t.Errorf("expected keys [0 1], got %v", keys)
	}
	names := readList(t, root, "100").Names()
	if names[0] != "A" || names[1] != "C" {
		t.Errorf("expected [A C], got %v", names)
	}

	want, _ := shortcutid.Compute(`"/opt/B"`, "B")
	if len(stager.unstaged) != 1 || stager.unstaged[0] != want {
		t.Errorf("expected artwork unstaged for %v, got %v", want, stager.unstaged)
	}
}

func TestRemoveAbsentIsNoOp(t *testing.T) {
	root := makeRoot(t, "100", "200")
	writeEntries(t, root, "100", "A")
	before := readBytes(t, root, "100")

	e, stager := newTestEngine()
	r, err := e.Remove(root, myApp)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if r.Status != OverallSuccess {
		t.Errorf("expected Success, got %s", r.Status)
	}
	for _, o := range r.Outcomes {
		if o.Status != StatusSkipped {
			t.Errorf("profile %s: expected Skipped, got %s", o.ProfileID, o.Status)
		}
	}
	if !bytes.Equal(before, readBytes(t, root, "100")) {
		t.Error("expected file byte-identical after no-op remove")
	}
	if _, err := os.Stat(shortcutsPath(root, "200")); !errors.Is(err, os.ErrNotExist) {
		t.Error("expected remove not to create a file")
	}
	if len(stager.unstaged) != 0 {
		t.Errorf("expected no artwork changes, got %v", stager.unstaged)
	}
}

func TestAddThenRemoveRestoresPriorEntries(t *testing.T) {
	root := makeRoot(t, "100")
	writeEntries(t, root, "100", "A", "B")
	before := readList(t, root, "100")

	e, _ := newTestEngine()
	if _, err := e.Add(root, myApp); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := e.Remove(root, myApp); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if !readList(t, root, "100").Map().Equal(before.Map()) {
		t.Error("expected add then remove to restore the original entries")
	}
}

func TestCheck(t *testing.T) {
	root := makeRoot(t, "100", "200", "300")
	writeEntries(t, root, "100", "Other")
	writeEntries(t, root, "200", "MyApp")

	e, _ := newTestEngine()
	r, err := e.Check(root, "MyApp")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !r.Present {
		t.Error("expected present")
	}
	if outcomeFor(t, r, "100").Status != StatusSkipped {
		t.Error("expected profile 100 Skipped")
	}
	if o := outcomeFor(t, r, "200"); o.Status != StatusSuccess || !o.Present {
		t.Errorf("expected profile 200 present, got %+v", o)
	}
	if outcomeFor(t, r, "300").Status != StatusSkipped {
		t.Error("expected missing file Skipped")
	}

	present, err := e.IsPresent(root, "myapp")
	if err != nil {
		t.Fatalf("IsPresent: %v", err)
	}
	if present {
		t.Error("expected case-sensitive title match")
	}
}

func TestBackupsKeepNewest(t *testing.T) {
	root := makeRoot(t, "100")
	writeEntries(t, root, "100", "A")
	original := readBytes(t, root, "100")
	backupDir := t.TempDir()

	e, _ := newTestEngine()
	tick := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	e.SetBackups(backupDir, 2)

	for _, title := range []string{"B", "C", "D"} {
		if _, err := e.Add(root, appinfo.App{Title: title, Executable: "/bin/" + title}); err != nil {
			t.Fatalf("Add %s: %v", title, err)
		}
	}

	files, err := ListBackups(filepath.Join(backupDir, "100"))
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 backups kept, got %d", len(files))
	}

	newest, err := ReadBackup(files[1])
	if err != nil {
		t.Fatalf("ReadBackup: %v", err)
	}
	list, err := shortcut.Decode(newest)
	if err != nil {
		t.Fatalf("decode backup: %v", err)
	}
	if got := list.Names(); len(got) != 3 || got[2] != "C" {
		t.Errorf("expected newest backup to hold A B C, got %v", got)
	}

	// The oldest backup (the untouched original) has been pruned.
	for _, f := range files {
		data, _ := ReadBackup(f)
		if bytes.Equal(data, original) {
			t.Error("expected original backup pruned")
		}
	}
}

func TestBackupFailureBlocksWrite(t *testing.T) {
	root := makeRoot(t, "100")
	writeEntries(t, root, "100", "A")
	before := readBytes(t, root, "100")

	notADir := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(notADir, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	e, _ := newTestEngine()
	e.SetBackups(notADir, 5)
	r, err := e.Add(root, myApp)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if o := outcomeFor(t, r, "100"); o.Status != StatusWriteFailed {
		t.Errorf("expected WriteFailed, got %+v", o)
	}
	if r.Status != OverallFailed {
		t.Errorf("expected Failed, got %s", r.Status)
	}
	if !bytes.Equal(before, readBytes(t, root, "100")) {
		t.Error("expected file untouched when backup fails")
	}
}

func TestArtworkFailureKeepsSuccess(t *testing.T) {
	root := makeRoot(t, "100")
	e, stager := newTestEngine()
	stager.err = errors.New("no such image")

	r, err := e.Add(root, myApp)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	o := outcomeFor(t, r, "100")
	if o.Status != StatusSuccess {
		t.Errorf("expected Success despite artwork failure, got %s", o.Status)
	}
	if o.ArtworkErr == "" {
		t.Error("expected artwork error recorded")
	}
	if r.Status != OverallSuccess {
		t.Errorf("expected overall Success, got %s", r.Status)
	}
}

func TestNotifierCalledOncePerCall(t *testing.T) {
	root := makeRoot(t, "100", "200")
	e, _ := newTestEngine()
	n := &fakeNotifier{}
	e.SetNotifier(n)

	if _, err := e.Add(root, myApp); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(n.results) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(n.results))
	}
	if n.results[0].Operation != OperationAdd || n.results[0].Title != "MyApp" {
		t.Errorf("unexpected notification %+v", n.results[0])
	}
}

func TestList(t *testing.T) {
	root := makeRoot(t, "100", "200", "300")
	writeEntries(t, root, "100", "A", "B")
	writeShortcuts(t, root, "200", []byte{0x00, 's'})

	e, _ := newTestEngine()
	listings, err := e.List(root)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listings) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(listings))
	}
	if listings[0].Status != StatusSuccess || len(listings[0].Entries) != 2 {
		t.Errorf("unexpected listing for 100: %+v", listings[0])
	}
	if listings[1].Status != StatusStructurallyInvalid {
		t.Errorf("expected 200 invalid, got %s", listings[1].Status)
	}
	if listings[2].Status != StatusSkipped {
		t.Errorf("expected 300 skipped, got %s", listings[2].Status)
	}
}
