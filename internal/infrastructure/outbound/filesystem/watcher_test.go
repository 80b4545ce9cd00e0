package filesystem_test

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sophialabs/clientmock/internal/infrastructure/outbound/filesystem"
	"github.com/sophialabs/clientmock/internal/testutil"
)

// watchRules starts a watcher over a fresh directory and returns the
// directory together with the number of reloads observed so far.
func watchRules(t *testing.T, debounce time.Duration, opts ...filesystem.WatcherOption) (string, *atomic.Int32) {
	t.Helper()
	dir := t.TempDir()
	reloads := new(atomic.Int32)
	w, err := filesystem.NewWatcher(dir, debounce, &testutil.NoopLogger{}, func() { reloads.Add(1) }, opts...)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	w.Start()
	t.Cleanup(w.Stop)
	return dir, reloads
}

// eventually polls cond until it holds or the deadline passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(25 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_ReloadsOnRuleChanges(t *testing.T) {
	dir, reloads := watchRules(t, 50*time.Millisecond)

	rule := filepath.Join(dir, "login.yml")
	writeFile(t, rule, "id: login")
	if !eventually(func() bool { return reloads.Load() >= 1 }) {
		t.Fatal("expected a reload after creating a rule file")
	}

	before := reloads.Load()
	writeFile(t, rule, "id: login-v2")
	if !eventually(func() bool { return reloads.Load() > before }) {
		t.Fatal("expected a reload after modifying a rule file")
	}

	before = reloads.Load()
	if err := os.Remove(rule); err != nil {
		t.Fatalf("failed to remove rule: %v", err)
	}
	if !eventually(func() bool { return reloads.Load() > before }) {
		t.Error("expected a reload after removing a rule file")
	}
}

func TestWatcher_SkipsUnwatchedExtensions(t *testing.T) {
	dir, reloads := watchRules(t, 50*time.Millisecond)

	writeFile(t, filepath.Join(dir, "notes.txt"), "not a rule")
	writeFile(t, filepath.Join(dir, "body.json"), "{}")
	time.Sleep(300 * time.Millisecond)

	if n := reloads.Load(); n != 0 {
		t.Errorf("expected no reload, got %d", n)
	}
}

func TestWatcher_CollapsesBursts(t *testing.T) {
	dir, reloads := watchRules(t, 200*time.Millisecond)

	rule := filepath.Join(dir, "burst.yaml")
	for i := range 5 {
		writeFile(t, rule, "id: burst-"+string(rune('a'+i)))
		time.Sleep(30 * time.Millisecond)
	}
	if !eventually(func() bool { return reloads.Load() >= 1 }) {
		t.Fatal("expected a reload after the burst")
	}
	time.Sleep(300 * time.Millisecond)

	if n := reloads.Load(); n > 2 {
		t.Errorf("expected the burst to be debounced, got %d reloads", n)
	}
}

func TestWatcher_BodyFileExtensions(t *testing.T) {
	dir, reloads := watchRules(t, 50*time.Millisecond, filesystem.WatchExtensions(".XML", "json"))

	writeFile(t, filepath.Join(dir, "rules.yaml"), "id: x")
	time.Sleep(250 * time.Millisecond)
	if reloads.Load() != 0 {
		t.Fatal("yaml is no longer watched once extensions are replaced")
	}

	writeFile(t, filepath.Join(dir, "order.xml"), "<order/>")
	if !eventually(func() bool { return reloads.Load() >= 1 }) {
		t.Fatal("expected a reload for an .xml body file")
	}

	before := reloads.Load()
	writeFile(t, filepath.Join(dir, "user.json"), `{"id":1}`)
	if !eventually(func() bool { return reloads.Load() > before }) {
		t.Error("expected a reload for a .json body file")
	}
}

func TestWatcher_FollowsNewDirectories(t *testing.T) {
	dir, reloads := watchRules(t, 50*time.Millisecond)

	nested := filepath.Join(dir, "billing")
	if err := os.Mkdir(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if reloads.Load() != 0 {
		t.Fatal("creating a directory alone should not reload")
	}

	writeFile(t, filepath.Join(nested, "invoice.yaml"), "id: invoice")
	if !eventually(func() bool { return reloads.Load() >= 1 }) {
		t.Error("expected a reload for a file in a new subdirectory")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := filesystem.NewWatcher(t.TempDir(), 10*time.Millisecond, &testutil.NoopLogger{}, func() {})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	w.Start()
	w.Stop()
	w.Stop()
}

func TestNewWatcher_MissingRoot(t *testing.T) {
	_, err := filesystem.NewWatcher(filepath.Join(t.TempDir(), "absent"), time.Second, &testutil.NoopLogger{}, func() {})
	if err == nil {
		t.Error("expected an error for a missing root directory")
	}
}
