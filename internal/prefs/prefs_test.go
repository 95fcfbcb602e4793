package prefs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	p, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p != Default() {
		t.Fatalf("Load() = %+v, want defaults", p)
	}
}

func TestLoad_ReadsExistingFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	prefsDir := filepath.Join(home, ".config", "kdebridge")
	if err := os.MkdirAll(prefsDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	body := "default_device_id = \" abc123 \"\ndefault_only = true\ndisable_context_menu = true\ntheme = \"Slate\"\n"
	if err := os.WriteFile(filepath.Join(prefsDir, "prefs.toml"), []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := Prefs{DefaultDeviceID: "abc123", DefaultOnly: true, DisableContextMenu: true, Theme: "Slate"}
	if p != want {
		t.Fatalf("Load() = %+v, want %+v", p, want)
	}
}

func TestSave_CreatesFileAndDirs(t *testing.T) {
	tmp := t.TempDir()
	prefsFile := filepath.Join(tmp, "subdir", "prefs.toml")

	p := Prefs{DefaultDeviceID: "dev-1", DefaultOnly: true, Theme: "Slate"}
	if err := Save(prefsFile, p); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := Load(prefsFile)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded != p {
		t.Fatalf("Load() = %+v, want %+v", loaded, p)
	}

	entries, err := os.ReadDir(filepath.Dir(prefsFile))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("prefs dir has %d entries, want only prefs.toml", len(entries))
	}
}

func TestLoad_FallsBackToDefaults(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty theme", body: "theme = \"\"\n"},
		{name: "invalid toml", body: "not valid toml {{{\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefsFile := filepath.Join(t.TempDir(), "prefs.toml")
			if err := os.WriteFile(prefsFile, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			p, err := Load(prefsFile)
			if err != nil {
				t.Fatalf("Load returned error: %v", err)
			}
			if p.Theme != defaultTheme {
				t.Fatalf("Theme = %q, want %q", p.Theme, defaultTheme)
			}
		})
	}
}

func TestWatch_ReportsChanges(t *testing.T) {
	prefsFile := filepath.Join(t.TempDir(), "prefs.toml")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Prefs, 4)
	errCh := make(chan error, 1)
	go func() {
		errCh <- Watch(ctx, prefsFile, func(p Prefs) { got <- p }, nil)
	}()

	// Give the watcher time to register before the first write.
	time.Sleep(100 * time.Millisecond)

	if err := Save(prefsFile, Prefs{DefaultDeviceID: "dev-1", DefaultOnly: true}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(filepath.Dir(prefsFile), "other.toml"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case p := <-got:
		if p.DefaultDeviceID != "dev-1" || !p.DefaultOnly {
			t.Fatalf("Watch delivered %+v", p)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change delivered")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchLoop_KeepsRunningAfterError(t *testing.T) {
	prefsFile := filepath.Join(t.TempDir(), "prefs.toml")
	if err := Save(prefsFile, Prefs{DefaultDeviceID: "dev-2"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan fsnotify.Event)
	errs := make(chan error)
	got := make(chan Prefs, 1)
	var reported []error
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchLoop(ctx, prefsFile, events, errs, func(p Prefs) { got <- p }, func(err error) {
			reported = append(reported, err)
		})
	}()

	errs <- errors.New("queue overflow")
	events <- fsnotify.Event{Name: prefsFile, Op: fsnotify.Write}

	select {
	case p := <-got:
		if p.DefaultDeviceID != "dev-2" {
			t.Fatalf("delivered %+v", p)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("change after a watcher error was not delivered")
	}

	cancel()
	<-done
	if len(reported) != 1 {
		t.Fatalf("reported %d errors, want 1", len(reported))
	}
}
