package convert_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/duniatools/fcbfile/convert"
)

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	w, err := convert.NewWatcher(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	// A non-markup file never reaches the Events channel, so writing it
	// first proves the filter as soon as the markup event arrives.
	if err := os.WriteFile(filepath.Join(dir, "managers.fcb"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "managers.fcb.converted.xml")
	if err := os.WriteFile(path, []byte("<fcb/>"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-w.Events:
		if got != path {
			t.Errorf("event for %q, want %q", got, path)
		}
	case err := <-w.Errors:
		t.Fatal("watch error:", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no event for markup write")
	}

	if err := w.Close(); err != nil {
		t.Error("close:", err)
	}
	if err := w.Close(); err != nil {
		t.Error("second close:", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-w.Events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel did not close")
		}
	}
}

func TestWatchNeedsLevel(t *testing.T) {
	o := &convert.Orchestrator{}
	if _, err := o.Watch(); err == nil {
		t.Error("expected error (nothing loaded)")
	}
}
