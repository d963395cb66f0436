package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/copilot-core/internal/core/ports/driven"
)

func TestTemplateStore_LoadCreatesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "instructions")
	store, err := NewTemplateStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	text, err := store.Load(driven.InstructionSystem)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(text, "knowledge copilot") {
		t.Errorf("unexpected system text: %q", text)
	}

	// Default files materialise on first load.
	for _, name := range []string{driven.InstructionSystem, driven.InstructionClarify, driven.InstructionCitation} {
		if _, err := os.Stat(filepath.Join(dir, name+".txt")); err != nil {
			t.Errorf("expected %s.txt to exist: %v", name, err)
		}
	}
}

func TestTemplateStore_LoadReadsUserEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, driven.InstructionCitation+".txt")
	if err := os.WriteFile(path, []byte("Always cite by section number.\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	store, err := NewTemplateStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	text, err := store.Load(driven.InstructionCitation)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if text != "Always cite by section number." {
		t.Errorf("got %q", text)
	}
}

func TestTemplateStore_ReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	store, err := NewTemplateStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	// Populate defaults and cache.
	if _, err := store.Load(driven.InstructionSystem); err != nil {
		t.Fatalf("load: %v", err)
	}

	path := filepath.Join(dir, driven.InstructionSystem+".txt")
	if err := os.WriteFile(path, []byte("Edited system text."), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Cached value survives until Reload.
	text, err := store.Load(driven.InstructionSystem)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if text == "Edited system text." {
		t.Fatal("cache should not have picked up the edit yet")
	}

	store.Reload()
	text, err = store.Load(driven.InstructionSystem)
	if err != nil {
		t.Fatalf("load after reload: %v", err)
	}
	if text != "Edited system text." {
		t.Errorf("got %q", text)
	}
}

func TestTemplateStore_WatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	store, err := NewTemplateStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	// Populate defaults and warm the cache.
	if _, err := store.Load(driven.InstructionSystem); err != nil {
		t.Fatalf("load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()

	// Let the watcher register before editing.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, driven.InstructionSystem+".txt")
	if err := os.WriteFile(path, []byte("Watched edit."), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		text, err := store.Load(driven.InstructionSystem)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if text == "Watched edit." {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("watcher never picked up the edit, last read %q", text)
		case <-time.After(25 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("watch returned %v, want context.Canceled", err)
	}
}

func TestTemplateStore_UnknownNameFallsBack(t *testing.T) {
	store, err := NewTemplateStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Load("nonexistent"); err == nil {
		t.Error("expected error for unknown instruction with no default")
	}
}
