package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPersonasMissingDirIsEmpty(t *testing.T) {
	personas, err := LoadPersonas(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("LoadPersonas() failed: %v", err)
	}
	if len(personas) != 0 {
		t.Errorf("expected empty table, got %v", personas)
	}
}

func TestLoadPersonasReadsMarkdownFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "default.md"), []byte("You are helpful.\n"), 0o644); err != nil {
		t.Fatalf("failed to write persona: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not a persona"), 0o644); err != nil {
		t.Fatalf("failed to write non-persona file: %v", err)
	}

	personas, err := LoadPersonas(dir)
	if err != nil {
		t.Fatalf("LoadPersonas() failed: %v", err)
	}
	if len(personas) != 1 {
		t.Fatalf("expected exactly one persona, got %d", len(personas))
	}
	p, ok := personas["default"]
	if !ok {
		t.Fatal("expected persona named \"default\"")
	}
	if p.Content != "You are helpful." {
		t.Errorf("Content = %q, want %q", p.Content, "You are helpful.")
	}
}
