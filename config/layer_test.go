package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writePersona(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, "personas"), 0o755); err != nil {
		t.Fatalf("failed to create personas dir: %v", err)
	}
	path := filepath.Join(dir, "personas", name+".md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write persona: %v", err)
	}
}

func TestLoadPersonaTableLocalOverridesGlobal(t *testing.T) {
	global := t.TempDir()
	local := t.TempDir()

	writePersona(t, global, "default", "global content")
	writePersona(t, global, "ops", "global ops content")
	writePersona(t, local, "default", "local content")

	personas, err := LoadPersonaTable(global, local)
	if err != nil {
		t.Fatalf("LoadPersonaTable() failed: %v", err)
	}
	if personas["default"].Content != "local content" {
		t.Errorf("default.Content = %q, want local content", personas["default"].Content)
	}
	if personas["ops"].Content != "global ops content" {
		t.Errorf("ops.Content = %q, want global ops content", personas["ops"].Content)
	}
}

func TestConfigPathPrefersLocal(t *testing.T) {
	global := t.TempDir()
	local := t.TempDir()

	globalPath := filepath.Join(global, "config.json")
	if err := os.WriteFile(globalPath, []byte("{}"), 0o644); err != nil {
		t.Fatalf("failed to write global config: %v", err)
	}
	if got := ConfigPath(global, local); got != globalPath {
		t.Errorf("ConfigPath() = %q, want %q (only global exists)", got, globalPath)
	}

	localPath := filepath.Join(local, "config.json")
	if err := os.WriteFile(localPath, []byte("{}"), 0o644); err != nil {
		t.Fatalf("failed to write local config: %v", err)
	}
	if got := ConfigPath(global, local); got != localPath {
		t.Errorf("ConfigPath() = %q, want %q (local takes precedence)", got, localPath)
	}
}
