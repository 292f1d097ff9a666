package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.DefaultProvider != "claude" {
		t.Errorf("DefaultProvider = %q, want claude", cfg.DefaultProvider)
	}
	if cfg.DefaultPersona != "default" {
		t.Errorf("DefaultPersona = %q, want default", cfg.DefaultPersona)
	}
}

func TestLoadMissingFileYieldsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.DefaultProvider != "claude" {
		t.Errorf("DefaultProvider = %q, want claude", cfg.DefaultProvider)
	}
}

func TestLoadParseErrorIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestLoadParsesProvidersAndToolServers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"defaultProvider": "openai",
		"defaultModel": "gpt-4o",
		"defaultPersona": "coder",
		"providers": {
			"openai": { "apiKey": "sk-abc" }
		},
		"mcp": {
			"servers": [
				{ "name": "fs", "command": "fs-server", "args": ["--root", "/data"] }
			]
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.DefaultProvider != "openai" {
		t.Errorf("DefaultProvider = %q, want openai", cfg.DefaultProvider)
	}
	if cfg.Providers["openai"].APIKey != "sk-abc" {
		t.Errorf("providers.openai.apiKey = %q, want sk-abc", cfg.Providers["openai"].APIKey)
	}
	if len(cfg.ToolServers) != 1 || cfg.ToolServers[0].Name != "fs" {
		t.Fatalf("ToolServers = %v, want one entry named fs", cfg.ToolServers)
	}
}

func TestLoadExpandsEnvVarsAtAnyDepth(t *testing.T) {
	os.Setenv("WN_TEST_KEY", "resolved-value")
	defer os.Unsetenv("WN_TEST_KEY")

	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"providers": {
			"claude": { "apiKey": "${WN_TEST_KEY}" }
		},
		"mcp": {
			"servers": [
				{ "name": "fs", "command": "fs-server", "env": ["TOKEN=${WN_TEST_KEY}"] }
			]
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got := cfg.Providers["claude"].APIKey; got != "resolved-value" {
		t.Errorf("providers.claude.apiKey = %q, want resolved-value", got)
	}
	if got := cfg.ToolServers[0].Env[0]; got != "TOKEN=resolved-value" {
		t.Errorf("env[0] = %q, want TOKEN=resolved-value", got)
	}
}

func TestLoadLeavesUnresolvedVarsLiteral(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"providers": {"claude": {"apiKey": "${WN_UNSET_VAR}"}}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got, want := cfg.Providers["claude"].APIKey, "${WN_UNSET_VAR}"; got != want {
		t.Errorf("apiKey = %q, want %q", got, want)
	}
}
