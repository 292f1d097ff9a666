// Package config implements the hierarchical configuration loader: the
// root JSON configuration object, persona/skill/agent Markdown+frontmatter
// resources, ${VAR} environment substitution, and global/project-local
// resource layering. Substitution supports plain `${VAR}` references only,
// with no `${VAR:-default}` shorthand.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// ProviderEntry is one entry of the providers table.
type ProviderEntry struct {
	APIKey    string `json:"apiKey,omitempty"`
	AuthToken string `json:"authToken,omitempty"`
	BaseURL   string `json:"baseUrl,omitempty"`
}

// ToolServerSpec describes one MCP tool-server subprocess.
type ToolServerSpec struct {
	Name    string   `json:"name"`
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
	Env     []string `json:"env,omitempty"`
}

// RootConfig is the process-wide root configuration document.
type RootConfig struct {
	DefaultProvider string                   `json:"defaultProvider"`
	DefaultModel    string                   `json:"defaultModel"`
	DefaultPersona  string                   `json:"defaultPersona"`
	Providers       map[string]ProviderEntry `json:"providers"`
	ToolServers     []ToolServerSpec         `json:"-"`
}

// mcpSection mirrors the file's nested `mcp.servers` shape.
type mcpSection struct {
	Servers []ToolServerSpec `json:"servers"`
}

// fileFormat is the on-disk JSON shape, decoded before being flattened
// into RootConfig.
type fileFormat struct {
	DefaultProvider string                   `json:"defaultProvider"`
	DefaultModel    string                   `json:"defaultModel"`
	DefaultPersona  string                   `json:"defaultPersona"`
	Providers       map[string]ProviderEntry `json:"providers"`
	MCP             *mcpSection              `json:"mcp"`
}

// Default returns the configuration used when no config file is present.
func Default() *RootConfig {
	return &RootConfig{
		DefaultProvider: "claude",
		DefaultModel:    "",
		DefaultPersona:  "default",
		Providers:       map[string]ProviderEntry{},
	}
}

// Load reads and parses the root configuration file at path. A missing
// file yields Default(); a malformed file is a fatal error.
func Load(path string) (*RootConfig, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	generic = substitute(generic)

	expanded, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("config: re-encoding %s: %w", path, err)
	}

	var parsed fileFormat
	if err := json.Unmarshal(expanded, &parsed); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg := Default()
	if parsed.DefaultProvider != "" {
		cfg.DefaultProvider = parsed.DefaultProvider
	}
	if parsed.DefaultModel != "" {
		cfg.DefaultModel = parsed.DefaultModel
	}
	if parsed.DefaultPersona != "" {
		cfg.DefaultPersona = parsed.DefaultPersona
	}
	if parsed.Providers != nil {
		cfg.Providers = parsed.Providers
	}
	if parsed.MCP != nil {
		cfg.ToolServers = parsed.MCP.Servers
	}
	return cfg, nil
}

// varPattern matches ${VAR} references; unresolved references are left
// untouched.
var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

// substitute walks a generically-decoded JSON value and expands ${VAR}
// references at every string-typed leaf, at any depth.
func substitute(v any) any {
	switch val := v.(type) {
	case string:
		return expandEnv(val)
	case map[string]any:
		for k, inner := range val {
			val[k] = substitute(inner)
		}
		return val
	case []any:
		for i, inner := range val {
			val[i] = substitute(inner)
		}
		return val
	default:
		return v
	}
}
