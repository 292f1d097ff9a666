package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Persona is one persona resource: a plain Markdown file whose entire body
// is the system message. The identifier is the filename without extension.
type Persona struct {
	Name    string
	Content string
}

// LoadPersonas reads every *.md file directly under dir as a persona. A
// missing directory yields an empty table, not an error.
func LoadPersonas(dir string) (map[string]Persona, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]Persona{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading personas dir %s: %w", dir, err)
	}

	out := make(map[string]Persona)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("config: reading persona %s: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), ".md")
		out[name] = Persona{Name: name, Content: strings.TrimSpace(string(raw))}
	}
	return out, nil
}
