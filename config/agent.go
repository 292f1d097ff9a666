package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Agent is one agent resource: Markdown with frontmatter naming the
// persona, provider, model, and skills a caller wants by default; the
// body becomes the agent's description.
type Agent struct {
	Name        string
	Persona     string
	Provider    string
	Model       string
	Skills      []string
	Description string
}

type agentFrontmatter struct {
	Name     string   `yaml:"name"`
	Persona  string   `yaml:"persona"`
	Provider string   `yaml:"provider"`
	Model    string   `yaml:"model"`
	Skills   []string `yaml:"skills"`
}

// LoadAgents reads every *.md file directly under dir as an agent
// definition. A missing directory yields an empty table.
func LoadAgents(dir string) (map[string]Agent, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]Agent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading agents dir %s: %w", dir, err)
	}

	out := make(map[string]Agent)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading agent %s: %w", path, err)
		}

		frontmatter, body, _ := splitFrontmatter(string(raw))
		var meta agentFrontmatter
		if frontmatter != "" {
			if err := yaml.Unmarshal([]byte(frontmatter), &meta); err != nil {
				return nil, fmt.Errorf("config: parsing agent frontmatter %s: %w", path, err)
			}
		}

		name := meta.Name
		if name == "" {
			name = strings.TrimSuffix(e.Name(), ".md")
		}

		out[name] = Agent{
			Name:        name,
			Persona:     meta.Persona,
			Provider:    meta.Provider,
			Model:       meta.Model,
			Skills:      meta.Skills,
			Description: strings.TrimSpace(body),
		}
	}
	return out, nil
}
