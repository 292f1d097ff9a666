package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Skill is one skill resource: Markdown with YAML-like frontmatter. Body
// content, not Name, is what the Sub-Agent Runner folds into a resolved
// system message.
type Skill struct {
	Name        string
	Description string
	Tools       []string
	Body        string
}

type skillFrontmatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tools       []string `yaml:"tools"`
}

// LoadSkills walks dir recursively, treating every *.md file as a skill.
// A missing directory yields an empty table. A missing description is a
// fatal validation error for that skill.
func LoadSkills(dir string) (map[string]Skill, error) {
	out := make(map[string]Skill)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: reading skill %s: %w", path, err)
		}

		frontmatter, body, _ := splitFrontmatter(string(raw))
		var meta skillFrontmatter
		if frontmatter != "" {
			if err := yaml.Unmarshal([]byte(frontmatter), &meta); err != nil {
				return fmt.Errorf("config: parsing skill frontmatter %s: %w", path, err)
			}
		}

		name := meta.Name
		if name == "" {
			if strings.EqualFold(d.Name(), "SKILL.md") {
				name = filepath.Base(filepath.Dir(path))
			} else {
				name = strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
			}
		}
		if meta.Description == "" {
			return fmt.Errorf("config: skill %q: description is required", name)
		}

		out[name] = Skill{
			Name:        name,
			Description: meta.Description,
			Tools:       meta.Tools,
			Body:        strings.TrimSpace(body),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
