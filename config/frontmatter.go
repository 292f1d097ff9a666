package config

import "strings"

// splitFrontmatter separates a YAML-like frontmatter block delimited by
// lines of three hyphens from the remaining Markdown body. A file with no
// leading `---` line has no frontmatter; its entire content is the body.
func splitFrontmatter(content string) (frontmatter string, body string, hasFrontmatter bool) {
	const delim = "---"

	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delim {
		return "", content, false
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delim {
			frontmatter = strings.Join(lines[1:i], "\n")
			body = strings.Join(lines[i+1:], "\n")
			return frontmatter, strings.TrimLeft(body, "\n"), true
		}
	}
	return "", content, false
}
