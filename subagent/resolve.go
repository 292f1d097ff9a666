// Package subagent implements the Sub-Agent Runner: resolving a caller's
// agentConfig into a worker payload, launching an isolated worker process,
// and tracking its lifecycle through a Handle. The worker is a re-exec'd
// copy of the binary rather than a goroutine, so each one gets its own heap
// and communicates with the Runner exclusively through message-passing.
package subagent

import (
	"fmt"
	"strings"

	"github.com/wn-agent/wn/mcpclient"
	"github.com/wn-agent/wn/provider"
)

// Persona is one entry of the persona table: its content is the system
// message verbatim.
type Persona struct {
	Content string
}

// PersonaTable maps persona identifiers to their content.
type PersonaTable map[string]Persona

// Skill is one entry of the skill table. Resolution layers the skill's
// body content onto the persona's system message; the name is only a
// lookup key.
type Skill struct {
	Description string
	Tools       []string
	Body        string
}

// SkillTable maps skill identifiers to their definitions.
type SkillTable map[string]Skill

// ProviderEntry is one entry of the root configuration's providers table.
type ProviderEntry struct {
	APIKey    string
	AuthToken string
	BaseURL   string
}

// RootConfig is the process-wide configuration the runner resolves against:
// the providers table and the tool-server list.
type RootConfig struct {
	Providers   map[string]ProviderEntry
	ToolServers []mcpclient.ServerConfig
}

// AgentConfig is the caller's spawn request.
type AgentConfig struct {
	Persona  string
	Skills   []string
	Provider string
	Model    string
	Task     string
}

// Payload is the fully-resolved, serialization-safe record handed to the
// worker. Every field is a string, a plain record of strings, or a list of
// such records, so it can cross a process boundary without special
// encoding.
type Payload struct {
	ID                string                   `json:"id"`
	Task              string                   `json:"task"`
	SystemMessage     string                   `json:"systemMessage"`
	ProviderName      string                   `json:"providerName"`
	ProviderConfig    provider.Config          `json:"providerConfig"`
	Model             string                   `json:"model"`
	ToolServerConfigs []mcpclient.ServerConfig `json:"toolServerConfigs"`
}

// resolveError is the plain-string failure carried into a terminal-failed
// handle's Result. The exact wording ("Persona not found: <name>", etc.) is
// part of the wire contract, not an implementation detail.
type resolveError struct{ message string }

func (e *resolveError) Error() string { return e.message }

// resolve looks up the persona, skills, and provider a spawn request names,
// and builds the worker payload, or a resolveError naming the first
// missing entry.
func resolve(root RootConfig, personas PersonaTable, skills SkillTable, id string, cfg AgentConfig) (Payload, error) {
	persona, ok := personas[cfg.Persona]
	if !ok {
		return Payload{}, &resolveError{fmt.Sprintf("Persona not found: %s", cfg.Persona)}
	}

	var bodies []string
	for _, name := range cfg.Skills {
		skill, ok := skills[name]
		if !ok {
			return Payload{}, &resolveError{fmt.Sprintf("Skill not found: %s", name)}
		}
		bodies = append(bodies, skill.Body)
	}

	entry, ok := root.Providers[cfg.Provider]
	if !ok {
		return Payload{}, &resolveError{fmt.Sprintf("Provider not found: %s", cfg.Provider)}
	}

	systemMessage := persona.Content
	if len(bodies) > 0 {
		systemMessage = persona.Content + "\n\n" + strings.Join(bodies, "\n\n")
	}

	return Payload{
		ID:            id,
		Task:          cfg.Task,
		SystemMessage: systemMessage,
		ProviderName:  cfg.Provider,
		ProviderConfig: provider.Config{
			APIKey:    entry.APIKey,
			AuthToken: entry.AuthToken,
			BaseURL:   entry.BaseURL,
		},
		Model:             cfg.Model,
		ToolServerConfigs: root.ToolServers,
	}, nil
}
