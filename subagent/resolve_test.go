package subagent

import (
	"testing"

	"github.com/wn-agent/wn/mcpclient"
)

func testRoot() RootConfig {
	return RootConfig{
		Providers: map[string]ProviderEntry{
			"claude": {APIKey: "sk-test"},
		},
		ToolServers: []mcpclient.ServerConfig{
			{Name: "fs", Command: "fs-server"},
		},
	}
}

func testPersonas() PersonaTable {
	return PersonaTable{
		"default": {Content: "You are a helpful agent."},
	}
}

func testSkills() SkillTable {
	return SkillTable{
		"reviewer": {Description: "reviews code", Body: "Review the diff carefully."},
		"tester":   {Description: "writes tests", Body: "Write unit tests for new code."},
	}
}

func TestResolveMissingPersona(t *testing.T) {
	_, err := resolve(testRoot(), testPersonas(), testSkills(), "id-1", AgentConfig{
		Persona:  "ghost",
		Provider: "claude",
		Task:     "do the thing",
	})
	if err == nil {
		t.Fatal("expected error for missing persona")
	}
	if got, want := err.Error(), "Persona not found: ghost"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestResolveMissingSkill(t *testing.T) {
	_, err := resolve(testRoot(), testPersonas(), testSkills(), "id-1", AgentConfig{
		Persona:  "default",
		Skills:   []string{"ghost"},
		Provider: "claude",
		Task:     "do the thing",
	})
	if err == nil {
		t.Fatal("expected error for missing skill")
	}
	if got, want := err.Error(), "Skill not found: ghost"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestResolveMissingProvider(t *testing.T) {
	_, err := resolve(testRoot(), testPersonas(), testSkills(), "id-1", AgentConfig{
		Persona:  "default",
		Provider: "ghost-provider",
		Task:     "do the thing",
	})
	if err == nil {
		t.Fatal("expected error for missing provider")
	}
	if got, want := err.Error(), "Provider not found: ghost-provider"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestResolveSystemMessageNoSkills(t *testing.T) {
	payload, err := resolve(testRoot(), testPersonas(), testSkills(), "id-1", AgentConfig{
		Persona:  "default",
		Provider: "claude",
		Model:    "claude-opus",
		Task:     "summarize",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := payload.SystemMessage, "You are a helpful agent."; got != want {
		t.Errorf("systemMessage = %q, want %q", got, want)
	}
	if payload.ID != "id-1" {
		t.Errorf("ID = %q, want id-1", payload.ID)
	}
	if len(payload.ToolServerConfigs) != 1 {
		t.Errorf("ToolServerConfigs = %v, want root config's list", payload.ToolServerConfigs)
	}
}

func TestResolveSystemMessageWithSkills(t *testing.T) {
	payload, err := resolve(testRoot(), testPersonas(), testSkills(), "id-2", AgentConfig{
		Persona:  "default",
		Skills:   []string{"reviewer", "tester"},
		Provider: "claude",
		Task:     "review PR",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "You are a helpful agent.\n\nReview the diff carefully.\n\nWrite unit tests for new code."
	if payload.SystemMessage != want {
		t.Errorf("systemMessage = %q, want %q", payload.SystemMessage, want)
	}
}

func TestResolveProviderConfigPropagates(t *testing.T) {
	payload, err := resolve(testRoot(), testPersonas(), testSkills(), "id-3", AgentConfig{
		Persona:  "default",
		Provider: "claude",
		Task:     "x",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.ProviderConfig.APIKey != "sk-test" {
		t.Errorf("ProviderConfig.APIKey = %q, want sk-test", payload.ProviderConfig.APIKey)
	}
}
