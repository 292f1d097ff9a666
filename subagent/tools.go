package subagent

import (
	"encoding/json"
	"fmt"

	"github.com/wn-agent/wn/chatmodel"
)

// RegisterTools returns the model-facing ToolDefinitions that let the
// Agent Loop itself spawn, inspect, and stop sub-agents: spawn, list, and
// stop. A sub-agent worker runs step(task) exactly once and exits, so
// there is no mid-flight input channel to send further input through
// after spawn.
func RegisterTools(runner *Runner) []chatmodel.ToolDefinition {
	return []chatmodel.ToolDefinition{
		spawnAgentTool(runner),
		listAgentsTool(runner),
		stopAgentTool(runner),
	}
}

type spawnAgentArgs struct {
	Persona  string   `json:"persona"`
	Skills   []string `json:"skills,omitempty"`
	Provider string   `json:"provider"`
	Model    string   `json:"model,omitempty"`
	Task     string   `json:"task"`
}

func spawnAgentTool(runner *Runner) chatmodel.ToolDefinition {
	return chatmodel.ToolDefinition{
		Name:        "spawn_agent",
		Description: "Spawn an isolated sub-agent to work on a task. Returns immediately with a handle id; poll list_agents for its status.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"persona":  map[string]any{"type": "string", "description": "Persona identifier to resolve the sub-agent's system message from."},
				"skills":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Skill identifiers layered onto the persona's system message."},
				"provider": map[string]any{"type": "string", "description": "Provider identifier from the root configuration's providers table."},
				"model":    map[string]any{"type": "string", "description": "Model name override."},
				"task":     map[string]any{"type": "string", "description": "The task for the sub-agent to perform."},
			},
			"required": []string{"persona", "provider", "task"},
		},
		Execute: func(arguments map[string]any) chatmodel.ToolResult {
			var args spawnAgentArgs
			if res := decodeArgs(arguments, &args); res != nil {
				return *res
			}
			h := runner.Spawn(AgentConfig{
				Persona:  args.Persona,
				Skills:   args.Skills,
				Provider: args.Provider,
				Model:    args.Model,
				Task:     args.Task,
			})
			snap := h.snapshot()
			return chatmodel.ToolResult{OK: true, Output: fmt.Sprintf("spawned sub-agent %s (status=%s)", snap.ID, snap.Status)}
		},
	}
}

func listAgentsTool(runner *Runner) chatmodel.ToolDefinition {
	return chatmodel.ToolDefinition{
		Name:        "list_agents",
		Description: "List every spawned sub-agent and its current status.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Execute: func(arguments map[string]any) chatmodel.ToolResult {
			raw, err := json.Marshal(runner.List())
			if err != nil {
				return chatmodel.ToolResult{OK: false, Error: err.Error()}
			}
			return chatmodel.ToolResult{OK: true, Output: string(raw)}
		},
	}
}

type stopAgentArgs struct {
	ID string `json:"id"`
}

func stopAgentTool(runner *Runner) chatmodel.ToolDefinition {
	return chatmodel.ToolDefinition{
		Name:        "stop_agent",
		Description: "Forcibly terminate a running sub-agent by its handle id.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id": map[string]any{"type": "string", "description": "The sub-agent handle id to stop."},
			},
			"required": []string{"id"},
		},
		Execute: func(arguments map[string]any) chatmodel.ToolResult {
			var args stopAgentArgs
			if res := decodeArgs(arguments, &args); res != nil {
				return *res
			}
			runner.Stop(args.ID)
			return chatmodel.ToolResult{OK: true, Output: fmt.Sprintf("stop requested for %s", args.ID)}
		},
	}
}

func decodeArgs(arguments map[string]any, dst any) *chatmodel.ToolResult {
	raw, err := json.Marshal(arguments)
	if err != nil {
		return &chatmodel.ToolResult{OK: false, Error: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &chatmodel.ToolResult{OK: false, Error: fmt.Sprintf("invalid arguments: %v", err)}
	}
	return nil
}
