// Package mcpclient implements the External Tool Client: subprocess
// tool-server discovery and dispatch over the Model Context Protocol,
// narrowed to the stdio subprocess transport the runtime configures tool
// servers with.
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wn-agent/wn/chatmodel"
)

// ServerConfig describes one external tool-server subprocess.
type ServerConfig struct {
	Name    string
	Command string
	Args    []string
	Env     []string
}

// client holds the live connection to one tool server.
type client struct {
	name    string
	session *mcpsdk.ClientSession
}

// Manager owns the live set of external tool-server connections and
// exposes their tools as ToolDefinitions prefixed "<serverName>__<toolName>".
type Manager struct {
	mu      sync.Mutex
	clients []*client
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

type connectOutcome struct {
	cfg     ServerConfig
	client  *client
	tools   []chatmodel.ToolDefinition
	err     error
}

// ConnectAll attempts every configured server in parallel. A server's
// failure is accumulated as a warning; a successful connection contributes
// its tools. If every server failed, ConnectAll returns an error joining
// every diagnostic; if only some failed, the call still succeeds, returning
// the tools that did connect alongside the warnings.
func (m *Manager) ConnectAll(ctx context.Context, configs []ServerConfig) ([]chatmodel.ToolDefinition, []string, error) {
	if len(configs) == 0 {
		return nil, nil, nil
	}

	results := make([]connectOutcome, len(configs))
	var wg sync.WaitGroup
	for i, cfg := range configs {
		wg.Add(1)
		go func(i int, cfg ServerConfig) {
			defer wg.Done()
			c, tools, err := connectOne(ctx, cfg)
			results[i] = connectOutcome{cfg: cfg, client: c, tools: tools, err: err}
		}(i, cfg)
	}
	wg.Wait()

	var allTools []chatmodel.ToolDefinition
	var warnings []string
	failures := 0
	for _, r := range results {
		if r.err != nil {
			failures++
			warnings = append(warnings, fmt.Sprintf("tool server %q: %v", r.cfg.Name, r.err))
			continue
		}
		m.mu.Lock()
		m.clients = append(m.clients, r.client)
		m.mu.Unlock()
		allTools = append(allTools, r.tools...)
	}

	if failures == len(configs) {
		return nil, warnings, fmt.Errorf("all tool servers failed to connect: %s", strings.Join(warnings, "; "))
	}
	return allTools, warnings, nil
}

func connectOne(ctx context.Context, cfg ServerConfig) (*client, []chatmodel.ToolDefinition, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, nil, fmt.Errorf("empty command")
	}

	impl := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "wn", Version: "dev"}, nil)
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		cmd.Env = cfg.Env
	}
	transport := &mcpsdk.CommandTransport{Command: cmd}

	session, err := impl.Connect(ctx, transport, nil)
	if err != nil {
		return nil, nil, err
	}

	c := &client{name: cfg.Name, session: session}

	var defs []chatmodel.ToolDefinition
	seq := session.Tools(ctx, nil)
	for tool, err := range seq {
		if err != nil {
			session.Close()
			return nil, nil, err
		}
		defs = append(defs, wrapTool(c, tool))
	}
	return c, defs, nil
}

// wrapTool converts one server-advertised tool into a ToolDefinition whose
// execute invokes the server with the original (un-prefixed) name.
func wrapTool(c *client, t *mcpsdk.Tool) chatmodel.ToolDefinition {
	name := c.name + "__" + t.Name
	description := t.Description

	var schema map[string]any
	if t.InputSchema != nil {
		if raw, err := json.Marshal(t.InputSchema); err == nil {
			schema = map[string]any{}
			_ = json.Unmarshal(raw, &schema)
		}
	}

	return chatmodel.ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		Execute: func(arguments map[string]any) chatmodel.ToolResult {
			ctx := context.Background()
			result, err := c.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: t.Name, Arguments: arguments})
			if err != nil {
				return chatmodel.ToolResult{OK: false, Error: err.Error()}
			}
			return flatten(result)
		},
	}
}

// flatten takes the first text content block, empty on absence, and maps
// the server's IsError flag to OK=false.
func flatten(result *mcpsdk.CallToolResult) chatmodel.ToolResult {
	if result == nil {
		return chatmodel.ToolResult{OK: true, Output: ""}
	}
	var text string
	for _, content := range result.Content {
		if tc, ok := content.(*mcpsdk.TextContent); ok {
			text = tc.Text
			break
		}
	}
	if result.IsError {
		return chatmodel.ToolResult{OK: false, Output: "", Error: text}
	}
	return chatmodel.ToolResult{OK: true, Output: text}
}

// CloseAll terminates all surviving connections. Errors during close are
// suppressed: the process is tearing down anyway.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		_ = c.session.Close()
	}
	m.clients = nil
}
