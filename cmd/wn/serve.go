package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wn-agent/wn/agent"
	"github.com/wn-agent/wn/chatmodel"
	"github.com/wn-agent/wn/config"
	"github.com/wn-agent/wn/core"
	"github.com/wn-agent/wn/mcpclient"
	"github.com/wn-agent/wn/provider"
	"github.com/wn-agent/wn/rpcserver"
	"github.com/wn-agent/wn/subagent"
	"github.com/wn-agent/wn/tool"
	"github.com/wn-agent/wn/tool/builtin"

	// Back-end factories self-register via init(); imported for side effect
	// only, so provider.New's name-based lookup can find them.
	_ "github.com/wn-agent/wn/provider/anthropic"
	_ "github.com/wn-agent/wn/provider/gemini"
	_ "github.com/wn-agent/wn/provider/local"
	_ "github.com/wn-agent/wn/provider/openai"
)

var (
	flagProvider string
	flagModel    string
	flagPersona  string
	flagAgent    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent runtime core over NDJSON JSON-RPC on stdio",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagProvider, "provider", "", "provider name override")
	serveCmd.Flags().StringVar(&flagModel, "model", "", "model name override")
	serveCmd.Flags().StringVar(&flagPersona, "persona", "", "persona identifier override")
	serveCmd.Flags().StringVar(&flagAgent, "agent", "", "agent identifier naming a default persona/provider/model/skills bundle")
}

func resourceDirs() (global, local string) {
	local = ".wn"
	home, err := os.UserHomeDir()
	if err != nil {
		if u, uerr := user.Current(); uerr == nil {
			home = u.HomeDir
		}
	}
	return filepath.Join(home, ".wn"), local
}

func runServe(cmd *cobra.Command, args []string) {
	log := logrus.WithField("component", "serve")

	globalDir, localDir := resourceDirs()

	rootCfg, err := config.Load(config.ConfigPath(globalDir, localDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "wn: config load failed: %v\n", err)
		os.Exit(1)
	}

	personas, err := config.LoadPersonaTable(globalDir, localDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wn: persona load failed: %v\n", err)
		os.Exit(1)
	}
	skills, err := config.LoadSkillTable(globalDir, localDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wn: skill load failed: %v\n", err)
		os.Exit(1)
	}
	agents, err := config.LoadAgentTable(globalDir, localDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wn: agent load failed: %v\n", err)
		os.Exit(1)
	}

	providerName := rootCfg.DefaultProvider
	modelName := rootCfg.DefaultModel
	personaName := rootCfg.DefaultPersona
	var agentSkills []string

	if flagAgent != "" {
		ag, ok := agents[flagAgent]
		if !ok {
			fmt.Fprintf(os.Stderr, "wn: agent not found: %s\n", flagAgent)
			os.Exit(1)
		}
		if ag.Provider != "" {
			providerName = ag.Provider
		}
		if ag.Model != "" {
			modelName = ag.Model
		}
		if ag.Persona != "" {
			personaName = ag.Persona
		}
		agentSkills = ag.Skills
	}

	if flagProvider != "" {
		providerName = flagProvider
	}
	if flagModel != "" {
		modelName = flagModel
	}
	if flagPersona != "" {
		personaName = flagPersona
	}

	persona, ok := personas[personaName]
	if !ok {
		fmt.Fprintf(os.Stderr, "wn: persona not found: %s\n", personaName)
		os.Exit(1)
	}
	systemMessage := persona.Content
	for _, skillName := range agentSkills {
		if s, ok := skills[skillName]; ok {
			systemMessage += "\n\n" + s.Body
		}
	}

	prov := buildProvider(rootCfg, providerName, modelName)
	if prov.IsErr() {
		fmt.Fprintf(os.Stderr, "wn: provider construction failed: %v\n", prov.Error())
		os.Exit(1)
	}

	registry := tool.New()
	for _, def := range builtin.Register() {
		if err := registry.Register(def); err != nil {
			log.WithError(err).Warn("failed to register built-in tool")
		}
	}

	toolServers := toolServerConfigs(rootCfg)
	mgr := mcpclient.NewManager()
	if len(toolServers) > 0 {
		tools, warnings, err := mgr.ConnectAll(context.Background(), toolServers)
		for _, w := range warnings {
			log.Warn(w)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "wn: tool server connection failed: %v\n", err)
			os.Exit(1)
		}
		for _, def := range tools {
			if err := registry.RegisterExternal(def); err != nil {
				log.WithError(err).Warn("failed to register external tool")
			}
		}
	}

	runner := subagent.New(subagent.Config{
		Root:     subagentRootConfig(rootCfg),
		Personas: subagentPersonaTable(personas),
		Skills:   subagentSkillTable(skills),
		Logger:   logrus.StandardLogger(),
	})
	for _, def := range subagent.RegisterTools(runner) {
		if err := registry.Register(def); err != nil {
			log.WithError(err).Warn("failed to register sub-agent tool")
		}
	}

	cancel := &agent.CancelSignal{}

	// server is referenced by handler before it exists: the Agent Loop's
	// handler notifies over the RPC server, and the RPC server's dispatcher
	// needs the Agent Loop. The closures below only dereference server once
	// invoked, by which point it has been assigned.
	var server *rpcserver.Server
	handler := agent.Handler{
		OnStateChange: func(s agent.State) {
			server.Notify("stateChange", map[string]any{"state": string(s)})
		},
		OnResponse: func(content string) {
			server.Notify("response", map[string]any{"content": content})
		},
		OnToolStart: func(name string, arguments map[string]any) {
			server.Notify("toolExec", map[string]any{"event": "start", "name": name, "args": arguments})
		},
		OnToolEnd: func(name string, result chatmodel.ToolResult) {
			server.Notify("toolExec", map[string]any{"event": "end", "name": name, "result": result})
		},
		OnError: func(err error) {
			server.Notify("log", map[string]any{"level": "error", "message": err.Error()})
		},
		OnLog: func(level, message string) {
			server.Notify("log", map[string]any{"level": level, "message": message})
		},
	}

	ls := &loopState{
		loop:     agent.New(agent.Config{Provider: prov.Value(), Model: modelName, Registry: registry, Cancel: cancel, System: systemMessage, Handler: handler}),
		provider: providerName,
		model:    modelName,
		persona:  personaName,
	}

	server = rpcserver.New(os.Stdin, os.Stdout, dispatcher(ls, rootCfg, personas, registry, cancel, handler))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel.Trigger()
		server.Stop()
	}()

	startErr := server.Start(context.Background())
	mgr.CloseAll()
	if startErr != nil {
		fmt.Fprintf(os.Stderr, "wn: rpc server error: %v\n", startErr)
		os.Exit(1)
	}
	os.Exit(0)
}

func toolServerConfigs(rootCfg *config.RootConfig) []mcpclient.ServerConfig {
	out := make([]mcpclient.ServerConfig, 0, len(rootCfg.ToolServers))
	for _, s := range rootCfg.ToolServers {
		out = append(out, mcpclient.ServerConfig{Name: s.Name, Command: s.Command, Args: s.Args, Env: s.Env})
	}
	return out
}

func subagentRootConfig(rootCfg *config.RootConfig) subagent.RootConfig {
	providers := make(map[string]subagent.ProviderEntry, len(rootCfg.Providers))
	for name, entry := range rootCfg.Providers {
		providers[name] = subagent.ProviderEntry{APIKey: entry.APIKey, AuthToken: entry.AuthToken, BaseURL: entry.BaseURL}
	}
	return subagent.RootConfig{Providers: providers, ToolServers: toolServerConfigs(rootCfg)}
}

func subagentPersonaTable(personas map[string]config.Persona) subagent.PersonaTable {
	out := make(subagent.PersonaTable, len(personas))
	for name, p := range personas {
		out[name] = subagent.Persona{Content: p.Content}
	}
	return out
}

func subagentSkillTable(skills map[string]config.Skill) subagent.SkillTable {
	out := make(subagent.SkillTable, len(skills))
	for name, s := range skills {
		out[name] = subagent.Skill{Description: s.Description, Tools: s.Tools, Body: s.Body}
	}
	return out
}

func buildProvider(rootCfg *config.RootConfig, name, model string) core.Result[provider.Provider] {
	entry := rootCfg.Providers[name]
	cfg := provider.Config{APIKey: entry.APIKey, AuthToken: entry.AuthToken, BaseURL: entry.BaseURL}
	return provider.New(name, cfg, model)
}

// loopState is the mutable cell configUpdate swaps: the live Agent Loop
// plus the provider/model/persona names it was last built from.
type loopState struct {
	mu       sync.Mutex
	loop     *agent.Loop
	provider string
	model    string
	persona  string
}

func (ls *loopState) get() *agent.Loop {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.loop
}

type inputParams struct {
	Text string `json:"text"`
}

type configUpdateParams struct {
	Persona  *string `json:"persona,omitempty"`
	Provider *string `json:"provider,omitempty"`
	Model    *string `json:"model,omitempty"`
}

// dispatcher builds the rpcserver.Handler implementing the three request
// methods the core exposes: input, abort, and configUpdate are the entire
// surface; anything else is method-not-found.
func dispatcher(ls *loopState, rootCfg *config.RootConfig, personas map[string]config.Persona, registry *tool.Registry, cancel *agent.CancelSignal, handler agent.Handler) rpcserver.Handler {
	return func(ctx context.Context, method string, params json.RawMessage) (any, error) {
		switch method {
		case "input":
			var p inputParams
			if len(params) > 0 {
				if err := json.Unmarshal(params, &p); err != nil {
					return nil, err
				}
			}
			result := ls.get().Step(ctx, p.Text)
			return map[string]any{"accepted": result.IsOk()}, nil

		case "abort":
			cancel.Trigger()
			return map[string]any{"aborted": true}, nil

		case "configUpdate":
			var p configUpdateParams
			if len(params) > 0 {
				if err := json.Unmarshal(params, &p); err != nil {
					return nil, err
				}
			}
			applied := applyConfigUpdate(ls, rootCfg, personas, registry, cancel, handler, p)
			return map[string]any{"applied": applied}, nil

		default:
			return nil, &rpcserver.MethodNotFoundError{Method: method}
		}
	}
}

// applyConfigUpdate rebuilds the provider and swaps the Agent Loop in place
// when fields change, leaving it untouched on empty params. A resolution
// failure (unknown persona, provider construction error) keeps the
// previous loop and reports applied=false.
func applyConfigUpdate(ls *loopState, rootCfg *config.RootConfig, personas map[string]config.Persona, registry *tool.Registry, cancel *agent.CancelSignal, handler agent.Handler, p configUpdateParams) bool {
	if p.Persona == nil && p.Provider == nil && p.Model == nil {
		return false
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	providerName, modelName, personaName := ls.provider, ls.model, ls.persona
	if p.Provider != nil {
		providerName = *p.Provider
	}
	if p.Model != nil {
		modelName = *p.Model
	}
	if p.Persona != nil {
		personaName = *p.Persona
	}

	persona, ok := personas[personaName]
	if !ok {
		return false
	}
	prov := buildProvider(rootCfg, providerName, modelName)
	if prov.IsErr() {
		return false
	}

	ls.loop = agent.New(agent.Config{Provider: prov.Value(), Model: modelName, Registry: registry, Cancel: cancel, System: persona.Content, Handler: handler})
	ls.provider, ls.model, ls.persona = providerName, modelName, personaName
	return true
}
