package agent

import (
	"context"
	"testing"

	"github.com/wn-agent/wn/chatmodel"
	"github.com/wn-agent/wn/core"
	"github.com/wn-agent/wn/provider"
	"github.com/wn-agent/wn/tool"
)

// scriptedProvider replays a fixed sequence of CompleteResults, one per
// Complete call, so tests can drive the Agent Loop through a known number
// of LLM <-> tool round-trips without a real back end.
type scriptedProvider struct {
	responses []core.Result[provider.CompleteResult]
	calls     int
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Complete(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolDefinition) core.Result[provider.CompleteResult] {
	if s.calls >= len(s.responses) {
		return core.Err[provider.CompleteResult](core.New(core.KindProviderRuntime, "scriptedProvider: out of responses"))
	}
	r := s.responses[s.calls]
	s.calls++
	return r
}

func (s *scriptedProvider) Stream(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolDefinition) (<-chan chatmodel.StreamChunk, error) {
	panic("not used in these tests")
}

func echoTool(name string, output string) chatmodel.ToolDefinition {
	return chatmodel.ToolDefinition{
		Name: name,
		Execute: func(arguments map[string]any) chatmodel.ToolResult {
			return chatmodel.ToolResult{OK: true, Output: output}
		},
	}
}

func TestLoopStepReturnsAssistantTextWithNoToolCalls(t *testing.T) {
	prov := &scriptedProvider{responses: []core.Result[provider.CompleteResult]{
		core.Ok(provider.CompleteResult{Content: "hello there"}),
	}}
	registry := tool.New()
	l := New(Config{Provider: prov, Registry: registry})

	result := l.Step(context.Background(), "hi")
	if result.IsErr() {
		t.Fatalf("unexpected error: %v", result.Error())
	}
	if result.Value() != "hello there" {
		t.Fatalf("got %q, want %q", result.Value(), "hello there")
	}
	if l.State() != StateIdle {
		t.Fatalf("state = %v, want idle", l.State())
	}
}

func TestLoopStepRunsToolRoundTrip(t *testing.T) {
	prov := &scriptedProvider{responses: []core.Result[provider.CompleteResult]{
		core.Ok(provider.CompleteResult{ToolCalls: []chatmodel.ToolCall{{ID: "1", Name: "echo", Arguments: map[string]any{}}}}),
		core.Ok(provider.CompleteResult{Content: "done"}),
	}}
	registry := tool.New()
	if err := registry.Register(echoTool("echo", "echoed")); err != nil {
		t.Fatal(err)
	}

	var toolStarted, toolEnded bool
	l := New(Config{Provider: prov, Registry: registry, Handler: Handler{
		OnToolStart: func(name string, args map[string]any) { toolStarted = true },
		OnToolEnd:   func(name string, res chatmodel.ToolResult) { toolEnded = true },
	}})

	result := l.Step(context.Background(), "run it")
	if result.IsErr() {
		t.Fatalf("unexpected error: %v", result.Error())
	}
	if result.Value() != "done" {
		t.Fatalf("got %q, want %q", result.Value(), "done")
	}
	if !toolStarted || !toolEnded {
		t.Fatalf("expected OnToolStart and OnToolEnd to fire, got started=%v ended=%v", toolStarted, toolEnded)
	}
}

func TestLoopStepUnknownToolAppendsNotice(t *testing.T) {
	prov := &scriptedProvider{responses: []core.Result[provider.CompleteResult]{
		core.Ok(provider.CompleteResult{ToolCalls: []chatmodel.ToolCall{{ID: "1", Name: "missing", Arguments: map[string]any{}}}}),
		core.Ok(provider.CompleteResult{Content: "ok"}),
	}}
	registry := tool.New()
	l := New(Config{Provider: prov, Registry: registry})

	result := l.Step(context.Background(), "go")
	if result.IsErr() {
		t.Fatalf("unexpected error: %v", result.Error())
	}

	log := l.Log()
	found := false
	for _, m := range log {
		if m.Content == "Tool not found: missing" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a tool-not-found notice in the log, got %+v", log)
	}
}

func TestLoopStepRespectsCancellation(t *testing.T) {
	prov := &scriptedProvider{responses: []core.Result[provider.CompleteResult]{
		core.Ok(provider.CompleteResult{Content: "should not be reached"}),
	}}
	registry := tool.New()
	cancel := &CancelSignal{}
	cancel.Trigger()
	l := New(Config{Provider: prov, Registry: registry, Cancel: cancel})

	result := l.Step(context.Background(), "hi")
	if result.IsOk() {
		t.Fatalf("expected an aborted result, got %v", result.Value())
	}
	if result.Error() != core.Aborted {
		t.Fatalf("got error %v, want core.Aborted", result.Error())
	}
}

func TestLoopStepEnforcesMaxToolRounds(t *testing.T) {
	prov := &scriptedProvider{responses: []core.Result[provider.CompleteResult]{
		core.Ok(provider.CompleteResult{ToolCalls: []chatmodel.ToolCall{{ID: "1", Name: "echo"}}}),
		core.Ok(provider.CompleteResult{ToolCalls: []chatmodel.ToolCall{{ID: "2", Name: "echo"}}}),
	}}
	registry := tool.New()
	if err := registry.Register(echoTool("echo", "x")); err != nil {
		t.Fatal(err)
	}
	l := New(Config{Provider: prov, Registry: registry, MaxToolRounds: 1})

	result := l.Step(context.Background(), "go")
	if result.IsOk() {
		t.Fatalf("expected bounded-rounds error, got %v", result.Value())
	}
}

func TestLoopSeedsSystemMessage(t *testing.T) {
	prov := &scriptedProvider{responses: []core.Result[provider.CompleteResult]{
		core.Ok(provider.CompleteResult{Content: "ok"}),
	}}
	l := New(Config{Provider: prov, Registry: tool.New(), System: "you are a test persona"})

	if len(l.Log()) != 1 || l.Log()[0].Role != chatmodel.RoleSystem {
		t.Fatalf("expected a seeded system message, got %+v", l.Log())
	}
}

func TestLoopWarnsOnContextUsage(t *testing.T) {
	prov := &scriptedProvider{responses: []core.Result[provider.CompleteResult]{
		core.Ok(provider.CompleteResult{
			Content: "ok",
			Usage:   &chatmodel.TokenUsage{InputTokens: 900000, OutputTokens: 0},
		}),
	}}

	var warned bool
	l := New(Config{
		Provider: prov,
		Registry: tool.New(),
		Model:    "claude-opus-4-6",
		Handler: Handler{
			OnLog: func(level, message string) {
				if level == "warn" {
					warned = true
				}
			},
		},
	})

	l.Step(context.Background(), "hi")
	if !warned {
		t.Fatalf("expected a context-usage warning once usage exceeds 80%% of the model's window")
	}
}
