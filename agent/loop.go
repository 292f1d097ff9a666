// Package agent implements the Agent Loop: the bounded multi-round state
// machine that interleaves LLM calls with tool executions, driven by the
// chatmodel/provider/tool contracts.
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/wn-agent/wn/chatmodel"
	"github.com/wn-agent/wn/core"
	"github.com/wn-agent/wn/provider"
	"github.com/wn-agent/wn/tool"
)

// State is the Agent Loop's lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateWaitingInput State = "waiting_input"
	StateThinking     State = "thinking"
	StateToolRunning  State = "tool_running"
)

// Handler receives Agent Loop notifications. Every field is optional; nil
// callbacks are simply skipped.
type Handler struct {
	OnStateChange func(State)
	OnResponse    func(content string)
	OnToolStart   func(name string, arguments map[string]any)
	OnToolEnd     func(name string, result chatmodel.ToolResult)
	OnUsage       func(chatmodel.TokenUsage)
	OnError       func(err error)
	// OnLog delivers ambient diagnostics that are not step failures, such as
	// the context-window usage warning. level is "info", "warn", or "error".
	OnLog func(level, message string)
}

// CancelSignal is a single cancellation flag shared by one Agent Loop,
// polled cooperatively at every suspension-capable point.
type CancelSignal struct {
	mu        sync.Mutex
	triggered bool
}

// Trigger marks the signal as fired. Idempotent.
func (c *CancelSignal) Trigger() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggered = true
}

// Triggered reports whether Trigger has been called.
func (c *CancelSignal) Triggered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggered
}

// Loop is the conversational state machine driving one conversation. The
// provider, registry, handler, and maxToolRounds bound are immutable
// configuration; only the message log and state are mutated.
type Loop struct {
	mu            sync.Mutex
	provider      provider.Provider
	model         string
	registry      *tool.Registry
	handler       Handler
	maxToolRounds int // 0 = unbounded
	cancel        *CancelSignal
	state         State
	log           []chatmodel.Message
}

// Config configures a new Loop.
type Config struct {
	Provider provider.Provider
	// Model names the model the provider was constructed with. Optional;
	// used only to size the context-window usage warning against
	// provider.ContextWindowFor.
	Model         string
	Registry      *tool.Registry
	Handler       Handler
	MaxToolRounds int // 0 = unbounded
	Cancel        *CancelSignal
	// System, when non-empty, seeds the message log with a system message
	// before any user input (used by the Sub-Agent Runner's resolved
	// systemMessage).
	System string
}

// New constructs an Agent Loop in the idle state with an empty message log,
// optionally seeded with a system message.
func New(cfg Config) *Loop {
	cancel := cfg.Cancel
	if cancel == nil {
		cancel = &CancelSignal{}
	}
	l := &Loop{
		provider:      cfg.Provider,
		model:         cfg.Model,
		registry:      cfg.Registry,
		handler:       cfg.Handler,
		maxToolRounds: cfg.MaxToolRounds,
		cancel:        cancel,
		state:         StateIdle,
	}
	if cfg.System != "" {
		l.log = append(l.log, chatmodel.Message{Role: chatmodel.RoleSystem, Content: cfg.System})
	}
	return l
}

// Cancel returns the loop's cancellation signal so callers (e.g. an RPC
// "abort" handler) can trigger it.
func (l *Loop) Cancel() *CancelSignal { return l.cancel }

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Log returns a copy of the message log.
func (l *Loop) Log() []chatmodel.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]chatmodel.Message, len(l.log))
	copy(out, l.log)
	return out
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	if l.handler.OnStateChange != nil {
		l.handler.OnStateChange(s)
	}
}

func (l *Loop) append(msg chatmodel.Message) {
	l.mu.Lock()
	l.log = append(l.log, msg)
	l.mu.Unlock()
}

// warnOnContextUsage emits an OnLog warning once cumulative token usage
// crosses 80% of the model's advertised context window, using the
// provider's reported token counts rather than a character-count estimate.
func (l *Loop) warnOnContextUsage(usage chatmodel.TokenUsage) {
	if l.handler.OnLog == nil || l.model == "" {
		return
	}
	window := provider.ContextWindowFor(l.model)
	if window <= 0 {
		return
	}
	used := usage.InputTokens + usage.OutputTokens
	threshold := int(float64(window) * 0.8)
	if used > threshold {
		pct := int(float64(used) / float64(window) * 100)
		l.handler.OnLog("warn", fmt.Sprintf("Context usage at ~%d%% of context window", pct))
	}
}

func (l *Loop) messages() []chatmodel.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]chatmodel.Message, len(l.log))
	copy(out, l.log)
	return out
}

func aborted() core.Result[string] {
	return core.Err[string](core.Aborted)
}

// Step drives one user input to completion, performing as many LLM ↔ tool
// round-trips as the model requests, bounded by maxToolRounds.
func (l *Loop) Step(ctx context.Context, input string) core.Result[string] {
	if l.cancel.Triggered() {
		return aborted()
	}

	l.append(chatmodel.Message{Role: chatmodel.RoleUser, Content: input})

	rounds := 0
	for {
		l.setState(StateThinking)

		if l.cancel.Triggered() {
			return aborted()
		}

		tools := l.registry.List()
		result := l.provider.Complete(ctx, l.messages(), tools)
		if result.IsErr() {
			err := result.Error()
			if l.handler.OnError != nil {
				l.handler.OnError(err)
			}
			return core.Err[string](err)
		}
		resp := result.Value()

		if resp.Usage != nil {
			if l.handler.OnUsage != nil {
				l.handler.OnUsage(*resp.Usage)
			}
			l.warnOnContextUsage(*resp.Usage)
		}

		if len(resp.ToolCalls) == 0 {
			l.append(chatmodel.Message{Role: chatmodel.RoleAssistant, Content: resp.Content})
			if l.handler.OnResponse != nil {
				l.handler.OnResponse(resp.Content)
			}
			l.setState(StateIdle)
			return core.Ok(resp.Content)
		}

		l.append(chatmodel.Message{Role: chatmodel.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		if resp.Content != "" && l.handler.OnResponse != nil {
			l.handler.OnResponse(resp.Content)
		}

		for _, call := range resp.ToolCalls {
			if l.cancel.Triggered() {
				return aborted()
			}

			def, ok := l.registry.Get(call.Name)
			if !ok {
				l.append(chatmodel.Message{
					Role:       chatmodel.RoleUser,
					Content:    fmt.Sprintf("Tool not found: %s", call.Name),
					ToolCallID: call.ID,
					Name:       call.Name,
				})
				continue
			}

			l.setState(StateToolRunning)
			if l.handler.OnToolStart != nil {
				l.handler.OnToolStart(call.Name, call.Arguments)
			}

			res := def.Execute(call.Arguments)

			output := res.Output
			if !res.OK && output == "" {
				output = res.Error
			}
			output = tool.TruncateForTool(call.Name, output)
			l.append(chatmodel.Message{
				Role:       chatmodel.RoleUser,
				Content:    output,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
			if l.handler.OnToolEnd != nil {
				l.handler.OnToolEnd(call.Name, res)
			}
		}

		if l.handler.OnLog != nil && detectLoop(l.messages(), loopDetectionWindow) {
			l.handler.OnLog("warn", "Repeating tool-call pattern detected")
		}

		rounds++
		if l.maxToolRounds > 0 && rounds >= l.maxToolRounds {
			err := core.New(core.KindBoundedRounds, "Max tool rounds reached: %d", l.maxToolRounds)
			if l.handler.OnError != nil {
				l.handler.OnError(err)
			}
			return core.Err[string](err)
		}
	}
}

// Run iterates the input source, calling Step on each item. A Step error
// does not terminate Run; loopHook (if non-nil) is awaited after each turn
// and stopping the run with ok(lastText) when it returns true.
func (l *Loop) Run(ctx context.Context, inputs <-chan string, loopHook func(lastResult core.Result[string]) bool) core.Result[string] {
	var last core.Result[string] = core.Ok("")
	for {
		if l.cancel.Triggered() {
			return aborted()
		}
		select {
		case <-ctx.Done():
			return aborted()
		case input, ok := <-inputs:
			if !ok {
				return last
			}
			last = l.Step(ctx, input)
			if loopHook != nil && loopHook(last) {
				return core.Ok(last.Value())
			}
		}
	}
}
