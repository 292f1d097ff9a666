// Package local implements the Provider contract over gollm for local and
// other OpenAI-compatible self-hosted back-ends without a dedicated vendor
// SDK. System messages become gollm's system prompt; the rest of the
// history is flattened into a single prompt text rather than sent as a
// role list.
package local

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
	"github.com/teilomillet/gollm"

	"github.com/wn-agent/wn/chatmodel"
	"github.com/wn-agent/wn/core"
	"github.com/wn-agent/wn/provider"
)

func init() {
	provider.Register("local", New)
}

// Adapter wraps a gollm.LLM instance configured for a local/OSS endpoint.
type Adapter struct {
	llm     gollm.LLM
	model   string
	retryer provider.RetryPolicy
}

// New constructs a local Adapter. cfg.BaseURL must point at an
// OpenAI-compatible endpoint (e.g. an Ollama or vLLM server); cfg.APIKey is
// optional for unauthenticated local servers.
func New(cfg provider.Config, model string) core.Result[provider.Provider] {
	if strings.TrimSpace(model) == "" {
		return core.Err[provider.Provider](core.New(core.KindProviderConstruct, "local: model is required"))
	}

	opts := []gollm.ConfigOption{
		gollm.SetProvider("openai"),
		gollm.SetModel(model),
		gollm.SetMaxRetries(0),
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		opts = append(opts, gollm.SetAPIKey(key))
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, gollm.SetBaseURL(base))
	}

	llm, err := gollm.NewLLM(opts...)
	if err != nil {
		return core.Err[provider.Provider](core.Wrap(core.KindProviderConstruct, err, "local: failed to construct gollm client"))
	}

	return core.Ok[provider.Provider](&Adapter{
		llm:     llm,
		model:   model,
		retryer: provider.DefaultRetryPolicy(),
	})
}

func (a *Adapter) Name() string { return "local" }

func (a *Adapter) Complete(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolDefinition) core.Result[provider.CompleteResult] {
	prompt := a.buildPrompt(messages, tools)
	text, err := provider.Retry(ctx, a.retryer, func(ctx context.Context) (string, error) {
		out, err := a.llm.Generate(ctx, prompt)
		if err != nil {
			return "", classifyError(err)
		}
		return out, nil
	})
	if err != nil {
		return core.Err[provider.CompleteResult](core.Wrap(core.KindProviderRuntime, err, "local: complete failed"))
	}

	content, calls := splitToolCalls(text)
	return core.Ok(provider.CompleteResult{
		Content:   content,
		ToolCalls: calls,
		Usage: &chatmodel.TokenUsage{
			InputTokens:  estimateTokens(messages),
			OutputTokens: countTokens(text),
		},
	})
}

// Stream falls back to a single synthetic delta when the underlying model
// does not support incremental tokens.
func (a *Adapter) Stream(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolDefinition) (<-chan chatmodel.StreamChunk, error) {
	prompt := a.buildPrompt(messages, tools)
	out := make(chan chatmodel.StreamChunk)

	if !a.llm.SupportsStreaming() {
		go func() {
			defer close(out)
			text, err := a.llm.Generate(ctx, prompt)
			if err != nil {
				out <- chatmodel.StreamChunk{Kind: chatmodel.ChunkError, Err: classifyError(err)}
				return
			}
			content, calls := splitToolCalls(text)
			if content != "" {
				out <- chatmodel.StreamChunk{Kind: chatmodel.ChunkDelta, Content: content}
			}
			for _, tc := range calls {
				out <- chatmodel.StreamChunk{Kind: chatmodel.ChunkToolCall, ToolCall: tc}
			}
			out <- chatmodel.StreamChunk{Kind: chatmodel.ChunkDone, Usage: &chatmodel.TokenUsage{
				InputTokens:  estimateTokens(messages),
				OutputTokens: countTokens(text),
			}}
		}()
		return out, nil
	}

	stream, err := a.llm.Stream(ctx, prompt)
	if err != nil {
		return nil, core.Wrap(core.KindProviderRuntime, err, "local: stream failed")
	}

	go func() {
		defer close(out)
		defer stream.Close()

		var full strings.Builder
		for {
			token, err := stream.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				out <- chatmodel.StreamChunk{Kind: chatmodel.ChunkError, Err: classifyError(err)}
				return
			}
			if token == nil {
				continue
			}
			out <- chatmodel.StreamChunk{Kind: chatmodel.ChunkDelta, Content: token.Text}
			full.WriteString(token.Text)
		}

		_, calls := splitToolCalls(full.String())
		for _, tc := range calls {
			out <- chatmodel.StreamChunk{Kind: chatmodel.ChunkToolCall, ToolCall: tc}
		}
		out <- chatmodel.StreamChunk{Kind: chatmodel.ChunkDone, Usage: &chatmodel.TokenUsage{
			InputTokens:  estimateTokens(messages),
			OutputTokens: countTokens(full.String()),
		}}
	}()
	return out, nil
}

func (a *Adapter) buildPrompt(messages []chatmodel.Message, tools []chatmodel.ToolDefinition) *gollm.Prompt {
	var systemPrompt strings.Builder
	var parts []string

	for _, m := range messages {
		switch {
		case m.Role == chatmodel.RoleSystem:
			systemPrompt.WriteString(m.Content)
			systemPrompt.WriteByte('\n')
		case m.IsToolResult():
			parts = append(parts, "[Tool Result "+m.ToolCallID+"]: "+m.Content)
		case m.Role == chatmodel.RoleAssistant:
			if m.Content != "" {
				parts = append(parts, "[Assistant]: "+m.Content)
			}
		default:
			parts = append(parts, m.Content)
		}
	}

	promptText := strings.Join(parts, "\n")
	if promptText == "" {
		promptText = "Hello"
	}

	var opts []gollm.PromptOption
	if systemPrompt.Len() > 0 {
		opts = append(opts, gollm.WithSystemPrompt(strings.TrimSpace(systemPrompt.String()), gollm.CacheTypeEphemeral))
	}
	if len(tools) > 0 {
		gtools := make([]gollm.Tool, 0, len(tools))
		for _, t := range tools {
			gtools = append(gtools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		opts = append(opts, gollm.WithTools(gtools))
	}
	return gollm.NewPrompt(promptText, opts...)
}

// splitToolCalls extracts a trailing {"tool_calls": [...]} JSON block that
// local models are instructed (via the tool schema in the prompt) to emit
// in lieu of a structured tool-calling API.
func splitToolCalls(text string) (string, []chatmodel.ToolCall) {
	idx := strings.Index(text, `{"tool_calls"`)
	if idx == -1 {
		return text, nil
	}

	var wrapper struct {
		ToolCalls []struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		} `json:"tool_calls"`
	}
	if err := json.Unmarshal([]byte(text[idx:]), &wrapper); err != nil {
		return text, nil
	}

	calls := make([]chatmodel.ToolCall, 0, len(wrapper.ToolCalls))
	for _, tc := range wrapper.ToolCalls {
		args := map[string]any{}
		if len(tc.Arguments) > 0 {
			_ = json.Unmarshal(tc.Arguments, &args)
		}
		calls = append(calls, chatmodel.ToolCall{ID: syntheticID(), Name: tc.Name, Arguments: args})
	}
	return strings.TrimSpace(text[:idx]), calls
}

// syntheticID generates a tool-call id for a back-end that returns none of
// its own, matching the canonical UUID format the other adapters fall back
// to.
func syntheticID() string {
	return uuid.New().String()
}

// classifyError turns a gollm-raised error into a *provider.TransportError
// so Retry and IsRetryable can act on it. gollm wraps the underlying HTTP
// client without exposing status codes, so any failure is treated as a
// network-level error.
func classifyError(err error) error {
	return provider.ErrorFromStatusCode("local", 0, "request failed", err)
}

// encOnce lazily loads the cl100k_base BPE table the first time a token
// count is needed. Self-hosted back-ends report no usage figures of their
// own, so this is the only source of token accounting available to the
// context-window usage warning (agent.Loop.warnOnContextUsage).
var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	return enc
}

func countTokens(text string) int {
	e := encoding()
	if e == nil {
		return len(text) / 4
	}
	return len(e.Encode(text, nil, nil))
}

func estimateTokens(messages []chatmodel.Message) int {
	total := 0
	for _, m := range messages {
		total += countTokens(m.Content)
	}
	if total == 0 {
		total = 10
	}
	return total
}
