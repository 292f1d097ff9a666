// Package anthropic implements the Provider contract over Anthropic's
// Messages API: the system-separated, content-block style back-end.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/wn-agent/wn/chatmodel"
	"github.com/wn-agent/wn/core"
	"github.com/wn-agent/wn/provider"
)

func init() {
	provider.Register("anthropic", New)
}

// Adapter talks to the Anthropic Messages API.
type Adapter struct {
	client  *sdk.Client
	model   string
	retryer provider.RetryPolicy
}

// New constructs an Anthropic Adapter. The API key is read from cfg.APIKey,
// falling back to ANTHROPIC_API_KEY.
func New(cfg provider.Config, model string) core.Result[provider.Provider] {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	}
	if key == "" {
		return core.Err[provider.Provider](core.New(core.KindProviderConstruct,
			"anthropic: missing API key (set apiKey or ANTHROPIC_API_KEY)"))
	}
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	client := sdk.NewClient(opts...)
	return core.Ok[provider.Provider](&Adapter{
		client:  &client,
		model:   strings.TrimSpace(model),
		retryer: provider.DefaultRetryPolicy(),
	})
}

func (a *Adapter) Name() string { return "anthropic" }

// Complete translates the canonical history into Anthropic's wire format,
// sends one request, and normalizes the response.
func (a *Adapter) Complete(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolDefinition) core.Result[provider.CompleteResult] {
	params := a.buildParams(messages, tools)
	resp, err := provider.Retry(ctx, a.retryer, func(ctx context.Context) (*sdk.Message, error) {
		msg, err := a.client.Messages.New(ctx, params)
		if err != nil {
			return nil, classifyError(err)
		}
		return msg, nil
	})
	if err != nil {
		return core.Err[provider.CompleteResult](core.Wrap(core.KindProviderRuntime, err, "anthropic: complete failed"))
	}

	var text strings.Builder
	var calls []chatmodel.ToolCall
	for _, block := range resp.Content {
		switch v := block.AsAny().(type) {
		case sdk.TextBlock:
			text.WriteString(v.Text)
		case sdk.ToolUseBlock:
			calls = append(calls, chatmodel.ToolCall{
				ID:        nonEmptyID(v.ID),
				Name:      v.Name,
				Arguments: decodeArgs(v.Input),
			})
		}
	}

	result := provider.CompleteResult{Content: text.String(), ToolCalls: calls}
	if resp.Usage.InputTokens != 0 || resp.Usage.OutputTokens != 0 {
		result.Usage = &chatmodel.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		}
	}
	return core.Ok(result)
}

// Stream performs the same round-trip incrementally, reassembling
// fragmented tool_use input JSON per content-block index before emitting a
// single tool_call chunk on the block's stop event.
func (a *Adapter) Stream(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolDefinition) (<-chan chatmodel.StreamChunk, error) {
	params := a.buildParams(messages, tools)
	stream := a.client.Messages.NewStreaming(ctx, params)

	out := make(chan chatmodel.StreamChunk)
	go func() {
		defer close(out)

		type pending struct {
			id, name string
			buf      strings.Builder
		}
		blocks := map[int64]*pending{}
		var usage *chatmodel.TokenUsage

		for stream.Next() {
			event := stream.Current()
			switch v := event.AsAny().(type) {
			case sdk.ContentBlockStartEvent:
				if tu, ok := v.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
					blocks[v.Index] = &pending{id: nonEmptyID(tu.ID), name: tu.Name}
				}
			case sdk.ContentBlockDeltaEvent:
				switch d := v.Delta.AsAny().(type) {
				case sdk.TextDelta:
					if d.Text != "" {
						out <- chatmodel.StreamChunk{Kind: chatmodel.ChunkDelta, Content: d.Text}
					}
				case sdk.InputJSONDelta:
					if p, ok := blocks[v.Index]; ok {
						p.buf.WriteString(d.PartialJSON)
					}
				}
			case sdk.ContentBlockStopEvent:
				if p, ok := blocks[v.Index]; ok {
					out <- chatmodel.StreamChunk{
						Kind: chatmodel.ChunkToolCall,
						ToolCall: chatmodel.ToolCall{
							ID:        p.id,
							Name:      p.name,
							Arguments: decodeArgsBytes([]byte(p.buf.String())),
						},
					}
					delete(blocks, v.Index)
				}
			case sdk.MessageDeltaEvent:
				if v.Usage.OutputTokens != 0 {
					usage = &chatmodel.TokenUsage{OutputTokens: int(v.Usage.OutputTokens)}
				}
			case sdk.MessageStopEvent:
				// terminal chunk emitted below once the loop exits normally
			}
		}
		if err := stream.Err(); err != nil {
			out <- chatmodel.StreamChunk{Kind: chatmodel.ChunkError, Err: classifyError(err)}
			return
		}
		out <- chatmodel.StreamChunk{Kind: chatmodel.ChunkDone, Usage: usage}
	}()
	return out, nil
}

func (a *Adapter) buildParams(messages []chatmodel.Message, tools []chatmodel.ToolDefinition) sdk.MessageNewParams {
	var systemParts []string
	var out []sdk.MessageParam

	for _, m := range messages {
		switch {
		case m.Role == chatmodel.RoleSystem:
			if m.Content != "" {
				systemParts = append(systemParts, m.Content)
			}
		case m.IsToolResult():
			out = append(out, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		case m.Role == chatmodel.RoleAssistant:
			var blocks []sdk.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				argBytes, _ := json.Marshal(tc.Arguments)
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, json.RawMessage(argBytes), tc.Name))
			}
			out = append(out, sdk.MessageParam{Role: sdk.MessageParamRoleAssistant, Content: blocks})
		default:
			out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: 4096,
		Messages:  out,
	}
	if len(systemParts) > 0 {
		params.System = []sdk.TextBlockParam{{Text: strings.Join(systemParts, "\n")}}
	}
	if len(tools) > 0 {
		toolParams := make([]sdk.ToolUnionParam, 0, len(tools))
		for _, t := range tools {
			toolParams = append(toolParams, sdk.ToolUnionParam{
				OfTool: &sdk.ToolParam{
					Name:        t.Name,
					Description: sdk.String(t.Description),
					InputSchema: sdk.ToolInputSchemaParam{Properties: t.Parameters["properties"]},
				},
			})
		}
		params.Tools = toolParams
	}
	return params
}

func nonEmptyID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

func decodeArgs(raw json.RawMessage) map[string]any {
	return decodeArgsBytes(raw)
}

func decodeArgsBytes(raw []byte) map[string]any {
	args := map[string]any{}
	if len(raw) == 0 {
		return args
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return map[string]any{}
	}
	return args
}

// classifyError turns an SDK-raised error into a *provider.TransportError so
// Retry and IsRetryable can act on it. anthropic-sdk-go exposes the HTTP
// status code on *sdk.Error; anything else is treated as a network failure.
func classifyError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return provider.ErrorFromStatusCode("anthropic", apiErr.StatusCode, apiErr.Error(), err)
	}
	return provider.ErrorFromStatusCode("anthropic", 0, "request failed", err)
}
