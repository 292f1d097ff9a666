// Package openai implements the Provider contract over OpenAI's Chat
// Completions API: the unified-role-list back-end, where system messages
// stay inline and tool calls travel as a parallel array on the assistant
// message.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/google/uuid"
	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/wn-agent/wn/chatmodel"
	"github.com/wn-agent/wn/core"
	"github.com/wn-agent/wn/provider"
	"github.com/wn-agent/wn/provider/streamutil"
)

func init() {
	provider.Register("openai", New)
}

// Adapter talks to the OpenAI Chat Completions API.
type Adapter struct {
	client  *sdk.Client
	model   string
	retryer provider.RetryPolicy
}

// New constructs an OpenAI Adapter. The API key is read from cfg.APIKey,
// falling back to OPENAI_API_KEY.
func New(cfg provider.Config, model string) core.Result[provider.Provider] {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if key == "" {
		return core.Err[provider.Provider](core.New(core.KindProviderConstruct,
			"openai: missing API key (set apiKey or OPENAI_API_KEY)"))
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

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) Complete(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolDefinition) core.Result[provider.CompleteResult] {
	params := a.buildParams(messages, tools)
	resp, err := provider.Retry(ctx, a.retryer, func(ctx context.Context) (*sdk.ChatCompletion, error) {
		completion, err := a.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return nil, classifyError(err)
		}
		return completion, nil
	})
	if err != nil {
		return core.Err[provider.CompleteResult](core.Wrap(core.KindProviderRuntime, err, "openai: complete failed"))
	}
	if len(resp.Choices) == 0 {
		return core.Err[provider.CompleteResult](core.New(core.KindProviderRuntime, "openai: no choices returned"))
	}
	choice := resp.Choices[0]

	var calls []chatmodel.ToolCall
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, chatmodel.ToolCall{
			ID:        nonEmptyID(tc.ID),
			Name:      tc.Function.Name,
			Arguments: decodeArgs(tc.Function.Arguments),
		})
	}

	result := provider.CompleteResult{Content: choice.Message.Content, ToolCalls: calls}
	if resp.Usage.TotalTokens != 0 {
		result.Usage = &chatmodel.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		}
	}
	return core.Ok(result)
}

// Stream reassembles OpenAI's incremental tool_calls[i].function.arguments
// fragments, keyed by array index, into one tool_call chunk per index.
func (a *Adapter) Stream(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolDefinition) (<-chan chatmodel.StreamChunk, error) {
	params := a.buildParams(messages, tools)
	stream := a.client.Chat.Completions.NewStreaming(ctx, params)

	out := make(chan chatmodel.StreamChunk)
	go func() {
		defer close(out)
		accum := map[int64]*streamutil.ToolCallAccumulator{}
		var usage *chatmodel.TokenUsage

		for stream.Next() {
			chunk := stream.Current()
			if chunk.Usage.TotalTokens != 0 {
				usage = &chatmodel.TokenUsage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				}
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					out <- chatmodel.StreamChunk{Kind: chatmodel.ChunkDelta, Content: choice.Delta.Content}
				}
				for _, tc := range choice.Delta.ToolCalls {
					idx := tc.Index
					acc, ok := accum[idx]
					if !ok {
						acc = streamutil.NewToolCallAccumulator(nonEmptyID(tc.ID), tc.Function.Name)
						accum[idx] = acc
					}
					if tc.Function.Name != "" {
						acc.Name = tc.Function.Name
					}
					acc.Delta(tc.Function.Arguments)
				}
				if choice.FinishReason == "tool_calls" {
					for _, acc := range accum {
						out <- chatmodel.StreamChunk{
							Kind:     chatmodel.ChunkToolCall,
							ToolCall: chatmodel.ToolCall{ID: acc.ID, Name: acc.Name, Arguments: acc.Finish()},
						}
					}
					accum = map[int64]*streamutil.ToolCallAccumulator{}
				}
			}
		}
		if err := stream.Err(); err == nil {
			out <- chatmodel.StreamChunk{Kind: chatmodel.ChunkDone, Usage: usage}
		} else {
			out <- chatmodel.StreamChunk{Kind: chatmodel.ChunkError, Err: classifyError(err)}
		}
	}()
	return out, nil
}

func (a *Adapter) buildParams(messages []chatmodel.Message, tools []chatmodel.ToolDefinition) sdk.ChatCompletionNewParams {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch {
		case m.Role == chatmodel.RoleSystem:
			out = append(out, sdk.SystemMessage(m.Content))
		case m.IsToolResult():
			out = append(out, sdk.ToolMessage(m.Content, m.ToolCallID))
		case m.Role == chatmodel.RoleAssistant && len(m.ToolCalls) > 0:
			calls := make([]sdk.ChatCompletionMessageToolCallUnionParam, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				argBytes, _ := json.Marshal(tc.Arguments)
				calls = append(calls, sdk.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &sdk.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: sdk.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: string(argBytes),
						},
					},
				})
			}
			asst := sdk.ChatCompletionAssistantMessageParam{ToolCalls: calls}
			if m.Content != "" {
				asst.Content.OfString = sdk.String(m.Content)
			}
			out = append(out, sdk.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case m.Role == chatmodel.RoleAssistant:
			out = append(out, sdk.AssistantMessage(m.Content))
		default:
			out = append(out, sdk.UserMessage(m.Content))
		}
	}

	params := sdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(a.model),
		Messages: out,
	}
	if len(tools) > 0 {
		toolParams := make([]sdk.ChatCompletionToolUnionParam, 0, len(tools))
		for _, t := range tools {
			toolParams = append(toolParams, sdk.ChatCompletionToolUnionParam{
				OfFunction: &sdk.ChatCompletionFunctionToolParam{
					Function: shared.FunctionDefinitionParam{
						Name:        t.Name,
						Description: sdk.String(t.Description),
						Parameters:  t.Parameters,
					},
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

func decodeArgs(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}
	}
	return args
}

// classifyError turns an SDK-raised error into a *provider.TransportError so
// Retry and IsRetryable can act on it. openai-go exposes the HTTP status
// code on *sdk.Error; anything else is treated as a network failure.
func classifyError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return provider.ErrorFromStatusCode("openai", apiErr.StatusCode, apiErr.Error(), err)
	}
	return provider.ErrorFromStatusCode("openai", 0, "request failed", err)
}
