// Package gemini implements the Provider contract over Google's Gemini
// generateContent REST API directly against net/http: a pure-HTTP back-end
// with the transport hand-rolled, reusing streamutil's line scanner for the
// streaming response.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/wn-agent/wn/chatmodel"
	"github.com/wn-agent/wn/core"
	"github.com/wn-agent/wn/provider"
	"github.com/wn-agent/wn/provider/streamutil"
)

func init() {
	provider.Register("gemini", New)
}

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Adapter talks to the Gemini generateContent/streamGenerateContent REST
// endpoints using a plain http.Client; there is no official Go SDK for this
// API among the dependencies this module draws on.
type Adapter struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	retryer    provider.RetryPolicy
}

// New constructs a Gemini Adapter. The API key is read from cfg.APIKey,
// falling back to GEMINI_API_KEY.
func New(cfg provider.Config, model string) core.Result[provider.Provider] {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	if key == "" {
		return core.Err[provider.Provider](core.New(core.KindProviderConstruct,
			"gemini: missing API key (set apiKey or GEMINI_API_KEY)"))
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	return core.Ok[provider.Provider](&Adapter{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(base, "/"),
		apiKey:     key,
		model:      strings.TrimSpace(model),
		retryer:    provider.DefaultRetryPolicy(),
	})
}

func (a *Adapter) Name() string { return "gemini" }

// geminiPart/geminiContent/geminiRequest mirror the subset of the
// generateContent request body this adapter exercises: functionCall /
// functionResponse parts plus a top-level systemInstruction, the
// system-separated translation style.
type geminiPart struct {
	Text             string          `json:"text,omitempty"`
	FunctionCall     *geminiFuncCall `json:"functionCall,omitempty"`
	FunctionResponse *geminiFuncResp `json:"functionResponse,omitempty"`
}

type geminiFuncCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFuncResp struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFuncDecl `json:"functionDeclarations"`
}

type geminiFuncDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	Tools             []geminiTool    `json:"tools,omitempty"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata geminiUsage       `json:"usageMetadata"`
}

func (a *Adapter) Complete(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolDefinition) core.Result[provider.CompleteResult] {
	body := a.buildRequest(messages, tools)
	resp, err := provider.Retry(ctx, a.retryer, func(ctx context.Context) (*geminiResponse, error) {
		return a.doRequest(ctx, "generateContent", body)
	})
	if err != nil {
		return core.Err[provider.CompleteResult](core.Wrap(core.KindProviderRuntime, err, "gemini: complete failed"))
	}
	if len(resp.Candidates) == 0 {
		return core.Err[provider.CompleteResult](core.New(core.KindProviderRuntime, "gemini: no candidates returned"))
	}

	var text strings.Builder
	var calls []chatmodel.ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			calls = append(calls, chatmodel.ToolCall{
				ID:        uuid.New().String(),
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		}
	}

	result := provider.CompleteResult{Content: text.String(), ToolCalls: calls}
	if resp.UsageMetadata.PromptTokenCount != 0 || resp.UsageMetadata.CandidatesTokenCount != 0 {
		result.Usage = &chatmodel.TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}
	return core.Ok(result)
}

// Stream issues streamGenerateContent?alt=sse and parses the
// newline-delimited "data: {...}" frames via streamutil.ScanLines. Gemini
// sends whole function-call parts rather than fragmented argument deltas,
// so each functionCall part becomes one tool_call chunk immediately.
func (a *Adapter) Stream(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolDefinition) (<-chan chatmodel.StreamChunk, error) {
	body := a.buildRequest(messages, tools)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, core.Wrap(core.KindProviderRuntime, err, "gemini: marshal request")
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", a.baseURL, a.model, a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, core.Wrap(core.KindProviderRuntime, err, "gemini: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, core.Wrap(core.KindProviderRuntime, err, "gemini: stream request failed")
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(resp.Body)
		return nil, provider.ErrorFromStatusCode("gemini", resp.StatusCode, string(msg), nil)
	}

	out := make(chan chatmodel.StreamChunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		var usage *chatmodel.TokenUsage
		scanErr := streamutil.ScanLines(resp.Body, func(line []byte) error {
			data, ok := bytes.CutPrefix(line, []byte("data: "))
			if !ok {
				return nil
			}
			var chunk geminiResponse
			if err := json.Unmarshal(data, &chunk); err != nil {
				return nil
			}
			if chunk.UsageMetadata.PromptTokenCount != 0 || chunk.UsageMetadata.CandidatesTokenCount != 0 {
				usage = &chatmodel.TokenUsage{
					InputTokens:  chunk.UsageMetadata.PromptTokenCount,
					OutputTokens: chunk.UsageMetadata.CandidatesTokenCount,
				}
			}
			if len(chunk.Candidates) == 0 {
				return nil
			}
			for _, part := range chunk.Candidates[0].Content.Parts {
				if part.Text != "" {
					out <- chatmodel.StreamChunk{Kind: chatmodel.ChunkDelta, Content: part.Text}
				}
				if part.FunctionCall != nil {
					out <- chatmodel.StreamChunk{
						Kind: chatmodel.ChunkToolCall,
						ToolCall: chatmodel.ToolCall{
							ID:        uuid.New().String(),
							Name:      part.FunctionCall.Name,
							Arguments: part.FunctionCall.Args,
						},
					}
				}
			}
			return nil
		})
		if scanErr != nil {
			out <- chatmodel.StreamChunk{Kind: chatmodel.ChunkError, Err: provider.ErrorFromStatusCode("gemini", 0, "stream read failed", scanErr)}
			return
		}
		out <- chatmodel.StreamChunk{Kind: chatmodel.ChunkDone, Usage: usage}
	}()
	return out, nil
}

func (a *Adapter) buildRequest(messages []chatmodel.Message, tools []chatmodel.ToolDefinition) geminiRequest {
	var req geminiRequest
	for _, m := range messages {
		switch {
		case m.Role == chatmodel.RoleSystem:
			if m.Content == "" {
				continue
			}
			if req.SystemInstruction == nil {
				req.SystemInstruction = &geminiContent{Role: "system"}
			}
			req.SystemInstruction.Parts = append(req.SystemInstruction.Parts, geminiPart{Text: m.Content})
		case m.IsToolResult():
			req.Contents = append(req.Contents, geminiContent{
				Role: "function",
				Parts: []geminiPart{{FunctionResponse: &geminiFuncResp{
					Name:     m.Name,
					Response: map[string]any{"output": m.Content},
				}}},
			})
		case m.Role == chatmodel.RoleAssistant:
			var parts []geminiPart
			if m.Content != "" {
				parts = append(parts, geminiPart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, geminiPart{FunctionCall: &geminiFuncCall{Name: tc.Name, Args: tc.Arguments}})
			}
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: parts})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if len(tools) > 0 {
		decls := make([]geminiFuncDecl, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, geminiFuncDecl{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
		}
		req.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}
	return req
}

func (a *Adapter) doRequest(ctx context.Context, method string, body geminiRequest) (*geminiResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/models/%s:%s?key=%s", a.baseURL, a.model, method, a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, provider.ErrorFromStatusCode("gemini", 0, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.ErrorFromStatusCode("gemini", resp.StatusCode, "read body failed", err)
	}
	if resp.StatusCode >= 400 {
		return nil, provider.ErrorFromStatusCode("gemini", resp.StatusCode, string(raw), nil)
	}

	var out geminiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, provider.ErrorFromStatusCode("gemini", resp.StatusCode, "decode body failed", err)
	}
	return &out, nil
}
