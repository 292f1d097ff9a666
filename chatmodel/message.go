// Package chatmodel defines the canonical conversation types shared by the
// Provider Abstraction, the Agent Loop, and the Tool Registry: Message,
// ToolCall, ToolResult, ToolDefinition, StreamChunk, and TokenUsage.
package chatmodel

// Role identifies who produced a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversation turn.
//
// A message with ToolCallID set MUST carry the textual tool output in
// Content. An assistant message with non-empty ToolCalls MAY also carry
// text; both are preserved.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// IsToolResult reports whether this message represents a tool's output
// being fed back to the model.
func (m Message) IsToolResult() bool { return m.ToolCallID != "" }

// ToolCall is the model's request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolResult is the textual outcome of a tool call.
type ToolResult struct {
	OK     bool
	Output string
	Error  string
}

// ToolDefinition is a named callable advertised to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON-Schema-shaped
	Execute     func(arguments map[string]any) ToolResult
}

// TokenUsage tracks token consumption for a single completion or stream.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// StreamChunkKind discriminates the StreamChunk tagged union.
type StreamChunkKind string

const (
	ChunkDelta    StreamChunkKind = "delta"
	ChunkToolCall StreamChunkKind = "tool_call"
	ChunkDone     StreamChunkKind = "done"
	ChunkError    StreamChunkKind = "error"
)

// StreamChunk is one element of a Provider.Stream sequence. A stream yields
// either exactly one Done chunk as its last element, or one Error chunk in
// place of it if the underlying transport failed mid-stream. ToolCall chunks
// carry fully-accumulated arguments; the adapter producing the stream is
// responsible for reassembling vendor-specific argument fragments.
type StreamChunk struct {
	Kind     StreamChunkKind
	Content  string      // set when Kind == ChunkDelta
	ToolCall ToolCall    // set when Kind == ChunkToolCall
	Usage    *TokenUsage // set when Kind == ChunkDone and the vendor reported usage
	Err      error       // set when Kind == ChunkError
}
