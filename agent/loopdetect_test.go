package agent

import (
	"testing"

	"github.com/wn-agent/wn/chatmodel"
)

func toolCallMessage(calls ...chatmodel.ToolCall) chatmodel.Message {
	return chatmodel.Message{Role: chatmodel.RoleAssistant, ToolCalls: calls}
}

func call(name string) chatmodel.ToolCall {
	return chatmodel.ToolCall{ID: "x", Name: name, Arguments: map[string]any{"n": 1}}
}

func TestDetectLoopFindsRepeatingSingleCall(t *testing.T) {
	log := []chatmodel.Message{
		toolCallMessage(call("grep")),
		toolCallMessage(call("grep")),
		toolCallMessage(call("grep")),
		toolCallMessage(call("grep")),
		toolCallMessage(call("grep")),
		toolCallMessage(call("grep")),
	}
	if !detectLoop(log, 6) {
		t.Fatal("expected a repeating single-call pattern to be detected")
	}
}

func TestDetectLoopFindsRepeatingPairPattern(t *testing.T) {
	log := []chatmodel.Message{
		toolCallMessage(call("read_file")),
		toolCallMessage(call("grep")),
		toolCallMessage(call("read_file")),
		toolCallMessage(call("grep")),
		toolCallMessage(call("read_file")),
		toolCallMessage(call("grep")),
	}
	if !detectLoop(log, 6) {
		t.Fatal("expected a repeating 2-call pattern to be detected")
	}
}

func TestDetectLoopIgnoresVariedCalls(t *testing.T) {
	log := []chatmodel.Message{
		toolCallMessage(call("read_file")),
		toolCallMessage(call("grep")),
		toolCallMessage(call("shell")),
		toolCallMessage(call("edit_file")),
		toolCallMessage(call("write_file")),
		toolCallMessage(call("glob")),
	}
	if detectLoop(log, 6) {
		t.Fatal("did not expect a loop to be detected across distinct calls")
	}
}

func TestDetectLoopRequiresFullWindow(t *testing.T) {
	log := []chatmodel.Message{
		toolCallMessage(call("grep")),
		toolCallMessage(call("grep")),
	}
	if detectLoop(log, 6) {
		t.Fatal("did not expect a loop below the window size")
	}
}

func TestToolCallSignatureDiffersByArguments(t *testing.T) {
	a := toolCallSignature(chatmodel.ToolCall{Name: "grep", Arguments: map[string]any{"pattern": "foo"}})
	b := toolCallSignature(chatmodel.ToolCall{Name: "grep", Arguments: map[string]any{"pattern": "bar"}})
	if a == b {
		t.Fatal("expected different arguments to produce different signatures")
	}
}
