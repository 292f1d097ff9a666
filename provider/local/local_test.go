package local

import (
	"testing"

	"github.com/wn-agent/wn/core"
	"github.com/wn-agent/wn/provider"
)

func TestNewRejectsEmptyModel(t *testing.T) {
	result := New(provider.Config{}, "")
	if result.IsOk() {
		t.Fatal("expected an error for an empty model name")
	}
	if err, ok := result.Error().(*core.Error); !ok || err.Kind != core.KindProviderConstruct {
		t.Fatalf("expected a KindProviderConstruct error, got %v", result.Error())
	}
}

func TestSplitToolCallsNoToolCallBlock(t *testing.T) {
	content, calls := splitToolCalls("just plain text")
	if content != "just plain text" || calls != nil {
		t.Fatalf("got (%q, %v), want unchanged text and no calls", content, calls)
	}
}

func TestSplitToolCallsExtractsTrailingBlock(t *testing.T) {
	text := `Here is my answer.` + "\n" + `{"tool_calls":[{"name":"grep","arguments":{"pattern":"foo"}}]}`
	content, calls := splitToolCalls(text)
	if content != "Here is my answer." {
		t.Fatalf("content = %q, want the text before the block", content)
	}
	if len(calls) != 1 || calls[0].Name != "grep" || calls[0].Arguments["pattern"] != "foo" {
		t.Fatalf("got calls %+v", calls)
	}
}

func TestSplitToolCallsMalformedBlockIsLeftAsText(t *testing.T) {
	text := `{"tool_calls": not valid json`
	content, calls := splitToolCalls(text)
	if content != text || calls != nil {
		t.Fatalf("expected malformed block to be returned unchanged, got (%q, %v)", content, calls)
	}
}

func TestCountTokensIsPositiveForNonEmptyText(t *testing.T) {
	if countTokens("hello world, this is a test sentence") <= 0 {
		t.Fatal("expected a positive token count")
	}
}

func TestEstimateTokensFallsBackForEmptyLog(t *testing.T) {
	if estimateTokens(nil) != 10 {
		t.Fatalf("expected the floor of 10 tokens for an empty message log")
	}
}

func TestSyntheticIDIsUnique(t *testing.T) {
	a := syntheticID()
	b := syntheticID()
	if a == b {
		t.Fatalf("expected distinct synthetic ids, got %q twice", a)
	}
}
