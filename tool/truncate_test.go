package tool

import (
	"strings"
	"testing"
)

func TestTruncateOutputNoOpUnderLimit(t *testing.T) {
	out := TruncateOutput("short", 100, TruncateHeadTail)
	if out != "short" {
		t.Fatalf("got %q, want unchanged", out)
	}
}

func TestTruncateOutputHeadTail(t *testing.T) {
	long := strings.Repeat("a", 100)
	out := TruncateOutput(long, 20, TruncateHeadTail)
	if len(out) <= 20 {
		// the warning marker makes the result longer than maxChars; just
		// check both ends survive.
		t.Fatalf("expected the warning marker to be present, got %q", out)
	}
	if !strings.HasPrefix(out, strings.Repeat("a", 10)) {
		t.Fatalf("expected the head to survive truncation, got %q", out)
	}
	if !strings.HasSuffix(out, strings.Repeat("a", 10)) {
		t.Fatalf("expected the tail to survive truncation, got %q", out)
	}
}

func TestTruncateOutputTailMode(t *testing.T) {
	long := strings.Repeat("b", 100)
	out := TruncateOutput(long, 20, TruncateTail)
	if !strings.HasSuffix(out, strings.Repeat("b", 20)) {
		t.Fatalf("expected only the tail to survive, got %q", out)
	}
}

func TestTruncateForToolUsesPerToolLimit(t *testing.T) {
	long := strings.Repeat("x", 2000)
	out := TruncateForTool("write_file", long)
	if len(out) == len(long) {
		t.Fatal("expected write_file's 1000-char limit to truncate this output")
	}
}

func TestTruncateForToolFallsBackForUnknownTool(t *testing.T) {
	short := "fits easily"
	out := TruncateForTool("some_unregistered_tool", short)
	if out != short {
		t.Fatalf("got %q, want unchanged for output under the fallback limit", out)
	}
}

func TestTruncateLines(t *testing.T) {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = "line"
	}
	out := TruncateLines(strings.Join(lines, "\n"), 4)
	if !strings.Contains(out, "omitted") {
		t.Fatalf("expected an omitted-lines marker, got %q", out)
	}
}

func TestTruncateLinesNoOpUnderLimit(t *testing.T) {
	out := TruncateLines("a\nb\nc", 10)
	if out != "a\nb\nc" {
		t.Fatalf("got %q, want unchanged", out)
	}
}
