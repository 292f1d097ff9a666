package tool

import (
	"fmt"
	"strings"
)

// TruncationMode selects where excess characters are cut from.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// DefaultCharLimits bounds tool output per built-in tool name. Tools not
// listed fall back to defaultCharLimit.
var DefaultCharLimits = map[string]int{
	"read_file":   50000,
	"shell":       30000,
	"grep":        20000,
	"glob":        20000,
	"edit_file":   10000,
	"write_file":  1000,
	"spawn_agent": 20000,
	"list_agents": 20000,
	"stop_agent":  2000,
}

var defaultModes = map[string]TruncationMode{
	"read_file":   TruncateHeadTail,
	"shell":       TruncateHeadTail,
	"grep":        TruncateTail,
	"glob":        TruncateTail,
	"edit_file":   TruncateTail,
	"write_file":  TruncateTail,
	"spawn_agent": TruncateHeadTail,
}

const defaultCharLimit = 30000

// TruncateOutput bounds output to maxChars, inserting a warning marker at
// the cut point. mode chooses whether the removed span is from the middle
// (head and tail both kept) or from the front (tail kept).
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if len(output) <= maxChars {
		return output
	}

	removed := len(output) - maxChars
	switch mode {
	case TruncateTail:
		return fmt.Sprintf("[tool output truncated: %d characters removed from the start]\n\n", removed) +
			output[len(output)-maxChars:]
	default:
		half := maxChars / 2
		return output[:half] +
			fmt.Sprintf("\n\n[tool output truncated: %d characters removed]\n\n", removed) +
			output[len(output)-half:]
	}
}

// TruncateForTool applies the per-tool character limit and mode, falling
// back to defaultCharLimit/TruncateHeadTail for unrecognized tool names.
func TruncateForTool(toolName, output string) string {
	limit, ok := DefaultCharLimits[toolName]
	if !ok {
		limit = defaultCharLimit
	}
	mode, ok := defaultModes[toolName]
	if !ok {
		mode = TruncateHeadTail
	}
	return TruncateOutput(output, limit, mode)
}

// TruncateLines caps output at maxLines, keeping a head/tail split and
// reporting the omitted count.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}
	head := maxLines / 2
	tail := maxLines - head
	omitted := len(lines) - head - tail
	return strings.Join(lines[:head], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tail:], "\n")
}
