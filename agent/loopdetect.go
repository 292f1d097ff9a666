package agent

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/wn-agent/wn/chatmodel"
)

// loopDetectionWindow is the number of trailing tool calls detectLoop
// inspects for a repeating pattern.
const loopDetectionWindow = 6

// toolCallSignature computes a deterministic signature for a tool call:
// name plus a hash of its arguments.
func toolCallSignature(call chatmodel.ToolCall) string {
	raw, _ := json.Marshal(call.Arguments)
	h := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%x", call.Name, h[:8])
}

// extractToolCallSignatures walks the message log backwards collecting the
// most recent count tool-call signatures, in chronological order.
func extractToolCallSignatures(log []chatmodel.Message, count int) []string {
	var sigs []string
	for i := len(log) - 1; i >= 0 && len(sigs) < count; i-- {
		calls := log[i].ToolCalls
		for j := len(calls) - 1; j >= 0 && len(sigs) < count; j-- {
			sigs = append(sigs, toolCallSignature(calls[j]))
		}
	}
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
	return sigs
}

// detectLoop reports whether the last windowSize tool calls follow a
// repeating pattern of length 1, 2, or 3.
func detectLoop(log []chatmodel.Message, windowSize int) bool {
	sigs := extractToolCallSignatures(log, windowSize)
	if len(sigs) < windowSize {
		return false
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if windowSize%patternLen != 0 {
			continue
		}
		pattern := sigs[:patternLen]
		allMatch := true
		for i := patternLen; i < windowSize; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if sigs[i+j] != pattern[j] {
					allMatch = false
					break
				}
			}
			if !allMatch {
				break
			}
		}
		if allMatch {
			return true
		}
	}
	return false
}
