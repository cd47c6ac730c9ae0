package memory

import (
	"encoding/json"
	"strings"
)

// LearningsMarker delimits the trailing structured block the completion
// prompt instructs the model to append. Everything after the last marker
// is decoded as a LearningsCandidate; everything before it is the
// human-facing response.
const LearningsMarker = "---LEARNINGS---"

// ExtractLearnings decodes the trailing structured block from an AI
// response. A missing marker or a malformed block is the expected
// "no learnings" outcome and returns nil, never an error.
func ExtractLearnings(responseText string) *LearningsCandidate {
	idx := strings.LastIndex(responseText, LearningsMarker)
	if idx < 0 {
		return nil
	}

	block := strings.TrimSpace(responseText[idx+len(LearningsMarker):])
	block = stripCodeFence(block)
	if block == "" || !strings.HasPrefix(block, "{") {
		return nil
	}

	var c LearningsCandidate
	if err := json.Unmarshal([]byte(block), &c); err != nil {
		return nil
	}
	return &c
}

// CleanResponse returns the response with the trailing structured block
// removed. This is the only form a human-facing surface may display.
func CleanResponse(responseText string) string {
	idx := strings.LastIndex(responseText, LearningsMarker)
	if idx < 0 {
		return strings.TrimSpace(responseText)
	}
	return strings.TrimSpace(responseText[:idx])
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
