package analyzer

import "strings"

// extractJSON pulls the JSON object out of raw LLM text: everything from
// the first '{' through the last '}', tolerating surrounding prose and
// markdown fences. Returns "" when no braces are present.
func extractJSON(resp string) string {
	start := strings.Index(resp, "{")
	end := strings.LastIndex(resp, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return stripRedundantBraces(resp[start : end+1])
}

// stripRedundantBraces removes exactly one wrapping brace layer when the
// model double-wraps its answer, e.g. {{"action": ...}}. One layer only;
// anything deeper is a real validation failure and goes to the retry loop.
func stripRedundantBraces(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{{") || !strings.HasSuffix(trimmed, "}}") {
		return trimmed
	}
	inner := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if strings.HasPrefix(inner, "{") && strings.HasSuffix(inner, "}") {
		return inner
	}
	return trimmed
}
