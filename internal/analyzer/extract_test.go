package analyzer

import "testing"

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bare object",
			input:    `{"action": "describe"}`,
			expected: `{"action": "describe"}`,
		},
		{
			name:     "with preamble",
			input:    `Sure, here is the analysis: {"action": "describe"}`,
			expected: `{"action": "describe"}`,
		},
		{
			name:     "with postamble",
			input:    `{"action": "describe"} Let me know if that helps!`,
			expected: `{"action": "describe"}`,
		},
		{
			name:     "markdown fence",
			input:    "```json\n{\"action\": \"describe\"}\n```",
			expected: `{"action": "describe"}`,
		},
		{
			name:     "nested object",
			input:    `{"primary_entity": {"name": "Baikal seal"}}`,
			expected: `{"primary_entity": {"name": "Baikal seal"}}`,
		},
		{
			name:     "double-wrapped strips one layer",
			input:    `{{"action": "describe"}}`,
			expected: `{"action": "describe"}`,
		},
		{
			name:     "triple wrap strips only one layer",
			input:    `{{{"action": "describe"}}}`,
			expected: `{{"action": "describe"}}`,
		},
		{
			name:     "no braces",
			input:    `I could not produce JSON for that.`,
			expected: ``,
		},
		{
			name:     "only opening brace",
			input:    `{"action": "describe"`,
			expected: ``,
		},
		{
			name:     "closing before opening",
			input:    `} nothing {`,
			expected: ``,
		},
		{
			name:     "empty input",
			input:    ``,
			expected: ``,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.input); got != tt.expected {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStripRedundantBraces(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain object untouched", `{"a": 1}`, `{"a": 1}`},
		{"double wrap removed", `{{"a": 1}}`, `{"a": 1}`},
		{"whitespace inside wrap", `{ {"a": 1} }`, `{ {"a": 1} }`},
		{"legitimate nested value untouched", `{"outer": {"inner": 1}}`, `{"outer": {"inner": 1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripRedundantBraces(tt.input); got != tt.expected {
				t.Errorf("stripRedundantBraces(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
