package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantErr    bool
		category   string
		confidence string
	}{
		{
			name:       "bare object",
			input:      `{"category": "Music", "confidence": "high"}`,
			category:   "Music",
			confidence: "high",
		},
		{
			name:       "object wrapped in prose",
			input:      "Sure! Here is the classification:\n{\"category\": \"Gaming\", \"confidence\": \"medium\"}\nLet me know if you need anything else.",
			category:   "Gaming",
			confidence: "medium",
		},
		{
			name:       "object in code fence",
			input:      "```json\n{\"category\": \"News\", \"confidence\": \"low\"}\n```",
			category:   "News",
			confidence: "low",
		},
		{
			name:       "braces inside string values",
			input:      `{"category": "Other", "confidence": "low", "note": "weird {nested} text"}`,
			category:   "Other",
			confidence: "low",
		},
		{
			name:    "no object",
			input:   "I could not classify this video.",
			wantErr: true,
		},
		{
			name:    "unterminated object",
			input:   `{"category": "Music", "confidence":`,
			wantErr: true,
		},
		{
			name:    "invalid JSON inside braces",
			input:   `{category: Music}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result Classification
			err := ExtractJSONObject(tt.input, &result)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.category, result.Category)
			require.Equal(t, tt.confidence, string(result.Confidence))
		})
	}
}

func TestExtractJSONObjectTakesFirstTopLevel(t *testing.T) {
	input := `{"category": "Music", "confidence": "high"} {"category": "Gaming", "confidence": "low"}`
	var result Classification
	require.NoError(t, ExtractJSONObject(input, &result))
	require.Equal(t, "Music", result.Category)
}
