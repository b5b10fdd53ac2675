package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonpress/gatehouse/internal/extract"
)

type verdict struct {
	Confidence float64  `json:"confidence"`
	Valid      bool     `json:"valid"`
	Errors     []string `json:"errors"`
}

func TestJSON_StrategyEquivalence(t *testing.T) {
	// All three encodings of the same document must decode identically.
	want := verdict{Confidence: 82.5, Valid: true, Errors: []string{"stale odds"}}

	tests := []struct {
		name     string
		raw      string
		strategy string
	}{
		{
			name:     "json fence",
			raw:      "Here is my review.\n```json\n{\"confidence\": 82.5, \"valid\": true, \"errors\": [\"stale odds\"]}\n```\nDone.",
			strategy: "fenced_json",
		},
		{
			name:     "generic fence",
			raw:      "```\n{\"confidence\": 82.5, \"valid\": true, \"errors\": [\"stale odds\"]}\n```",
			strategy: "fenced_any",
		},
		{
			name:     "bare braces in prose",
			raw:      "My assessment follows: {\"confidence\": 82.5, \"valid\": true, \"errors\": [\"stale odds\"]} as requested.",
			strategy: "balanced_braces",
		},
		{
			name:     "python literals in prose",
			raw:      "Result: {'confidence': 82.5, 'valid': True, 'errors': ['stale odds']} -- let me know.",
			strategy: "repair",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, strategy, err := extract.JSON(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, strategy)

			var got verdict
			require.NoError(t, extract.Unmarshal(tt.raw, &got))
			assert.Equal(t, want, got)
			assert.NotEmpty(t, doc)
		})
	}
}

func TestJSON_SmartQuotes(t *testing.T) {
	raw := "{“confidence”: 10, “valid”: False, “errors”: []}"
	var got verdict
	require.NoError(t, extract.Unmarshal(raw, &got))
	assert.Equal(t, verdict{Confidence: 10, Valid: false, Errors: []string{}}, got)
}

func TestJSON_NoJSON(t *testing.T) {
	_, _, err := extract.JSON("I could not complete the review, sorry.")
	assert.ErrorIs(t, err, extract.ErrNoJSON)
}

func TestJSON_BracesInsideStrings(t *testing.T) {
	raw := `prefix {"note": "uses {curly} text", "confidence": 5} suffix`
	doc, strategy, err := extract.JSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "balanced_braces", strategy)
	assert.JSONEq(t, `{"note": "uses {curly} text", "confidence": 5}`, string(doc))
}
