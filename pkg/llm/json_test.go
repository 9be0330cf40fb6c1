package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain object", `{"mentions": []}`, `{"mentions": []}`},
		{"plain array", `[{"id": "prompt_1"}]`, `[{"id": "prompt_1"}]`},
		{"nested", `{"a": {"b": [1, {"c": 2}]}}`, `{"a": {"b": [1, {"c": 2}]}}`},
		{"code fence", "Here you go:\n```json\n{\"suggestions\": [1]}\n```\nDone.", `{"suggestions": [1]}`},
		{"bare fence", "```\n[1, 2]\n```", `[1, 2]`},
		{"text before and after", `Sure! {"ok": true} Hope that helps.`, `{"ok": true}`},
		{"brackets in strings", `{"context": "uses {braces} and [brackets]"}`, `{"context": "uses {braces} and [brackets]"}`},
		{"escaped quotes", `{"text": "she said \"hi\" {"}`, `{"text": "she said \"hi\" {"}`},
		{"array before object", `[{"x": 1}] and {"y": 2}`, `[{"x": 1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSON_Errors(t *testing.T) {
	for _, input := range []string{"", "no json here", `{"unterminated": `} {
		_, err := ExtractJSON(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestDecodeStructured(t *testing.T) {
	type suggestion struct {
		ID      string `json:"id"`
		Content string `json:"content"`
	}
	type payload struct {
		Suggestions []suggestion `json:"suggestions"`
	}

	var got payload
	err := decodeStructured("```json\n{\"suggestions\":[{\"id\":\"prompt_1\",\"content\":\"best crm\"}]}\n```", &got, ProviderOpenAI, "gpt-4o")
	require.NoError(t, err)
	require.Len(t, got.Suggestions, 1)
	assert.Equal(t, "prompt_1", got.Suggestions[0].ID)
}

func TestDecodeStructured_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		message string
	}{
		{"not json", "I cannot help with that", "structured output was not JSON"},
		{"wrong shape", `{"suggestions": "not a list"}`, "structured output did not match schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Suggestions []string `json:"suggestions"`
			}
			err := decodeStructured(tt.content, &out, ProviderGoogle, "gemini-1.5-pro")

			var llmErr *Error
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, ErrorTypeResponse, llmErr.Type)
			assert.Equal(t, tt.message, llmErr.Message)
			assert.Equal(t, ProviderGoogle, llmErr.Provider)
			assert.False(t, llmErr.Retryable)
		})
	}
}
