package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var errNoJSON = errors.New("no valid JSON found in response")

// fencedBlock matches a markdown code fence, optionally tagged json.
var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// ExtractJSON returns the first complete JSON object or array in a model
// response, looking inside a code fence when there is one.
func ExtractJSON(response string) (string, error) {
	text := response
	if m := fencedBlock.FindStringSubmatch(response); m != nil {
		text = m[1]
	}

	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		if raw, ok := firstValue(text[i:]); ok {
			return raw, nil
		}
	}
	return "", errNoJSON
}

// firstValue decodes one JSON value from the head of s.
func firstValue(s string) (string, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return "", false
	}
	return string(raw), true
}

// decodeStructured extracts JSON from a structured-output completion and
// unmarshals it into out, reporting failures as non-retryable response errors.
func decodeStructured(content string, out any, provider, model string) error {
	raw, err := ExtractJSON(content)
	if err != nil {
		return NewErrorWithContext(ErrorTypeResponse, "structured output was not JSON", false, err, provider, model, 0)
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(out); err != nil {
		return NewErrorWithContext(ErrorTypeResponse, "structured output did not match schema", false, err, provider, model, 0)
	}
	return nil
}
