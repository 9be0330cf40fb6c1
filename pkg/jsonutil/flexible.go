// Package jsonutil decodes loosely typed JSON produced by language models.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// FlexString is a JSON scalar kept as text. Models asked for a number
// sometimes answer with a string and the other way round; both decode.
type FlexString string

// UnmarshalJSON accepts any JSON value.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	*f = FlexString(StringValue(data))
	return nil
}

func (f FlexString) String() string { return string(f) }

// StringValue renders a JSON value as text. Strings are unquoted, numbers use
// their shortest form ("1.0" becomes "1"), booleans become true/false, and
// null or empty input yields "". Objects and arrays are returned verbatim.
func StringValue(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}

	switch c := trimmed[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case c == 't' || c == 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err == nil {
			return strconv.FormatBool(b)
		}
	case c == '-' || (c >= '0' && c <= '9'):
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var n json.Number
		if err := dec.Decode(&n); err == nil {
			return formatNumber(n)
		}
	}
	return string(trimmed)
}

func formatNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
