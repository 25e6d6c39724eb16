package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Value is a JSON leaf decoded without type expectations. Any JSON value is
// accepted; the typed accessors decide what it coerces to.
type Value struct {
	raw json.RawMessage
}

// UnmarshalJSON stores the raw token.
func (v *Value) UnmarshalJSON(data []byte) error {
	v.raw = append(v.raw[:0], data...)
	return nil
}

// MarshalJSON returns the raw token, or null when absent.
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v.raw) == 0 {
		return []byte("null"), nil
	}
	return v.raw, nil
}

// V builds a Value from a Go value. It is intended for tests and fixtures.
func V(x any) Value {
	data, err := json.Marshal(x)
	if err != nil {
		return Value{}
	}
	return Value{raw: data}
}

// Present reports whether the value was sent and is not null.
func (v Value) Present() bool {
	return len(v.raw) > 0 && !bytes.Equal(v.raw, []byte("null"))
}

// Float coerces numbers and numeric strings. Empty strings, null, booleans,
// objects and non-finite values are absent.
func (v Value) Float() (float64, bool) {
	if !v.Present() {
		return 0, false
	}
	s := string(v.raw)
	if v.raw[0] == '"' {
		if err := json.Unmarshal(v.raw, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
	} else if !isNumberToken(v.raw[0]) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int coerces like Float and additionally requires an integral value.
func (v Value) Int() (int64, bool) {
	f, ok := v.Float()
	if !ok || f != math.Trunc(f) || f >= 1<<63 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// String coerces scalars to their text. Empty strings are absent.
func (v Value) String() (string, bool) {
	if !v.Present() {
		return "", false
	}
	switch c := v.raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(v.raw, &s); err != nil || s == "" {
			return "", false
		}
		return s, true
	case c == '{' || c == '[':
		return "", false
	default:
		return string(v.raw), true
	}
}

// Bool accepts JSON booleans and the strings "true" and "false".
func (v Value) Bool() (bool, bool) {
	if !v.Present() {
		return false, false
	}
	switch string(v.raw) {
	case "true", `"true"`:
		return true, true
	case "false", `"false"`:
		return false, true
	default:
		return false, false
	}
}

func isNumberToken(c byte) bool {
	return c == '-' || (c >= '0' && c <= '9')
}

var (
	firstInteger = regexp.MustCompile(`-?\d+`)
	firstDecimal = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// parseSignal extracts the first integer literal, e.g. "-45dBm" -> -45.
func parseSignal(v Value) (int64, bool) {
	s, ok := v.String()
	if !ok {
		return 0, false
	}
	m := firstInteger.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parsePercent extracts the first decimal literal, e.g. "42%" -> 42.
func parsePercent(v Value) (float64, bool) {
	s, ok := v.String()
	if !ok {
		return 0, false
	}
	m := firstDecimal.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
