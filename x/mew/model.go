package mew

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Text is a request field coerced to text.
// Strings are kept, non-zero numbers and true use their literal text;
// null, false, 0, objects and arrays count as absent.
type Text struct {
	Value   string
	Present bool
}

// UnmarshalJSON never fails on a well-formed value so that shape errors surface as validation errors
func (t *Text) UnmarshalJSON(b []byte) error {
	*t = Text{}

	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		*t = Text{Value: s, Present: s != ""}
	case 't':
		*t = Text{Value: "true", Present: true}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil || f == 0 {
			return nil
		}
		*t = Text{Value: formatNumber(f), Present: true}
	}
	return nil
}

func formatNumber(f float64) string {
	if math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Trimmed returns the field text without surrounding whitespace
func (t Text) Trimmed() string {
	if !t.Present {
		return ""
	}
	return strings.TrimFunc(t.Value, isTrimmable)
}

func isTrimmable(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// CreateInput is the body of a create request
type CreateInput struct {
	Name    Text `json:"name"`
	Content Text `json:"content"`
}

// PageQuery holds the raw pagination parameters exactly as received
type PageQuery struct {
	Skip  string
	Limit string
	Sort  string
}
