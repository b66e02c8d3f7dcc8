package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tordrt/dwload/internal/etlerr"
)

// ParseCurrency converts currency-formatted text such as "$123.45" or "€0.00"
// to a float. A single leading currency symbol is dropped; the remainder must
// be a plain numeric literal.
func ParseCurrency(s string) (float64, error) {
	text := strings.TrimSpace(s)
	if r, size := utf8.DecodeRuneInString(text); size > 0 && !isNumericStart(r) {
		text = text[size:]
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, etlerr.Parse("", "currency", fmt.Errorf("%q is not a currency amount", s))
	}
	return v, nil
}

func isNumericStart(r rune) bool {
	return unicode.IsDigit(r) || r == '-' || r == '+' || r == '.'
}

// Currency is an amount decoded from currency text or a bare JSON number
type Currency float64

// UnmarshalJSON implements json.Unmarshaler
func (c *Currency) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return etlerr.Parse("", "currency", fmt.Errorf("unexpected value %s", data))
		}
		*c = Currency(f)
		return nil
	}
	v, err := ParseCurrency(s)
	if err != nil {
		return err
	}
	*c = Currency(v)
	return nil
}

// Text is a string field that may arrive as a JSON number
type Text string

// UnmarshalJSON implements json.Unmarshaler
func (t *Text) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return etlerr.Parse("", "text", fmt.Errorf("unexpected value %s", data))
	}
	*t = Text(n.String())
	return nil
}

// Flag is a boolean that may arrive as true/false, 0/1 or their string forms
type Flag bool

// UnmarshalJSON implements json.Unmarshaler
func (f *Flag) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	switch strings.ToLower(raw) {
	case "null", "":
		return nil
	case "true", "1", "t":
		*f = true
	case "false", "0", "f":
		*f = false
	default:
		return etlerr.Parse("", "flag", fmt.Errorf("unexpected value %s", data))
	}
	return nil
}

// IDList is the raw product reference field of a transaction: either a single
// bare identifier or identifiers joined by ", ".
type IDList string

// UnmarshalJSON implements json.Unmarshaler
func (l *IDList) UnmarshalJSON(data []byte) error {
	var t Text
	if err := t.UnmarshalJSON(data); err != nil {
		return err
	}
	*l = IDList(t)
	return nil
}

// Tokens splits the list in its original order, keeping duplicates
func (l IDList) Tokens() []string {
	s := strings.TrimSpace(string(l))
	if s == "" {
		return nil
	}
	if !strings.Contains(s, ", ") {
		return []string{s}
	}
	parts := strings.Split(s, ", ")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
