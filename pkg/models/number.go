package models

import (
    "bytes"
    "encoding/json"
    "fmt"
    "math"
    "strconv"
    "strings"
)

// Number is a price field as the feed sends it. Providers mix JSON numbers,
// numeric strings and nulls in the same array, so decoding never fails: anything
// that is not a finite number reads as 0. The received text is kept for search.
type Number struct {
    value float64
    text  string
    valid bool
}

// NewNumber wraps a float as if it had arrived as a JSON number.
func NewNumber(v float64) Number {
    n := Number{value: v, valid: !math.IsNaN(v) && !math.IsInf(v, 0)}
    n.text = strconv.FormatFloat(v, 'f', -1, 64)
    return n
}

// NumberFromString wraps a string as if it had arrived as a JSON string.
func NumberFromString(s string) Number {
    n := Number{text: s}
    n.parse(s)
    return n
}

func (n *Number) parse(s string) {
    f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
    if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
        n.value, n.valid = 0, false
        return
    }
    n.value, n.valid = f, true
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
    *n = Number{}
    b = bytes.TrimSpace(b)
    switch {
    case len(b) == 0 || bytes.Equal(b, []byte("null")):
        return nil
    case b[0] == '"':
        var s string
        if err := json.Unmarshal(b, &s); err != nil {
            return nil
        }
        n.text = s
        n.parse(s)
    default:
        n.parse(string(b))
        if n.valid {
            // render the way a JS runtime stringifies a number: 61234.50 -> "61234.5"
            n.text = strconv.FormatFloat(n.value, 'f', -1, 64)
        } else {
            n.text = string(b)
        }
    }
    return nil
}

// MarshalJSON writes the normalized numeric value.
func (n Number) MarshalJSON() ([]byte, error) {
    return []byte(strconv.FormatFloat(n.Float(), 'f', -1, 64)), nil
}

// Float returns the numeric value, 0 when the source was not a finite number.
func (n Number) Float() float64 {
    if !n.valid {
        return 0
    }
    return n.value
}

// Valid reports whether the source held a finite number.
func (n Number) Valid() bool { return n.valid }

// Text returns the textual form of the value as received.
func (n Number) Text() string { return n.text }

// String renders the value with two decimals.
func (n Number) String() string { return FormatPrice(n.Float()) }

// FormatPrice renders a price with two decimals; NaN and infinities render as 0.00.
func FormatPrice(v float64) string {
    if math.IsNaN(v) || math.IsInf(v, 0) {
        v = 0
    }
    return fmt.Sprintf("%.2f", v)
}
