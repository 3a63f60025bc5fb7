package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ValueKind tags the scalar held by a Value.
type ValueKind uint8

const (
	// KindMissing marks an absent cell. It is never coerced to zero or "".
	KindMissing ValueKind = iota
	// KindNumber holds a float64, including ±Inf and NaN produced by ratios.
	KindNumber
	// KindText holds a string.
	KindText
)

// String returns the kind name used in schema listings.
func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "missing"
	}
}

// MissingToken is how a missing value is rendered in text outputs.
const MissingToken = "NA"

// Value is a single table cell: a number, a string, or an explicit missing marker.
//
// The zero Value is missing, so a lookup of an absent column in a Record
// yields a missing value without extra checks.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
}

// Num creates a numeric value.
func Num(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// Str creates a text value.
func Str(s string) Value { return Value{Kind: KindText, Str: s} }

// Null creates a missing value.
func Null() Value { return Value{} }

// IsMissing reports whether the value is the missing marker.
func (v Value) IsMissing() bool { return v.Kind == KindMissing }

// IsNumber reports whether the value holds a number.
func (v Value) IsNumber() bool { return v.Kind == KindNumber }

// IsText reports whether the value holds a string.
func (v Value) IsText() bool { return v.Kind == KindText }

// IsFinite reports whether the value is a number that is neither ±Inf nor NaN.
func (v Value) IsFinite() bool {
	return v.Kind == KindNumber && !math.IsInf(v.Num, 0) && !math.IsNaN(v.Num)
}

// Float returns the numeric payload and whether the value is a number.
func (v Value) Float() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	return v.Num, true
}

// String renders the value: numbers in their shortest form, text as-is,
// missing as NA.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return FormatNumber(v.Num)
	case KindText:
		return v.Str
	default:
		return MissingToken
	}
}

// Equal compares two values. Missing equals only missing, numbers compare
// numerically and text compares exactly. A number never equals text.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num == o.Num
	case KindText:
		return v.Str == o.Str
	default:
		return true
	}
}

// FormatNumber renders a float in its shortest round-trippable form.
func FormatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	case math.IsNaN(f):
		return "NaN"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseValue types a raw cell. Tokens listed in missing become missing,
// anything that parses as a float (after stripping thousands separators)
// becomes a number, and everything else is text.
func ParseValue(raw string, missing []string) Value {
	s := strings.TrimSpace(raw)
	for _, tok := range missing {
		if s == tok {
			return Null()
		}
	}
	if s == "" {
		return Null()
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil && looksNumeric(s) {
		return Num(f)
	}
	return Str(s)
}

// looksNumeric rejects strings strconv accepts but a spreadsheet would treat
// as text, such as "Inf", "nan" or hex literals.
func looksNumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.', r == ',', r == '-', r == '+', r == 'e', r == 'E':
		default:
			return false
		}
	}
	return true
}

// MarshalJSON encodes numbers as JSON numbers, text as strings and missing as
// null. Non-finite numbers have no JSON form and are written as the strings
// "Inf", "-Inf" and "NaN", which FromInterface reads back as numbers.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		if !v.IsFinite() {
			return json.Marshal(FormatNumber(v.Num))
		}
		return json.Marshal(v.Num)
	case KindText:
		return json.Marshal(v.Str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts numbers, strings and null.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromInterface(raw)
	return nil
}

// FromInterface converts a decoded JSON/YAML scalar into a Value.
func FromInterface(raw interface{}) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case float64:
		return Num(x)
	case float32:
		return Num(float64(x))
	case int:
		return Num(float64(x))
	case int64:
		return Num(float64(x))
	case bool:
		return Str(strconv.FormatBool(x))
	case string:
		switch x {
		case "Inf":
			return Num(math.Inf(1))
		case "-Inf":
			return Num(math.Inf(-1))
		case "NaN":
			return Num(math.NaN())
		}
		return Str(x)
	case Value:
		return x
	default:
		return Str(toString(x))
	}
}

func toString(x interface{}) string {
	if s, ok := x.(interface{ String() string }); ok {
		return s.String()
	}
	b, _ := json.Marshal(x)
	return string(b)
}
