package types

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Field value types determine what values a field accepts.
const (
	ValueTypeText     = "text"
	ValueTypeInteger  = "integer"
	ValueTypeDecimal  = "decimal"
	ValueTypeEnum     = "enum"
	ValueTypeBoolean  = "boolean"
	ValueTypeLongText = "longtext"
)

// validValueTypes is the set of recognized field value types.
var validValueTypes = map[string]bool{
	ValueTypeText:     true,
	ValueTypeInteger:  true,
	ValueTypeDecimal:  true,
	ValueTypeEnum:     true,
	ValueTypeBoolean:  true,
	ValueTypeLongText: true,
}

// IsValidValueType reports whether the given string is a recognized value type.
func IsValidValueType(vt string) bool {
	return validValueTypes[vt]
}

// Field is one typed column of a schema.
type Field struct {
	Name    string   // Column name, unique within the schema.
	Type    string   // One of the ValueType constants.
	Options []string // Allowed values, in display order (enum only).
	Default any      // Value used when the field is absent; nil means the type default.
}

// ZeroValue returns the type-based default for a value type: "" for text
// kinds, int64(0), float64(0), false, and the first option for enums.
func (f Field) ZeroValue() any {
	switch f.Type {
	case ValueTypeInteger:
		return int64(0)
	case ValueTypeDecimal:
		return float64(0)
	case ValueTypeBoolean:
		return false
	case ValueTypeEnum:
		if len(f.Options) > 0 {
			return f.Options[0]
		}
		return ""
	default:
		return ""
	}
}

// DefaultValue returns the declared default, or ZeroValue when none is set.
func (f Field) DefaultValue() any {
	if f.Default != nil {
		v, err := f.Coerce(f.Default)
		if err == nil {
			return v
		}
	}
	return f.ZeroValue()
}

// OptionIndex returns the position of value in the field's option list.
// It returns (-1, false) for values outside the list, including legacy
// values loaded from older data, so lookups never fail on them.
func (f Field) OptionIndex(value any) (int, bool) {
	s, ok := value.(string)
	if !ok {
		return -1, false
	}
	i := slices.Index(f.Options, s)
	return i, i >= 0
}

// Coerce converts value to the canonical Go type for the field and checks
// bounds and options. Integer kinds are accepted for decimal fields.
// Returns a *ValidationError on failure.
func (f Field) Coerce(value any) (any, error) {
	invalid := func(reason string) error {
		return &ValidationError{Field: f.Name, Value: value, Reason: reason}
	}
	switch f.Type {
	case ValueTypeText, ValueTypeLongText:
		s, ok := value.(string)
		if !ok {
			return nil, invalid("expected a string")
		}
		// CSV readers fold CRLF inside quoted cells to LF.
		return strings.ReplaceAll(s, "\r\n", "\n"), nil
	case ValueTypeEnum:
		s, ok := value.(string)
		if !ok {
			return nil, invalid("expected a string")
		}
		if _, ok := f.OptionIndex(s); !ok {
			return nil, invalid(fmt.Sprintf("must be one of %s", strings.Join(f.Options, ", ")))
		}
		return s, nil
	case ValueTypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, invalid("expected a boolean")
		}
		return b, nil
	case ValueTypeInteger:
		n, ok := toInt64(value)
		if !ok {
			return nil, invalid("expected an integer")
		}
		if n < 0 {
			return nil, invalid("must not be negative")
		}
		return n, nil
	case ValueTypeDecimal:
		d, ok := toFloat64(value)
		if !ok {
			return nil, invalid("expected a number")
		}
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, invalid("must be finite")
		}
		if d < 0 {
			return nil, invalid("must not be negative")
		}
		return d, nil
	default:
		return nil, invalid(fmt.Sprintf("unknown value type %q", f.Type))
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float64:
		// JSON numbers arrive as float64; accept them when integral.
		if n == math.Trunc(n) && !math.IsInf(n, 0) && math.Abs(n) < 1<<53 {
			return int64(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		i, ok := toInt64(v)
		return float64(i), ok
	}
}
