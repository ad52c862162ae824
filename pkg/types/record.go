package types

import "maps"

// Record is a single row: field name to value. Values use the canonical Go
// type of their field (string, int64, float64 or bool).
type Record map[string]any

// Clone returns a shallow copy; values are immutable scalars.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// Equal reports whether both records hold the same fields and values.
func (r Record) Equal(other Record) bool {
	return maps.Equal(r, other)
}

// String returns the named value as a string, or "" if it is not one.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// Int returns the named value as an int64, or 0 if it is not one.
func (r Record) Int(field string) int64 {
	n, _ := r[field].(int64)
	return n
}

// Float returns the named value as a float64. Integers are widened.
func (r Record) Float(field string) float64 {
	switch v := r[field].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// Bool returns the named value as a bool, or false if it is not one.
func (r Record) Bool(field string) bool {
	b, _ := r[field].(bool)
	return b
}
