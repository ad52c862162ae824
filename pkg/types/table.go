package types

import (
	"slices"
	"strings"
)

// Table is an ordered collection of records sharing one schema. Order is
// insertion (or load) order. Key values are trimmed, non-empty, compared
// case-sensitively and unique within the table.
//
// A Table is a plain value owned by its caller; it is not safe for
// concurrent mutation.
type Table struct {
	schema  Schema
	records []Record
	index   map[string]int // key -> position in records
}

// NewTable returns an empty table for the schema.
func NewTable(schema Schema) *Table {
	return &Table{
		schema: schema,
		index:  make(map[string]int),
	}
}

// Schema returns the table's schema.
func (t *Table) Schema() Schema {
	return t.schema
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.records)
}

// Insert appends a new record. Absent fields take their defaults and the
// key is trimmed. Returns *ValidationError for unknown fields or bad
// values and *DuplicateKeyError when the key is already present; the
// table is unchanged on error.
func (t *Table) Insert(rec Record) error {
	full, err := t.prepare(rec, false)
	if err != nil {
		return err
	}
	key := full.String(t.schema.Key)
	if _, ok := t.index[key]; ok {
		return &DuplicateKeyError{Key: key}
	}
	t.index[key] = len(t.records)
	t.records = append(t.records, full)
	return nil
}

// Restore appends a record read from storage. Unlike Insert it keeps enum
// values outside the option set so that legacy data loads; they are
// reported by Unmatched. All other checks apply.
func (t *Table) Restore(rec Record) error {
	full, err := t.prepare(rec, true)
	if err != nil {
		return err
	}
	key := full.String(t.schema.Key)
	if _, ok := t.index[key]; ok {
		return &DuplicateKeyError{Key: key}
	}
	t.index[key] = len(t.records)
	t.records = append(t.records, full)
	return nil
}

// Update merges fields into the record with the given key, keeping its
// position. Setting the key field renames the record; the new key must be
// free. Returns *NotFoundError, *ValidationError or *DuplicateKeyError;
// the table is unchanged on error.
func (t *Table) Update(key string, fields Record) error {
	key = strings.TrimSpace(key)
	pos, ok := t.index[key]
	if !ok {
		return &NotFoundError{Key: key}
	}
	merged := t.records[pos].Clone()
	for name, value := range fields {
		f, ok := t.schema.Field(name)
		if !ok {
			return &ValidationError{Field: name, Value: value, Reason: "unknown field"}
		}
		v, err := f.Coerce(value)
		if err != nil {
			return err
		}
		merged[name] = v
	}
	newKey, err := t.checkKey(merged)
	if err != nil {
		return err
	}
	if newKey != key {
		if _, taken := t.index[newKey]; taken {
			return &DuplicateKeyError{Key: newKey}
		}
		delete(t.index, key)
		t.index[newKey] = pos
	}
	t.records[pos] = merged
	return nil
}

// Delete removes the record with the given key. The key may be reused by
// a later Insert. Returns *NotFoundError if absent.
func (t *Table) Delete(key string) error {
	key = strings.TrimSpace(key)
	pos, ok := t.index[key]
	if !ok {
		return &NotFoundError{Key: key}
	}
	t.records = slices.Delete(t.records, pos, pos+1)
	t.reindex()
	return nil
}

// Find returns a copy of the record whose key matches the trimmed key.
func (t *Table) Find(key string) (Record, bool) {
	pos, ok := t.index[strings.TrimSpace(key)]
	if !ok {
		return nil, false
	}
	return t.records[pos].Clone(), true
}

// Records returns copies of all records in table order.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.records))
	for i, r := range t.records {
		out[i] = r.Clone()
	}
	return out
}

// Keys returns the key values in table order.
func (t *Table) Keys() []string {
	keys := make([]string, len(t.records))
	for i, r := range t.records {
		keys[i] = r.String(t.schema.Key)
	}
	return keys
}

// Unmatched returns, in table order, the keys of records whose value for
// the named enum field is not one of its options.
func (t *Table) Unmatched(field string) []string {
	f, ok := t.schema.Field(field)
	if !ok || f.Type != ValueTypeEnum {
		return nil
	}
	var keys []string
	for _, r := range t.records {
		if _, ok := f.OptionIndex(r[field]); !ok {
			keys = append(keys, r.String(t.schema.Key))
		}
	}
	return keys
}

// Clone returns a deep copy that shares no mutable state with t.
func (t *Table) Clone() *Table {
	c := &Table{
		schema:  t.schema,
		records: make([]Record, len(t.records)),
		index:   make(map[string]int, len(t.index)),
	}
	for i, r := range t.records {
		c.records[i] = r.Clone()
	}
	for k, v := range t.index {
		c.index[k] = v
	}
	return c
}

// Equal reports whether both tables have the same columns, key and
// records in the same order.
func (t *Table) Equal(other *Table) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.schema.Key != other.schema.Key ||
		!slices.Equal(t.schema.FieldNames(), other.schema.FieldNames()) {
		return false
	}
	return slices.EqualFunc(t.records, other.records, Record.Equal)
}

// prepare builds a complete, coerced record from rec. With legacy set, enum
// values outside the option set are kept as strings.
func (t *Table) prepare(rec Record, legacy bool) (Record, error) {
	for name, value := range rec {
		if _, ok := t.schema.Field(name); !ok {
			return nil, &ValidationError{Field: name, Value: value, Reason: "unknown field"}
		}
	}
	full := make(Record, len(t.schema.Fields))
	for _, f := range t.schema.Fields {
		value, ok := rec[f.Name]
		if !ok || value == nil {
			full[f.Name] = f.DefaultValue()
			continue
		}
		if legacy && f.Type == ValueTypeEnum {
			if s, isString := value.(string); isString {
				full[f.Name] = s
				continue
			}
		}
		v, err := f.Coerce(value)
		if err != nil {
			return nil, err
		}
		full[f.Name] = v
	}
	if _, err := t.checkKey(full); err != nil {
		return nil, err
	}
	return full, nil
}

// checkKey trims the key in place and rejects an empty one.
func (t *Table) checkKey(rec Record) (string, error) {
	raw := rec.String(t.schema.Key)
	key := strings.TrimSpace(raw)
	if key == "" {
		return "", &ValidationError{Field: t.schema.Key, Value: raw, Reason: "key must not be empty"}
	}
	rec[t.schema.Key] = key
	return key, nil
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.records))
	for i, r := range t.records {
		t.index[r.String(t.schema.Key)] = i
	}
}
