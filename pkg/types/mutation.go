package types

import (
	"maps"
	"slices"
	"strings"
)

// Mutation is a pure change to a table. Apply mutates the table it is given
// and must not keep a reference to it. Keys lists the trimmed key values
// the mutation reads or writes; the sync controller uses them to detect
// collisions with concurrent writers.
type Mutation interface {
	Keys(s Schema) []string
	Apply(t *Table) error
}

// InsertMutation inserts rec.
func InsertMutation(rec Record) Mutation {
	return &insertMutation{rec: rec.Clone()}
}

// UpdateMutation merges fields into the record with the given key. When the
// fields rename the record, both the old and new keys are touched.
func UpdateMutation(key string, fields Record) Mutation {
	return &updateMutation{key: strings.TrimSpace(key), fields: fields.Clone()}
}

// DeleteMutation removes the record with the given key.
func DeleteMutation(key string) Mutation {
	return &deleteMutation{key: strings.TrimSpace(key)}
}

// Batch applies several mutations in order as one edit. If any step fails
// the table is left as the failing step found it; callers apply batches to
// a clone.
func Batch(ms ...Mutation) Mutation {
	return batch(slices.Clone(ms))
}

type insertMutation struct {
	rec Record
}

func (m *insertMutation) Keys(s Schema) []string {
	return []string{strings.TrimSpace(m.rec.String(s.Key))}
}

func (m *insertMutation) Apply(t *Table) error { return t.Insert(m.rec) }

type updateMutation struct {
	key    string
	fields Record
}

func (m *updateMutation) Keys(s Schema) []string {
	keys := []string{m.key}
	if v, ok := m.fields[s.Key].(string); ok {
		if renamed := strings.TrimSpace(v); renamed != m.key {
			keys = append(keys, renamed)
		}
	}
	return keys
}

func (m *updateMutation) Apply(t *Table) error { return t.Update(m.key, maps.Clone(m.fields)) }

type deleteMutation struct {
	key string
}

func (m *deleteMutation) Keys(Schema) []string { return []string{m.key} }

func (m *deleteMutation) Apply(t *Table) error { return t.Delete(m.key) }

type batch []Mutation

func (b batch) Keys(s Schema) []string {
	var keys []string
	for _, m := range b {
		for _, k := range m.Keys(s) {
			if !slices.Contains(keys, k) {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func (b batch) Apply(t *Table) error {
	for _, m := range b {
		if err := m.Apply(t); err != nil {
			return err
		}
	}
	return nil
}
