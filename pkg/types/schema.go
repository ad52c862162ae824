package types

import (
	"errors"
	"fmt"
	"slices"
)

// Schema validation errors.
var (
	ErrSchemaNoFields       = errors.New("schema has no fields")
	ErrSchemaFieldName      = errors.New("field name must not be empty")
	ErrSchemaDuplicate      = errors.New("duplicate field name")
	ErrSchemaValueType      = errors.New("unknown field value type")
	ErrSchemaNoOptions      = errors.New("enum field needs at least one option")
	ErrSchemaKeyUnknown     = errors.New("key field is not declared")
	ErrSchemaKeyType        = errors.New("key field must be a text field")
	ErrSchemaInvalidDefault = errors.New("field default is invalid")
)

// Schema is an ordered list of fields with one designated unique key.
type Schema struct {
	Name   string  // Table name, e.g. "guests".
	Fields []Field // Column order used for serialization.
	Key    string  // Name of the unique key field.
}

// Validate checks that the schema is well-formed. It returns a wrapped
// sentinel error from this package on failure.
func (s Schema) Validate() error {
	if len(s.Fields) == 0 {
		return ErrSchemaNoFields
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return ErrSchemaFieldName
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: %q", ErrSchemaDuplicate, f.Name)
		}
		seen[f.Name] = true
		if !IsValidValueType(f.Type) {
			return fmt.Errorf("%w: %q on field %q", ErrSchemaValueType, f.Type, f.Name)
		}
		if f.Type == ValueTypeEnum && len(f.Options) == 0 {
			return fmt.Errorf("%w: %q", ErrSchemaNoOptions, f.Name)
		}
		if f.Default != nil {
			if _, err := f.Coerce(f.Default); err != nil {
				return fmt.Errorf("%w: %v", ErrSchemaInvalidDefault, err)
			}
		}
	}
	key, ok := s.Field(s.Key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrSchemaKeyUnknown, s.Key)
	}
	if key.Type != ValueTypeText {
		return fmt.Errorf("%w: %q is %s", ErrSchemaKeyType, s.Key, key.Type)
	}
	return nil
}

// Field returns the field with the given name.
func (s Schema) Field(name string) (Field, bool) {
	i := slices.IndexFunc(s.Fields, func(f Field) bool { return f.Name == name })
	if i < 0 {
		return Field{}, false
	}
	return s.Fields[i], true
}

// FieldNames returns the field names in schema order.
func (s Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// OptionIndex looks up value in the option list of the named enum field.
// Unknown fields and unmatched values both report (-1, false).
func (s Schema) OptionIndex(field string, value any) (int, bool) {
	f, ok := s.Field(field)
	if !ok || f.Type != ValueTypeEnum {
		return -1, false
	}
	return f.OptionIndex(value)
}

// WithOptions returns a copy of the schema whose named enum field uses the
// given options. If the field's default is no longer an option it is
// dropped, so the first option becomes the default.
func (s Schema) WithOptions(field string, options []string) Schema {
	out := s
	out.Fields = slices.Clone(s.Fields)
	for i, f := range out.Fields {
		if f.Name != field {
			continue
		}
		f.Options = slices.Clone(options)
		if d, ok := f.Default.(string); ok && !slices.Contains(options, d) {
			f.Default = nil
		}
		out.Fields[i] = f
	}
	return out
}

// NewRecord returns a record holding every field's default value.
func (s Schema) NewRecord() Record {
	r := make(Record, len(s.Fields))
	for _, f := range s.Fields {
		r[f.Name] = f.DefaultValue()
	}
	return r
}
