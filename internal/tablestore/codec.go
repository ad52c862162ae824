package tablestore

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/planner/pkg/types"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// Serialize renders the table in canonical CSV form: a header with the
// schema's field names in order, then one line per record in table order.
// Values containing the delimiter, a quote, CR or LF, or starting with a
// space are quoted; quotes are doubled. Lines end with "\n".
func Serialize(t *types.Table) ([]byte, error) {
	schema := t.Schema()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(schema.FieldNames()); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	row := make([]string, len(schema.Fields))
	for _, rec := range t.Records() {
		for i, f := range schema.Fields {
			row[i] = formatValue(f, rec[f.Name])
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing record %q: %w", rec.String(schema.Key), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse reads canonical (or legacy) CSV into a table for the schema. The
// header may list the schema's fields in any order and may omit non-key
// fields, which then take their defaults. Any malformed row, unknown
// column, bad value, empty key or duplicate key fails the whole parse with
// a *CorruptDataError; rows are never dropped.
func Parse(schema types.Schema, data []byte) (*types.Table, error) {
	return parse(schema, "", data)
}

func parse(schema types.Schema, path string, data []byte) (*types.Table, error) {
	corrupt := func(line int, format string, args ...any) error {
		return &types.CorruptDataError{Path: path, Line: line, Reason: fmt.Sprintf(format, args...)}
	}

	t := types.NewTable(schema)
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return t, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, csvError(path, err)
	}
	columns := make([]types.Field, len(header))
	for i, name := range header {
		f, ok := schema.Field(name)
		if !ok {
			return nil, corrupt(1, "unknown column %q", name)
		}
		if slices.Contains(header[:i], name) {
			return nil, corrupt(1, "duplicate column %q", name)
		}
		columns[i] = f
	}
	if !slices.Contains(header, schema.Key) {
		return nil, corrupt(1, "missing key column %q", schema.Key)
	}

	for {
		row, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, csvError(path, err)
		}
		line, _ := r.FieldPos(0)
		if len(row) != len(columns) {
			return nil, corrupt(line, "expected %d columns, got %d", len(columns), len(row))
		}
		rec := make(types.Record, len(columns))
		for i, f := range columns {
			v, err := parseValue(f, row[i])
			if err != nil {
				return nil, corrupt(line, "column %q: %v", f.Name, err)
			}
			rec[f.Name] = v
		}
		if err := t.Restore(rec); err != nil {
			return nil, corrupt(line, "%v", err)
		}
	}
	return t, nil
}

// formatValue renders one value. Values of an unexpected type (which a
// validated table never holds) fall back to fmt formatting.
func formatValue(f types.Field, v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// parseValue converts one cell. Empty cells of non-text fields take the
// field default; enum values are returned as-is so that legacy options
// survive a load.
func parseValue(f types.Field, cell string) (any, error) {
	switch f.Type {
	case types.ValueTypeText, types.ValueTypeLongText:
		return cell, nil
	}
	s := strings.TrimSpace(cell)
	if s == "" {
		return f.DefaultValue(), nil
	}
	switch f.Type {
	case types.ValueTypeEnum:
		return cell, nil
	case types.ValueTypeInteger:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			// Spreadsheet exports write integer columns as "2.0".
			d, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil || d != float64(int64(d)) {
				return nil, fmt.Errorf("invalid integer %q", cell)
			}
			n = int64(d)
		}
		if n < 0 {
			return nil, fmt.Errorf("negative integer %q", cell)
		}
		return n, nil
	case types.ValueTypeDecimal:
		d, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid decimal %q", cell)
		}
		if d < 0 {
			return nil, fmt.Errorf("negative decimal %q", cell)
		}
		return d, nil
	case types.ValueTypeBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean %q", cell)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown value type %q", f.Type)
	}
}

func csvError(path string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &types.CorruptDataError{Path: path, Line: pe.StartLine, Reason: pe.Err.Error()}
	}
	return &types.CorruptDataError{Path: path, Reason: err.Error()}
}
