package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mesh-intelligence/planner/pkg/types"
)

// parseAssignments turns field=value arguments into a record typed for
// the schema.
func parseAssignments(schema types.Schema, args []string) (types.Record, error) {
	rec := make(types.Record, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid assignment %q (expected field=value)", arg)
		}
		f, ok := schema.Field(name)
		if !ok {
			return nil, &types.ValidationError{
				Field:  name,
				Value:  raw,
				Reason: fmt.Sprintf("unknown field (valid: %s)", strings.Join(schema.FieldNames(), ", ")),
			}
		}
		v, err := parseCell(f, raw)
		if err != nil {
			return nil, err
		}
		rec[name] = v
	}
	return rec, nil
}

// parseCell converts command-line text to the field's Go type. Range and
// option checks are left to the table.
func parseCell(f types.Field, raw string) (any, error) {
	invalid := func(reason string) error {
		return &types.ValidationError{Field: f.Name, Value: raw, Reason: reason}
	}
	switch f.Type {
	case types.ValueTypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, invalid("expected a whole number")
		}
		return n, nil
	case types.ValueTypeDecimal:
		d, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, invalid("expected a number")
		}
		return d, nil
	case types.ValueTypeBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, invalid("expected true or false")
		}
		return b, nil
	default:
		return raw, nil
	}
}

// Enum cells are colored by option position: the first option needs
// attention and the last is done.
var (
	colorFirst     = lipgloss.Color("3")
	colorMiddle    = lipgloss.Color("214")
	colorLast      = lipgloss.Color("2")
	colorUnmatched = lipgloss.Color("5")
)

// rsvpColors overrides position colors for the guest list, where "No" is
// the second option.
var rsvpColors = map[string]lipgloss.Color{
	types.RSVPYes:     lipgloss.Color("2"),
	types.RSVPNo:      lipgloss.Color("1"),
	types.RSVPPending: lipgloss.Color("3"),
}

// writeRecords prints the records of t, as JSON with --json or as a
// bordered table otherwise. Enum cells are colored by option; values
// outside the option set are flagged.
func writeRecords(w io.Writer, t *types.Table, jsonMode bool) error {
	schema := t.Schema()
	records := t.Records()

	if jsonMode {
		if records == nil {
			records = []types.Record{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintf(w, "No %s.\n", schema.Name)
		return nil
	}

	r := lipgloss.NewRenderer(w)
	names := schema.FieldNames()
	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(names))
		for j, f := range schema.Fields {
			row[j] = displayValue(f, rec[f.Name])
		}
		rows[i] = row
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle().Faint(true)).
		Headers(names...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := r.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Bold(true)
			}
			f := schema.Fields[col]
			if f.Type != types.ValueTypeEnum || row < 0 || row >= len(records) {
				return style
			}
			return style.Foreground(optionColor(schema, f, records[row][f.Name]))
		})
	fmt.Fprintln(w, tbl.Render())

	for _, f := range schema.Fields {
		if unmatched := t.Unmatched(f.Name); len(unmatched) > 0 {
			fmt.Fprintf(w, "%d record(s) with a %s outside %s: %s\n",
				len(unmatched), f.Name, strings.Join(f.Options, "/"), strings.Join(unmatched, ", "))
		}
	}
	return nil
}

func displayValue(f types.Field, v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case string:
		if f.Type == types.ValueTypeEnum {
			if _, ok := f.OptionIndex(x); !ok {
				return x + " " + types.UnmatchedOption
			}
		}
		return strings.ReplaceAll(x, "\n", " ")
	default:
		return fmt.Sprint(x)
	}
}

func optionColor(schema types.Schema, f types.Field, v any) lipgloss.Color {
	s, _ := v.(string)
	if schema.Name == types.GuestsTable && f.Name == types.GuestRSVP {
		if c, ok := rsvpColors[s]; ok {
			return c
		}
		return colorUnmatched
	}
	i, ok := f.OptionIndex(s)
	switch {
	case !ok:
		return colorUnmatched
	case i == 0:
		return colorFirst
	case i == len(f.Options)-1:
		return colorLast
	default:
		return colorMiddle
	}
}

// writeJSON encodes v indented.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// filterRecords returns a copy of t holding only records matching pred.
func filterRecords(t *types.Table, pred types.Predicate) (*types.Table, error) {
	if pred == nil {
		return t, nil
	}
	out := types.NewTable(t.Schema())
	for _, rec := range t.Records() {
		if pred(rec) {
			if err := out.Restore(rec); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
