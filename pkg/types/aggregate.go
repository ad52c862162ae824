package types

// Aggregates are pure functions over the current table. They are
// recomputed on every call and never cached.

// Predicate selects records for an aggregate. A nil Predicate selects all.
type Predicate func(Record) bool

// FieldEquals returns a predicate matching records whose field holds value.
func FieldEquals(field string, value any) Predicate {
	return func(r Record) bool { return r[field] == value }
}

// Sum adds the numeric field over the records matching pred. Non-numeric
// values count as zero.
func Sum(t *Table, field string, pred Predicate) float64 {
	var total float64
	for _, r := range t.records {
		if pred == nil || pred(r) {
			total += r.Float(field)
		}
	}
	return total
}

// Count returns the number of records matching pred.
func Count(t *Table, pred Predicate) int {
	n := 0
	for _, r := range t.records {
		if pred == nil || pred(r) {
			n++
		}
	}
	return n
}

// UnmatchedOption is the CountByOption bucket for enum values outside the
// field's option list.
const UnmatchedOption = "(unmatched)"

// CountByOption counts records per option of the named enum field. Every
// option is present in the result, possibly with zero. Values outside the
// option list are counted under UnmatchedOption, which is only present
// when non-zero.
func CountByOption(t *Table, field string) map[string]int {
	f, ok := t.schema.Field(field)
	if !ok || f.Type != ValueTypeEnum {
		return nil
	}
	counts := make(map[string]int, len(f.Options)+1)
	for _, o := range f.Options {
		counts[o] = 0
	}
	for _, r := range t.records {
		if _, ok := f.OptionIndex(r[field]); ok {
			counts[r.String(field)]++
			continue
		}
		counts[UnmatchedOption]++
	}
	return counts
}

// ConfirmedHeadcount counts confirmed guests plus their companions. Only
// records whose rsvp is RSVPYes count; Pending, No and unmatched values do
// not.
func ConfirmedHeadcount(guests *Table) int64 {
	var n int64
	for _, r := range guests.records {
		if r[GuestRSVP] != RSVPYes {
			continue
		}
		n += 1 + r.Int(GuestCompanions)
	}
	return n
}

// InvitedHeadcount counts every guest plus companions regardless of rsvp.
func InvitedHeadcount(guests *Table) int64 {
	var n int64
	for _, r := range guests.records {
		n += 1 + r.Int(GuestCompanions)
	}
	return n
}

// TotalCost sums the cost of every task.
func TotalCost(tasks *Table) float64 {
	return Sum(tasks, TaskCost, nil)
}
