package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func guestTable(t *testing.T, recs ...Record) *Table {
	t.Helper()
	tbl := NewTable(GuestSchema())
	for _, r := range recs {
		require.NoError(t, tbl.Insert(r))
	}
	return tbl
}

func TestTableInsert(t *testing.T) {
	t.Run("fills defaults and trims the key", func(t *testing.T) {
		tbl := guestTable(t, Record{GuestName: "  Ana  "})

		got, ok := tbl.Find("Ana")
		require.True(t, ok)
		assert.Equal(t, Record{
			GuestName:       "Ana",
			GuestCompanions: int64(0),
			GuestRelation:   "",
			GuestComments:   "",
			GuestRSVP:       RSVPPending,
		}, got)
	})

	t.Run("duplicate key fails and leaves the table unchanged", func(t *testing.T) {
		tbl := guestTable(t, Record{GuestName: "Ana", GuestCompanions: 2})
		before := tbl.Clone()

		err := tbl.Insert(Record{GuestName: " Ana", GuestCompanions: 5})
		var dup *DuplicateKeyError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "Ana", dup.Key)
		assert.ErrorIs(t, err, ErrDuplicateKey)
		assert.True(t, tbl.Equal(before))
	})

	t.Run("keys are case sensitive", func(t *testing.T) {
		tbl := guestTable(t, Record{GuestName: "Ana"})
		require.NoError(t, tbl.Insert(Record{GuestName: "ana"}))
		assert.Equal(t, []string{"Ana", "ana"}, tbl.Keys())
	})

	invalid := []struct {
		name string
		rec  Record
	}{
		{"empty key", Record{GuestName: "   "}},
		{"missing key", Record{GuestCompanions: 1}},
		{"unknown field", Record{GuestName: "Ana", "email": "ana@example.com"}},
		{"negative integer", Record{GuestName: "Ana", GuestCompanions: -1}},
		{"fractional integer", Record{GuestName: "Ana", GuestCompanions: 1.5}},
		{"string for integer", Record{GuestName: "Ana", GuestCompanions: "two"}},
		{"option outside enum", Record{GuestName: "Ana", GuestRSVP: "Maybe"}},
	}
	for _, tt := range invalid {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			tbl := NewTable(GuestSchema())
			err := tbl.Insert(tt.rec)
			require.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, 0, tbl.Len())
		})
	}
}

func TestTableUpdate(t *testing.T) {
	t.Run("keeps position and leaves other records alone", func(t *testing.T) {
		tbl := guestTable(t,
			Record{GuestName: "Ana", GuestRSVP: RSVPYes},
			Record{GuestName: "Leo"},
			Record{GuestName: "Kai"},
		)
		ana, _ := tbl.Find("Ana")
		kai, _ := tbl.Find("Kai")

		require.NoError(t, tbl.Update("Leo", Record{GuestCompanions: 3, GuestRSVP: RSVPNo}))

		assert.Equal(t, []string{"Ana", "Leo", "Kai"}, tbl.Keys())
		leo, _ := tbl.Find("Leo")
		assert.Equal(t, int64(3), leo.Int(GuestCompanions))
		assert.Equal(t, RSVPNo, leo.String(GuestRSVP))
		gotAna, _ := tbl.Find("Ana")
		gotKai, _ := tbl.Find("Kai")
		assert.Equal(t, ana, gotAna)
		assert.Equal(t, kai, gotKai)
	})

	t.Run("missing key", func(t *testing.T) {
		tbl := guestTable(t, Record{GuestName: "Ana"})
		err := tbl.Update("Leo", Record{GuestCompanions: 1})
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "Leo", nf.Key)
	})

	t.Run("bad value leaves record unchanged", func(t *testing.T) {
		tbl := guestTable(t, Record{GuestName: "Ana", GuestCompanions: 2})
		err := tbl.Update("Ana", Record{GuestCompanions: 4, GuestRSVP: "Maybe"})
		require.ErrorIs(t, err, ErrValidation)
		got, _ := tbl.Find("Ana")
		assert.Equal(t, int64(2), got.Int(GuestCompanions))
	})

	t.Run("rename keeps position", func(t *testing.T) {
		tbl := guestTable(t, Record{GuestName: "Ana"}, Record{GuestName: "Leo"})
		require.NoError(t, tbl.Update("Ana", Record{GuestName: " Anna "}))
		assert.Equal(t, []string{"Anna", "Leo"}, tbl.Keys())
		_, ok := tbl.Find("Ana")
		assert.False(t, ok)
	})

	t.Run("rename onto existing key", func(t *testing.T) {
		tbl := guestTable(t, Record{GuestName: "Ana"}, Record{GuestName: "Leo"})
		err := tbl.Update("Ana", Record{GuestName: "Leo"})
		require.ErrorIs(t, err, ErrDuplicateKey)
		assert.Equal(t, []string{"Ana", "Leo"}, tbl.Keys())
	})
}

func TestTableDelete(t *testing.T) {
	tbl := guestTable(t, Record{GuestName: "Ana"}, Record{GuestName: "Leo"}, Record{GuestName: "Kai"})

	require.NoError(t, tbl.Delete("Leo"))
	assert.Equal(t, []string{"Ana", "Kai"}, tbl.Keys())

	err := tbl.Delete("Leo")
	require.ErrorIs(t, err, ErrNotFound)

	// The key can be reused after deletion.
	require.NoError(t, tbl.Insert(Record{GuestName: "Leo"}))
	assert.Equal(t, []string{"Ana", "Kai", "Leo"}, tbl.Keys())
	got, ok := tbl.Find("Kai")
	require.True(t, ok)
	assert.Equal(t, "Kai", got.String(GuestName))
}

func TestTableFindReturnsCopy(t *testing.T) {
	tbl := guestTable(t, Record{GuestName: "Ana"})
	got, _ := tbl.Find(" Ana ")
	got[GuestCompanions] = int64(9)

	again, _ := tbl.Find("Ana")
	assert.Equal(t, int64(0), again.Int(GuestCompanions))
}

func TestTableRestoreKeepsLegacyOptions(t *testing.T) {
	tbl := NewTable(TaskSchema())
	require.NoError(t, tbl.Restore(Record{TaskItem: "Cake", TaskStatus: "Por hacer"}))
	require.NoError(t, tbl.Restore(Record{TaskItem: "Rings", TaskStatus: StatusCompleted}))

	got, ok := tbl.Find("Cake")
	require.True(t, ok)
	assert.Equal(t, "Por hacer", got.String(TaskStatus))

	idx, matched := tbl.Schema().OptionIndex(TaskStatus, got[TaskStatus])
	assert.False(t, matched)
	assert.Equal(t, -1, idx)
	assert.Equal(t, []string{"Cake"}, tbl.Unmatched(TaskStatus))

	// Updating another field keeps the legacy value.
	require.NoError(t, tbl.Update("Cake", Record{TaskCost: 120}))
	got, _ = tbl.Find("Cake")
	assert.Equal(t, "Por hacer", got.String(TaskStatus))
	assert.Equal(t, float64(120), got.Float(TaskCost))

	// Writing a new unmatched value is still rejected.
	err := tbl.Update("Rings", Record{TaskStatus: "Hecho"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTableCloneIsIndependent(t *testing.T) {
	tbl := guestTable(t, Record{GuestName: "Ana"})
	c := tbl.Clone()
	require.NoError(t, c.Insert(Record{GuestName: "Leo"}))
	require.NoError(t, c.Update("Ana", Record{GuestCompanions: 1}))

	assert.Equal(t, 1, tbl.Len())
	ana, _ := tbl.Find("Ana")
	assert.Equal(t, int64(0), ana.Int(GuestCompanions))
	assert.False(t, tbl.Equal(c))
}
