package tablestore

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/planner/pkg/types"
)

func sampleGuests(t *testing.T) *types.Table {
	t.Helper()
	tbl := types.NewTable(types.GuestSchema())
	for _, rec := range []types.Record{
		{
			types.GuestName:       "Ana",
			types.GuestCompanions: 2,
			types.GuestRelation:   "Bride's cousin, Madrid",
			types.GuestComments:   "Arrives \"early\"\nVegetarian",
			types.GuestRSVP:       types.RSVPYes,
		},
		{types.GuestName: "Leo", types.GuestRSVP: types.RSVPNo},
		{types.GuestName: " Kai", types.GuestCompanions: 1, types.GuestComments: " leading space"},
	} {
		require.NoError(t, tbl.Insert(rec))
	}
	return tbl
}

func sampleTasks(t *testing.T) *types.Table {
	t.Helper()
	tbl := types.NewTable(types.TaskSchema())
	for _, rec := range []types.Record{
		{types.TaskItem: "Cake", types.TaskStatus: types.StatusCompleted, types.TaskCost: 150.5, types.TaskNotes: "Three tiers"},
		{types.TaskItem: "Rings", types.TaskCost: 800},
		{types.TaskItem: "Venue", types.TaskStatus: types.StatusInProgress, types.TaskNotes: "Deposit paid, balance due"},
	} {
		require.NoError(t, tbl.Insert(rec))
	}
	return tbl
}

func TestSerializeGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)

	data, err := Serialize(sampleGuests(t))
	require.NoError(t, err)
	g.Assert(t, "guests", data)

	data, err = Serialize(sampleTasks(t))
	require.NoError(t, err)
	g.Assert(t, "tasks", data)
}

func TestRoundTrip(t *testing.T) {
	for name, tbl := range map[string]*types.Table{
		"guests": sampleGuests(t),
		"tasks":  sampleTasks(t),
		"empty":  types.NewTable(types.GuestSchema()),
	} {
		t.Run(name, func(t *testing.T) {
			data, err := Serialize(tbl)
			require.NoError(t, err)
			got, err := Parse(tbl.Schema(), data)
			require.NoError(t, err)
			assert.True(t, tbl.Equal(got), "round trip changed the table:\n%s", data)
		})
	}
}

func TestRoundTripPathologicalText(t *testing.T) {
	tbl := types.NewTable(types.GuestSchema())
	values := []string{
		`"`,
		`""`,
		",,,",
		"line one\r\nline two",
		"\n",
		`\.`,
		"tab\there",
		"ñandú 🎉",
	}
	for i, v := range values {
		require.NoError(t, tbl.Insert(types.Record{
			types.GuestName:     string(rune('A' + i)),
			types.GuestRelation: v,
			types.GuestComments: v,
		}))
	}

	data, err := Serialize(tbl)
	require.NoError(t, err)
	got, err := Parse(tbl.Schema(), data)
	require.NoError(t, err)
	assert.True(t, tbl.Equal(got))
}

func TestParseEmpty(t *testing.T) {
	for _, data := range []string{"", "\n", "\xef\xbb\xbf"} {
		tbl, err := Parse(types.GuestSchema(), []byte(data))
		require.NoError(t, err)
		assert.Equal(t, 0, tbl.Len())
	}
}

func TestParseHeaderOnly(t *testing.T) {
	tbl, err := Parse(types.TaskSchema(), []byte("item,status,cost,notes\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
}

func TestParseLegacyLayout(t *testing.T) {
	// Reordered columns, a missing optional column, a BOM, CRLF line
	// endings, spreadsheet-style integers and an option from an older
	// status list.
	data := "\xef\xbb\xbfcompanions,name,rsvp\r\n2.0,Ana,Yes\r\n,Leo,\r\n1,Kai,Quizás\r\n"
	tbl, err := Parse(types.GuestSchema(), []byte(data))
	require.NoError(t, err)
	require.Equal(t, []string{"Ana", "Leo", "Kai"}, tbl.Keys())

	ana, _ := tbl.Find("Ana")
	assert.Equal(t, int64(2), ana.Int(types.GuestCompanions))
	assert.Equal(t, "", ana.String(types.GuestRelation))

	leo, _ := tbl.Find("Leo")
	assert.Equal(t, types.RSVPPending, leo.String(types.GuestRSVP))

	assert.Equal(t, []string{"Kai"}, tbl.Unmatched(types.GuestRSVP))
	kai, _ := tbl.Find("Kai")
	assert.Equal(t, "Quizás", kai.String(types.GuestRSVP))
}

func TestParseLegacyBooleans(t *testing.T) {
	schema := types.Schema{
		Name: "flags",
		Key:  "name",
		Fields: []types.Field{
			{Name: "name", Type: types.ValueTypeText},
			{Name: "done", Type: types.ValueTypeBoolean},
		},
	}
	tbl, err := Parse(schema, []byte("name,done\na,True\nb,FALSE\nc,1\nd,\n"))
	require.NoError(t, err)

	want := map[string]bool{"a": true, "b": false, "c": true, "d": false}
	for key, done := range want {
		rec, ok := tbl.Find(key)
		require.True(t, ok, key)
		assert.Equal(t, done, rec.Bool("done"), key)
	}

	data, err := Serialize(tbl)
	require.NoError(t, err)
	assert.Equal(t, "name,done\na,true\nb,false\nc,true\nd,false\n", string(data))
}

func TestParseCorrupt(t *testing.T) {
	tests := []struct {
		name string
		data string
		line int
	}{
		{"unknown column", "name,age\nAna,3\n", 1},
		{"duplicate column", "name,name\nAna,Ana\n", 1},
		{"missing key column", "companions,rsvp\n1,Yes\n", 1},
		{"short row", "name,companions\nAna,1\nLeo\n", 3},
		{"long row", "name,companions\nAna,1,extra\n", 2},
		{"bad integer", "name,companions\nAna,two\n", 2},
		{"fractional integer", "name,companions\nAna,1.5\n", 2},
		{"negative integer", "name,companions\nAna,-1\n", 2},
		{"empty key", "name,companions\n ,1\n", 2},
		{"duplicate key", "name,companions\nAna,1\nAna ,2\n", 3},
		{"unterminated quote", "name,comments\nAna,\"open\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(types.GuestSchema(), []byte(tt.data))
			require.ErrorIs(t, err, types.ErrCorruptData)
			var corrupt *types.CorruptDataError
			require.ErrorAs(t, err, &corrupt)
			assert.Equal(t, tt.line, corrupt.Line)
		})
	}
}

func TestParseBadDecimal(t *testing.T) {
	_, err := Parse(types.TaskSchema(), []byte("item,cost\nCake,cheap\n"))
	assert.ErrorIs(t, err, types.ErrCorruptData)

	_, err = Parse(types.TaskSchema(), []byte("item,cost\nCake,-3\n"))
	assert.ErrorIs(t, err, types.ErrCorruptData)
}
