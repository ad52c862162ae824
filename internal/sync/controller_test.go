package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/planner/internal/remote/memory"
	"github.com/mesh-intelligence/planner/internal/tablestore"
	"github.com/mesh-intelligence/planner/pkg/types"
)

const guestsPath = "guests.csv"

var quiet = log.New(io.Discard, "", 0)

func guestStore(remote types.RemoteStore) *tablestore.Store {
	return tablestore.New(types.GuestSchema(), remote, guestsPath)
}

func newController(t *testing.T, store Store, opts ...Option) *Controller {
	t.Helper()
	c := New(store, append([]Option{WithLogger(quiet)}, opts...)...)
	require.NoError(t, c.Load(context.Background()))
	return c
}

func guest(name string, companions int, rsvp string) types.Mutation {
	return types.InsertMutation(types.Record{
		types.GuestName:       name,
		types.GuestCompanions: companions,
		types.GuestRSVP:       rsvp,
	})
}

// remoteTable reads what the remote currently holds.
func remoteTable(t *testing.T, remote types.RemoteStore) *types.Table {
	t.Helper()
	tbl, _, err := guestStore(remote).Load(context.Background())
	require.NoError(t, err)
	return tbl
}

// recordingStore remembers the expected revision of every save.
type recordingStore struct {
	Store
	expected []types.Revision
}

func (s *recordingStore) Save(ctx context.Context, t *types.Table, expected types.Revision) (types.Revision, error) {
	s.expected = append(s.expected, expected)
	return s.Store.Save(ctx, t, expected)
}

// racingStore lets another writer add a record before each save, so every
// save conflicts without touching the caller's keys.
type racingStore struct {
	Store
	other  *tablestore.Store
	racing bool
	n      int
}

func (s *racingStore) Save(ctx context.Context, t *types.Table, expected types.Revision) (types.Revision, error) {
	if s.racing {
		s.n++
		tbl, rev, err := s.other.Load(ctx)
		if err != nil {
			return "", err
		}
		if err := tbl.Insert(types.Record{types.GuestName: fmt.Sprintf("Other %d", s.n)}); err != nil {
			return "", err
		}
		if _, err := s.other.Save(ctx, tbl, rev); err != nil {
			return "", err
		}
	}
	return s.Store.Save(ctx, t, expected)
}

func TestMutateSavesAndHolds(t *testing.T) {
	ctx := context.Background()
	remote := memory.New()
	c := newController(t, guestStore(remote))
	require.True(t, c.Revision().IsAbsent())

	require.NoError(t, c.Mutate(ctx, guest("Ana", 2, types.RSVPYes)))
	assert.False(t, c.Revision().IsAbsent())
	assert.False(t, c.Pending())

	assert.True(t, c.Table().Equal(remoteTable(t, remote)))

	// The returned table is a copy.
	tbl := c.Table()
	require.NoError(t, tbl.Delete("Ana"))
	assert.Equal(t, 1, c.Table().Len())
}

func TestMutateLoadsOnFirstUse(t *testing.T) {
	ctx := context.Background()
	remote := memory.New()
	require.NoError(t, newController(t, guestStore(remote)).Mutate(ctx, guest("Leo", 0, types.RSVPNo)))

	c := New(guestStore(remote), WithLogger(quiet))
	require.NoError(t, c.Mutate(ctx, guest("Kai", 1, types.RSVPPending)))
	assert.Equal(t, []string{"Leo", "Kai"}, c.Table().Keys())
}

func TestCallerErrorsAreNotRetried(t *testing.T) {
	ctx := context.Background()
	remote := memory.New()
	c := newController(t, guestStore(remote))
	require.NoError(t, c.Mutate(ctx, guest("Ana", 2, types.RSVPYes)))
	_, putsBefore := remote.Calls()

	tests := []struct {
		name string
		m    types.Mutation
		want error
	}{
		{"duplicate", guest("Ana", 0, types.RSVPNo), types.ErrDuplicateKey},
		{"missing", types.DeleteMutation("Zoe"), types.ErrNotFound},
		{"invalid", types.UpdateMutation("Ana", types.Record{types.GuestRSVP: "Maybe"}), types.ErrValidation},
		{"negative", types.UpdateMutation("Ana", types.Record{types.GuestCompanions: -1}), types.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Mutate(ctx, tt.m)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, types.IsCallerError(err))
			assert.False(t, c.Pending())
		})
	}

	_, putsAfter := remote.Calls()
	assert.Equal(t, putsBefore, putsAfter)
}

func TestConcurrentWritersDifferentKeys(t *testing.T) {
	ctx := context.Background()
	remote := memory.New()
	a := newController(t, guestStore(remote))
	rec := &recordingStore{Store: guestStore(remote)}
	b := newController(t, rec)

	require.NoError(t, a.Mutate(ctx, guest("Ana", 2, types.RSVPYes)))
	require.NoError(t, b.Mutate(ctx, guest("Leo", 0, types.RSVPNo)))

	got := remoteTable(t, remote)
	assert.Equal(t, []string{"Ana", "Leo"}, got.Keys())
	assert.True(t, b.Table().Equal(got))

	require.Len(t, rec.expected, 2)
	assert.NotEqual(t, rec.expected[0], rec.expected[1])
}

func TestConcurrentUpdateAndDeleteOfOtherKeys(t *testing.T) {
	ctx := context.Background()
	remote := memory.New()
	seed := newController(t, guestStore(remote))
	require.NoError(t, seed.Mutate(ctx, types.Batch(
		guest("Ana", 2, types.RSVPYes),
		guest("Leo", 0, types.RSVPNo),
		guest("Kai", 1, types.RSVPPending),
	)))

	a := newController(t, guestStore(remote))
	b := newController(t, guestStore(remote))
	require.NoError(t, a.Mutate(ctx, types.DeleteMutation("Leo")))
	require.NoError(t, b.Mutate(ctx, types.UpdateMutation("Kai", types.Record{types.GuestRSVP: types.RSVPYes})))

	got := remoteTable(t, remote)
	assert.Equal(t, []string{"Ana", "Kai"}, got.Keys())
	assert.Equal(t, int64(5), types.ConfirmedHeadcount(got))
}

func TestSameKeyUpdateIsMergeConflict(t *testing.T) {
	ctx := context.Background()
	remote := memory.New()
	seed := newController(t, guestStore(remote))
	require.NoError(t, seed.Mutate(ctx, guest("Ana", 2, types.RSVPYes)))

	a := newController(t, guestStore(remote))
	b := newController(t, guestStore(remote))
	require.NoError(t, a.Mutate(ctx, types.UpdateMutation("Ana", types.Record{types.GuestCompanions: 3})))

	err := b.Mutate(ctx, types.UpdateMutation("Ana", types.Record{types.GuestCompanions: 5}))
	var mc *types.MergeConflictError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, "Ana", mc.Key)
	assert.False(t, b.Pending())

	ana, _ := remoteTable(t, remote).Find("Ana")
	assert.Equal(t, int64(3), ana.Int(types.GuestCompanions))

	// B now holds the winning value.
	ana, _ = b.Table().Find("Ana")
	assert.Equal(t, int64(3), ana.Int(types.GuestCompanions))
}

func TestSameKeyInsertIsMergeConflict(t *testing.T) {
	ctx := context.Background()
	remote := memory.New()
	a := newController(t, guestStore(remote))
	b := newController(t, guestStore(remote))

	require.NoError(t, a.Mutate(ctx, guest("Kai", 1, types.RSVPYes)))
	err := b.Mutate(ctx, guest("Kai", 4, types.RSVPNo))
	assert.ErrorIs(t, err, types.ErrMergeConflict)
	assert.Contains(t, err.Error(), `"Kai"`)

	kai, _ := remoteTable(t, remote).Find("Kai")
	assert.Equal(t, int64(1), kai.Int(types.GuestCompanions))
}

func TestDeleteAgainstConcurrentUpdateIsMergeConflict(t *testing.T) {
	ctx := context.Background()
	remote := memory.New()
	seed := newController(t, guestStore(remote))
	require.NoError(t, seed.Mutate(ctx, guest("Ana", 2, types.RSVPYes)))

	a := newController(t, guestStore(remote))
	b := newController(t, guestStore(remote))
	require.NoError(t, a.Mutate(ctx, types.UpdateMutation("Ana", types.Record{types.GuestRelation: "Family"})))

	err := b.Mutate(ctx, types.DeleteMutation("Ana"))
	assert.ErrorIs(t, err, types.ErrMergeConflict)
	_, ok := remoteTable(t, remote).Find("Ana")
	assert.True(t, ok)
}

func TestRenameOntoConcurrentInsertIsMergeConflict(t *testing.T) {
	ctx := context.Background()
	remote := memory.New()
	seed := newController(t, guestStore(remote))
	require.NoError(t, seed.Mutate(ctx, guest("Ana", 2, types.RSVPYes)))

	a := newController(t, guestStore(remote))
	b := newController(t, guestStore(remote))
	require.NoError(t, a.Mutate(ctx, guest("Anna", 0, types.RSVPNo)))

	err := b.Mutate(ctx, types.UpdateMutation("Ana", types.Record{types.GuestName: "Anna"}))
	var mc *types.MergeConflictError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, "Anna", mc.Key)
}

func TestSyncExhaustedKeepsEdit(t *testing.T) {
	ctx := context.Background()
	remote := memory.New()
	rs := &racingStore{Store: guestStore(remote), other: guestStore(remote), racing: true}
	c := newController(t, rs, WithMaxAttempts(2))

	err := c.Mutate(ctx, guest("Ana", 2, types.RSVPYes))
	var ex *types.SyncExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 2, ex.Attempts)
	assert.ErrorIs(t, ex.Last, types.ErrConflict)
	assert.NotErrorIs(t, err, types.ErrConflict)
	assert.True(t, c.Pending())
	assert.Equal(t, 2, rs.n)

	assert.ErrorIs(t, c.Mutate(ctx, guest("Leo", 0, types.RSVPNo)), types.ErrEditPending)

	rs.racing = false
	require.NoError(t, c.Retry(ctx))
	assert.False(t, c.Pending())
	assert.Equal(t, []string{"Other 1", "Other 2", "Ana"}, remoteTable(t, remote).Keys())
}

func TestDefaultAttemptBudget(t *testing.T) {
	remote := memory.New()
	rs := &racingStore{Store: guestStore(remote), other: guestStore(remote), racing: true}
	c := newController(t, rs)

	err := c.Mutate(context.Background(), guest("Ana", 2, types.RSVPYes))
	assert.ErrorIs(t, err, types.ErrSyncExhausted)
	assert.Equal(t, DefaultMaxAttempts, rs.n)
}

func TestTransportErrorBeforeWrite(t *testing.T) {
	ctx := context.Background()
	remote := memory.New()
	c := newController(t, guestStore(remote))

	remote.FailNextPut(errors.New("connection reset"), false)
	err := c.Mutate(ctx, guest("Ana", 2, types.RSVPYes))
	var te *types.TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, c.Pending())

	// The outcome is settled on the next operation: nothing landed, so
	// the edit stays pending.
	assert.ErrorIs(t, c.Mutate(ctx, guest("Leo", 0, types.RSVPNo)), types.ErrEditPending)
	assert.True(t, c.Pending())

	require.NoError(t, c.Retry(ctx))
	assert.False(t, c.Pending())
	assert.Equal(t, []string{"Ana"}, remoteTable(t, remote).Keys())
}

func TestTransportErrorAfterWrite(t *testing.T) {
	ctx := context.Background()
	remote := memory.New()
	c := newController(t, guestStore(remote))

	remote.FailNextPut(errors.New("response lost"), true)
	err := c.Mutate(ctx, guest("Ana", 2, types.RSVPYes))
	require.ErrorIs(t, err, types.ErrTransport)
	assert.True(t, c.Pending())

	require.NoError(t, c.Load(ctx))
	assert.False(t, c.Pending())
	assert.Equal(t, []string{"Ana"}, c.Table().Keys())

	_, puts := remote.Calls()
	require.NoError(t, c.Mutate(ctx, guest("Leo", 0, types.RSVPNo)))
	_, putsAfter := remote.Calls()
	assert.Equal(t, puts+1, putsAfter)
}

func TestRetryAfterLandedSaveDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	remote := memory.New()
	c := newController(t, guestStore(remote))

	remote.FailNextPut(errors.New("response lost"), true)
	require.Error(t, c.Mutate(ctx, guest("Ana", 2, types.RSVPYes)))

	require.NoError(t, c.Retry(ctx))
	assert.False(t, c.Pending())
	assert.Equal(t, []string{"Ana"}, remoteTable(t, remote).Keys())
}

func TestLandedSaveFollowedByOtherWriter(t *testing.T) {
	ctx := context.Background()
	remote := memory.New()
	c := newController(t, guestStore(remote))

	remote.FailNextPut(errors.New("response lost"), true)
	require.ErrorIs(t, c.Mutate(ctx, guest("Ana", 2, types.RSVPYes)), types.ErrTransport)

	other := newController(t, guestStore(remote))
	require.NoError(t, other.Mutate(ctx, guest("Leo", 0, types.RSVPNo)))

	require.NoError(t, c.Retry(ctx))
	assert.False(t, c.Pending())
	assert.Equal(t, []string{"Ana", "Leo"}, c.Table().Keys())
	assert.Equal(t, []string{"Ana", "Leo"}, remoteTable(t, remote).Keys())

	ana, ok := c.Table().Find("Ana")
	require.True(t, ok)
	assert.Equal(t, int64(2), ana.Int(types.GuestCompanions))
}

func TestLostSaveWithOtherWriterStaysPending(t *testing.T) {
	ctx := context.Background()
	remote := memory.New()
	c := newController(t, guestStore(remote))

	remote.FailNextPut(errors.New("connection reset"), false)
	require.ErrorIs(t, c.Mutate(ctx, guest("Ana", 2, types.RSVPYes)), types.ErrTransport)

	other := newController(t, guestStore(remote))
	require.NoError(t, other.Mutate(ctx, guest("Leo", 0, types.RSVPNo)))

	require.NoError(t, c.Load(ctx))
	assert.True(t, c.Pending())

	require.NoError(t, c.Retry(ctx))
	assert.False(t, c.Pending())
	assert.Equal(t, []string{"Leo", "Ana"}, remoteTable(t, remote).Keys())
}

func TestRetryWithoutPendingEdit(t *testing.T) {
	c := newController(t, guestStore(memory.New()))
	assert.ErrorIs(t, c.Retry(context.Background()), types.ErrNoPendingEdit)
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	remote := memory.New()
	c := newController(t, guestStore(remote))

	remote.FailNextPut(errors.New("down"), false)
	require.Error(t, c.Mutate(ctx, guest("Ana", 2, types.RSVPYes)))
	c.Discard()
	assert.False(t, c.Pending())

	require.NoError(t, c.Mutate(ctx, guest("Leo", 0, types.RSVPNo)))
	assert.Equal(t, []string{"Leo"}, remoteTable(t, remote).Keys())
}

func TestCorruptRemoteIsFatal(t *testing.T) {
	remote := memory.New()
	remote.Set(guestsPath, []byte("name,companions\nAna,lots\n"))
	c := New(guestStore(remote), WithLogger(quiet))

	err := c.Mutate(context.Background(), guest("Leo", 0, types.RSVPNo))
	assert.ErrorIs(t, err, types.ErrCorruptData)
	content, _ := remote.Content(guestsPath)
	assert.Equal(t, "name,companions\nAna,lots\n", string(content))
}

func TestAttemptsAreLoggedWithMutationID(t *testing.T) {
	var buf bytes.Buffer
	remote := memory.New()
	c := New(guestStore(remote), WithLogger(log.New(&buf, "", 0)))

	require.NoError(t, c.Mutate(context.Background(), guest("Ana", 2, types.RSVPYes)))
	assert.Regexp(t, `mutation [0-9a-f-]{36} attempt 1/3: saving 1 records at <absent>`, buf.String())
	assert.Regexp(t, `mutation [0-9a-f-]{36}: saved at [0-9a-f]{12}`, buf.String())
}
