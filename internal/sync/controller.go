// Package sync owns the in-memory copy of one table and publishes edits to
// the remote with read-then-conditional-write. Concurrent writers to other
// keys are merged by reloading and reapplying; writers to the same key
// produce a MergeConflictError rather than a silent overwrite.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/planner/pkg/types"
)

// DefaultMaxAttempts bounds the number of saves per edit.
const DefaultMaxAttempts = types.DefaultMaxAttempts

// Store is the persistence a Controller needs; *tablestore.Store
// implements it.
type Store interface {
	Schema() types.Schema
	Load(ctx context.Context) (*types.Table, types.Revision, error)
	Save(ctx context.Context, t *types.Table, expected types.Revision) (types.Revision, error)
}

// Controller holds the current table and revision and applies mutations
// to them. A Controller is meant for a single logical writer and is not
// safe for concurrent use.
type Controller struct {
	store       Store
	maxAttempts int
	logger      *log.Logger

	table  *types.Table
	rev    types.Revision
	loaded bool
	// stale is set once rev has been sent with a save whose outcome is
	// not known; the next operation must reload before saving.
	stale   bool
	pending *edit
}

// edit is a mutation that has not been confirmed saved.
type edit struct {
	id uuid.UUID
	m  types.Mutation
	// base is the table the caller saw when submitting the mutation. Keys
	// that differ between base and a later load belong to someone else.
	base *types.Table
	// sent is the table of the last save whose outcome is unknown.
	sent *types.Table
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxAttempts sets how many saves Mutate tries before giving up.
// Values below one are ignored.
func WithMaxAttempts(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithLogger sets the logger. If nil, a default logger writing to stderr
// is used.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// New creates a Controller over store. The table is empty until Load or
// the first Mutate.
func New(store Store, opts ...Option) *Controller {
	c := &Controller{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		table:       types.NewTable(store.Schema()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return c
}

// Load replaces the held table and revision with the remote's. If an
// earlier save ended with an unknown outcome, Load settles it: when the
// remote holds the sent records for every key the edit touched, the edit
// is adopted as saved.
func (c *Controller) Load(ctx context.Context) error {
	t, rev, err := c.store.Load(ctx)
	if err != nil {
		return err
	}
	c.table, c.rev = t, rev
	c.loaded, c.stale = true, false
	c.reconcile()
	return nil
}

// Table returns a copy of the held table.
func (c *Controller) Table() *types.Table {
	return c.table.Clone()
}

// Revision returns the revision of the held table.
func (c *Controller) Revision() types.Revision {
	return c.rev
}

// Pending reports whether an edit is waiting for Retry or Discard.
func (c *Controller) Pending() bool {
	return c.pending != nil
}

// Discard drops the pending edit, if any. The held table is left as last
// loaded or saved; call Load to refresh it.
func (c *Controller) Discard() {
	if c.pending != nil {
		c.logger.Printf("mutation %s: discarded", c.pending.id)
		c.pending = nil
	}
}

// Mutate applies m and publishes the result.
//
// Validation and key errors from m are returned as-is and nothing is
// saved. On a revision conflict the remote is reloaded and m is reapplied,
// unless a key m touches changed remotely, which yields a
// *MergeConflictError. After the attempt budget is spent it returns a
// *SyncExhaustedError and keeps the edit pending; a *TransportError also
// keeps the edit pending, with its outcome unknown until the next load.
func (c *Controller) Mutate(ctx context.Context, m types.Mutation) error {
	if err := c.prepare(ctx); err != nil {
		return err
	}
	if c.pending != nil {
		return fmt.Errorf("mutation %s: %w", c.pending.id, types.ErrEditPending)
	}
	e := &edit{id: newMutationID(), m: m, base: c.table.Clone()}
	return c.run(ctx, e)
}

// Retry runs the pending edit through the save loop again. It returns
// ErrNoPendingEdit when there is nothing to retry.
func (c *Controller) Retry(ctx context.Context) error {
	if c.pending == nil {
		return types.ErrNoPendingEdit
	}
	if err := c.prepare(ctx); err != nil {
		return err
	}
	if c.pending == nil {
		// Reconciliation found the earlier save had landed.
		return nil
	}
	e := c.pending
	c.pending = nil
	return c.run(ctx, e)
}

// prepare loads when nothing is held yet or the held revision is no longer
// safe to save against.
func (c *Controller) prepare(ctx context.Context) error {
	if c.loaded && !c.stale {
		return nil
	}
	return c.Load(ctx)
}

func (c *Controller) run(ctx context.Context, e *edit) error {
	schema := c.store.Schema()
	next, err := c.apply(e, c.table, schema)
	if err != nil {
		return err
	}
	rev := c.rev

	var last error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		c.logger.Printf("mutation %s attempt %d/%d: saving %d records at %s",
			e.id, attempt, c.maxAttempts, next.Len(), rev)

		newRev, err := c.store.Save(ctx, next, rev)
		if err == nil {
			c.table, c.rev = next, newRev
			c.logger.Printf("mutation %s: saved at %s", e.id, newRev)
			return nil
		}

		switch {
		case errors.Is(err, types.ErrConflict):
			last = err
			c.logger.Printf("mutation %s attempt %d: %v", e.id, attempt, err)
			if attempt == c.maxAttempts {
				// Leave the reload to Retry.
				c.stale = true
				continue
			}
			if err := c.Load(ctx); err != nil {
				c.pending = e
				c.stale = true
				return err
			}
			next, err = c.apply(e, c.table, schema)
			if err != nil {
				return err
			}
			rev = c.rev

		case errors.Is(err, types.ErrTransport):
			c.logger.Printf("mutation %s attempt %d: outcome unknown: %v", e.id, attempt, err)
			e.sent = next
			c.pending = e
			c.stale = true
			return err

		default:
			return err
		}
	}

	c.pending = e
	c.logger.Printf("mutation %s: gave up after %d attempts; edit kept pending", e.id, c.maxAttempts)
	return &types.SyncExhaustedError{Attempts: c.maxAttempts, Last: last}
}

// apply checks e against current and returns the mutated copy. A key that
// changed since the edit was submitted, or a key error against a table
// other than the one the caller saw, is a merge conflict.
func (c *Controller) apply(e *edit, current *types.Table, schema types.Schema) (*types.Table, error) {
	for _, key := range e.m.Keys(schema) {
		if !sameRecord(e.base, current, key) {
			c.logger.Printf("mutation %s: key %q changed remotely", e.id, key)
			return nil, &types.MergeConflictError{Key: key}
		}
	}
	next := current.Clone()
	err := e.m.Apply(next)
	if err == nil {
		return next, nil
	}
	if current.Equal(e.base) {
		return nil, err
	}
	var dup *types.DuplicateKeyError
	var nf *types.NotFoundError
	switch {
	case errors.As(err, &dup):
		return nil, &types.MergeConflictError{Key: dup.Key}
	case errors.As(err, &nf):
		return nil, &types.MergeConflictError{Key: nf.Key}
	}
	return nil, err
}

// reconcile settles an unknown-outcome save against the freshly loaded
// table.
func (c *Controller) reconcile() {
	e := c.pending
	if e == nil || e.sent == nil {
		return
	}
	if c.table.Equal(e.sent) || c.holdsSent(e) {
		c.logger.Printf("mutation %s: earlier save landed at %s", e.id, c.rev)
		c.pending = nil
		return
	}
	c.logger.Printf("mutation %s: earlier save did not land; edit kept pending", e.id)
	e.sent = nil
}

// holdsSent reports whether every key the edit touches is in the held
// table exactly as it was sent. Other writers may have changed other keys
// since the save landed.
func (c *Controller) holdsSent(e *edit) bool {
	for _, key := range e.m.Keys(c.store.Schema()) {
		if !sameRecord(e.sent, c.table, key) {
			return false
		}
	}
	return true
}

func sameRecord(a, b *types.Table, key string) bool {
	ra, okA := a.Find(key)
	rb, okB := b.Find(key)
	if okA != okB {
		return false
	}
	return !okA || ra.Equal(rb)
}

func newMutationID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
