// Package reconcile turns an observed route price into a stored record.
//
// Given (origin, destination, price) and the price table, the engine
// decides between three writes: create the origin group and append the
// first entry, append a new entry for a novel destination, or overwrite
// the price at the entry's current row position. The overwrite is
// unconditional: the engine never reads the previous price for comparison.
// "Lowest price" is the search collaborator's promise (it returns a single
// best quote per query), not an invariant enforced here.
package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/flightclub/flightclub/internal/store"
)

// Outcome classifies the write a reconciliation performed.
type Outcome int

const (
	// OutcomeNone means no write happened (the reconciliation failed).
	OutcomeNone Outcome = iota
	// OutcomeCreated means the origin group was created and the entry
	// appended as its first row.
	OutcomeCreated
	// OutcomeAppended means the destination was novel and a new row was
	// appended to an existing group.
	OutcomeAppended
	// OutcomeUpdated means an existing row's price was overwritten.
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAppended:
		return "appended"
	case OutcomeUpdated:
		return "updated"
	default:
		return "none"
	}
}

// PersistenceError reports a reconciliation that failed because the store
// reported failure on the create, read, or write path.
type PersistenceError struct {
	Origin      string
	Destination string
	Err         error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("reconcile %s->%s: %v", e.Origin, e.Destination, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Engine performs price reconciliation against a PriceStore.
//
// The row position used for an overwrite is derived by scanning the group
// in stored order, so a read-then-write against the same group must not
// interleave with another mutation. The engine therefore serializes all
// reconciliations per origin behind a lock; concurrent reconciliations for
// different origins proceed independently.
//
// Destinations are assumed unique within a group. That is a tie-break
// policy, not an enforced constraint: the first match in stored order wins.
type Engine struct {
	store *store.PriceStore
	log   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine builds an engine over the given store. A nil logger disables
// diagnostics.
func NewEngine(s *store.PriceStore, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		store: s,
		log:   log.With("component", "reconcile"),
		locks: make(map[string]*sync.Mutex),
	}
}

func (e *Engine) originLock(origin string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[origin]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[origin] = lock
	}
	return lock
}

// Reconcile records an observed price for a route and reports which write
// it performed. Failures surface as *PersistenceError; the write is never
// retried here.
func (e *Engine) Reconcile(ctx context.Context, origin, destination string, price float64) (Outcome, error) {
	lock := e.originLock(origin)
	lock.Lock()
	defer lock.Unlock()

	e.log.Info("reconciling route", "origin", origin, "destination", destination, "price", price)

	// First-ever route from this origin: create the group, append, done.
	if !e.store.GroupExists(ctx, origin) {
		if err := e.store.CreateGroup(ctx, origin); err != nil {
			return OutcomeNone, &PersistenceError{Origin: origin, Destination: destination, Err: err}
		}
		if err := e.store.AppendEntry(ctx, origin, destination, price); err != nil {
			return OutcomeNone, &PersistenceError{Origin: origin, Destination: destination, Err: err}
		}
		return OutcomeCreated, nil
	}

	entries, err := e.store.ReadGroup(ctx, origin)
	if err != nil {
		return OutcomeNone, &PersistenceError{Origin: origin, Destination: destination, Err: err}
	}

	// The mutation target is positional: rank = 1-based index of the
	// first matching destination in stored order.
	rank := 0
	for i, entry := range entries {
		if entry.Destination == destination {
			rank = i + 1
			break
		}
	}

	if rank == 0 {
		if err := e.store.AppendEntry(ctx, origin, destination, price); err != nil {
			return OutcomeNone, &PersistenceError{Origin: origin, Destination: destination, Err: err}
		}
		e.log.Debug("appended novel destination", "origin", origin, "destination", destination)
		return OutcomeAppended, nil
	}

	if err := e.store.UpdateEntry(ctx, origin, rank, price); err != nil {
		return OutcomeNone, &PersistenceError{Origin: origin, Destination: destination, Err: err}
	}
	e.log.Debug("overwrote stored price", "origin", origin, "destination", destination, "row", rank)
	return OutcomeUpdated, nil
}
