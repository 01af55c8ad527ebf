// Package drain implements the reader-drain barrier (spec.md §4.4, §5,
// §9): after the mutator unlinks a FIB slot from the LPM+RIB, it must wait
// until every forwarder thread has observed a state in which that slot is
// no longer reachable before unwinding any resources the slot referenced.
//
// The barrier is modeled abstractly as a generational epoch: the mutator
// posts a Request to every forwarder's mailbox and waits for every
// forwarder to acknowledge. This package provides the production
// implementation (fanning the request out with golang.org/x/sync/errgroup,
// the idiomatic replacement for manually managing a completion counter)
// and is itself driven only through the Synchronizer interface, so tests
// can substitute an immediate/no-op synchronizer.
package drain

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Request conveys what the forwarders must acknowledge having passed:
// the FIB slot that was just unlinked, and whether this drain precedes an
// update (grantor-set replacement, slot stays installed) or a full removal
// (slot is about to be zeroed).
type Request struct {
	SlotID     uint32
	UpdateOnly bool
}

// Synchronizer is the drain barrier contract the FIB manager depends on.
type Synchronizer interface {
	// Synchronize blocks until every forwarder has acknowledged req, or
	// returns an error if it cannot wait for all of them (for Barrier:
	// ctx is done first).
	Synchronize(ctx context.Context, req Request) error
}

// Forwarder is one pinned reader's mailbox: Notify posts req and returns a
// channel that closes once that forwarder has advanced past it.
type Forwarder interface {
	Notify(req Request) <-chan struct{}
}

// Barrier is the production Synchronizer: it fans Request out to every
// registered Forwarder concurrently and waits for all acknowledgments.
type Barrier struct {
	forwarders []Forwarder
}

// NewBarrier returns a Barrier that drains the given forwarders.
func NewBarrier(forwarders []Forwarder) *Barrier {
	return &Barrier{forwarders: forwarders}
}

func (b *Barrier) Synchronize(ctx context.Context, req Request) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, f := range b.forwarders {
		f := f
		g.Go(func() error {
			select {
			case <-f.Notify(req):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return g.Wait()
}

// Immediate is a Synchronizer that acknowledges instantly, for unit tests
// and single-threaded embeddings where there is no separate reader pool.
type Immediate struct{}

func (Immediate) Synchronize(context.Context, Request) error { return nil }
