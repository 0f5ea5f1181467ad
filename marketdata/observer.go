package marketdata

import (
	"matchcore/domain"
	"matchcore/internal/eventlog"
	"matchcore/matching"
)

// Observer is the market-data thread's in-process replica: it is the
// sole consumer of the engine's ring (spec.md §5 — "single consumer of
// the SPSC ring") and keeps a Level2Book that mirrors the engine's
// aggregates exactly as long as no update was dropped on a full ring
// (Engine.DroppedUpdates stays zero) (original_source's
// Observer::drainQueue).
type Observer struct {
	book *Level2Book
	log  *eventlog.Logger
}

// NewObserver creates an empty replica.
func NewObserver(log *eventlog.Logger) *Observer {
	return &Observer{book: &Level2Book{}, log: log}
}

// Book exposes the replica for the publisher to build snapshots from.
func (o *Observer) Book() *Level2Book { return o.book }

// Drain pops every currently available update off ring, applies each
// to the replica, and returns them in arrival order so the publisher
// can re-encode the same sequence as DELTA messages without
// reordering (spec.md §4.8: "the publisher never reorders ring
// entries").
func (o *Observer) Drain(ring *matching.Ring[domain.BookUpdate]) []domain.BookUpdate {
	var drained []domain.BookUpdate
	for {
		u, ok := ring.TryPop()
		if !ok {
			return drained
		}
		if err := o.book.Apply(u); err != nil {
			o.logError(err)
			continue
		}
		drained = append(drained, u)
	}
}

func (o *Observer) logError(err error) {
	if o.log != nil {
		o.log.Error(err.Error())
	}
}
