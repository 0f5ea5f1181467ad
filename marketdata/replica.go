package marketdata

import (
	"fmt"

	"matchcore/domain"
)

// Level is one price/quantity pair in a replicated book side.
type Level struct {
	Price int64
	Qty   int64
}

// Level2Book mirrors the engine's aggregated book: bids held
// descending by price, asks ascending, each price appearing at most
// once. Both the in-process observer (fed straight from the engine's
// ring) and the UDP subscriber (fed from the wire, subject to packet
// loss) apply updates through the same ADD/REDUCE rules
// (original_source's Observer::addAtPrice_/reduceAtPrice_).
type Level2Book struct {
	Bids []Level
	Asks []Level
}

func levelsFor(book *Level2Book, side domain.Side) *[]Level {
	if side == domain.SideBuy {
		return &book.Bids
	}
	return &book.Asks
}

// betterOrEqual reports whether price a has at-least-as-good priority
// as b on the given side: higher wins for bids, lower wins for asks.
func betterOrEqual(side domain.Side, a, b int64) bool {
	if side == domain.SideBuy {
		return a >= b
	}
	return a <= b
}

// ApplyAdd increments an existing level's quantity, or inserts a new
// one at the position that keeps the side correctly ordered.
func (b *Level2Book) ApplyAdd(side domain.Side, price, amount int64) {
	levels := levelsFor(b, side)

	for i := range *levels {
		if (*levels)[i].Price == price {
			(*levels)[i].Qty += amount
			return
		}
	}

	insertAt := len(*levels)
	for i := range *levels {
		if !betterOrEqual(side, (*levels)[i].Price, price) {
			insertAt = i
			break
		}
	}

	*levels = append(*levels, Level{})
	copy((*levels)[insertAt+1:], (*levels)[insertAt:])
	(*levels)[insertAt] = Level{Price: price, Qty: amount}
}

// ApplyReduce subtracts amount from an existing level, removing it
// entirely once its quantity reaches zero. A REDUCE that cannot find
// its price, or that would take the level negative, is the
// replication-error invariant violation spec.md §4.7 calls out — it
// is reported rather than panicking, since the caller (subscriber
// validating an unreliable UDP feed) must be able to recover by
// invalidating the replica instead of crashing.
func (b *Level2Book) ApplyReduce(side domain.Side, price, amount int64) error {
	levels := levelsFor(b, side)

	for i := range *levels {
		if (*levels)[i].Price != price {
			continue
		}
		remaining := (*levels)[i].Qty - amount
		if remaining < 0 {
			return fmt.Errorf("marketdata: reduce below zero at price %d (have %d, reduce %d)", price, (*levels)[i].Qty, amount)
		}
		if remaining == 0 {
			*levels = append((*levels)[:i], (*levels)[i+1:]...)
			return nil
		}
		(*levels)[i].Qty = remaining
		return nil
	}
	return fmt.Errorf("marketdata: reduce at untracked price %d", price)
}

// Apply dispatches a single BookUpdate to ApplyAdd or ApplyReduce.
func (b *Level2Book) Apply(u domain.BookUpdate) error {
	if u.Kind == domain.BookUpdateAdd {
		b.ApplyAdd(u.Side, u.Price, u.Amount)
		return nil
	}
	return b.ApplyReduce(u.Side, u.Price, u.Amount)
}

// Reset clears both sides, e.g. right before a SNAPSHOT replaces them
// wholesale.
func (b *Level2Book) Reset() {
	b.Bids = nil
	b.Asks = nil
}

// Depth returns up to maxLevels entries of each side, already in
// priority order — the shape the MD publisher packs into a SNAPSHOT.
func (b *Level2Book) Depth(maxLevels int) (bids, asks []Level) {
	return capAt(b.Bids, maxLevels), capAt(b.Asks, maxLevels)
}

func capAt(levels []Level, max int) []Level {
	if max <= 0 || max >= len(levels) {
		out := make([]Level, len(levels))
		copy(out, levels)
		return out
	}
	out := make([]Level, max)
	copy(out, levels[:max])
	return out
}
