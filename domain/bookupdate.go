package domain

// BookUpdateKind distinguishes a resting-quantity insertion from a
// reduction (match, cancel, or modify-shrink).
type BookUpdateKind uint8

const (
	BookUpdateAdd BookUpdateKind = iota
	BookUpdateReduce
)

// BookUpdate is produced exactly once per effect on a price level and
// carried from the matching engine to the market-data observer over
// the SPSC ring (matching.Ring). It must stay trivially copyable —
// no pointers, no slices — since it is handed across the ring by
// value.
type BookUpdate struct {
	Price  int64
	Amount int64
	Side   Side
	Kind   BookUpdateKind
}
