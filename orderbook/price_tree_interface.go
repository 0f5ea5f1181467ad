// Package orderbook implements the price-time-priority book: two
// price-ordered collections of FIFO order queues (bids descending,
// asks ascending) plus an id index, as specified for the matching
// engine's Book type. Two price-tree implementations back the
// PriceTreeInterface — a simple hashmap plus sorted-slice tree for
// small books and a bucketed red-black tree for deep books — selected
// at construction time by NewBook.
package orderbook

import "matchcore/domain"

// PriceTreeInterface is satisfied by every price-tree implementation
// backing one side of a Book. Insert/Remove operate per-order so the
// tree itself owns FIFO arrival order within a level.
type PriceTreeInterface interface {
	// Insert adds an order to its price level, creating the level if
	// this is the first order at that price.
	Insert(order *domain.Order)

	// Remove takes an order out of its price level, erasing the level
	// if it becomes empty.
	Remove(order *domain.Order)

	// GetBestPrice returns the best resting price, or 0 if empty.
	GetBestPrice() int64

	// GetBestLevel returns the best price level, or nil if empty.
	GetBestLevel() *PriceLevel_

	// GetBestOrders returns the orders resting at the best price, in
	// FIFO arrival order.
	GetBestOrders() []*domain.Order

	// GetLevel returns the price level at price, or nil.
	GetLevel(price int64) *PriceLevel_

	// GetDepth returns up to maxLevels price levels in priority order.
	GetDepth(maxLevels int) []PriceLevel_

	// IsEmpty reports whether the tree holds no orders.
	IsEmpty() bool

	// Size returns the number of distinct price levels.
	Size() int
}

// PriceLevel is the externally visible (price, qty, order count)
// summary of a price level — what Book.Depth returns.
type PriceLevel struct {
	Price    int64
	Quantity int64
	Orders   int
}
