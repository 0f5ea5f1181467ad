package orderbook

import "matchcore/domain"

// Book is one instrument's price-time-priority order book: two
// price-ordered trees of FIFO queues plus an id index. It is the
// exclusive property of the matching engine that owns it — nothing in
// this package synchronizes concurrent access, matching spec.md's
// "single-threaded with the reactor" requirement.
type Book struct {
	bids PriceTreeInterface // buy orders, best = highest price
	asks PriceTreeInterface // sell orders, best = lowest price

	orders map[uint64]*domain.Order
}

// NewBook creates an empty book backed by the given price-tree kind.
func NewBook(kind PriceTreeKind) *Book {
	return &Book{
		bids:   newPriceTree(kind, true),
		asks:   newPriceTree(kind, false),
		orders: make(map[uint64]*domain.Order),
	}
}

func (b *Book) treeFor(side domain.Side) PriceTreeInterface {
	if side == domain.SideBuy {
		return b.bids
	}
	return b.asks
}

func (b *Book) opposite(side domain.Side) PriceTreeInterface {
	if side == domain.SideBuy {
		return b.asks
	}
	return b.bids
}

// Insert adds a live order to its side of the book and the id index.
func (b *Book) Insert(order *domain.Order) {
	b.treeFor(order.Side).Insert(order)
	b.orders[order.ServerOrderID] = order
}

// Remove erases an order from its price queue (dropping the level if
// it empties) and from the id index.
func (b *Book) Remove(order *domain.Order) {
	b.treeFor(order.Side).Remove(order)
	delete(b.orders, order.ServerOrderID)
}

// GetOrder looks the order up by id, regardless of side.
func (b *Book) GetOrder(id uint64) (*domain.Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// BestBid returns the best resting buy price, or 0 if the bid side is
// empty.
func (b *Book) BestBid() int64 { return b.bids.GetBestPrice() }

// BestAsk returns the best resting sell price, or 0 if the ask side is
// empty.
func (b *Book) BestAsk() int64 { return b.asks.GetBestPrice() }

// Spread returns (bestAsk-bestBid, true) when both sides are
// non-empty, else (0, false).
func (b *Book) Spread() (int64, bool) {
	if b.bids.IsEmpty() || b.asks.IsEmpty() {
		return 0, false
	}
	return b.asks.GetBestPrice() - b.bids.GetBestPrice(), true
}

// OppositeBestLevel returns the best level on the side that would
// match against an incoming order of the given side — asks for a buy,
// bids for a sell.
func (b *Book) OppositeBestLevel(side domain.Side) *PriceLevel_ {
	return b.opposite(side).GetBestLevel()
}

// Depth returns up to levels price levels per side, in priority order.
func (b *Book) Depth(levels int) (bids, asks []PriceLevel) {
	bids = toExternal(b.bids.GetDepth(levels))
	asks = toExternal(b.asks.GetDepth(levels))
	return bids, asks
}

func toExternal(levels []PriceLevel_) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: l.Price, Quantity: l.Volume, Orders: l.Orders.Len()}
	}
	return out
}

// ReduceResting lowers the aggregate volume of a resting order's price
// level by delta, without touching the order's position in the FIFO
// queue; the caller adjusts order.Remaining itself. Used by fills
// during matching and by an in-place quantity-decrease modify, which
// must preserve time priority.
func (b *Book) ReduceResting(order *domain.Order, delta int64) {
	level := b.treeFor(order.Side).GetLevel(order.Price)
	if level != nil {
		level.Volume -= delta
	}
}

// Reset clears the book back to empty, keeping the existing price-tree
// implementations.
func (b *Book) Reset(kind PriceTreeKind) {
	b.bids = newPriceTree(kind, true)
	b.asks = newPriceTree(kind, false)
	b.orders = make(map[uint64]*domain.Order)
}
