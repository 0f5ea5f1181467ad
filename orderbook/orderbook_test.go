package orderbook

import (
	"testing"

	"matchcore/domain"
)

func newOrder(id uint64, side domain.Side, price, qty int64) *domain.Order {
	return &domain.Order{
		ServerOrderID: id,
		ClientID:      1,
		Side:          side,
		Type:          domain.OrderTypeLimit,
		Price:         price,
		Quantity:      qty,
		Remaining:     qty,
		Status:        domain.OrderStatusNew,
	}
}

func testKinds() []PriceTreeKind { return []PriceTreeKind{HashMapList, Sharded} }

func TestBookInsertBestPrice(t *testing.T) {
	for _, kind := range testKinds() {
		b := NewBook(kind)

		b.Insert(newOrder(1, domain.SideSell, 50000, 100))
		if got := b.BestAsk(); got != 50000 {
			t.Fatalf("kind %v: expected best ask 50000, got %d", kind, got)
		}

		b.Insert(newOrder(2, domain.SideBuy, 49000, 100))
		if got := b.BestBid(); got != 49000 {
			t.Fatalf("kind %v: expected best bid 49000, got %d", kind, got)
		}
	}
}

func TestBookRemoveEmptiesLevel(t *testing.T) {
	for _, kind := range testKinds() {
		b := NewBook(kind)
		o := newOrder(1, domain.SideSell, 50000, 100)
		b.Insert(o)
		b.Remove(o)

		if got := b.BestAsk(); got != 0 {
			t.Fatalf("kind %v: expected empty ask side after remove, got %d", kind, got)
		}
		if _, ok := b.GetOrder(1); ok {
			t.Fatalf("kind %v: expected id index to forget removed order", kind)
		}
	}
}

func TestBookPricePriority(t *testing.T) {
	for _, kind := range testKinds() {
		b := NewBook(kind)
		b.Insert(newOrder(1, domain.SideSell, 51000, 100))
		b.Insert(newOrder(2, domain.SideSell, 50000, 100))
		b.Insert(newOrder(3, domain.SideSell, 52000, 100))

		if got := b.BestAsk(); got != 50000 {
			t.Fatalf("kind %v: expected best ask 50000, got %d", kind, got)
		}
	}
}

func TestBookTimePriorityFIFO(t *testing.T) {
	for _, kind := range testKinds() {
		b := NewBook(kind)
		first := newOrder(1, domain.SideSell, 100, 10)
		second := newOrder(2, domain.SideSell, 100, 20)
		b.Insert(first)
		b.Insert(second)

		orders := b.OppositeBestLevel(domain.SideBuy).Orders
		if orders.Len() != 2 {
			t.Fatalf("kind %v: expected 2 orders at level, got %d", kind, orders.Len())
		}
		front := orders.Front().Value.(*domain.Order)
		if front.ServerOrderID != 1 {
			t.Fatalf("kind %v: expected earliest order first, got id %d", kind, front.ServerOrderID)
		}
	}
}

func TestBookNoLockedBookInvariant(t *testing.T) {
	for _, kind := range testKinds() {
		b := NewBook(kind)
		b.Insert(newOrder(1, domain.SideBuy, 100, 10))
		b.Insert(newOrder(2, domain.SideSell, 101, 10))

		spread, ok := b.Spread()
		if !ok || spread <= 0 {
			t.Fatalf("kind %v: expected positive spread, got %d ok=%v", kind, spread, ok)
		}
	}
}

func TestBookDepthOrdering(t *testing.T) {
	for _, kind := range testKinds() {
		b := NewBook(kind)
		b.Insert(newOrder(1, domain.SideBuy, 100, 10))
		b.Insert(newOrder(2, domain.SideBuy, 102, 10))
		b.Insert(newOrder(3, domain.SideBuy, 101, 10))

		bids, _ := b.Depth(3)
		if len(bids) != 3 {
			t.Fatalf("kind %v: expected 3 bid levels, got %d", kind, len(bids))
		}
		if bids[0].Price != 102 || bids[1].Price != 101 || bids[2].Price != 100 {
			t.Fatalf("kind %v: bid depth not descending: %+v", kind, bids)
		}
	}
}
