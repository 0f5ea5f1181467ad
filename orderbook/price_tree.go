package orderbook

import (
	"container/list"
	"sort"

	"matchcore/domain"
)

// HashMapListPriceTree is a hashmap-of-price-levels plus a price-sorted
// slice for best-price/depth queries: O(1) level lookup through the
// map, O(1) best-price access via ordered[0], O(n) insertion of a
// brand-new price level (rare once a book is warm — most arrivals land
// at or near the best price). This is the reference implementation the
// correctness tests run against and the default for thin books;
// ShardedPriceTree is the one built for deep, high-churn books.
type HashMapListPriceTree struct {
	levels     map[int64]*PriceLevel_
	ordered    []*PriceLevel_ // best-to-worst, kept sorted on every insert/remove
	descending bool           // true for bids (high to low), false for asks
}

var _ PriceTreeInterface = (*HashMapListPriceTree)(nil)

// PriceLevel_ holds every order resting at one price, in arrival
// order. NextPrice/PrevPrice thread ShardedPriceTree's per-bucket
// lists; HashMapListPriceTree orders levels through a sorted slice
// instead and leaves them nil.
type PriceLevel_ struct {
	Price  int64
	Orders *list.List
	Volume int64

	NextPrice *PriceLevel_
	PrevPrice *PriceLevel_
}

// NewHashMapListPriceTree creates an empty tree for one side of the
// book. descending selects bid ordering (true) or ask ordering
// (false).
func NewHashMapListPriceTree(descending bool) *HashMapListPriceTree {
	return &HashMapListPriceTree{
		levels:     make(map[int64]*PriceLevel_),
		descending: descending,
	}
}

func (pt *HashMapListPriceTree) Insert(order *domain.Order) {
	level, exists := pt.levels[order.Price]
	if !exists {
		level = &PriceLevel_{Price: order.Price, Orders: list.New()}
		pt.levels[order.Price] = level
		pt.insertSorted(level)
	}

	elem := level.Orders.PushBack(order)
	order.ListElement = elem
	level.Volume += order.Remaining
}

func (pt *HashMapListPriceTree) Remove(order *domain.Order) {
	level, exists := pt.levels[order.Price]
	if !exists {
		return
	}

	if order.ListElement != nil {
		elem := order.ListElement.(*list.Element)
		level.Orders.Remove(elem)
		order.ListElement = nil
		level.Volume -= order.Remaining
	}

	if level.Orders.Len() == 0 {
		delete(pt.levels, level.Price)
		pt.removeSorted(level.Price)
	}
}

func (pt *HashMapListPriceTree) GetBestPrice() int64 {
	if len(pt.ordered) == 0 {
		return 0
	}
	return pt.ordered[0].Price
}

func (pt *HashMapListPriceTree) GetBestLevel() *PriceLevel_ {
	if len(pt.ordered) == 0 {
		return nil
	}
	return pt.ordered[0]
}

func (pt *HashMapListPriceTree) GetBestOrders() []*domain.Order {
	best := pt.GetBestLevel()
	if best == nil {
		return nil
	}
	orders := make([]*domain.Order, 0, best.Orders.Len())
	for e := best.Orders.Front(); e != nil; e = e.Next() {
		orders = append(orders, e.Value.(*domain.Order))
	}
	return orders
}

func (pt *HashMapListPriceTree) GetLevel(price int64) *PriceLevel_ {
	return pt.levels[price]
}

func (pt *HashMapListPriceTree) GetDepth(maxLevels int) []PriceLevel_ {
	if maxLevels <= 0 || len(pt.ordered) == 0 {
		return nil
	}
	n := maxLevels
	if n > len(pt.ordered) {
		n = len(pt.ordered)
	}
	depth := make([]PriceLevel_, n)
	for i := 0; i < n; i++ {
		depth[i] = *pt.ordered[i]
	}
	return depth
}

func (pt *HashMapListPriceTree) IsEmpty() bool {
	return len(pt.ordered) == 0
}

func (pt *HashMapListPriceTree) Size() int {
	return len(pt.levels)
}

// insertSorted places a brand-new level at its rank among the
// existing ones via binary search, so ordered stays best-first and
// GetBestPrice/GetDepth never scan.
func (pt *HashMapListPriceTree) insertSorted(level *PriceLevel_) {
	i := sort.Search(len(pt.ordered), func(i int) bool {
		return pt.isBetterOrEqual(level.Price, pt.ordered[i].Price)
	})
	pt.ordered = append(pt.ordered, nil)
	copy(pt.ordered[i+1:], pt.ordered[i:])
	pt.ordered[i] = level
}

// removeSorted drops the (now-empty) level at price from ordered,
// located by the same binary search insertSorted uses to place it.
func (pt *HashMapListPriceTree) removeSorted(price int64) {
	i := sort.Search(len(pt.ordered), func(i int) bool {
		return pt.isBetterOrEqual(price, pt.ordered[i].Price)
	})
	if i >= len(pt.ordered) || pt.ordered[i].Price != price {
		return
	}
	pt.ordered = append(pt.ordered[:i], pt.ordered[i+1:]...)
}

func (pt *HashMapListPriceTree) isBetterOrEqual(a, b int64) bool {
	if pt.descending {
		return a >= b
	}
	return a <= b
}
