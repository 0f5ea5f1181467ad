package orderbook

import (
	"container/list"

	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"

	"matchcore/domain"
)

// ShardedPriceTree groups price levels into fixed-size buckets keyed
// by price/bucketSize, ordered by a red-black tree, with each bucket
// holding up to bucketSize levels in a flat array indexed by
// price&bucketMask. This keeps the common case (an order near the
// inside of a deep book) at O(1) while bounding worst-case insertion
// of a brand new bucket to O(log m) tree levels, m = bucket count —
// the tree's recommended backing structure once a book holds more
// than a hundred or so live price levels.
type ShardedPriceTree struct {
	buckets    *rbt.Tree[int64, *bucket]
	bestBucket *bucket
	bestPrice  *PriceLevel_
	isBuy      bool
	bucketSize int64
}

var _ PriceTreeInterface = (*ShardedPriceTree)(nil)

type bucket struct {
	bucketID   int64
	levels     []*PriceLevel_
	bestPrice  *PriceLevel_
	isBuy      bool
	size       int
	bucketSize int64
	bucketMask int64
}

// NewShardedPriceTree creates a bucketed tree. bucketSize must be a
// power of two so that price&bucketMask can replace price%bucketSize.
func NewShardedPriceTree(isBuy bool, bucketSize int64) *ShardedPriceTree {
	var cmp func(a, b int64) int
	if isBuy {
		cmp = func(a, b int64) int {
			switch {
			case a > b:
				return -1
			case a < b:
				return 1
			default:
				return 0
			}
		}
	} else {
		cmp = func(a, b int64) int {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			default:
				return 0
			}
		}
	}

	return &ShardedPriceTree{
		buckets:    rbt.NewWith[int64, *bucket](cmp),
		isBuy:      isBuy,
		bucketSize: bucketSize,
	}
}

func newBucket(bucketID int64, isBuy bool, bucketSize int64) *bucket {
	return &bucket{
		bucketID:   bucketID,
		isBuy:      isBuy,
		bucketSize: bucketSize,
		bucketMask: bucketSize - 1,
		levels:     make([]*PriceLevel_, bucketSize),
	}
}

func (spt *ShardedPriceTree) Insert(order *domain.Order) {
	bucketID := order.Price / spt.bucketSize

	b, found := spt.buckets.Get(bucketID)
	if !found {
		b = newBucket(bucketID, spt.isBuy, spt.bucketSize)
		spt.buckets.Put(bucketID, b)
	}

	index := order.Price & b.bucketMask
	level := b.levels[index]
	if level == nil {
		level = &PriceLevel_{Price: order.Price, Orders: list.New()}
		b.insertLevel(level)
	}

	elem := level.Orders.PushBack(order)
	order.ListElement = elem
	level.Volume += order.Remaining

	spt.updateBestAfterInsert(b)
}

func (spt *ShardedPriceTree) Remove(order *domain.Order) {
	bucketID := order.Price / spt.bucketSize
	b, found := spt.buckets.Get(bucketID)
	if !found {
		return
	}

	index := order.Price & b.bucketMask
	level := b.levels[index]
	if level == nil {
		return
	}

	if order.ListElement != nil {
		elem := order.ListElement.(*list.Element)
		level.Orders.Remove(elem)
		order.ListElement = nil
		level.Volume -= order.Remaining
	}

	if level.Orders.Len() == 0 {
		b.removeLevel(level)
		if b.size == 0 {
			spt.buckets.Remove(bucketID)
		}
	}

	if spt.bestBucket == b && (b.size == 0 || (spt.bestPrice != nil && spt.bestPrice.Price == order.Price)) {
		spt.refreshBest()
	}
}

func (spt *ShardedPriceTree) GetBestPrice() int64 {
	if spt.bestPrice == nil {
		return 0
	}
	return spt.bestPrice.Price
}

func (spt *ShardedPriceTree) GetBestLevel() *PriceLevel_ {
	return spt.bestPrice
}

func (spt *ShardedPriceTree) GetBestOrders() []*domain.Order {
	best := spt.bestPrice
	if best == nil {
		return nil
	}
	orders := make([]*domain.Order, 0, best.Orders.Len())
	for e := best.Orders.Front(); e != nil; e = e.Next() {
		orders = append(orders, e.Value.(*domain.Order))
	}
	return orders
}

func (spt *ShardedPriceTree) GetLevel(price int64) *PriceLevel_ {
	b, found := spt.buckets.Get(price / spt.bucketSize)
	if !found {
		return nil
	}
	return b.levels[price&b.bucketMask]
}

func (spt *ShardedPriceTree) GetDepth(maxLevels int) []PriceLevel_ {
	if maxLevels <= 0 || spt.buckets.Empty() {
		return nil
	}

	result := make([]PriceLevel_, 0, maxLevels)
	it := spt.buckets.Iterator()
	for it.Next() && len(result) < maxLevels {
		for cur := it.Value().bestPrice; cur != nil && len(result) < maxLevels; cur = cur.NextPrice {
			result = append(result, *cur)
		}
	}
	return result
}

func (spt *ShardedPriceTree) IsEmpty() bool {
	return spt.buckets.Empty()
}

func (spt *ShardedPriceTree) Size() int {
	count := 0
	it := spt.buckets.Iterator()
	for it.Next() {
		count += it.Value().size
	}
	return count
}

func (spt *ShardedPriceTree) updateBestAfterInsert(b *bucket) {
	if spt.bestBucket == nil || spt.isBetterBucket(b.bucketID, spt.bestBucket.bucketID) {
		spt.bestBucket = b
		spt.bestPrice = b.bestPrice
		return
	}
	if b == spt.bestBucket {
		spt.bestPrice = b.bestPrice
	}
}

// refreshBest re-derives the global best from the tree's leftmost
// (best-ordered) bucket. Called only on removal paths, where the
// O(log m) cost is acceptable — insertion never needs it since a new
// order can only ever improve, never worsen, the best price.
func (spt *ShardedPriceTree) refreshBest() {
	if spt.buckets.Empty() {
		spt.bestBucket = nil
		spt.bestPrice = nil
		return
	}
	node := spt.buckets.Left()
	spt.bestBucket = node.Value
	spt.bestPrice = node.Value.bestPrice
}

func (spt *ShardedPriceTree) isBetterBucket(a, b int64) bool {
	if spt.isBuy {
		return a > b
	}
	return a < b
}

func (b *bucket) insertLevel(level *PriceLevel_) {
	index := level.Price & b.bucketMask
	b.levels[index] = level
	b.size++

	if b.bestPrice == nil || b.isBetterPrice(level.Price, b.bestPrice.Price) {
		level.NextPrice = b.bestPrice
		if b.bestPrice != nil {
			b.bestPrice.PrevPrice = level
		}
		b.bestPrice = level
		return
	}

	cur := b.bestPrice
	for cur.NextPrice != nil && !b.isBetterPrice(level.Price, cur.NextPrice.Price) {
		cur = cur.NextPrice
	}
	level.NextPrice = cur.NextPrice
	level.PrevPrice = cur
	if cur.NextPrice != nil {
		cur.NextPrice.PrevPrice = level
	}
	cur.NextPrice = level
}

func (b *bucket) removeLevel(level *PriceLevel_) {
	index := level.Price & b.bucketMask
	b.levels[index] = nil
	b.size--

	if level.PrevPrice != nil {
		level.PrevPrice.NextPrice = level.NextPrice
	} else {
		b.bestPrice = level.NextPrice
	}
	if level.NextPrice != nil {
		level.NextPrice.PrevPrice = level.PrevPrice
	}
	level.NextPrice, level.PrevPrice = nil, nil
}

func (b *bucket) isBetterPrice(a, c int64) bool {
	if b.isBuy {
		return a > c
	}
	return a < c
}
