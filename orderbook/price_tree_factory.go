package orderbook

// PriceTreeKind selects which PriceTreeInterface implementation backs
// one side of a Book.
type PriceTreeKind int

const (
	// HashMapList is the simple hashmap plus sorted-slice tree: best for
	// thin books (a handful of resting price levels).
	HashMapList PriceTreeKind = iota

	// Sharded is the bucketed red-black tree: best once a book holds
	// more than roughly a hundred distinct price levels.
	Sharded
)

const shardedBucketSize = 128

func newPriceTree(kind PriceTreeKind, descending bool) PriceTreeInterface {
	switch kind {
	case Sharded:
		return NewShardedPriceTree(descending, shardedBucketSize)
	default:
		return NewHashMapListPriceTree(descending)
	}
}
