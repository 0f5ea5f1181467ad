package marketdata

import (
	"testing"

	"matchcore/domain"
)

func TestApplyAddInsertsInPriorityOrder(t *testing.T) {
	var b Level2Book
	b.ApplyAdd(domain.SideBuy, 100, 10)
	b.ApplyAdd(domain.SideBuy, 102, 5)
	b.ApplyAdd(domain.SideBuy, 101, 7)

	want := []Level{{102, 5}, {101, 7}, {100, 10}}
	if !levelsEqual(b.Bids, want) {
		t.Fatalf("bids out of order: %+v", b.Bids)
	}
}

func TestApplyAddAscendingForAsks(t *testing.T) {
	var b Level2Book
	b.ApplyAdd(domain.SideSell, 102, 5)
	b.ApplyAdd(domain.SideSell, 100, 10)
	b.ApplyAdd(domain.SideSell, 101, 7)

	want := []Level{{100, 10}, {101, 7}, {102, 5}}
	if !levelsEqual(b.Asks, want) {
		t.Fatalf("asks out of order: %+v", b.Asks)
	}
}

func TestApplyAddAccumulatesExistingLevel(t *testing.T) {
	var b Level2Book
	b.ApplyAdd(domain.SideBuy, 100, 10)
	b.ApplyAdd(domain.SideBuy, 100, 5)

	if len(b.Bids) != 1 || b.Bids[0].Qty != 15 {
		t.Fatalf("expected accumulated level, got %+v", b.Bids)
	}
}

func TestApplyReduceRemovesEmptiedLevel(t *testing.T) {
	var b Level2Book
	b.ApplyAdd(domain.SideBuy, 100, 10)
	if err := b.ApplyReduce(domain.SideBuy, 100, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.Bids) != 0 {
		t.Fatalf("expected level removed, got %+v", b.Bids)
	}
}

func TestApplyReducePartial(t *testing.T) {
	var b Level2Book
	b.ApplyAdd(domain.SideBuy, 100, 10)
	if err := b.ApplyReduce(domain.SideBuy, 100, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.Bids) != 1 || b.Bids[0].Qty != 6 {
		t.Fatalf("expected 6 remaining, got %+v", b.Bids)
	}
}

func TestApplyReduceUntrackedPriceErrors(t *testing.T) {
	var b Level2Book
	if err := b.ApplyReduce(domain.SideBuy, 999, 1); err == nil {
		t.Fatalf("expected error for untracked price")
	}
}

func TestApplyReduceBelowZeroErrors(t *testing.T) {
	var b Level2Book
	b.ApplyAdd(domain.SideBuy, 100, 5)
	if err := b.ApplyReduce(domain.SideBuy, 100, 6); err == nil {
		t.Fatalf("expected error for over-reduction")
	}
}

func TestDepthCaps(t *testing.T) {
	var b Level2Book
	for i := int64(0); i < 5; i++ {
		b.ApplyAdd(domain.SideBuy, 100-i, 1)
	}
	bids, _ := b.Depth(3)
	if len(bids) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(bids))
	}
}

func levelsEqual(got, want []Level) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
