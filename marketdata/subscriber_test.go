package marketdata

import (
	"testing"

	"matchcore/domain"
)

func newTestSubscriber() *Subscriber {
	return &Subscriber{}
}

func TestSubscriberSnapshotEstablishesValidReplica(t *testing.T) {
	s := newTestSubscriber()
	snap := SnapshotPayload{Bids: []SnapshotLevel{{Price: 100, Qty: 10}}, Asks: []SnapshotLevel{{Price: 101, Qty: 5}}}
	s.Process(EncodeSnapshot(1, 1, snap))

	if !s.IsValid() {
		t.Fatalf("expected replica valid after snapshot")
	}
	if len(s.Book().Bids) != 1 || s.Book().Bids[0].Qty != 10 {
		t.Fatalf("unexpected bids: %+v", s.Book().Bids)
	}
}

func TestSubscriberAppliesContiguousDeltas(t *testing.T) {
	s := newTestSubscriber()
	s.Process(EncodeSnapshot(1, 1, SnapshotPayload{Bids: []SnapshotLevel{{Price: 100, Qty: 10}}}))

	add := domain.BookUpdate{Price: 100, Amount: 5, Side: domain.SideBuy, Kind: domain.BookUpdateAdd}
	s.Process(EncodeDelta(2, 1, add))

	if !s.IsValid() {
		t.Fatalf("expected replica to remain valid")
	}
	if s.Book().Bids[0].Qty != 15 {
		t.Fatalf("expected accumulated qty 15, got %+v", s.Book().Bids)
	}
}

func TestSubscriberGapInvalidatesReplicaAndFires(t *testing.T) {
	s := newTestSubscriber()
	s.Process(EncodeSnapshot(1, 1, SnapshotPayload{Bids: []SnapshotLevel{{Price: 100, Qty: 10}}}))

	var gotExpected, gotReceived uint64
	fired := false
	s.OnGapDetected = func(expected, received uint64) {
		fired = true
		gotExpected, gotReceived = expected, received
	}

	// sequence 2 expected, deliver 4 instead.
	s.Process(EncodeDelta(4, 1, domain.BookUpdate{Price: 100, Amount: 1, Side: domain.SideBuy, Kind: domain.BookUpdateAdd}))

	if !fired {
		t.Fatalf("expected OnGapDetected to fire")
	}
	if gotExpected != 2 || gotReceived != 4 {
		t.Fatalf("unexpected gap args: expected=%d received=%d", gotExpected, gotReceived)
	}
	if s.IsValid() {
		t.Fatalf("expected replica invalidated by the gap")
	}
}

func TestSubscriberIgnoresDeltasWhileInvalid(t *testing.T) {
	s := newTestSubscriber()
	s.Process(EncodeSnapshot(1, 1, SnapshotPayload{Bids: []SnapshotLevel{{Price: 100, Qty: 10}}}))
	s.Process(EncodeDelta(5, 1, domain.BookUpdate{Price: 100, Amount: 1, Side: domain.SideBuy, Kind: domain.BookUpdateAdd})) // gap, invalidates

	before := append([]Level(nil), s.Book().Bids...)
	s.Process(EncodeDelta(6, 1, domain.BookUpdate{Price: 200, Amount: 99, Side: domain.SideBuy, Kind: domain.BookUpdateAdd}))

	if len(s.Book().Bids) != len(before) {
		t.Fatalf("expected delta to be ignored while invalid, got %+v", s.Book().Bids)
	}
}

func TestSubscriberRecoversOnNextSnapshot(t *testing.T) {
	s := newTestSubscriber()
	s.Process(EncodeSnapshot(1, 1, SnapshotPayload{Bids: []SnapshotLevel{{Price: 100, Qty: 10}}}))
	s.Process(EncodeDelta(5, 1, domain.BookUpdate{Price: 100, Amount: 1, Side: domain.SideBuy, Kind: domain.BookUpdateAdd})) // gap

	if s.IsValid() {
		t.Fatalf("expected invalid before recovery")
	}

	s.Process(EncodeSnapshot(10, 1, SnapshotPayload{Asks: []SnapshotLevel{{Price: 50, Qty: 3}}}))
	if !s.IsValid() {
		t.Fatalf("expected snapshot to recover validity")
	}
	if len(s.Book().Bids) != 0 || len(s.Book().Asks) != 1 {
		t.Fatalf("expected snapshot to replace replica wholesale, got %+v", s.Book())
	}
}
