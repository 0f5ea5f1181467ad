package domain

import "time"

// TradeEvent is one fill produced by a single process/modify call.
// Price is always the resting side's price (the incoming order never
// improves on its own limit).
type TradeEvent struct {
	TradeID      uint64
	InstrumentID uint32
	Price        int64
	Quantity     int64
	Timestamp    time.Time

	BuyOrderID  uint64
	BuyClientID uint64

	SellOrderID  uint64
	SellClientID uint64
}

// MatchResult is the per-accepted-order outcome of Engine.Submit: the
// originator's residual quantity and final status, plus every trade
// the call produced, in the order they occurred.
type MatchResult struct {
	OrderID   uint64
	Timestamp time.Time
	Residual  int64
	Status    OrderStatus
	Trades    []TradeEvent
}

// ModifyStatus is the outcome of Engine.Modify.
type ModifyStatus uint8

const (
	ModifyAccepted ModifyStatus = iota
	ModifyNotFound
	ModifyInvalid
)

// ModifyResult carries both order ids involved in a modify (they
// differ whenever the modify re-submitted the order, i.e. any price
// change or a quantity increase) and, if that re-submission crossed
// the book, the MatchResult it produced.
type ModifyResult struct {
	OldOrderID uint64
	NewOrderID uint64
	NewQty     int64
	NewPrice   int64
	Status     ModifyStatus
	Match      *MatchResult
}
