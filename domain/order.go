// Package domain holds the plain data types shared by the matching
// engine, the wire protocol, and the market-data path: orders, trades,
// and book-update records. None of these types know about sockets,
// HMAC keys, or sequence numbers — that belongs to protocol/session.
package domain

import "time"

// Side is the side of an order or a trade leg.
type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

// OrderType distinguishes priced orders that may rest from unpriced
// orders that never do.
type OrderType uint8

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
)

// OrderStatus is the lifecycle state of a server-side order. An order
// is live in the book iff its Status is one of NEW, PartiallyFilled,
// or Modified, and the engine's id index still points to it.
type OrderStatus uint8

const (
	OrderStatusNew OrderStatus = iota
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusModified
)

// TimeInForce mirrors the wire field; the matching engine does not
// currently branch on it beyond carrying it through to the order.
type TimeInForce uint8

const (
	TimeInForceDay TimeInForce = iota
	TimeInForceGTC
	TimeInForceGTD
)

// Order is the engine's exclusive, mutable record of a resting or
// in-flight order. Identity (ServerOrderID, ClientID, Side, Type,
// InstrumentID, SubmitTime, the original TimeInForce/GoodTillDate) is
// fixed at creation; Remaining, Price (via modify-to-new-id only), and
// Status mutate as the order is matched, cancelled, or modified.
//
// ListElement caches the *list.Element the order occupies within its
// price level's FIFO queue, letting the order book remove it in O(1)
// without a linear scan — the same trick the book's price levels use.
type Order struct {
	ServerOrderID uint64
	ClientID      uint64
	Side          Side
	Type          OrderType
	InstrumentID  uint32
	Price         int64
	Quantity      int64
	Remaining     int64
	Status        OrderStatus
	TimeInForce   TimeInForce
	GoodTillDate  uint64
	SubmitTime    time.Time

	ListElement interface{}
}

// IsFilled reports whether the order has no remaining quantity.
func (o *Order) IsFilled() bool {
	return o.Remaining <= 0
}

// OrderRequest is the result of validating an inbound NEW_ORDER
// message. Invalid requests never reach the book: the protocol
// handler replies with ORDER_ACK{INVALID} without calling the engine.
type OrderRequest struct {
	ClientID     uint64
	Side         Side
	Type         OrderType
	InstrumentID uint32
	Price        int64
	Quantity     int64
	TimeInForce  TimeInForce
	GoodTillDate uint64
	Valid        bool
}

// ToOrder builds the live Order the engine will own. Called only for
// a request that passed validation.
func (r OrderRequest) ToOrder(serverOrderID uint64, now time.Time) *Order {
	return &Order{
		ServerOrderID: serverOrderID,
		ClientID:      r.ClientID,
		Side:          r.Side,
		Type:          r.Type,
		InstrumentID:  r.InstrumentID,
		Price:         r.Price,
		Quantity:      r.Quantity,
		Remaining:     r.Quantity,
		Status:        OrderStatusNew,
		TimeInForce:   r.TimeInForce,
		GoodTillDate:  r.GoodTillDate,
		SubmitTime:    now,
	}
}
