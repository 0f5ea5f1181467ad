// Package matching implements the single-instrument price-time
// priority matching engine: order submission, cancel, modify, and the
// book-update fan-out to the market-data path via Ring.
//
// Every exported method here runs on the same thread as the protocol
// handler that calls it (spec.md §4.3, §5) — there is no internal
// locking, by design, not by oversight.
package matching

import (
	"time"

	"matchcore/domain"
	"matchcore/orderbook"
)

// Engine owns one instrument's book and the monotonic id counters
// for orders and trades that rest or trade against it.
type Engine struct {
	instrumentID uint32
	book         *orderbook.Book
	bookKind     orderbook.PriceTreeKind
	orderIDs     idGenerator
	tradeIDs     idGenerator
	updates      *Ring[domain.BookUpdate]

	droppedUpdates uint64
}

// Config controls the engine's price-tree choice and the capacity of
// its book-update ring.
type Config struct {
	InstrumentID uint32
	BookKind     orderbook.PriceTreeKind
	RingCapacity int
}

// NewEngine builds an engine for one instrument with an empty book.
func NewEngine(cfg Config) *Engine {
	if cfg.RingCapacity <= 0 {
		cfg.RingCapacity = 4096
	}
	return &Engine{
		instrumentID: cfg.InstrumentID,
		book:         orderbook.NewBook(cfg.BookKind),
		bookKind:     cfg.BookKind,
		updates:      NewRing[domain.BookUpdate](cfg.RingCapacity),
	}
}

// Updates returns the SPSC ring the market-data observer drains.
func (e *Engine) Updates() *Ring[domain.BookUpdate] { return e.updates }

// DroppedUpdates reports how many BookUpdate records failed to push
// onto the ring. It should never be non-zero in a correctly sized
// deployment (spec.md §4.6); it exists so operators can tell the
// difference between "fine" and "silently behind".
func (e *Engine) DroppedUpdates() uint64 { return e.droppedUpdates }

// BestBid, BestAsk, Spread, GetOrder mirror orderbook.Book directly —
// the engine adds no state of its own on top of the book for reads.
func (e *Engine) BestBid() int64                           { return e.book.BestBid() }
func (e *Engine) BestAsk() int64                           { return e.book.BestAsk() }
func (e *Engine) Spread() (int64, bool)                    { return e.book.Spread() }
func (e *Engine) GetOrder(id uint64) (*domain.Order, bool) { return e.book.GetOrder(id) }

// Depth mirrors orderbook.Book.Depth — tests use it to check the
// observer's replica against the book it mirrors (the market-data
// publisher builds its SNAPSHOT from that replica, not from here).
func (e *Engine) Depth(levels int) (bids, asks []orderbook.PriceLevel) {
	return e.book.Depth(levels)
}

// Reset drops the book back to empty and rewinds nothing about the id
// counters — ids stay monotonic across a reset, same as trade ids
// never get reused after a restart in the source design.
func (e *Engine) Reset() {
	e.book.Reset(e.bookKind)
}

// Submit assigns a fresh server order id to a validated request and
// runs it through the book. Invalid requests must never reach here —
// the protocol handler is responsible for rejecting them first.
func (e *Engine) Submit(req domain.OrderRequest) domain.MatchResult {
	id := e.orderIDs.Next()
	order := req.ToOrder(id, time.Now())
	return e.process(order)
}

// process runs the core matching algorithm from spec.md §4.3 for one
// order: walk the opposing book while a match is possible, skipping
// same-client resting orders (self-trade prevention), then finalize
// per the order's type.
func (e *Engine) process(order *domain.Order) domain.MatchResult {
	remaining := order.Remaining
	original := remaining
	var trades []domain.TradeEvent
	now := time.Now()

	for remaining > 0 {
		level := e.book.OppositeBestLevel(order.Side)
		if level == nil {
			break
		}
		bestPrice := level.Price
		if order.Type == domain.OrderTypeLimit && !priceCrosses(order.Side, order.Price, bestPrice) {
			break
		}

		progressed := false
		elem := level.Orders.Front()
		for elem != nil && remaining > 0 {
			resting := elem.Value.(*domain.Order)
			next := elem.Next()

			if resting.ClientID == order.ClientID {
				elem = next
				continue
			}

			m := remaining
			if resting.Remaining < m {
				m = resting.Remaining
			}

			trades = append(trades, e.buildTrade(order, resting, bestPrice, m, now))
			remaining -= m
			resting.Remaining -= m
			e.book.ReduceResting(resting, m)
			progressed = true

			if resting.Remaining == 0 {
				resting.Status = domain.OrderStatusFilled
				e.book.Remove(resting)
				e.pushUpdate(domain.BookUpdate{
					Price: bestPrice, Amount: m, Side: resting.Side, Kind: domain.BookUpdateReduce,
				})
			} else {
				resting.Status = domain.OrderStatusPartiallyFilled
				e.pushUpdate(domain.BookUpdate{
					Price: bestPrice, Amount: m, Side: resting.Side, Kind: domain.BookUpdateReduce,
				})
			}

			elem = next
		}

		if !progressed {
			break
		}
	}

	return e.finalize(order, remaining, original, trades, now)
}

// priceCrosses reports whether a limit order at incomingPrice is
// willing to trade at restingPrice: buys need incoming >= resting,
// sells need incoming <= resting.
func priceCrosses(side domain.Side, incomingPrice, restingPrice int64) bool {
	if side == domain.SideBuy {
		return incomingPrice >= restingPrice
	}
	return incomingPrice <= restingPrice
}

func (e *Engine) buildTrade(incoming, resting *domain.Order, price, qty int64, now time.Time) domain.TradeEvent {
	ev := domain.TradeEvent{
		TradeID:      e.tradeIDs.Next(),
		InstrumentID: e.instrumentID,
		Price:        price,
		Quantity:     qty,
		Timestamp:    now,
	}
	if incoming.Side == domain.SideBuy {
		ev.BuyOrderID, ev.BuyClientID = incoming.ServerOrderID, incoming.ClientID
		ev.SellOrderID, ev.SellClientID = resting.ServerOrderID, resting.ClientID
	} else {
		ev.BuyOrderID, ev.BuyClientID = resting.ServerOrderID, resting.ClientID
		ev.SellOrderID, ev.SellClientID = incoming.ServerOrderID, incoming.ClientID
	}
	return ev
}

func (e *Engine) finalize(order *domain.Order, remaining, original int64, trades []domain.TradeEvent, now time.Time) domain.MatchResult {
	order.Remaining = remaining

	switch order.Type {
	case domain.OrderTypeMarket:
		switch {
		case remaining == 0:
			order.Status = domain.OrderStatusFilled
		case remaining < original:
			order.Status = domain.OrderStatusPartiallyFilled
		default:
			order.Status = domain.OrderStatusCancelled
		}
		// Market orders never rest; any residual is discarded.

	default: // Limit
		switch {
		case remaining == 0:
			order.Status = domain.OrderStatusFilled
		case remaining < original:
			order.Status = domain.OrderStatusPartiallyFilled
			e.book.Insert(order)
			e.pushUpdate(domain.BookUpdate{Price: order.Price, Amount: remaining, Side: order.Side, Kind: domain.BookUpdateAdd})
		default:
			order.Status = domain.OrderStatusNew
			e.book.Insert(order)
			e.pushUpdate(domain.BookUpdate{Price: order.Price, Amount: remaining, Side: order.Side, Kind: domain.BookUpdateAdd})
		}
	}

	return domain.MatchResult{
		OrderID:   order.ServerOrderID,
		Timestamp: now,
		Residual:  remaining,
		Status:    order.Status,
		Trades:    trades,
	}
}

// Cancel removes a resting order the caller owns. It returns false for
// an unknown id or one owned by a different client — the protocol
// handler maps both to CancelAckStatus NOT_FOUND.
func (e *Engine) Cancel(clientID, orderID uint64) bool {
	order, ok := e.book.GetOrder(orderID)
	if !ok || order.ClientID != clientID {
		return false
	}

	e.book.Remove(order)
	order.Status = domain.OrderStatusCancelled
	e.pushUpdate(domain.BookUpdate{Price: order.Price, Amount: order.Remaining, Side: order.Side, Kind: domain.BookUpdateReduce})
	return true
}

// Modify amends a resting order's qty and/or price per spec.md §4.3:
// a same-price quantity decrease adjusts in place and preserves time
// priority; anything else (a price change, or a quantity increase)
// cancels the order and resubmits it under a new id, which may cross
// immediately.
func (e *Engine) Modify(clientID, orderID uint64, newQty, newPrice int64) domain.ModifyResult {
	order, ok := e.book.GetOrder(orderID)
	if !ok {
		return domain.ModifyResult{Status: domain.ModifyNotFound}
	}
	if order.ClientID != clientID || newQty <= 0 || newPrice <= 0 {
		return domain.ModifyResult{Status: domain.ModifyInvalid}
	}

	if newPrice == order.Price && newQty == order.Remaining {
		return domain.ModifyResult{
			OldOrderID: orderID, NewOrderID: orderID,
			NewQty: newQty, NewPrice: newPrice, Status: domain.ModifyAccepted,
		}
	}

	if newPrice == order.Price && newQty < order.Remaining {
		delta := order.Remaining - newQty
		order.Remaining = newQty
		order.Status = domain.OrderStatusModified
		e.book.ReduceResting(order, delta)
		e.pushUpdate(domain.BookUpdate{Price: order.Price, Amount: delta, Side: order.Side, Kind: domain.BookUpdateReduce})

		return domain.ModifyResult{
			OldOrderID: orderID, NewOrderID: orderID,
			NewQty: newQty, NewPrice: newPrice, Status: domain.ModifyAccepted,
		}
	}

	// Quantity increase, or any price change: cancel and resubmit.
	e.book.Remove(order)
	order.Status = domain.OrderStatusCancelled
	e.pushUpdate(domain.BookUpdate{Price: order.Price, Amount: order.Remaining, Side: order.Side, Kind: domain.BookUpdateReduce})

	newID := e.orderIDs.Next()
	fresh := domain.OrderRequest{
		ClientID:     clientID,
		Side:         order.Side,
		Type:         domain.OrderTypeLimit,
		InstrumentID: order.InstrumentID,
		Price:        newPrice,
		Quantity:     newQty,
		TimeInForce:  order.TimeInForce,
		GoodTillDate: order.GoodTillDate,
		Valid:        true,
	}.ToOrder(newID, time.Now())

	match := e.process(fresh)

	return domain.ModifyResult{
		OldOrderID: orderID, NewOrderID: newID,
		NewQty: newQty, NewPrice: newPrice,
		Status: domain.ModifyAccepted,
		Match:  &match,
	}
}

func (e *Engine) pushUpdate(u domain.BookUpdate) {
	if !e.updates.TryPush(u) {
		e.droppedUpdates++
	}
}
