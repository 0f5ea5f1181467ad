// Package client implements a trading-session client for the exchange
// wire protocol: it dials the gateway, performs the HELLO handshake,
// submits/cancels/modifies orders, and dispatches ORDER_ACK/CANCEL_ACK/
// MODIFY_ACK/TRADE messages to caller-supplied callbacks as they arrive
// off the wire. It is a thin correlation layer over matchcore/wire, not
// a second matching engine: it never second-guesses a server decision,
// and it tracks order quantity/status only far enough to answer "what
// did I just ask for and what happened to it" — it does not compute
// positions or P&L, which stay the concern of whatever sits above it.
package client

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"matchcore/domain"
	"matchcore/wire"
)

// Order is the client's own record of one order it has submitted.
// ServerOrderID is zero until the matching ORDER_ACK arrives — Pending
// reports exactly that window.
type Order struct {
	ClientOrderID uint64
	ServerOrderID uint64
	InstrumentID  uint32
	Side          domain.Side
	Type          domain.OrderType
	Price         int64
	OriginalQty   int64
	RemainingQty  int64
	Status        domain.OrderStatus
}

func (o Order) Pending() bool { return o.ServerOrderID == 0 && o.Status == domain.OrderStatusNew }

// pendingModify remembers the quantity/price a MODIFY_ORDER asked for,
// since ModifyAckPayload confirms only the order-id change — the new
// qty/price are never echoed back on the wire.
type pendingModify struct {
	order    *Order
	newQty   int64
	newPrice int64
}

func (o Order) Open() bool {
	switch o.Status {
	case domain.OrderStatusNew, domain.OrderStatusPartiallyFilled, domain.OrderStatusModified:
		return true
	default:
		return false
	}
}

// Callbacks are invoked from the Run goroutine as messages arrive.
// Every field is optional; a nil callback is simply skipped. They run
// with the client's internal state lock released, so a callback may
// call back into the client (e.g. submit a replacement order) without
// deadlocking.
type Callbacks struct {
	OnHelloAck       func(status wire.HelloStatus, serverClientID uint64)
	OnOrderAccepted  func(order Order, acceptedPrice int64, serverTime uint64, latencyUs uint32)
	OnOrderRejected  func(order Order, status wire.OrderAckStatus)
	OnOrderFilled    func(order Order, tradeID uint64, fillQty, fillPrice int64)
	OnOrderCancelled func(order Order)
	OnCancelRejected func(order Order, status wire.CancelAckStatus)
	OnModifyAccepted func(order Order, newPrice, newQty int64)
	OnModifyRejected func(order Order, status wire.ModifyAckStatus)
	OnDisconnect     func(err error)
}

// Client holds one authenticated (or authenticating) connection to the
// gateway. All exported methods are safe to call concurrently with Run.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	apiKey  [wire.APIKeySize]byte
	hmacKey [wire.HMACKeySize]byte
	cb      Callbacks

	writeMu sync.Mutex

	mu                sync.Mutex
	clientSqn         uint32
	serverClientID    uint64
	authenticated     bool
	nextClientOrderID uint64
	pendingNew        map[uint32]*Order // keyed by the clientSqn the NEW_ORDER was sent under
	pendingCancel     map[uint32]*Order
	pendingModify     map[uint32]*pendingModify
	byClientOrderID   map[uint64]*Order
	byServerOrderID   map[uint64]*Order
}

// Dial opens a TCP connection to addr and wraps it in a Client. It does
// not perform the HELLO handshake — call Hello (and then Run) next.
func Dial(addr string, apiKey [wire.APIKeySize]byte, hmacKey [wire.HMACKeySize]byte, cb Callbacks) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	return NewClient(conn, apiKey, hmacKey, cb), nil
}

// NewClient wraps an already-open connection, for tests that supply a
// net.Pipe half instead of a real socket.
func NewClient(conn net.Conn, apiKey [wire.APIKeySize]byte, hmacKey [wire.HMACKeySize]byte, cb Callbacks) *Client {
	return &Client{
		conn:            conn,
		reader:          bufio.NewReader(conn),
		apiKey:          apiKey,
		hmacKey:         hmacKey,
		cb:              cb,
		pendingNew:      make(map[uint32]*Order),
		pendingCancel:   make(map[uint32]*Order),
		pendingModify:   make(map[uint32]*pendingModify),
		byClientOrderID: make(map[uint64]*Order),
		byServerOrderID: make(map[uint64]*Order),
	}
}

func (c *Client) nextSqn() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientSqn++
	return c.clientSqn
}

// Authenticated reports whether a HELLO_ACK with HelloAccepted has been
// processed yet.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Hello sends the HELLO handshake. The outcome arrives asynchronously
// through Callbacks.OnHelloAck once Run is pumping the connection,
// except an INVALID_API_KEY rejection: the server signs that one with
// an all-zero key, so unless this client's own key is all zero it
// fails the tag check and is dropped without a callback.
func (c *Client) Hello() error {
	sqn := c.nextSqn()
	payload := wire.HelloPayload{APIKey: c.apiKey}
	frame := wire.Encode(wire.MsgHello, sqn, 0, payload.Marshal(), c.hmacKey[:])
	return c.write(frame)
}

// Heartbeat sends a HEARTBEAT carrying the assigned server client id.
func (c *Client) Heartbeat() error {
	sqn := c.nextSqn()
	payload := wire.HeartbeatPayload{ServerClientID: c.serverID()}
	frame := wire.Encode(wire.MsgHeartbeat, sqn, 0, payload.Marshal(), c.hmacKey[:])
	return c.write(frame)
}

// Logout sends LOGOUT. The server clears the session's authentication
// and keeps its sequence counters; this client does not process the
// LOGOUT_ACK, so its own sequence and Authenticated state are left as
// they were. The caller must re-HELLO to resume trading on this
// connection.
func (c *Client) Logout() error {
	sqn := c.nextSqn()
	payload := wire.LogoutPayload{ServerClientID: c.serverID()}
	frame := wire.Encode(wire.MsgLogout, sqn, 0, payload.Marshal(), c.hmacKey[:])
	return c.write(frame)
}

// SubmitOrder sends a NEW_ORDER and returns the client-local Order
// record immediately, before any server response: ServerOrderID is
// zero and Pending() is true until OnOrderAccepted/OnOrderRejected
// fires.
func (c *Client) SubmitOrder(instrumentID uint32, side domain.Side, orderType domain.OrderType, qty, price int64) Order {
	c.mu.Lock()
	c.nextClientOrderID++
	order := &Order{
		ClientOrderID: c.nextClientOrderID,
		InstrumentID:  instrumentID,
		Side:          side,
		Type:          orderType,
		Price:         price,
		OriginalQty:   qty,
		RemainingQty:  qty,
		Status:        domain.OrderStatusNew,
	}
	c.byClientOrderID[order.ClientOrderID] = order
	c.mu.Unlock()

	sqn := c.nextSqn()
	payload := wire.NewOrderPayload{
		ServerClientID: c.serverID(),
		InstrumentID:   instrumentID,
		OrderSide:      uint8(side),
		OrderType:      uint8(orderType),
		Quantity:       qty,
		Price:          price,
	}
	frame := wire.Encode(wire.MsgNewOrder, sqn, 0, payload.Marshal(), c.hmacKey[:])

	c.mu.Lock()
	c.pendingNew[sqn] = order
	c.mu.Unlock()

	if err := c.write(frame); err != nil {
		// The order never reached the wire; give the caller a status
		// that reflects that rather than leaving it Pending forever.
		c.mu.Lock()
		order.Status = domain.OrderStatusCancelled
		delete(c.pendingNew, sqn)
		c.mu.Unlock()
	}
	return *order
}

// CancelOrder sends a CANCEL_ORDER for a previously accepted order.
func (c *Client) CancelOrder(serverOrderID uint64) error {
	c.mu.Lock()
	order := c.byServerOrderID[serverOrderID]
	c.mu.Unlock()
	if order == nil {
		return fmt.Errorf("client: unknown server order id %d", serverOrderID)
	}

	sqn := c.nextSqn()
	payload := wire.CancelOrderPayload{ServerClientID: c.serverID(), ServerOrderID: serverOrderID}
	frame := wire.Encode(wire.MsgCancelOrder, sqn, 0, payload.Marshal(), c.hmacKey[:])

	c.mu.Lock()
	c.pendingCancel[sqn] = order
	c.mu.Unlock()

	return c.write(frame)
}

// ModifyOrder sends a MODIFY_ORDER. A same-price quantity decrease
// preserves the order's identity server-side; anything else replaces
// it under a new server order id, delivered via OnModifyAccepted.
func (c *Client) ModifyOrder(serverOrderID uint64, newQty, newPrice int64) error {
	c.mu.Lock()
	order := c.byServerOrderID[serverOrderID]
	c.mu.Unlock()
	if order == nil {
		return fmt.Errorf("client: unknown server order id %d", serverOrderID)
	}

	sqn := c.nextSqn()
	payload := wire.ModifyOrderPayload{ServerClientID: c.serverID(), ServerOrderID: serverOrderID, NewQty: newQty, NewPrice: newPrice}
	frame := wire.Encode(wire.MsgModifyOrder, sqn, 0, payload.Marshal(), c.hmacKey[:])

	c.mu.Lock()
	c.pendingModify[sqn] = &pendingModify{order: order, newQty: newQty, newPrice: newPrice}
	c.mu.Unlock()

	return c.write(frame)
}

// Order returns the client's current record of clientOrderID, if any.
func (c *Client) Order(clientOrderID uint64) (Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.byClientOrderID[clientOrderID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// OpenOrders returns a snapshot of every order still live in the book.
func (c *Client) OpenOrders() []Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Order, 0, len(c.byClientOrderID))
	for _, o := range c.byClientOrderID {
		if o.Open() {
			out = append(out, *o)
		}
	}
	return out
}

func (c *Client) serverID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverClientID
}

func (c *Client) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(frame)
	return err
}

// Close closes the underlying connection; Run returns once this
// happens.
func (c *Client) Close() error { return c.conn.Close() }

// Run reads frames off the connection until it closes or a framing
// error occurs, dispatching each to the matching Callbacks field. It
// blocks; call it from its own goroutine.
func (c *Client) Run() error {
	header := make([]byte, wire.HeaderSize)
	for {
		if _, err := readFull(c.reader, header); err != nil {
			if c.cb.OnDisconnect != nil {
				c.cb.OnDisconnect(err)
			}
			return err
		}
		h := wire.UnmarshalHeader(header)
		size, ok := wire.FixedPayloadSize(h.MessageType)
		if !ok {
			err := fmt.Errorf("client: unrecognized message type %d", h.MessageType)
			if c.cb.OnDisconnect != nil {
				c.cb.OnDisconnect(err)
			}
			return err
		}

		body := make([]byte, size)
		if _, err := readFull(c.reader, body); err != nil {
			if c.cb.OnDisconnect != nil {
				c.cb.OnDisconnect(err)
			}
			return err
		}

		frame := make([]byte, 0, wire.HeaderSize+size)
		frame = append(frame, header...)
		frame = append(frame, body...)
		c.dispatch(h, frame)
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (c *Client) dispatch(header wire.Header, frame []byte) {
	_, body, err := wire.Decode(frame, c.hmacKey[:])
	if err != nil {
		// A tag mismatch here means the server and client have
		// desynced keys or state; there is nothing to salvage for
		// this one message.
		return
	}

	switch header.MessageType {
	case wire.MsgHelloAck:
		c.handleHelloAck(header, body)
	case wire.MsgOrderAck:
		c.handleOrderAck(header, body)
	case wire.MsgCancelAck:
		c.handleCancelAck(header, body)
	case wire.MsgModifyAck:
		c.handleModifyAck(header, body)
	case wire.MsgTrade:
		c.handleTrade(body)
	}
}

func (c *Client) handleHelloAck(header wire.Header, body []byte) {
	ack := wire.UnmarshalHelloAckPayload(body)
	status := wire.HelloStatus(ack.Status)

	c.mu.Lock()
	if status == wire.HelloAccepted {
		c.serverClientID = ack.ServerClientID
		c.authenticated = true
	}
	c.mu.Unlock()

	if c.cb.OnHelloAck != nil {
		c.cb.OnHelloAck(status, ack.ServerClientID)
	}
}

func (c *Client) handleOrderAck(header wire.Header, body []byte) {
	ack := wire.UnmarshalOrderAckPayload(body)

	c.mu.Lock()
	order, ok := c.pendingNew[header.ClientMsgSqn]
	if ok {
		delete(c.pendingNew, header.ClientMsgSqn)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	status := wire.OrderAckStatus(ack.Status)
	if status != wire.OrderAckAccepted {
		c.mu.Lock()
		order.Status = domain.OrderStatusCancelled
		c.mu.Unlock()
		if c.cb.OnOrderRejected != nil {
			c.cb.OnOrderRejected(*order, status)
		}
		return
	}

	c.mu.Lock()
	order.ServerOrderID = ack.ServerOrderID
	c.byServerOrderID[ack.ServerOrderID] = order
	c.mu.Unlock()

	if c.cb.OnOrderAccepted != nil {
		c.cb.OnOrderAccepted(*order, ack.AcceptedPrice, ack.ServerTime, ack.Latency)
	}
}

func (c *Client) handleCancelAck(header wire.Header, body []byte) {
	ack := wire.UnmarshalCancelAckPayload(body)

	c.mu.Lock()
	order, ok := c.pendingCancel[header.ClientMsgSqn]
	if ok {
		delete(c.pendingCancel, header.ClientMsgSqn)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	status := wire.CancelAckStatus(ack.Status)
	if status != wire.CancelAckAccepted {
		if c.cb.OnCancelRejected != nil {
			c.cb.OnCancelRejected(*order, status)
		}
		return
	}

	c.mu.Lock()
	order.Status = domain.OrderStatusCancelled
	order.RemainingQty = 0
	c.mu.Unlock()

	if c.cb.OnOrderCancelled != nil {
		c.cb.OnOrderCancelled(*order)
	}
}

func (c *Client) handleModifyAck(header wire.Header, body []byte) {
	ack := wire.UnmarshalModifyAckPayload(body)

	c.mu.Lock()
	pending, ok := c.pendingModify[header.ClientMsgSqn]
	if ok {
		delete(c.pendingModify, header.ClientMsgSqn)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	order := pending.order

	status := wire.ModifyAckStatus(ack.Status)
	if status != wire.ModifyAckAccepted {
		if c.cb.OnModifyRejected != nil {
			c.cb.OnModifyRejected(*order, status)
		}
		return
	}

	c.mu.Lock()
	if ack.NewServerOrderID != ack.OldServerOrderID {
		delete(c.byServerOrderID, ack.OldServerOrderID)
		order.ServerOrderID = ack.NewServerOrderID
		c.byServerOrderID[ack.NewServerOrderID] = order
	}
	order.Price = pending.newPrice
	order.RemainingQty = pending.newQty
	order.Status = domain.OrderStatusModified
	c.mu.Unlock()

	if c.cb.OnModifyAccepted != nil {
		c.cb.OnModifyAccepted(*order, order.Price, order.RemainingQty)
	}
}

func (c *Client) handleTrade(body []byte) {
	tr := wire.UnmarshalTradePayload(body)

	c.mu.Lock()
	order, ok := c.byServerOrderID[tr.ServerOrderID]
	if ok {
		order.RemainingQty -= tr.FilledQty
		if order.RemainingQty <= 0 {
			order.Status = domain.OrderStatusFilled
		} else {
			order.Status = domain.OrderStatusPartiallyFilled
		}
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	if c.cb.OnOrderFilled != nil {
		c.cb.OnOrderFilled(*order, tr.TradeID, tr.FilledQty, tr.FilledPrice)
	}
}
