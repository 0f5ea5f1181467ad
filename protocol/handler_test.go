package protocol

import (
	"net"
	"testing"

	"matchcore/internal/eventlog"
	"matchcore/matching"
	"matchcore/orderbook"
	"matchcore/session"
	"matchcore/wire"

	"go.uber.org/zap"
)

func fakeConn() net.Conn {
	client, server := net.Pipe()
	client.Close()
	return server
}

func newTestHandler() (*Handler, *session.Store, [wire.APIKeySize]byte, [wire.HMACKeySize]byte) {
	store := session.NewStore()
	engine := matching.NewEngine(matching.Config{InstrumentID: 1, BookKind: orderbook.HashMapList, RingCapacity: 64})

	var apiKey [wire.APIKeySize]byte
	copy(apiKey[:], []byte("test-api-key-001"))
	var hmacKey [wire.HMACKeySize]byte
	for i := range hmacKey {
		hmacKey[i] = 0x42
	}

	creds := Credentials{apiKey: hmacKey}
	h := New(store, engine, creds, eventlog.New(zap.NewNop(), eventlog.Config{}))
	return h, store, apiKey, hmacKey
}

func newSession(store *session.Store) *session.Session {
	s := session.New(session.NextID(), fakeConn())
	store.Add(s)
	return s
}

func helloFrame(apiKey [wire.APIKeySize]byte, hmacKey [wire.HMACKeySize]byte, clientSqn uint32) []byte {
	payload := wire.HelloPayload{APIKey: apiKey}
	return wire.Encode(wire.MsgHello, clientSqn, 0, payload.Marshal(), hmacKey[:])
}

// popResponse decodes the oldest queued frame off s.SendBuf, sized by
// its message type's fixed length, and removes it from SendBuf.
func popResponse(t *testing.T, s *session.Session, hmacKey [wire.HMACKeySize]byte) (wire.Header, []byte) {
	t.Helper()
	if len(s.SendBuf) == 0 {
		t.Fatalf("expected a queued response, got none")
	}
	size := len(s.SendBuf)
	if len(s.SendBuf) >= wire.HeaderSize {
		if payloadSize, ok := wire.FixedPayloadSize(wire.UnmarshalHeader(s.SendBuf).MessageType); ok && wire.HeaderSize+payloadSize <= size {
			size = wire.HeaderSize + payloadSize
		}
	}
	header, body, err := wire.Decode(s.SendBuf[:size], hmacKey[:])
	if err != nil {
		t.Fatalf("unexpected decode error on response: %v", err)
	}
	s.SendBuf = s.SendBuf[size:]
	return header, body
}

func authenticate(t *testing.T, h *Handler, s *session.Session, apiKey [wire.APIKeySize]byte, hmacKey [wire.HMACKeySize]byte) uint64 {
	t.Helper()
	s.RecvBuf = append(s.RecvBuf, helloFrame(apiKey, hmacKey, 1)...)
	h.Process(s)

	_, body := popResponse(t, s, hmacKey)
	ack := wire.UnmarshalHelloAckPayload(body)
	if ack.Status != uint8(wire.HelloAccepted) {
		t.Fatalf("expected HELLO_ACK accepted, got status %d", ack.Status)
	}
	if !s.Authenticated {
		t.Fatalf("expected session authenticated after HELLO")
	}
	return ack.ServerClientID
}

func TestHelloAuthenticatesSession(t *testing.T) {
	h, store, apiKey, hmacKey := newTestHandler()
	s := newSession(store)

	clientID := authenticate(t, h, s, apiKey, hmacKey)
	if clientID == 0 {
		t.Fatalf("expected non-zero assigned client id")
	}
}

func TestHelloUnknownAPIKeyRejected(t *testing.T) {
	h, store, _, hmacKey := newTestHandler()
	s := newSession(store)

	var badKey [wire.APIKeySize]byte
	copy(badKey[:], []byte("not-registered"))
	s.RecvBuf = append(s.RecvBuf, helloFrame(badKey, hmacKey, 1)...)
	h.Process(s)

	// The server has no key for an unknown API key, so it signs the
	// rejection with an all-zero key.
	_, body := popResponse(t, s, [wire.HMACKeySize]byte{})
	ack := wire.UnmarshalHelloAckPayload(body)
	if ack.Status != uint8(wire.HelloInvalidAPIKey) {
		t.Fatalf("expected INVALID_API_KEY, got %d", ack.Status)
	}
	if s.Authenticated {
		t.Fatalf("expected session to remain unauthenticated")
	}
}

func TestHelloWrongHMACRejected(t *testing.T) {
	h, store, apiKey, hmacKey := newTestHandler()
	s := newSession(store)

	var wrongKey [wire.HMACKeySize]byte
	for i := range wrongKey {
		wrongKey[i] = 0x99
	}
	s.RecvBuf = append(s.RecvBuf, helloFrame(apiKey, wrongKey, 1)...)
	h.Process(s)

	_, body := popResponse(t, s, hmacKey)
	ack := wire.UnmarshalHelloAckPayload(body)
	if ack.Status != uint8(wire.HelloInvalidHMAC) {
		t.Fatalf("expected INVALID_HMAC, got %d", ack.Status)
	}
}

func TestUnauthenticatedOrderRejected(t *testing.T) {
	h, store, _, hmacKey := newTestHandler()
	s := newSession(store)

	order := wire.NewOrderPayload{ServerClientID: 0, InstrumentID: 1, OrderSide: 0, OrderType: 0, Price: 100, Quantity: 10}
	s.RecvBuf = append(s.RecvBuf, wire.Encode(wire.MsgNewOrder, 1, 0, order.Marshal(), hmacKey[:])...)
	h.Process(s)

	if len(s.SendBuf) != 0 {
		t.Fatalf("expected no response for an unauthenticated session with no established key")
	}
}

func TestInvalidHMACOnEstablishedSessionDroppedSilently(t *testing.T) {
	h, store, apiKey, hmacKey := newTestHandler()
	s := newSession(store)
	authenticate(t, h, s, apiKey, hmacKey)

	order := wire.NewOrderPayload{ServerClientID: s.ServerClientID, InstrumentID: 1, OrderSide: 0, OrderType: 0, Price: 100, Quantity: 10}
	var wrongKey [wire.HMACKeySize]byte
	s.RecvBuf = append(s.RecvBuf, wire.Encode(wire.MsgNewOrder, 2, 0, order.Marshal(), wrongKey[:])...)
	h.Process(s)

	if len(s.SendBuf) != 0 {
		t.Fatalf("expected bad-HMAC message to be dropped with no response")
	}
}

func TestSequenceGuardRejectsStaleNewOrder(t *testing.T) {
	h, store, apiKey, hmacKey := newTestHandler()
	s := newSession(store)
	authenticate(t, h, s, apiKey, hmacKey)

	order := wire.NewOrderPayload{ServerClientID: s.ServerClientID, InstrumentID: 1, OrderSide: 0, OrderType: 0, Price: 100, Quantity: 10}
	// clientSqn 1 was already consumed by HELLO; resending 1 must be stale.
	s.RecvBuf = append(s.RecvBuf, wire.Encode(wire.MsgNewOrder, 1, 0, order.Marshal(), hmacKey[:])...)
	h.Process(s)

	_, body := popResponse(t, s, hmacKey)
	ack := wire.UnmarshalOrderAckPayload(body)
	if ack.Status != uint8(wire.OrderAckOutOfOrder) {
		t.Fatalf("expected OUT_OF_ORDER, got %d", ack.Status)
	}
}

func TestSequenceGuardDropsStaleCancelSilently(t *testing.T) {
	h, store, apiKey, hmacKey := newTestHandler()
	s := newSession(store)
	authenticate(t, h, s, apiKey, hmacKey)

	cancel := wire.CancelOrderPayload{ServerClientID: s.ServerClientID, ServerOrderID: 1}
	s.RecvBuf = append(s.RecvBuf, wire.Encode(wire.MsgCancelOrder, 1, 0, cancel.Marshal(), hmacKey[:])...)
	h.Process(s)

	if len(s.SendBuf) != 0 {
		t.Fatalf("expected stale CANCEL_ORDER to be dropped with no ack, got %d bytes", len(s.SendBuf))
	}
}

func TestNewOrderMatchFansOutTrades(t *testing.T) {
	h, store, apiKey, hmacKey := newTestHandler()

	buyer := newSession(store)
	buyerID := authenticate(t, h, buyer, apiKey, hmacKey)

	seller := newSession(store)
	authenticate(t, h, seller, apiKey, hmacKey)

	buyOrder := wire.NewOrderPayload{ServerClientID: buyerID, InstrumentID: 1, OrderSide: 0, OrderType: 0, Price: 2000, Quantity: 100}
	buyer.RecvBuf = append(buyer.RecvBuf, wire.Encode(wire.MsgNewOrder, 2, 0, buyOrder.Marshal(), hmacKey[:])...)
	h.Process(buyer)
	buyerHeader, buyerAckBody := popResponse(t, buyer, hmacKey)
	if buyerHeader.MessageType != wire.MsgOrderAck {
		t.Fatalf("expected ORDER_ACK, got %v", buyerHeader.MessageType)
	}
	if wire.UnmarshalOrderAckPayload(buyerAckBody).Status != uint8(wire.OrderAckAccepted) {
		t.Fatalf("expected buy order accepted")
	}

	sellOrder := wire.NewOrderPayload{ServerClientID: seller.ServerClientID, InstrumentID: 1, OrderSide: 1, OrderType: 0, Price: 2000, Quantity: 100}
	seller.RecvBuf = append(seller.RecvBuf, wire.Encode(wire.MsgNewOrder, 2, 0, sellOrder.Marshal(), hmacKey[:])...)
	h.Process(seller)

	// seller's buffer now holds ORDER_ACK then TRADE.
	sellerAckHeader, _ := popResponse(t, seller, hmacKey)
	if sellerAckHeader.MessageType != wire.MsgOrderAck {
		t.Fatalf("expected seller ORDER_ACK first, got %v", sellerAckHeader.MessageType)
	}

	sellerTradeHeader, sellerTradeBody := popResponse(t, seller, hmacKey)
	if sellerTradeHeader.MessageType != wire.MsgTrade {
		t.Fatalf("expected seller TRADE, got %v", sellerTradeHeader.MessageType)
	}
	trade := wire.UnmarshalTradePayload(sellerTradeBody)
	if trade.FilledQty != 100 || trade.FilledPrice != 2000 {
		t.Fatalf("unexpected trade payload: %+v", trade)
	}

	buyerTradeHeader, buyerTradeBody := popResponse(t, buyer, hmacKey)
	if buyerTradeHeader.MessageType != wire.MsgTrade {
		t.Fatalf("expected buyer TRADE fan-out, got %v", buyerTradeHeader.MessageType)
	}
	buyerTrade := wire.UnmarshalTradePayload(buyerTradeBody)
	if buyerTrade.FilledQty != 100 || buyerTrade.FilledPrice != 2000 {
		t.Fatalf("unexpected buyer trade payload: %+v", buyerTrade)
	}
}

func TestLogoutResetsAuthentication(t *testing.T) {
	h, store, apiKey, hmacKey := newTestHandler()
	s := newSession(store)
	authenticate(t, h, s, apiKey, hmacKey)

	logout := wire.LogoutPayload{ServerClientID: s.ServerClientID}
	s.RecvBuf = append(s.RecvBuf, wire.Encode(wire.MsgLogout, 2, 0, logout.Marshal(), hmacKey[:])...)
	h.Process(s)

	_, body := popResponse(t, s, hmacKey)
	ack := wire.UnmarshalHelloAckPayload(body)
	if ack.Status != uint8(wire.LogoutAccepted) {
		t.Fatalf("expected LOGOUT_ACK accepted, got %d", ack.Status)
	}
	if s.Authenticated {
		t.Fatalf("expected session unauthenticated after logout")
	}
}

func TestCancelOrderAcceptedAndNotFound(t *testing.T) {
	h, store, apiKey, hmacKey := newTestHandler()
	s := newSession(store)
	clientID := authenticate(t, h, s, apiKey, hmacKey)

	order := wire.NewOrderPayload{ServerClientID: clientID, InstrumentID: 1, OrderSide: 0, OrderType: 0, Price: 100, Quantity: 10}
	s.RecvBuf = append(s.RecvBuf, wire.Encode(wire.MsgNewOrder, 2, 0, order.Marshal(), hmacKey[:])...)
	h.Process(s)
	_, orderAckBody := popResponse(t, s, hmacKey)
	orderID := wire.UnmarshalOrderAckPayload(orderAckBody).ServerOrderID

	cancel := wire.CancelOrderPayload{ServerClientID: clientID, ServerOrderID: orderID}
	s.RecvBuf = append(s.RecvBuf, wire.Encode(wire.MsgCancelOrder, 3, 0, cancel.Marshal(), hmacKey[:])...)
	h.Process(s)
	_, cancelAckBody := popResponse(t, s, hmacKey)
	if wire.UnmarshalCancelAckPayload(cancelAckBody).Status != uint8(wire.CancelAckAccepted) {
		t.Fatalf("expected CANCEL_ACK accepted")
	}

	cancelAgain := wire.CancelOrderPayload{ServerClientID: clientID, ServerOrderID: orderID}
	s.RecvBuf = append(s.RecvBuf, wire.Encode(wire.MsgCancelOrder, 4, 0, cancelAgain.Marshal(), hmacKey[:])...)
	h.Process(s)
	_, cancelAckBody2 := popResponse(t, s, hmacKey)
	if wire.UnmarshalCancelAckPayload(cancelAckBody2).Status != uint8(wire.CancelAckNotFound) {
		t.Fatalf("expected second cancel NOT_FOUND")
	}
}
