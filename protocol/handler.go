// Package protocol implements the inbound message state machine that
// sits between the reactor and the matching engine: framing guards,
// HMAC verification, sequence and auth checks, and the dispatch from
// each request type to an engine operation and its response (and, for
// orders/modifies, the counterparty TRADE fan-out) (spec.md §4.4).
package protocol

import (
	"time"

	"go.uber.org/zap"

	"matchcore/domain"
	"matchcore/internal/eventlog"
	"matchcore/matching"
	"matchcore/session"
	"matchcore/wire"
)

// Credentials maps a registered api-key to the HMAC key a session
// authenticates with once it presents that api-key in HELLO.
type Credentials map[[wire.APIKeySize]byte][wire.HMACKeySize]byte

// Handler owns the engine and session store it mediates between. It
// runs exclusively on the reactor thread — the same thread that owns
// the engine and the store, per spec.md §4.2/§5.
type Handler struct {
	store       *session.Store
	engine      *matching.Engine
	credentials Credentials
	log         *eventlog.Logger
}

// New builds a protocol handler over the given engine, session store,
// and registered api-key → HMAC-key credentials.
func New(store *session.Store, engine *matching.Engine, creds Credentials, log *eventlog.Logger) *Handler {
	return &Handler{store: store, engine: engine, credentials: creds, log: log}
}

// Process drains every complete framed message currently sitting in
// s.RecvBuf, running each through the state machine in turn, and
// leaves any trailing partial message in the buffer for next time.
func (h *Handler) Process(s *session.Session) {
	for {
		if len(s.RecvBuf) < wire.HeaderSize {
			return
		}
		header := wire.UnmarshalHeader(s.RecvBuf)
		size, ok := wire.FixedPayloadSize(header.MessageType)
		if !ok {
			// An unrecognized type can't be framed correctly; there is
			// nothing salvageable left in the buffer to resynchronize on.
			s.RecvBuf = nil
			return
		}

		total := wire.HeaderSize + size
		if len(s.RecvBuf) < total {
			return
		}

		frame := make([]byte, total)
		copy(frame, s.RecvBuf[:total])
		s.RecvBuf = s.RecvBuf[total:]

		h.handleOne(s, header, frame)
	}
}

func (h *Handler) handleOne(s *session.Session, header wire.Header, frame []byte) {
	if header.MessageType == wire.MsgHello {
		h.handleHello(s, frame)
		return
	}

	_, body, err := wire.Decode(frame, s.HMACKey[:])
	if err != nil {
		// Invalid HMAC on an established session is an attacker (or a
		// desynced key) with nothing to show for it: drop silently.
		return
	}

	if !h.sequenceOK(s, header, frame) {
		return
	}

	switch header.MessageType {
	case wire.MsgLogout:
		h.handleLogout(s)
	case wire.MsgHeartbeat:
		if !s.Authenticated {
			return
		}
		s.Touch(time.Now())
	case wire.MsgNewOrder:
		h.handleNewOrder(s, body)
	case wire.MsgCancelOrder:
		h.handleCancel(s, body)
	case wire.MsgModifyOrder:
		h.handleModify(s, body)
	}
}

// sequenceOK applies the strictly-greater sequence guard and advances
// session.ClientSqn on success. The caller proceeds only if this
// returns true. Message types with no OUT_OF_ORDER status in their ack
// (CANCEL_ACK, MODIFY_ACK) or with no ack at all (HEARTBEAT) drop
// silently on violation, since §6's stable status table has no code
// to report it with; HELLO, LOGOUT, and NEW_ORDER do, and get one.
func (h *Handler) sequenceOK(s *session.Session, header wire.Header, frame []byte) bool {
	if header.ClientMsgSqn <= s.ClientSqn {
		switch header.MessageType {
		case wire.MsgLogout:
			h.sendLogoutAck(s, header, wire.LogoutOutOfOrder)
		case wire.MsgNewOrder:
			h.sendOrderAck(s, header, 0, 0, wire.OrderAckOutOfOrder, 0, 0, 0)
		}
		return false
	}
	s.ClientSqn = header.ClientMsgSqn
	return true
}

func (h *Handler) handleHello(s *session.Session, frame []byte) {
	if len(frame) < wire.HeaderSize+wire.APIKeySize {
		return
	}
	header := wire.UnmarshalHeader(frame)

	var apiKey [wire.APIKeySize]byte
	copy(apiKey[:], frame[wire.HeaderSize:wire.HeaderSize+wire.APIKeySize])

	hmacKey, known := h.credentials[apiKey]
	if !known {
		h.sendHelloAck(s, header, [32]byte{}, 0, wire.HelloInvalidAPIKey)
		return
	}

	if _, _, err := wire.Decode(frame, hmacKey[:]); err != nil {
		h.sendHelloAck(s, header, hmacKey, 0, wire.HelloInvalidHMAC)
		return
	}

	if header.ClientMsgSqn <= s.ClientSqn {
		h.sendHelloAck(s, header, hmacKey, 0, wire.HelloOutOfOrder)
		return
	}
	s.ClientSqn = header.ClientMsgSqn

	s.HMACKey = hmacKey
	s.APIKey = apiKey
	s.Authenticated = true
	clientID := h.store.AssignClientID(s)
	s.Touch(time.Now())

	h.sendHelloAck(s, header, hmacKey, clientID, wire.HelloAccepted)
	h.logInfo("session authenticated", zap.Uint64("clientID", clientID))
}

func (h *Handler) sendHelloAck(s *session.Session, header wire.Header, hmacKey [32]byte, clientID uint64, status wire.HelloStatus) {
	payload := wire.HelloAckPayload{ServerClientID: clientID, Status: uint8(status)}
	frame := wire.Encode(wire.MsgHelloAck, header.ClientMsgSqn, s.NextServerSqn(), payload.Marshal(), hmacKey[:])
	s.QueueSend(frame)
}

func (h *Handler) handleLogout(s *session.Session) {
	header := wire.Header{ClientMsgSqn: s.ClientSqn}
	s.LogoutReset()
	h.sendLogoutAck(s, header, wire.LogoutAccepted)
}

func (h *Handler) sendLogoutAck(s *session.Session, header wire.Header, status wire.LogoutStatus) {
	payload := wire.HelloAckPayload{ServerClientID: s.ServerClientID, Status: uint8(status)}
	frame := wire.Encode(wire.MsgLogoutAck, header.ClientMsgSqn, s.NextServerSqn(), payload.Marshal(), s.HMACKey[:])
	s.QueueSend(frame)
}

func (h *Handler) handleNewOrder(s *session.Session, body []byte) {
	if !s.Authenticated {
		h.sendOrderAck(s, wire.Header{ClientMsgSqn: s.ClientSqn}, 0, 0, wire.OrderAckNotAuthenticated, 0, 0, 0)
		return
	}

	req := wire.UnmarshalNewOrderPayload(body)
	header := wire.Header{ClientMsgSqn: s.ClientSqn}

	order, valid := toOrderRequest(s.ServerClientID, req)
	if !valid {
		h.sendOrderAck(s, header, req.InstrumentID, 0, wire.OrderAckInvalid, 0, 0, 0)
		return
	}

	receivedAt := time.Now()
	result := h.engine.Submit(order)
	latencyUs := uint32(time.Since(receivedAt).Microseconds())

	h.sendOrderAck(s, header, req.InstrumentID, result.OrderID, wire.OrderAckAccepted, req.Price, uint64(result.Timestamp.UnixNano()), latencyUs)
	h.fanOutTrades(req.InstrumentID, result.Trades)
}

func toOrderRequest(clientID uint64, req wire.NewOrderPayload) (domain.OrderRequest, bool) {
	side := domain.Side(req.OrderSide)
	orderType := domain.OrderType(req.OrderType)

	switch orderType {
	case domain.OrderTypeLimit:
		if req.Price <= 0 || req.Quantity <= 0 {
			return domain.OrderRequest{}, false
		}
	case domain.OrderTypeMarket:
		if req.Price != 0 || req.Quantity <= 0 {
			return domain.OrderRequest{}, false
		}
	default:
		return domain.OrderRequest{}, false
	}

	return domain.OrderRequest{
		ClientID:     clientID,
		Side:         side,
		Type:         orderType,
		InstrumentID: req.InstrumentID,
		Price:        req.Price,
		Quantity:     req.Quantity,
		TimeInForce:  domain.TimeInForce(req.TimeInForce),
		GoodTillDate: req.GoodTillDate,
		Valid:        true,
	}, true
}

func (h *Handler) sendOrderAck(s *session.Session, header wire.Header, instrumentID uint32, orderID uint64, status wire.OrderAckStatus, acceptedPrice int64, serverTime uint64, latencyUs uint32) {
	payload := wire.OrderAckPayload{
		ServerClientID: s.ServerClientID,
		InstrumentID:   instrumentID,
		ServerOrderID:  orderID,
		Status:         uint8(status),
		AcceptedPrice:  acceptedPrice,
		ServerTime:     serverTime,
		Latency:        latencyUs,
	}
	frame := wire.Encode(wire.MsgOrderAck, header.ClientMsgSqn, s.NextServerSqn(), payload.Marshal(), s.HMACKey[:])
	s.QueueSend(frame)
}

func (h *Handler) handleCancel(s *session.Session, body []byte) {
	if !s.Authenticated {
		h.sendCancelAck(s, 0, wire.CancelAckNotAuthenticated)
		return
	}
	req := wire.UnmarshalCancelOrderPayload(body)

	status := wire.CancelAckNotFound
	if h.engine.Cancel(s.ServerClientID, req.ServerOrderID) {
		status = wire.CancelAckAccepted
	}
	h.sendCancelAck(s, req.ServerOrderID, status)
}

func (h *Handler) sendCancelAck(s *session.Session, orderID uint64, status wire.CancelAckStatus) {
	payload := wire.CancelAckPayload{ServerClientID: s.ServerClientID, ServerOrderID: orderID, Status: uint8(status)}
	frame := wire.Encode(wire.MsgCancelAck, s.ClientSqn, s.NextServerSqn(), payload.Marshal(), s.HMACKey[:])
	s.QueueSend(frame)
}

func (h *Handler) handleModify(s *session.Session, body []byte) {
	if !s.Authenticated {
		h.sendModifyAck(s, 0, 0, wire.ModifyAckNotAuthenticated)
		return
	}
	req := wire.UnmarshalModifyOrderPayload(body)

	result := h.engine.Modify(s.ServerClientID, req.ServerOrderID, req.NewQty, req.NewPrice)

	var status wire.ModifyAckStatus
	switch result.Status {
	case domain.ModifyAccepted:
		status = wire.ModifyAckAccepted
	case domain.ModifyNotFound:
		status = wire.ModifyAckNotFound
	default:
		status = wire.ModifyAckInvalid
	}

	h.sendModifyAck(s, result.OldOrderID, result.NewOrderID, status)

	if result.Match != nil {
		// The instrument id isn't carried on ModifyOrderPayload; the
		// engine is single-instrument, so every trade it produces is
		// for that one instrument regardless.
		h.fanOutTrades(0, result.Match.Trades)
	}
}

func (h *Handler) sendModifyAck(s *session.Session, oldID, newID uint64, status wire.ModifyAckStatus) {
	payload := wire.ModifyAckPayload{
		ServerClientID:   s.ServerClientID,
		OldServerOrderID: oldID,
		NewServerOrderID: newID,
		Status:           uint8(status),
	}
	frame := wire.Encode(wire.MsgModifyAck, s.ClientSqn, s.NextServerSqn(), payload.Marshal(), s.HMACKey[:])
	s.QueueSend(frame)
}

// fanOutTrades sends one TRADE message to each leg of every trade.
// A write to a session whose connection has already failed is
// best-effort: the engine state that produced the trade is never
// rolled back for a downstream delivery failure (spec.md §4.4).
func (h *Handler) fanOutTrades(_ uint32, trades []domain.TradeEvent) {
	for _, tr := range trades {
		h.sendTradeTo(tr.BuyClientID, tr.BuyOrderID, tr)
		h.sendTradeTo(tr.SellClientID, tr.SellOrderID, tr)
	}
}

func (h *Handler) sendTradeTo(clientID, orderID uint64, tr domain.TradeEvent) {
	s, ok := h.store.GetByClientID(clientID)
	if !ok {
		return
	}

	s.ExecCounter++
	payload := wire.TradePayload{
		ServerClientID: clientID,
		ServerOrderID:  orderID,
		TradeID:        tr.TradeID,
		FilledQty:      tr.Quantity,
		FilledPrice:    tr.Price,
		Timestamp:      uint64(tr.Timestamp.UnixNano()),
	}
	frame := wire.Encode(wire.MsgTrade, s.ClientSqn, s.NextServerSqn(), payload.Marshal(), s.HMACKey[:])
	s.QueueSend(frame)
}

func (h *Handler) logInfo(msg string, fields ...zap.Field) {
	if h.log != nil {
		h.log.Info(msg, fields...)
	}
}
