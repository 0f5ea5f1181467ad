package wire

import "encoding/binary"

// Each *PayloadSize constant is the packed size of that payload
// WITHOUT its trailing HMAC tag — FixedPayloadSize in header.go adds
// HMACSize back on top for the framing-level size check.

const (
	HelloPayloadSize       = 16 // apiKey[16]
	HeartbeatPayloadSize   = 16 // serverClientID u64 + padding[8]
	LogoutPayloadSize      = 16 // serverClientID u64 + padding[8]
	NewOrderPayloadSize    = 48
	CancelOrderPayloadSize = 32
	ModifyOrderPayloadSize = 32
	HelloAckPayloadSize    = 16 // also LOGOUT_ACK
	OrderAckPayloadSize    = 48
	CancelAckPayloadSize   = 32
	ModifyAckPayloadSize   = 32
	TradePayloadSize       = 48
)

// APIKeySize and HMACKeySize are the credential lengths carried in a
// HELLO payload and held by the session store, respectively.
const (
	APIKeySize  = 16
	HMACKeySize = 32
)

// HelloPayload authenticates a fresh connection against an api-key →
// HMAC-key mapping known to the server.
type HelloPayload struct {
	APIKey [APIKeySize]byte
}

func (p HelloPayload) Marshal() []byte {
	b := make([]byte, HelloPayloadSize)
	copy(b[0:16], p.APIKey[:])
	return b
}

func UnmarshalHelloPayload(b []byte) HelloPayload {
	var p HelloPayload
	copy(p.APIKey[:], b[0:16])
	return p
}

// HeartbeatPayload and LogoutPayload share the same 16-byte shape.
type HeartbeatPayload struct {
	ServerClientID uint64
}

func (p HeartbeatPayload) Marshal() []byte {
	b := make([]byte, HeartbeatPayloadSize)
	binary.BigEndian.PutUint64(b[0:8], p.ServerClientID)
	return b
}

func UnmarshalHeartbeatPayload(b []byte) HeartbeatPayload {
	return HeartbeatPayload{ServerClientID: binary.BigEndian.Uint64(b[0:8])}
}

type LogoutPayload struct {
	ServerClientID uint64
}

func (p LogoutPayload) Marshal() []byte {
	b := make([]byte, LogoutPayloadSize)
	binary.BigEndian.PutUint64(b[0:8], p.ServerClientID)
	return b
}

func UnmarshalLogoutPayload(b []byte) LogoutPayload {
	return LogoutPayload{ServerClientID: binary.BigEndian.Uint64(b[0:8])}
}

// NewOrderPayload requests a new limit or market order.
type NewOrderPayload struct {
	ServerClientID uint64
	InstrumentID   uint32
	OrderSide      uint8
	OrderType      uint8
	Quantity       int64
	Price          int64
	TimeInForce    uint8
	GoodTillDate   uint64
}

func (p NewOrderPayload) Marshal() []byte {
	b := make([]byte, NewOrderPayloadSize)
	binary.BigEndian.PutUint64(b[0:8], p.ServerClientID)
	binary.BigEndian.PutUint32(b[8:12], p.InstrumentID)
	b[12] = p.OrderSide
	b[13] = p.OrderType
	binary.BigEndian.PutUint64(b[14:22], uint64(p.Quantity))
	binary.BigEndian.PutUint64(b[22:30], uint64(p.Price))
	b[30] = p.TimeInForce
	binary.BigEndian.PutUint64(b[31:39], p.GoodTillDate)
	return b
}

func UnmarshalNewOrderPayload(b []byte) NewOrderPayload {
	return NewOrderPayload{
		ServerClientID: binary.BigEndian.Uint64(b[0:8]),
		InstrumentID:   binary.BigEndian.Uint32(b[8:12]),
		OrderSide:      b[12],
		OrderType:      b[13],
		Quantity:       int64(binary.BigEndian.Uint64(b[14:22])),
		Price:          int64(binary.BigEndian.Uint64(b[22:30])),
		TimeInForce:    b[30],
		GoodTillDate:   binary.BigEndian.Uint64(b[31:39]),
	}
}

// CancelOrderPayload requests cancellation of a resting order.
type CancelOrderPayload struct {
	ServerClientID uint64
	ServerOrderID  uint64
}

func (p CancelOrderPayload) Marshal() []byte {
	b := make([]byte, CancelOrderPayloadSize)
	binary.BigEndian.PutUint64(b[0:8], p.ServerClientID)
	binary.BigEndian.PutUint64(b[8:16], p.ServerOrderID)
	return b
}

func UnmarshalCancelOrderPayload(b []byte) CancelOrderPayload {
	return CancelOrderPayload{
		ServerClientID: binary.BigEndian.Uint64(b[0:8]),
		ServerOrderID:  binary.BigEndian.Uint64(b[8:16]),
	}
}

// ModifyOrderPayload requests a quantity and/or price amendment.
type ModifyOrderPayload struct {
	ServerClientID uint64
	ServerOrderID  uint64
	NewQty         int64
	NewPrice       int64
}

func (p ModifyOrderPayload) Marshal() []byte {
	b := make([]byte, ModifyOrderPayloadSize)
	binary.BigEndian.PutUint64(b[0:8], p.ServerClientID)
	binary.BigEndian.PutUint64(b[8:16], p.ServerOrderID)
	binary.BigEndian.PutUint64(b[16:24], uint64(p.NewQty))
	binary.BigEndian.PutUint64(b[24:32], uint64(p.NewPrice))
	return b
}

func UnmarshalModifyOrderPayload(b []byte) ModifyOrderPayload {
	return ModifyOrderPayload{
		ServerClientID: binary.BigEndian.Uint64(b[0:8]),
		ServerOrderID:  binary.BigEndian.Uint64(b[8:16]),
		NewQty:         int64(binary.BigEndian.Uint64(b[16:24])),
		NewPrice:       int64(binary.BigEndian.Uint64(b[24:32])),
	}
}

// HelloAckPayload answers HELLO and, with the same layout, LOGOUT.
type HelloAckPayload struct {
	ServerClientID uint64
	Status         uint8
}

func (p HelloAckPayload) Marshal() []byte {
	b := make([]byte, HelloAckPayloadSize)
	binary.BigEndian.PutUint64(b[0:8], p.ServerClientID)
	b[8] = p.Status
	return b
}

func UnmarshalHelloAckPayload(b []byte) HelloAckPayload {
	return HelloAckPayload{
		ServerClientID: binary.BigEndian.Uint64(b[0:8]),
		Status:         b[8],
	}
}

// OrderAckPayload reports the outcome of a NEW_ORDER request.
type OrderAckPayload struct {
	ServerClientID uint64
	InstrumentID   uint32
	ServerOrderID  uint64
	Status         uint8
	AcceptedPrice  int64
	ServerTime     uint64
	Latency        uint32
}

func (p OrderAckPayload) Marshal() []byte {
	b := make([]byte, OrderAckPayloadSize)
	binary.BigEndian.PutUint64(b[0:8], p.ServerClientID)
	binary.BigEndian.PutUint32(b[8:12], p.InstrumentID)
	binary.BigEndian.PutUint64(b[12:20], p.ServerOrderID)
	b[20] = p.Status
	binary.BigEndian.PutUint64(b[21:29], uint64(p.AcceptedPrice))
	binary.BigEndian.PutUint64(b[29:37], p.ServerTime)
	binary.BigEndian.PutUint32(b[37:41], p.Latency)
	return b
}

func UnmarshalOrderAckPayload(b []byte) OrderAckPayload {
	return OrderAckPayload{
		ServerClientID: binary.BigEndian.Uint64(b[0:8]),
		InstrumentID:   binary.BigEndian.Uint32(b[8:12]),
		ServerOrderID:  binary.BigEndian.Uint64(b[12:20]),
		Status:         b[20],
		AcceptedPrice:  int64(binary.BigEndian.Uint64(b[21:29])),
		ServerTime:     binary.BigEndian.Uint64(b[29:37]),
		Latency:        binary.BigEndian.Uint32(b[37:41]),
	}
}

// CancelAckPayload reports the outcome of a CANCEL_ORDER request.
type CancelAckPayload struct {
	ServerClientID uint64
	ServerOrderID  uint64
	Status         uint8
}

func (p CancelAckPayload) Marshal() []byte {
	b := make([]byte, CancelAckPayloadSize)
	binary.BigEndian.PutUint64(b[0:8], p.ServerClientID)
	binary.BigEndian.PutUint64(b[8:16], p.ServerOrderID)
	b[16] = p.Status
	return b
}

func UnmarshalCancelAckPayload(b []byte) CancelAckPayload {
	return CancelAckPayload{
		ServerClientID: binary.BigEndian.Uint64(b[0:8]),
		ServerOrderID:  binary.BigEndian.Uint64(b[8:16]),
		Status:         b[16],
	}
}

// ModifyAckPayload reports the outcome of a MODIFY_ORDER request.
type ModifyAckPayload struct {
	ServerClientID    uint64
	OldServerOrderID  uint64
	NewServerOrderID  uint64
	Status            uint8
}

func (p ModifyAckPayload) Marshal() []byte {
	b := make([]byte, ModifyAckPayloadSize)
	binary.BigEndian.PutUint64(b[0:8], p.ServerClientID)
	binary.BigEndian.PutUint64(b[8:16], p.OldServerOrderID)
	binary.BigEndian.PutUint64(b[16:24], p.NewServerOrderID)
	b[24] = p.Status
	return b
}

func UnmarshalModifyAckPayload(b []byte) ModifyAckPayload {
	return ModifyAckPayload{
		ServerClientID:   binary.BigEndian.Uint64(b[0:8]),
		OldServerOrderID: binary.BigEndian.Uint64(b[8:16]),
		NewServerOrderID: binary.BigEndian.Uint64(b[16:24]),
		Status:           b[24],
	}
}

// TradePayload reports one fill to one leg of a trade.
type TradePayload struct {
	ServerClientID uint64
	ServerOrderID  uint64
	TradeID        uint64
	FilledQty      int64
	FilledPrice    int64
	Timestamp      uint64
}

func (p TradePayload) Marshal() []byte {
	b := make([]byte, TradePayloadSize)
	binary.BigEndian.PutUint64(b[0:8], p.ServerClientID)
	binary.BigEndian.PutUint64(b[8:16], p.ServerOrderID)
	binary.BigEndian.PutUint64(b[16:24], p.TradeID)
	binary.BigEndian.PutUint64(b[24:32], uint64(p.FilledQty))
	binary.BigEndian.PutUint64(b[32:40], uint64(p.FilledPrice))
	binary.BigEndian.PutUint64(b[40:48], p.Timestamp)
	return b
}

func UnmarshalTradePayload(b []byte) TradePayload {
	return TradePayload{
		ServerClientID: binary.BigEndian.Uint64(b[0:8]),
		ServerOrderID:  binary.BigEndian.Uint64(b[8:16]),
		TradeID:        binary.BigEndian.Uint64(b[16:24]),
		FilledQty:      int64(binary.BigEndian.Uint64(b[24:32])),
		FilledPrice:    int64(binary.BigEndian.Uint64(b[32:40])),
		Timestamp:      binary.BigEndian.Uint64(b[40:48]),
	}
}
