// Package wire implements the session protocol's framing: a fixed
// 16-byte header, fixed-size big-endian payloads per message type, and
// the trailing 32-byte HMAC-SHA256 tag that authenticates every
// message crossing the trust boundary.
//
// Every multi-byte integer on the wire is big-endian, matching the
// NASDAQ-style fixed-record feeds this protocol is modeled on; this
// package decodes with direct binary.BigEndian slicing rather than
// reflection-based binary.Read, the same way a real feed handler does
// it when every message shape is already known ahead of time.
package wire

import "encoding/binary"

// MessageType identifies the payload that follows a Header.
type MessageType uint8

const (
	MsgHello MessageType = iota + 1
	MsgHelloAck
	MsgLogout
	MsgLogoutAck
	MsgHeartbeat
	MsgNewOrder
	MsgOrderAck
	MsgCancelOrder
	MsgCancelAck
	MsgModifyOrder
	MsgModifyAck
	MsgTrade
	MsgSessionTimeout
)

// ProtocolVersion is the only protocolVersionFlag value this codec
// emits or accepts.
const ProtocolVersion uint8 = 0x01

// HeaderSize is the fixed framing header length in bytes.
const HeaderSize = 16

// HMACSize is the trailing authentication tag length in bytes.
const HMACSize = 32

// Header is the 16 bytes that precede every payload.
type Header struct {
	MessageType         MessageType
	ProtocolVersionFlag uint8
	PayloadLength       uint16
	ClientMsgSqn        uint32
	ServerMsgSqn        uint32
}

// Marshal packs the header into its 16-byte wire form. The 4 reserved
// bytes are always zero.
func (h Header) Marshal() [HeaderSize]byte {
	var b [HeaderSize]byte
	b[0] = byte(h.MessageType)
	b[1] = h.ProtocolVersionFlag
	binary.BigEndian.PutUint16(b[2:4], h.PayloadLength)
	binary.BigEndian.PutUint32(b[4:8], h.ClientMsgSqn)
	binary.BigEndian.PutUint32(b[8:12], h.ServerMsgSqn)
	// b[12:16] reserved, left zero.
	return b
}

// UnmarshalHeader reads a Header from the first HeaderSize bytes of b.
// The caller must ensure len(b) >= HeaderSize.
func UnmarshalHeader(b []byte) Header {
	return Header{
		MessageType:         MessageType(b[0]),
		ProtocolVersionFlag: b[1],
		PayloadLength:       binary.BigEndian.Uint16(b[2:4]),
		ClientMsgSqn:        binary.BigEndian.Uint32(b[4:8]),
		ServerMsgSqn:        binary.BigEndian.Uint32(b[8:12]),
	}
}

// FixedPayloadSize returns the wire size of msgType's payload,
// including its trailing HMAC tag where one is present, or false for
// an unrecognized type. The pre-parse guard (spec.md §4.4 step 1)
// looks this size up from the message type alone — never from the
// attacker-controlled header.PayloadLength field — before deciding
// whether enough bytes have arrived to parse the message.
func FixedPayloadSize(t MessageType) (int, bool) {
	switch t {
	case MsgHello:
		return HelloPayloadSize + HMACSize, true
	case MsgHelloAck:
		return HelloAckPayloadSize + HMACSize, true
	case MsgLogout:
		return LogoutPayloadSize + HMACSize, true
	case MsgLogoutAck:
		return HelloAckPayloadSize + HMACSize, true
	case MsgHeartbeat:
		return HeartbeatPayloadSize + HMACSize, true
	case MsgNewOrder:
		return NewOrderPayloadSize + HMACSize, true
	case MsgOrderAck:
		return OrderAckPayloadSize + HMACSize, true
	case MsgCancelOrder:
		return CancelOrderPayloadSize + HMACSize, true
	case MsgCancelAck:
		return CancelAckPayloadSize + HMACSize, true
	case MsgModifyOrder:
		return ModifyOrderPayloadSize + HMACSize, true
	case MsgModifyAck:
		return ModifyAckPayloadSize + HMACSize, true
	case MsgTrade:
		return TradePayloadSize + HMACSize, true
	default:
		return 0, false
	}
}
