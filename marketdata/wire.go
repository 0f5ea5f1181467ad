// Package marketdata implements the level-2 book fan-out: the
// observer that drains the matching engine's SPSC ring and maintains
// a replicated book, and the publisher that serializes snapshots and
// deltas onto a UDP multicast socket (spec.md §4.6-4.8). Unlike the
// session protocol in package wire, this feed carries no HMAC tag —
// it is a one-way, best-effort broadcast.
package marketdata

import (
	"encoding/binary"

	"matchcore/domain"
)

// MsgType distinguishes a DELTA from a SNAPSHOT on the wire.
type MsgType uint8

const (
	MsgDelta    MsgType = 0
	MsgSnapshot MsgType = 1
)

// Version is the only mdVersion this codec emits or accepts.
const Version uint8 = 0x01

// HeaderSize is the fixed MD header length in bytes.
const HeaderSize = 16

// DeltaPayloadSize is the fixed DELTA payload length in bytes.
const DeltaPayloadSize = 24

// snapshotHeaderSize is the fixed portion of a SNAPSHOT payload,
// before its variable-length level list.
const snapshotHeaderSize = 8

// levelSize is the packed size of one (price, qty) snapshot level.
const levelSize = 16

// DeltaType mirrors domain.BookUpdateKind on the wire.
type DeltaType uint8

const (
	DeltaAdd    DeltaType = 0
	DeltaReduce DeltaType = 1
)

// WireSide mirrors domain.Side on the wire.
type WireSide uint8

const (
	WireSideBuy  WireSide = 0
	WireSideSell WireSide = 1
)

// Header precedes every MD message.
type Header struct {
	SequenceNumber uint64
	InstrumentID   uint32
	PayloadLength  uint16
	MsgType        MsgType
	Version        uint8
}

func (h Header) Marshal() []byte {
	b := make([]byte, HeaderSize)
	binary.BigEndian.PutUint64(b[0:8], h.SequenceNumber)
	binary.BigEndian.PutUint32(b[8:12], h.InstrumentID)
	binary.BigEndian.PutUint16(b[12:14], h.PayloadLength)
	b[14] = byte(h.MsgType)
	b[15] = h.Version
	return b
}

func UnmarshalHeader(b []byte) Header {
	return Header{
		SequenceNumber: binary.BigEndian.Uint64(b[0:8]),
		InstrumentID:   binary.BigEndian.Uint32(b[8:12]),
		PayloadLength:  binary.BigEndian.Uint16(b[12:14]),
		MsgType:        MsgType(b[14]),
		Version:        b[15],
	}
}

// DeltaPayload carries one BookUpdate's effect on a price level.
type DeltaPayload struct {
	PriceLevel  uint64
	AmountDelta uint64
	DeltaType   DeltaType
	Side        WireSide
}

func (p DeltaPayload) Marshal() []byte {
	b := make([]byte, DeltaPayloadSize)
	binary.BigEndian.PutUint64(b[0:8], p.PriceLevel)
	binary.BigEndian.PutUint64(b[8:16], p.AmountDelta)
	b[16] = byte(p.DeltaType)
	b[17] = byte(p.Side)
	return b
}

func UnmarshalDeltaPayload(b []byte) DeltaPayload {
	return DeltaPayload{
		PriceLevel:  binary.BigEndian.Uint64(b[0:8]),
		AmountDelta: binary.BigEndian.Uint64(b[8:16]),
		DeltaType:   DeltaType(b[16]),
		Side:        WireSide(b[17]),
	}
}

// SnapshotLevel is one (price, qty) pair carried in a snapshot.
type SnapshotLevel struct {
	Price uint64
	Qty   uint64
}

// SnapshotPayload is the full depth (up to maxDepth per side) of one
// side-ordered book: Bids then Asks, each already in priority order.
type SnapshotPayload struct {
	Bids []SnapshotLevel
	Asks []SnapshotLevel
}

func (p SnapshotPayload) Marshal() []byte {
	b := make([]byte, snapshotHeaderSize+levelSize*(len(p.Bids)+len(p.Asks)))
	binary.BigEndian.PutUint16(b[0:2], uint16(len(p.Bids)))
	binary.BigEndian.PutUint16(b[2:4], uint16(len(p.Asks)))

	off := snapshotHeaderSize
	for _, lvl := range p.Bids {
		binary.BigEndian.PutUint64(b[off:off+8], lvl.Price)
		binary.BigEndian.PutUint64(b[off+8:off+16], lvl.Qty)
		off += levelSize
	}
	for _, lvl := range p.Asks {
		binary.BigEndian.PutUint64(b[off:off+8], lvl.Price)
		binary.BigEndian.PutUint64(b[off+8:off+16], lvl.Qty)
		off += levelSize
	}
	return b
}

func UnmarshalSnapshotPayload(b []byte) SnapshotPayload {
	bidCount := int(binary.BigEndian.Uint16(b[0:2]))
	askCount := int(binary.BigEndian.Uint16(b[2:4]))

	p := SnapshotPayload{Bids: make([]SnapshotLevel, bidCount), Asks: make([]SnapshotLevel, askCount)}
	off := snapshotHeaderSize
	for i := 0; i < bidCount; i++ {
		p.Bids[i] = SnapshotLevel{Price: binary.BigEndian.Uint64(b[off : off+8]), Qty: binary.BigEndian.Uint64(b[off+8 : off+16])}
		off += levelSize
	}
	for i := 0; i < askCount; i++ {
		p.Asks[i] = SnapshotLevel{Price: binary.BigEndian.Uint64(b[off : off+8]), Qty: binary.BigEndian.Uint64(b[off+8 : off+16])}
		off += levelSize
	}
	return p
}

// EncodeDelta frames one ring update as a full DELTA message.
func EncodeDelta(seq uint64, instrumentID uint32, u domain.BookUpdate) []byte {
	payload := DeltaPayload{
		PriceLevel:  uint64(u.Price),
		AmountDelta: uint64(u.Amount),
		DeltaType:   deltaTypeFrom(u.Kind),
		Side:        wireSideFrom(u.Side),
	}.Marshal()

	header := Header{SequenceNumber: seq, InstrumentID: instrumentID, PayloadLength: uint16(len(payload)), MsgType: MsgDelta, Version: Version}.Marshal()
	return append(header, payload...)
}

// EncodeSnapshot frames a depth-limited book snapshot as a full
// SNAPSHOT message.
func EncodeSnapshot(seq uint64, instrumentID uint32, snap SnapshotPayload) []byte {
	payload := snap.Marshal()
	header := Header{SequenceNumber: seq, InstrumentID: instrumentID, PayloadLength: uint16(len(payload)), MsgType: MsgSnapshot, Version: Version}.Marshal()
	return append(header, payload...)
}

func deltaTypeFrom(k domain.BookUpdateKind) DeltaType {
	if k == domain.BookUpdateReduce {
		return DeltaReduce
	}
	return DeltaAdd
}

func wireSideFrom(s domain.Side) WireSide {
	if s == domain.SideSell {
		return WireSideSell
	}
	return WireSideBuy
}
