package wire

import (
	"bytes"
	"testing"
)

func allKey(b byte) []byte {
	k := make([]byte, HMACKeySize)
	for i := range k {
		k[i] = b
	}
	return k
}

// TestFramingRoundTrip covers spec.md §8 scenario 7: encode a
// NEW_ORDER with known fields and the all-0x11 HMAC key, decode it
// back, and confirm every field survives the round trip.
func TestFramingRoundTrip(t *testing.T) {
	key := allKey(0x11)

	payload := NewOrderPayload{
		ServerClientID: 42,
		InstrumentID:   7,
		OrderSide:      0,
		OrderType:      0,
		Quantity:       100,
		Price:          2000,
		TimeInForce:    1,
		GoodTillDate:   0,
	}

	framed := Encode(MsgNewOrder, 1, 0, payload.Marshal(), key)

	header, body, err := Decode(framed, key)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if header.MessageType != MsgNewOrder {
		t.Fatalf("expected MsgNewOrder, got %v", header.MessageType)
	}
	if header.ClientMsgSqn != 1 {
		t.Fatalf("expected clientMsgSqn 1, got %d", header.ClientMsgSqn)
	}

	got := UnmarshalNewOrderPayload(body)
	if got != payload {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, payload)
	}
}

// TestFlippedByteFailsHMAC covers the second half of scenario 7:
// flipping any byte in the framed output must fail decode with
// ErrInvalidHMAC.
func TestFlippedByteFailsHMAC(t *testing.T) {
	key := allKey(0x11)
	payload := HeartbeatPayload{ServerClientID: 7}
	framed := Encode(MsgHeartbeat, 3, 2, payload.Marshal(), key)

	for i := range framed {
		corrupt := bytes.Clone(framed)
		corrupt[i] ^= 0xFF

		if _, _, err := Decode(corrupt, key); err != ErrInvalidHMAC {
			t.Fatalf("byte %d: expected ErrInvalidHMAC, got %v", i, err)
		}
	}
}

func TestDecodeTooShort(t *testing.T) {
	key := allKey(0x01)
	if _, _, err := Decode([]byte{1, 2, 3}, key); err != ErrTooShort {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	key := allKey(0x01)
	raw := make([]byte, HeaderSize)
	raw[0] = 0xFE // not a valid MessageType
	if _, _, err := Decode(raw, key); err != ErrUnknownType {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestDecodeWrongLengthForType(t *testing.T) {
	key := allKey(0x01)
	header := Header{MessageType: MsgHeartbeat, ProtocolVersionFlag: ProtocolVersion, PayloadLength: 10}
	headerBytes := header.Marshal()
	raw := append(headerBytes[:], make([]byte, 10)...)

	if _, _, err := Decode(raw, key); err != ErrTooShort {
		t.Fatalf("expected ErrTooShort for wrong-length frame, got %v", err)
	}
}
