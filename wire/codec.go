package wire

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
)

// Decode failure modes (spec.md §4.1). None of these panic; a failed
// decode never mutates session state.
var (
	ErrTooShort     = errors.New("wire: frame too short for its message type")
	ErrUnknownType  = errors.New("wire: unrecognized message type")
	ErrInvalidHMAC  = errors.New("wire: hmac verification failed")
)

// Encode frames a payload under msgType with the given sequence
// numbers and appends an HMAC-SHA256 tag computed over the header and
// payload bytes using hmacKey. payload must already be the correct
// fixed size for msgType, without a tag.
func Encode(msgType MessageType, clientSqn, serverSqn uint32, payload []byte, hmacKey []byte) []byte {
	header := Header{
		MessageType:         msgType,
		ProtocolVersionFlag: ProtocolVersion,
		PayloadLength:       uint16(len(payload) + HMACSize),
		ClientMsgSqn:        clientSqn,
		ServerMsgSqn:        serverSqn,
	}

	headerBytes := header.Marshal()
	framed := make([]byte, 0, HeaderSize+len(payload)+HMACSize)
	framed = append(framed, headerBytes[:]...)
	framed = append(framed, payload...)

	tag := computeTag(framed, hmacKey)
	return append(framed, tag...)
}

// Decode verifies and unframes raw, returning the header and the
// payload bytes with the trailing HMAC tag stripped. The expected
// frame length is derived from the message type alone (FixedPayloadSize),
// never trusted from the header's own payloadLength field.
func Decode(raw []byte, hmacKey []byte) (Header, []byte, error) {
	if len(raw) < HeaderSize {
		return Header{}, nil, ErrTooShort
	}

	header := UnmarshalHeader(raw)
	payloadSize, ok := FixedPayloadSize(header.MessageType)
	if !ok {
		// A frame long enough to carry a tag is authenticated first, so a
		// corrupted type byte reports ErrInvalidHMAC, not ErrUnknownType.
		if len(raw) >= HeaderSize+HMACSize {
			tagStart := len(raw) - HMACSize
			if !hmac.Equal(computeTag(raw[:tagStart], hmacKey), raw[tagStart:]) {
				return Header{}, nil, ErrInvalidHMAC
			}
		}
		return Header{}, nil, ErrUnknownType
	}
	if len(raw) != HeaderSize+payloadSize {
		return Header{}, nil, ErrTooShort
	}

	tagStart := len(raw) - HMACSize
	body := raw[:tagStart]
	tag := raw[tagStart:]

	expected := computeTag(body, hmacKey)
	if !hmac.Equal(expected, tag) {
		return Header{}, nil, ErrInvalidHMAC
	}

	return header, raw[HeaderSize:tagStart], nil
}

func computeTag(body, hmacKey []byte) []byte {
	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(body)
	return mac.Sum(nil)
}
