// Package session holds per-connection protocol state: the recv/send
// byte buffers the reactor drains and fills, the HMAC/API-key
// credentials established at HELLO, and the sequence counters the
// protocol handler enforces (spec.md §3, §4.2).
package session

import (
	"net"
	"sync/atomic"
	"time"
)

// ID is a server-assigned identifier for one live TCP connection. It
// is unrelated to the client id assigned at authentication — a
// session exists, unauthenticated, before it has one.
type ID uint64

// Session is the exclusive property of the reactor/protocol-handler
// thread; nothing here is safe for concurrent access (spec.md §4.2).
type Session struct {
	ID   ID
	Conn net.Conn

	RecvBuf []byte // bytes read from the socket, not yet consumed by the protocol handler
	SendBuf []byte // bytes queued to write, not yet flushed to the socket

	HMACKey [32]byte
	APIKey  [16]byte

	ServerClientID uint64 // 0 until authenticated
	Authenticated  bool

	ClientSqn uint32 // last accepted inbound clientMsgSqn
	ServerSqn uint32 // last emitted outbound serverMsgSqn

	LastHeartbeat time.Time

	// ExecCounter ticks once per TRADE message written to this
	// session's outbound stream. It is local bookkeeping for the
	// session, independent of the engine's global trade id sequence.
	ExecCounter uint64
}

// New creates a freshly accepted, unauthenticated session.
func New(id ID, conn net.Conn) *Session {
	return &Session{
		ID:            id,
		Conn:          conn,
		LastHeartbeat: time.Now(),
	}
}

// NextServerSqn increments and returns the sequence number to stamp on
// the next outbound message (spec.md §4.4: "outbound headers use the
// session's ++serverSqn").
func (s *Session) NextServerSqn() uint32 {
	s.ServerSqn++
	return s.ServerSqn
}

// Touch records a heartbeat (or any received frame that counts as
// liveness) at now.
func (s *Session) Touch(now time.Time) {
	s.LastHeartbeat = now
}

// TimedOut reports whether the session has gone quiet longer than
// timeout as of now.
func (s *Session) TimedOut(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastHeartbeat) > timeout
}

// LogoutReset drops authentication. Sequence counters, buffers, and
// the assigned server client id are left untouched — a later re-HELLO
// on the same connection picks up exactly where the sqn stream left
// off and reports consistent identity in logs.
func (s *Session) LogoutReset() {
	s.Authenticated = false
}

// QueueSend appends framed bytes to the pending-to-send buffer.
func (s *Session) QueueSend(b []byte) {
	s.SendBuf = append(s.SendBuf, b...)
}

// nextSessionID hands out monotonic connection identifiers; it has no
// relation to a client id and is never exposed on the wire.
var nextSessionID atomic.Uint64

// NextID returns a fresh, process-unique session id.
func NextID() ID {
	return ID(nextSessionID.Add(1))
}
