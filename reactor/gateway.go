// Package reactor accepts TCP connections and drives them through the
// protocol handler. The original single-threaded epoll loop
// (original_source/src/gateway/gateway.cpp) dedicates one thread to
// epoll_wait over every connection's fd and dispatches read/write
// readiness itself; Go's netpoller already performs that
// multiplexing inside net.Conn, so the idiomatic analogue here is a
// reader and a writer goroutine per connection feeding a single
// dispatch loop that owns the session store and protocol handler —
// preserving the original's "one thread touches sessions and the
// book" invariant without reimplementing epoll by hand.
package reactor

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"matchcore/internal/eventlog"
	"matchcore/protocol"
	"matchcore/session"
)

const readBufferSize = 4096

// Config tunes the gateway's liveness and shutdown behavior.
type Config struct {
	HeartbeatTimeout      time.Duration
	ShutdownFlushDeadline time.Duration
}

type eventKind int

const (
	evAccept eventKind = iota
	evData
	evClosed
)

type gatewayEvent struct {
	kind    eventKind
	id      session.ID
	conn    net.Conn
	payload []byte
}

// Gateway owns the listen socket, the session store, and the single
// dispatch loop that serializes every inbound message into the
// protocol handler — the matching engine behind it is not safe for
// concurrent callers, so this serialization is load-bearing, not
// incidental.
type Gateway struct {
	listener net.Listener
	handler  *protocol.Handler
	store    *session.Store
	log      *eventlog.Logger
	cfg      Config

	events   chan gatewayEvent
	outboxes map[session.ID]chan []byte

	wg sync.WaitGroup
}

// Listen binds addr and returns a Gateway ready to Run.
func Listen(addr string, handler *protocol.Handler, store *session.Store, log *eventlog.Logger, cfg Config) (*Gateway, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = 30 * time.Second
	}
	if cfg.ShutdownFlushDeadline <= 0 {
		cfg.ShutdownFlushDeadline = 5 * time.Second
	}
	return &Gateway{
		listener: ln,
		handler:  handler,
		store:    store,
		log:      log,
		cfg:      cfg,
		events:   make(chan gatewayEvent, 256),
		outboxes: make(map[session.ID]chan []byte),
	}, nil
}

// Addr reports the listener's bound address, useful when addr was
// passed as ":0" in tests.
func (g *Gateway) Addr() net.Addr { return g.listener.Addr() }

// Run drives the dispatch loop until ctx is cancelled. It blocks the
// calling goroutine; callers that want the gateway in the background
// should invoke Run from its own goroutine.
func (g *Gateway) Run(ctx context.Context) error {
	go g.acceptLoop()

	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			g.shutdown()
			return ctx.Err()
		case ev := <-g.events:
			g.handleEvent(ev)
		case now := <-heartbeat.C:
			g.reapTimedOut(now)
		}
	}
}

func (g *Gateway) acceptLoop() {
	for {
		conn, err := g.listener.Accept()
		if err != nil {
			return
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetNoDelay(true)
		}
		g.events <- gatewayEvent{kind: evAccept, conn: conn}
	}
}

func (g *Gateway) handleEvent(ev gatewayEvent) {
	switch ev.kind {
	case evAccept:
		g.onAccept(ev.conn)
	case evData:
		g.onData(ev.id, ev.payload)
	case evClosed:
		g.onClosed(ev.id)
	}
}

func (g *Gateway) onAccept(conn net.Conn) {
	s := session.New(session.NextID(), conn)
	g.store.Add(s)

	outbox := make(chan []byte, 64)
	g.outboxes[s.ID] = outbox

	g.wg.Add(2)
	go func() { defer g.wg.Done(); g.writeLoop(conn, outbox) }()
	go func() { defer g.wg.Done(); g.readLoop(s.ID, conn) }()

	g.logInfo("connection accepted", zap.Uint64("sessionID", uint64(s.ID)))
}

func (g *Gateway) readLoop(id session.ID, conn net.Conn) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			payload := make([]byte, n)
			copy(payload, buf[:n])
			g.events <- gatewayEvent{kind: evData, id: id, payload: payload}
		}
		if err != nil {
			g.events <- gatewayEvent{kind: evClosed, id: id}
			return
		}
	}
}

func (g *Gateway) writeLoop(conn net.Conn, outbox <-chan []byte) {
	for b := range outbox {
		if _, err := conn.Write(b); err != nil {
			return
		}
	}
}

func (g *Gateway) onData(id session.ID, payload []byte) {
	s, ok := g.store.Get(id)
	if !ok {
		return
	}
	s.RecvBuf = append(s.RecvBuf, payload...)
	g.handler.Process(s)

	if len(s.SendBuf) == 0 {
		return
	}
	out := s.SendBuf
	s.SendBuf = nil

	outbox, ok := g.outboxes[id]
	if !ok {
		return
	}
	select {
	case outbox <- out:
	default:
		// The writer goroutine is backed up past 64 queued writes;
		// drop the connection rather than let RecvBuf/outbox grow
		// without bound behind a slow reader.
		g.closeSession(id)
	}
}

func (g *Gateway) onClosed(id session.ID) {
	g.closeSession(id)
}

func (g *Gateway) closeSession(id session.ID) {
	s, ok := g.store.Get(id)
	if !ok {
		return
	}
	s.Conn.Close()
	if outbox, ok := g.outboxes[id]; ok {
		close(outbox)
		delete(g.outboxes, id)
	}
	g.store.Remove(id)
}

// reapTimedOut closes any session that has gone quiet longer than the
// heartbeat timeout, authenticated or not — an unauthenticated
// connection that never sends HELLO still has a LastHeartbeat set at
// accept time, so it ages out the same way a silent authenticated one
// does instead of sitting open forever.
func (g *Gateway) reapTimedOut(now time.Time) {
	for _, s := range g.store.All() {
		if s.TimedOut(now, g.cfg.HeartbeatTimeout) {
			g.logInfo("heartbeat timeout", zap.Uint64("clientID", s.ServerClientID))
			g.closeSession(s.ID)
		}
	}
}

// shutdown stops accepting new connections and gives every session's
// writer up to cfg.ShutdownFlushDeadline to drain its outbox before
// the remaining connections are forced closed (original_source's
// gateway shutdown_() does the same bounded best-effort flush).
func (g *Gateway) shutdown() {
	g.listener.Close()

	deadline := time.Now().Add(g.cfg.ShutdownFlushDeadline)
	for time.Now().Before(deadline) && !g.allOutboxesEmpty() {
		time.Sleep(10 * time.Millisecond)
	}

	for id := range g.outboxes {
		g.closeSession(id)
	}
	g.wg.Wait()
}

func (g *Gateway) allOutboxesEmpty() bool {
	for _, outbox := range g.outboxes {
		if len(outbox) > 0 {
			return false
		}
	}
	return true
}

func (g *Gateway) logInfo(msg string, fields ...zap.Field) {
	if g.log != nil {
		g.log.Info(msg, fields...)
	}
}
