package marketdata

import (
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"matchcore/domain"
	"matchcore/internal/eventlog"
	"matchcore/matching"
)

// PublisherConfig mirrors the md* fields of the core configuration
// surface (spec.md §6).
type PublisherConfig struct {
	MulticastGroup   string
	Port             int
	Interface        string // empty uses the kernel's default outgoing interface
	TTL              int
	SnapshotInterval time.Duration
	MaxDepth         int
}

// Publisher is the market-data thread's UDP half: it drains the
// engine's ring through its Observer and serializes the same sequence
// of updates as DELTA messages, periodically interleaving a full
// SNAPSHOT (spec.md §4.8). The net package alone cannot set an
// outgoing multicast TTL or pin an egress interface on send, so the
// socket is wrapped in golang.org/x/net/ipv4 — the standard
// ecosystem answer to that gap and a virtual extension of the
// standard library maintained by the same team.
type Publisher struct {
	instrumentID uint32
	observer     *Observer
	ring         *matching.Ring[domain.BookUpdate]
	cfg          PublisherConfig
	log          *eventlog.Logger

	conn *ipv4.PacketConn
	dst  *net.UDPAddr

	seq            uint64
	lastSnapshotAt time.Time
}

// NewPublisher opens the outgoing multicast socket and applies the
// configured TTL and egress interface.
func NewPublisher(instrumentID uint32, observer *Observer, ring *matching.Ring[domain.BookUpdate], cfg PublisherConfig, log *eventlog.Logger) (*Publisher, error) {
	dst, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(cfg.MulticastGroup, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, err
	}

	raw, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, err
	}
	pconn := ipv4.NewPacketConn(raw)

	if cfg.Interface != "" {
		iface, err := net.InterfaceByName(cfg.Interface)
		if err != nil {
			raw.Close()
			return nil, err
		}
		if err := pconn.SetMulticastInterface(iface); err != nil {
			raw.Close()
			return nil, err
		}
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 1
	}
	if err := pconn.SetMulticastTTL(ttl); err != nil {
		raw.Close()
		return nil, err
	}

	return &Publisher{
		instrumentID: instrumentID,
		observer:     observer,
		ring:         ring,
		cfg:          cfg,
		log:          log,
		conn:         pconn,
		dst:          dst,
	}, nil
}

// RunOnce drains whatever is currently on the ring, sending one DELTA
// per update in arrival order, then sends a SNAPSHOT if the configured
// interval has elapsed. Sends are best-effort (spec.md §4.8): a
// transient send error is logged and does not stop the drain.
func (p *Publisher) RunOnce(now time.Time) {
	for _, u := range p.observer.Drain(p.ring) {
		p.send(EncodeDelta(p.nextSeq(), p.instrumentID, u))
	}

	if p.cfg.SnapshotInterval <= 0 || now.Sub(p.lastSnapshotAt) < p.cfg.SnapshotInterval {
		return
	}
	p.lastSnapshotAt = now

	bids, asks := p.observer.Book().Depth(p.cfg.MaxDepth)
	p.send(EncodeSnapshot(p.nextSeq(), p.instrumentID, SnapshotPayload{
		Bids: toSnapshotLevels(bids),
		Asks: toSnapshotLevels(asks),
	}))
}

func toSnapshotLevels(levels []Level) []SnapshotLevel {
	out := make([]SnapshotLevel, len(levels))
	for i, lvl := range levels {
		out[i] = SnapshotLevel{Price: uint64(lvl.Price), Qty: uint64(lvl.Qty)}
	}
	return out
}

func (p *Publisher) send(frame []byte) {
	if _, err := p.conn.WriteTo(frame, nil, p.dst); err != nil && p.log != nil {
		p.log.Warn("market data send failed", zap.Error(err))
	}
}

func (p *Publisher) nextSeq() uint64 {
	p.seq++
	return p.seq
}

// Close releases the outgoing socket.
func (p *Publisher) Close() error {
	return p.conn.Close()
}
