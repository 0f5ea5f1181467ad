package marketdata

import (
	"net"
	"strconv"

	"matchcore/domain"
)

// SubscriberConfig is the receive-side counterpart of PublisherConfig.
type SubscriberConfig struct {
	MulticastGroup string
	Port           int
	Interface      string
}

// Subscriber joins the publisher's multicast group and reconstructs a
// Level2Book from the DELTA/SNAPSHOT stream, the same way
// original_source's MDReceiver does: a SNAPSHOT always resynchronizes
// and marks the book valid; a DELTA only mutates the book while it is
// valid; any sequence-number gap invalidates the book and is reported
// through OnGapDetected until the next SNAPSHOT arrives.
type Subscriber struct {
	book  Level2Book
	valid bool

	haveSeq bool
	nextSeq uint64

	conn *net.UDPConn
	buf  []byte

	OnGapDetected func(expected, received uint64)
}

// NewSubscriber joins multicastGroup:port on the given interface (name,
// or "" for the kernel default) and returns a Subscriber ready to
// ReceiveOne.
func NewSubscriber(cfg SubscriberConfig) (*Subscriber, error) {
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(cfg.MulticastGroup, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, err
	}

	var iface *net.Interface
	if cfg.Interface != "" {
		iface, err = net.InterfaceByName(cfg.Interface)
		if err != nil {
			return nil, err
		}
	}

	conn, err := net.ListenMulticastUDP("udp4", iface, addr)
	if err != nil {
		return nil, err
	}

	return &Subscriber{conn: conn, buf: make([]byte, 64*1024)}, nil
}

// IsValid reports whether the replica is currently trustworthy.
func (s *Subscriber) IsValid() bool { return s.valid }

// Book returns the current replica. Only meaningful while IsValid.
func (s *Subscriber) Book() *Level2Book { return &s.book }

// ReceiveOne blocks for the next UDP datagram and applies it. It
// returns false once the socket is closed.
func (s *Subscriber) ReceiveOne() (bool, error) {
	n, _, err := s.conn.ReadFromUDP(s.buf)
	if err != nil {
		return false, err
	}
	s.Process(s.buf[:n])
	return true, nil
}

// Process applies one already-received MD message — split out from
// ReceiveOne so it can be driven directly in tests without a live
// socket.
func (s *Subscriber) Process(msg []byte) {
	if len(msg) < HeaderSize {
		return
	}
	header := UnmarshalHeader(msg)
	body := msg[HeaderSize:]

	switch header.MsgType {
	case MsgSnapshot:
		s.applySnapshot(header.SequenceNumber, UnmarshalSnapshotPayload(body))
	case MsgDelta:
		s.applyDelta(header.SequenceNumber, UnmarshalDeltaPayload(body))
	}
}

func (s *Subscriber) applySnapshot(seq uint64, snap SnapshotPayload) {
	s.book.Reset()
	for _, lvl := range snap.Bids {
		s.book.Bids = append(s.book.Bids, Level{Price: int64(lvl.Price), Qty: int64(lvl.Qty)})
	}
	for _, lvl := range snap.Asks {
		s.book.Asks = append(s.book.Asks, Level{Price: int64(lvl.Price), Qty: int64(lvl.Qty)})
	}
	s.valid = true
	s.haveSeq = true
	s.nextSeq = seq + 1
}

func (s *Subscriber) applyDelta(seq uint64, d DeltaPayload) {
	if s.haveSeq && seq != s.nextSeq {
		expected := s.nextSeq
		s.valid = false
		s.haveSeq = true
		s.nextSeq = seq + 1
		if s.OnGapDetected != nil {
			s.OnGapDetected(expected, seq)
		}
		return
	}
	s.haveSeq = true
	s.nextSeq = seq + 1

	if !s.valid {
		return
	}

	side := domain.SideBuy
	if d.Side == WireSideSell {
		side = domain.SideSell
	}

	var err error
	if d.DeltaType == DeltaAdd {
		s.book.ApplyAdd(side, int64(d.PriceLevel), int64(d.AmountDelta))
	} else {
		err = s.book.ApplyReduce(side, int64(d.PriceLevel), int64(d.AmountDelta))
	}
	if err != nil {
		s.valid = false
	}
}

// Close releases the multicast socket.
func (s *Subscriber) Close() error {
	return s.conn.Close()
}
