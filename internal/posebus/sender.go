package posebus

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/banshee-data/asteroid-view/internal/geom"
	"github.com/banshee-data/asteroid-view/internal/timeutil"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("posebus: sender closed")

// Sender publishes pose messages to a single pose bus address.
type Sender struct {
	clock timeutil.Clock

	mu     sync.Mutex
	conn   io.WriteCloser
	seq    uint64
	closed bool
}

// Dial creates a Sender writing datagrams to addr.
func Dial(addr string, clock timeutil.Clock) (*Sender, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial pose bus: %w", err)
	}
	return NewSender(conn, clock), nil
}

// NewSender wraps an existing datagram writer. A nil clock uses the wall clock.
func NewSender(conn io.WriteCloser, clock timeutil.Clock) *Sender {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Sender{conn: conn, clock: clock}
}

// Publish sends pose on topic as one datagram. A write failure means the bus
// is unavailable and is returned to the caller.
func (s *Sender) Publish(topic string, pose geom.Pose) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.seq++
	b := Marshal(Message{Topic: topic, Seq: s.seq, Stamp: s.clock.Now(), Pose: pose})
	if len(b) > MaxDatagramSize {
		return fmt.Errorf("pose message for %q is %d bytes (max %d)", topic, len(b), MaxDatagramSize)
	}
	if _, err := s.conn.Write(b); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close releases the socket.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
