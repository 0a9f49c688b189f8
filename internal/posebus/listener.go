package posebus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"
)

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// Address is the UDP address to bind, e.g. "127.0.0.1:7400".
	Address string
	// Topics limits delivery to these topics; empty accepts every topic.
	Topics []string
	// QueueSize is the capacity of the event channel (default 64).
	QueueSize int
	// SocketFactory overrides socket creation for tests.
	SocketFactory UDPSocketFactory
}

// ListenerStats are cumulative counters.
type ListenerStats struct {
	Received  uint64
	Malformed uint64
	Ignored   uint64
	Dropped   uint64
}

// Listener receives pose datagrams and queues decoded messages. It never
// runs scene logic; consumers drain Events from their own loop.
type Listener struct {
	address string
	topics  map[string]bool
	factory UDPSocketFactory
	events  chan Message

	ready chan struct{}
	local atomic.Value // net.Addr

	received  atomic.Uint64
	malformed atomic.Uint64
	ignored   atomic.Uint64
	dropped   atomic.Uint64
}

// NewListener creates a Listener with the provided configuration.
func NewListener(cfg ListenerConfig) *Listener {
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	factory := cfg.SocketFactory
	if factory == nil {
		factory = RealUDPSocketFactory{}
	}
	var topics map[string]bool
	if len(cfg.Topics) > 0 {
		topics = make(map[string]bool, len(cfg.Topics))
		for _, t := range cfg.Topics {
			topics[t] = true
		}
	}
	return &Listener{
		address: cfg.Address,
		topics:  topics,
		factory: factory,
		events:  make(chan Message, size),
		ready:   make(chan struct{}),
	}
}

// Events returns the channel of decoded messages.
func (l *Listener) Events() <-chan Message {
	return l.events
}

// Ready is closed once the socket is bound.
func (l *Listener) Ready() <-chan struct{} {
	return l.ready
}

// LocalAddr returns the bound address, or nil before Ready.
func (l *Listener) LocalAddr() net.Addr {
	if a, ok := l.local.Load().(net.Addr); ok {
		return a
	}
	return nil
}

// Stats returns the listener counters.
func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		Received:  l.received.Load(),
		Malformed: l.malformed.Load(),
		Ignored:   l.ignored.Load(),
		Dropped:   l.dropped.Load(),
	}
}

// Start binds the socket and reads datagrams until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := l.factory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	defer conn.Close()

	l.local.Store(conn.LocalAddr())
	close(l.ready)
	log.Printf("[PoseBus] listening on %s", conn.LocalAddr())

	buffer := make([]byte, MaxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			log.Print("[PoseBus] listener stopping due to context cancellation")
			return ctx.Err()
		default:
		}

		// Set read deadline to allow checking context cancellation
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, from, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("pose bus socket closed: %w", err)
			}
			log.Printf("[PoseBus] read error: %v", err)
			continue
		}

		l.handleDatagram(buffer[:n], from)
	}
}

func (l *Listener) handleDatagram(b []byte, from *net.UDPAddr) {
	l.received.Add(1)

	msg, err := Unmarshal(b)
	if err != nil {
		l.malformed.Add(1)
		log.Printf("[PoseBus] dropping malformed datagram from %v: %v", from, err)
		return
	}
	if l.topics != nil && !l.topics[msg.Topic] {
		ignored := l.ignored.Add(1)
		if ignored == 1 || ignored%1000 == 0 {
			log.Printf("[PoseBus] ignoring pose on unknown topic %q, %d ignored so far", msg.Topic, ignored)
		}
		return
	}

	select {
	case l.events <- msg:
	default:
		dropped := l.dropped.Add(1)
		if dropped == 1 || dropped%1000 == 0 {
			log.Printf("[PoseBus] event queue full, dropped %d messages", dropped)
		}
	}
}
