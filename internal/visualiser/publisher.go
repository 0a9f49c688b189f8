// Package visualiser streams the live scene (frame transforms and marker
// collections) to remote viewers over gRPC.
package visualiser

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"

	"github.com/banshee-data/asteroid-view/internal/marker"
	"github.com/banshee-data/asteroid-view/internal/tf"
)

// ErrNotRunning is returned when publishing to a stopped server.
var ErrNotRunning = errors.New("visualiser: publisher not running")

// Config holds configuration for the visualiser gRPC server.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "localhost:50061")
	ListenAddr string

	// MaxClients is the maximum number of concurrent streaming clients
	MaxClients int

	// QueueSize is the capacity of the shared and per-client update queues
	QueueSize int

	// StatsInterval is how often throughput is logged (default: 5s)
	StatsInterval time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:    "localhost:50061",
		MaxClients:    5,
		QueueSize:     256,
		StatsInterval: 5 * time.Second,
	}
}

// Publisher manages the gRPC server and update fan-out. It is both a
// tf.Sink and a marker.Sink.
type Publisher struct {
	config   Config
	server   *grpc.Server
	listener net.Listener

	updates   chan Update
	clients   map[string]*clientStream
	clientsMu sync.RWMutex

	seq           atomic.Uint64
	clientCount   atomic.Int32
	droppedUpdate atomic.Uint64
	lastStatsTime time.Time
	lastStatsSeq  uint64
	lastStatsMu   sync.Mutex

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

var (
	_ tf.Sink     = (*Publisher)(nil)
	_ marker.Sink = (*Publisher)(nil)
)

// clientStream represents a connected streaming client.
type clientStream struct {
	id      string
	request SubscribeRequest
	updates chan Update
	doneCh  chan struct{}
}

// NewPublisher creates a new Publisher with the given configuration.
func NewPublisher(cfg Config) *Publisher {
	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = def.MaxClients
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = def.StatsInterval
	}
	return &Publisher{
		config:  cfg,
		updates: make(chan Update, cfg.QueueSize),
		clients: make(map[string]*clientStream),
		stopCh:  make(chan struct{}),
	}
}

// Start binds ListenAddr and serves the SceneStream service.
func (p *Publisher) Start() error {
	if p.running.Load() {
		return fmt.Errorf("publisher already running")
	}
	log.Printf("[Visualiser] Attempting to bind to %s...", p.config.ListenAddr)
	lis, err := net.Listen("tcp", p.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return p.StartListener(lis)
}

// StartListener serves on an existing listener. A Publisher can be started
// once.
func (p *Publisher) StartListener(lis net.Listener) error {
	if p.running.Load() {
		return fmt.Errorf("publisher already running")
	}
	select {
	case <-p.stopCh:
		return fmt.Errorf("publisher already stopped")
	default:
	}

	p.listener = lis
	p.server = grpc.NewServer()
	RegisterSceneStreamServer(p.server, NewServer(p))
	p.running.Store(true)

	p.wg.Add(1)
	go p.broadcastLoop()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Printf("[Visualiser] gRPC server listening on %s", lis.Addr())
		if err := p.server.Serve(lis); err != nil && p.running.Load() {
			log.Printf("[Visualiser] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address, or nil before Start.
func (p *Publisher) Addr() net.Addr {
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// Stop ends all streams and stops the gRPC server.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stopCh)

	if p.server != nil {
		p.server.GracefulStop()
	}
	if p.listener != nil {
		p.listener.Close()
	}

	p.wg.Wait()
	log.Printf("[Visualiser] gRPC server stopped")
}

// SendTransform implements tf.Sink.
func (p *Publisher) SendTransform(ts tf.TransformStamped) error {
	return p.publish(Update{Kind: KindTransform, Transform: ts})
}

// PublishMarkers implements marker.Sink.
func (p *Publisher) PublishMarkers(topic string, a marker.Array) error {
	return p.publish(Update{Kind: KindMarkers, Topic: topic, Markers: a})
}

// publish queues u for every client. A full queue drops the update; only a
// stopped server is an error.
func (p *Publisher) publish(u Update) error {
	if !p.running.Load() {
		return ErrNotRunning
	}
	u.Seq = p.seq.Add(1)

	select {
	case p.updates <- u:
		p.logPeriodicStats(u.Seq)
	default:
		dropped := p.droppedUpdate.Add(1)
		if dropped == 1 || dropped%1000 == 0 {
			log.Printf("[Visualiser] DROPPED update %d (total dropped: %d), queue full", u.Seq, dropped)
		}
	}
	return nil
}

// logPeriodicStats logs throughput every StatsInterval.
func (p *Publisher) logPeriodicStats(seq uint64) {
	p.lastStatsMu.Lock()
	defer p.lastStatsMu.Unlock()

	now := time.Now()
	if p.lastStatsTime.IsZero() {
		p.lastStatsTime = now
		p.lastStatsSeq = seq
		return
	}

	elapsed := now.Sub(p.lastStatsTime)
	if elapsed >= p.config.StatsInterval {
		rate := float64(seq-p.lastStatsSeq) / elapsed.Seconds()
		log.Printf("[Visualiser] Stats: rate=%.1f/s updates=%d dropped=%d clients=%d queue=%d/%d",
			rate, seq-p.lastStatsSeq, p.droppedUpdate.Load(), p.clientCount.Load(),
			len(p.updates), cap(p.updates))
		p.lastStatsTime = now
		p.lastStatsSeq = seq
	}
}

// broadcastLoop distributes updates to all connected clients.
func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case u := <-p.updates:
			p.clientsMu.RLock()
			for _, client := range p.clients {
				if !client.request.accepts(u) {
					continue
				}
				select {
				case client.updates <- u:
				default:
					// Client is slow, drop the update for this client.
					p.droppedUpdate.Add(1)
				}
			}
			p.clientsMu.RUnlock()
		}
	}
}

// addClient registers a new streaming client. It fails when MaxClients are
// already connected.
func (p *Publisher) addClient(id string, req SubscribeRequest) (*clientStream, error) {
	client := &clientStream{
		id:      id,
		request: req,
		updates: make(chan Update, p.config.QueueSize),
		doneCh:  make(chan struct{}),
	}

	p.clientsMu.Lock()
	if len(p.clients) >= p.config.MaxClients {
		p.clientsMu.Unlock()
		return nil, fmt.Errorf("client limit reached (%d)", p.config.MaxClients)
	}
	p.clients[id] = client
	p.clientsMu.Unlock()

	p.clientCount.Add(1)
	log.Printf("[Visualiser] Client connected: %s (total: %d)", id, p.clientCount.Load())
	return client, nil
}

// removeClient unregisters a streaming client.
func (p *Publisher) removeClient(id string) {
	p.clientsMu.Lock()
	if client, ok := p.clients[id]; ok {
		close(client.doneCh)
		delete(p.clients, id)
		p.clientsMu.Unlock()
		p.clientCount.Add(-1)
		log.Printf("[Visualiser] Client disconnected: %s (remaining: %d)", id, p.clientCount.Load())
	} else {
		p.clientsMu.Unlock()
	}
}

// Stats returns current publisher statistics.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		UpdateCount: p.seq.Load(),
		Dropped:     p.droppedUpdate.Load(),
		ClientCount: p.clientCount.Load(),
		Running:     p.running.Load(),
	}
}

// PublisherStats contains publisher statistics.
type PublisherStats struct {
	UpdateCount uint64
	Dropped     uint64
	ClientCount int32
	Running     bool
}
