// Package loopback emulates a shared radio medium inside one process.
//
// Ports attached to a Hub hear every frame sent by a port they are linked to.
// Links are directed and carry a loss probability and the signal strength the
// receiver observes. Used by tests and the simulator.
package loopback

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/meshsync/go-meshsync/transport"
	"github.com/meshsync/go-meshsync/wire"
)

const backend = "loopback"

// DefaultQueueSize is the number of frames a port buffers before dropping.
const DefaultQueueSize = 256

// Link describes how a receiver hears a sender.
type Link struct {
	// Loss is the probability in [0, 1] that a frame is not delivered.
	Loss float64
	// RSSI reported for delivered frames, in dBm.
	RSSI int16
}

// DefaultLink is used between all ports of a fully connected hub.
var DefaultLink = Link{RSSI: -60}

type HubOpt func(*Hub)

// WithSeed makes loss decisions reproducible.
func WithSeed(seed uint64) HubOpt {
	return func(h *Hub) {
		h.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// FullyConnected links every pair of ports with DefaultLink unless an
// explicit link exists.
func FullyConnected() HubOpt {
	return func(h *Hub) {
		h.full = true
	}
}

func WithHubLogger(logger *zap.Logger) HubOpt {
	return func(h *Hub) {
		h.logger = logger
	}
}

// Hub is the shared medium.
type Hub struct {
	logger *zap.Logger
	full   bool

	mu    sync.RWMutex
	rng   *rand.Rand
	ports map[string]*Port
	links map[string]map[string]Link
	cut   map[string]map[string]struct{}

	delivered  atomic.Uint64
	lost       atomic.Uint64
	overflowed atomic.Uint64
}

func NewHub(opts ...HubOpt) *Hub {
	h := &Hub{
		logger: zap.NewNop(),
		ports:  map[string]*Port{},
		links:  map[string]map[string]Link{},
		cut:    map[string]map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.rng == nil {
		h.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return h
}

// Link connects a and b in both directions.
func (h *Hub) Link(a, b string, link Link) {
	h.LinkDirected(a, b, link)
	h.LinkDirected(b, a, link)
}

// LinkDirected lets to hear from.
func (h *Hub) LinkDirected(from, to string, link Link) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.links[from] == nil {
		h.links[from] = map[string]Link{}
	}
	h.links[from][to] = link
	delete(h.cut[from], to)
}

// Unlink disconnects a and b in both directions, also on a fully connected hub.
func (h *Hub) Unlink(a, b string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		delete(h.links[pair[0]], pair[1])
		if h.cut[pair[0]] == nil {
			h.cut[pair[0]] = map[string]struct{}{}
		}
		h.cut[pair[0]][pair[1]] = struct{}{}
	}
}

// Chain links names in a line, each only hearing its direct neighbors.
func (h *Hub) Chain(link Link, names ...string) {
	for i := 1; i < len(names); i++ {
		h.Link(names[i-1], names[i], link)
	}
}

func (h *Hub) link(from, to string) (Link, bool) {
	if from == to {
		return Link{}, false
	}
	if _, ok := h.cut[from][to]; ok {
		return Link{}, false
	}
	if l, ok := h.links[from][to]; ok {
		return l, true
	}
	return DefaultLink, h.full
}

// Ports returns the names of attached ports.
func (h *Hub) Ports() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.ports))
	for name := range h.ports {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Delivered counts frames handed to receivers across the whole hub.
func (h *Hub) Delivered() uint64 { return h.delivered.Load() }

// Lost counts frames dropped by link loss.
func (h *Hub) Lost() uint64 { return h.lost.Load() }

// Overflowed counts frames dropped because the receiver queue was full.
func (h *Hub) Overflowed() uint64 { return h.overflowed.Load() }

func (h *Hub) attach(p *Port) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.ports[p.name]; ok {
		return fmt.Errorf("%w: port %q already attached", transport.ErrConnect, p.name)
	}
	h.ports[p.name] = p
	return nil
}

func (h *Hub) detach(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.ports, name)
}

func (h *Hub) transmit(from string, frame []byte) {
	type target struct {
		name string
		port *Port
		rssi int16
	}
	h.mu.Lock()
	targets := make([]target, 0, len(h.ports))
	for name, port := range h.ports {
		link, ok := h.link(from, name)
		if !ok {
			continue
		}
		if link.Loss > 0 && h.rng.Float64() < link.Loss {
			h.lost.Add(1)
			continue
		}
		targets = append(targets, target{name: name, port: port, rssi: link.RSSI})
	}
	h.mu.Unlock()

	for _, t := range targets {
		if t.port.deliver(slices.Clone(frame), t.rssi) {
			h.delivered.Add(1)
		} else {
			h.overflowed.Add(1)
			h.logger.Debug("receiver queue full", zap.String("from", from), zap.String("to", t.name))
		}
	}
}

type delivery struct {
	frame []byte
	rssi  int16
}

type PortOpt func(*Port)

func WithQueueSize(size int) PortOpt {
	return func(p *Port) {
		p.queueSize = size
	}
}

func WithLogger(logger *zap.Logger) PortOpt {
	return func(p *Port) {
		p.logger = logger
	}
}

// Port is a transport.Transport attached to a Hub.
type Port struct {
	logger    *zap.Logger
	hub       *Hub
	queueSize int
	counters  *transport.Counters

	mu    sync.RWMutex
	name  string
	inbox chan delivery
	done  chan struct{}

	rssi atomic.Int32
}

var (
	_ transport.Transport    = (*Port)(nil)
	_ transport.RSSIReporter = (*Port)(nil)
)

func New(hub *Hub, opts ...PortOpt) *Port {
	p := &Port{
		logger:    zap.NewNop(),
		hub:       hub,
		queueSize: DefaultQueueSize,
		counters:  transport.NewCounters(backend),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect attaches the port to the hub under identifier.
func (p *Port) Connect(ctx context.Context, identifier string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return fmt.Errorf("%w: already connected as %q", transport.ErrConnect, p.name)
	}
	p.name = identifier
	p.inbox = make(chan delivery, p.queueSize)
	if err := p.hub.attach(p); err != nil {
		p.inbox = nil
		return err
	}
	p.done = make(chan struct{})
	p.logger.Debug("attached to hub", zap.String("name", identifier))
	return nil
}

func (p *Port) deliver(frame []byte, rssi int16) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.done == nil {
		return false
	}
	select {
	case p.inbox <- delivery{frame: frame, rssi: rssi}:
		return true
	default:
		return false
	}
}

func (p *Port) Send(ctx context.Context, frame []byte) error {
	if len(frame) > wire.MaxFrameSize {
		p.counters.Failed()
		return fmt.Errorf("%w: %d bytes", transport.ErrFrameTooLarge, len(frame))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.RLock()
	name, connected := p.name, p.done != nil
	p.mu.RUnlock()
	if !connected {
		return transport.ErrNotConnected
	}
	p.hub.transmit(name, frame)
	p.counters.Sent(len(frame))
	return nil
}

func (p *Port) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	p.mu.RLock()
	inbox, done := p.inbox, p.done
	p.mu.RUnlock()
	if done == nil {
		return nil, transport.ErrNotConnected
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case d := <-inbox:
		p.rssi.Store(int32(d.rssi))
		p.counters.Received(len(d.frame))
		return d.frame, nil
	case <-timer.C:
		return nil, nil
	case <-done:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Port) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return nil
	}
	p.hub.detach(p.name)
	close(p.done)
	p.done = nil
	p.inbox = nil
	return nil
}

func (p *Port) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.done != nil
}

func (p *Port) Stats() transport.Stats {
	return p.counters.Stats()
}

func (p *Port) LastRSSI() int16 {
	return int16(p.rssi.Load())
}

// Name returns the identifier the port is attached under.
func (p *Port) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}
