// Package node ties the stores of a mesh node together and implements what
// happens to every frame it hears and every frame it sends.
package node

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/meshsync/go-meshsync/common/types"
	"github.com/meshsync/go-meshsync/dedup"
	"github.com/meshsync/go-meshsync/detail"
	"github.com/meshsync/go-meshsync/objects"
	"github.com/meshsync/go-meshsync/routing"
	"github.com/meshsync/go-meshsync/scheduler"
	"github.com/meshsync/go-meshsync/snapshot"
	"github.com/meshsync/go-meshsync/spatial"
	"github.com/meshsync/go-meshsync/transport"
	"github.com/meshsync/go-meshsync/wire"
)

var (
	// ErrInvalidID is returned for the reserved and broadcast node ids.
	ErrInvalidID = errors.New("invalid node id")
	// ErrStoreFull is returned when a local write does not fit a bounded store.
	ErrStoreFull = errors.New("store full")
)

// Outcome is what HandleFrame did with a frame.
type Outcome uint8

const (
	// Applied frames were addressed to this node or broadcast.
	Applied Outcome = iota
	// Routed frames were forwarded along a known route.
	Routed
	// Flooded frames were forwarded as broadcast for lack of a route.
	Flooded
	// Duplicate frames were seen before or are echoes of our own.
	Duplicate
	// Malformed frames failed to decode or carry an invalid source.
	Malformed
	// HopLimitExceeded frames arrived with too many hops to forward.
	HopLimitExceeded
	// Dropped frames could not be queued for forwarding.
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Routed:
		return "routed"
	case Flooded:
		return "flooded"
	case Duplicate:
		return "duplicate"
	case Malformed:
		return "malformed"
	case HopLimitExceeded:
		return "hop limit exceeded"
	case Dropped:
		return "dropped"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

type Opt func(*Node)

func WithLogger(logger *zap.Logger) Opt {
	return func(n *Node) {
		n.logger = logger
	}
}

func WithClock(clock clockwork.Clock) Opt {
	return func(n *Node) {
		n.clock = clock
	}
}

// WithRadii sets the extent of indexed objects per type.
func WithRadii(radii spatial.Radii) Opt {
	return func(n *Node) {
		n.radii = radii
	}
}

// WithFs sets the filesystem snapshots are written to.
func WithFs(fs afero.Fs) Opt {
	return func(n *Node) {
		n.fs = fs
	}
}

// Node is a single participant of the mesh.
type Node struct {
	logger    *zap.Logger
	cfg       Config
	self      types.NodeID
	clock     clockwork.Clock
	fs        afero.Fs
	radii     spatial.Radii
	transport transport.Transport

	// mu makes the application of a frame atomic with respect to other frames.
	mu       sync.Mutex
	objects  *objects.Store
	dedup    *dedup.Cache
	routing  *routing.Table
	details  *detail.Store
	spatial  spatial.Index
	sched    *scheduler.Scheduler
	sequence atomic.Uint32
	relay    chan []byte

	stats *counters
}

// New creates a node communicating over tr.
func New(cfg Config, tr transport.Transport, opts ...Opt) (*Node, error) {
	self := types.NodeID(cfg.ID)
	if !self.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, self)
	}
	n := &Node{
		logger:    zap.NewNop(),
		cfg:       cfg,
		self:      self,
		clock:     clockwork.NewRealClock(),
		fs:        afero.NewOsFs(),
		radii:     spatial.DefaultRadii(),
		transport: tr,
		stats:     newCounters(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With(zap.Stringer("node", self))
	n.objects = objects.New(cfg.ObjectCapacity)
	n.dedup = dedup.New(cfg.DedupCapacity)
	n.routing = routing.New(self,
		routing.WithLogger(n.logger.Named("routing")),
		routing.WithNeighborCapacity(cfg.NeighborCapacity),
		routing.WithRouteCapacity(cfg.RouteCapacity),
	)
	n.details = detail.New(
		detail.WithLogger(n.logger.Named("detail")),
		detail.WithConfig(cfg.Detail),
	)
	switch cfg.SpatialIndex {
	case "linear":
		n.spatial = spatial.NewLinear()
	case "grid", "":
		n.spatial = spatial.NewGrid(cfg.CellSize)
	default:
		return nil, fmt.Errorf("unknown spatial index %q", cfg.SpatialIndex)
	}
	n.sched = scheduler.New(n.objects, n.details,
		scheduler.WithLogger(n.logger.Named("scheduler")),
		scheduler.WithConfig(cfg.Scheduler),
	)
	n.relay = make(chan []byte, max(1, cfg.RelayQueueSize))
	return n, nil
}

func (n *Node) ID() types.NodeID { return n.self }

func (n *Node) Objects() *objects.Store { return n.objects }

func (n *Node) Spatial() spatial.Index { return n.spatial }

func (n *Node) Detail() *detail.Store { return n.details }

func (n *Node) Routing() *routing.Table { return n.routing }

func (n *Node) Scheduler() *scheduler.Scheduler { return n.sched }

func (n *Node) Stats() Stats { return n.stats.snapshot() }

// Mode is derived from the number of frames received so far.
func (n *Node) Mode() types.NodeMode {
	return types.ModeFor(n.stats.received.load())
}

func (n *Node) index(obj types.BuildingObject) {
	n.spatial.InsertOrUpdate(obj.ID, spatial.PointOf(obj.Position), n.radii.For(obj.Type))
}

// PutObject stores a locally produced object. It is broadcast by the live
// update cycle.
func (n *Node) PutObject(obj types.BuildingObject) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	change, err := n.objects.Put(obj)
	if errors.Is(err, objects.ErrFull) {
		n.stats.storeFull.inc()
		return fmt.Errorf("%w: %w", ErrStoreFull, err)
	}
	if err != nil {
		return err
	}
	if change != objects.Unchanged {
		n.index(obj)
	}
	return nil
}

// PutDetail stores a locally produced chunk and queues it for broadcast.
func (n *Node) PutDetail(chunk types.DetailChunk) (detail.Update, error) {
	if len(chunk.Data) > wire.MaxChunkData {
		return detail.Update{}, fmt.Errorf("%w: chunk data %d bytes exceeds %d", wire.ErrCodec, len(chunk.Data), wire.MaxChunkData)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	upd, err := n.details.Apply(chunk, n.clock.Now())
	if errors.Is(err, detail.ErrFull) {
		n.stats.storeFull.inc()
		return upd, fmt.Errorf("%w: %w", ErrStoreFull, err)
	}
	if err != nil {
		return upd, err
	}
	if err := n.sched.EnqueueChunk(chunk.Object, chunk.Category, chunk.Chunk); err != nil {
		n.logger.Debug("chunk not queued", zap.Object("chunk", &chunk), zap.Error(err))
	}
	return upd, nil
}

// RemoveObject deletes ids locally and announces the removal.
func (n *Node) RemoveObject(ids ...types.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	n.mu.Lock()
	for _, id := range ids {
		n.remove(id)
	}
	n.mu.Unlock()
	for start := 0; start < len(ids); start += wire.MaxRemovals {
		batch := ids[start:min(len(ids), start+wire.MaxRemovals)]
		payload, err := wire.EncodeRemove(batch)
		if err != nil {
			return err
		}
		if err := n.sched.EnqueueControl(scheduler.ControlHigh, scheduler.Outgoing{
			Type:        types.PacketObjectRemove,
			Destination: types.BroadcastID,
			Payload:     payload,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) remove(id types.ObjectID) {
	n.objects.Remove(id)
	n.spatial.Remove(id)
	n.details.Remove(id)
}

// Discover queues a discovery beacon.
func (n *Node) Discover() error {
	payload := wire.EncodeDiscovery(wire.Discovery{
		Mode:    n.Mode(),
		Objects: uint16(min(n.objects.Len(), int(^uint16(0)))),
	})
	return n.sched.EnqueueControl(scheduler.ControlHigh, scheduler.Outgoing{
		Type:        types.PacketDiscovery,
		Destination: types.BroadcastID,
		Payload:     payload,
	})
}

func (n *Node) nextSequence() uint16 {
	return uint16(n.sequence.Add(1))
}

// NextFrame returns the next frame to transmit: forwarded frames first, then
// whatever the scheduler picks. The frame id is remembered so that echoes of
// it are dropped.
func (n *Node) NextFrame() ([]byte, bool) {
	select {
	case frame := <-n.relay:
		return frame, true
	default:
	}
	for {
		out, ok := n.sched.Next()
		if !ok {
			return nil, false
		}
		h := wire.Header{
			Source:      n.self,
			Destination: out.Destination,
			Sequence:    n.nextSequence(),
			Type:        out.Type,
		}
		frame, err := wire.EncodePacket(h, out.Payload)
		if err != nil {
			n.logger.Error("failed to frame packet", zap.Object("header", h), zap.Error(err))
			continue
		}
		n.dedup.Seen(h.ID())
		return frame, true
	}
}

// Snapshot captures live objects and completeness summaries.
func (n *Node) Snapshot() *snapshot.Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return &snapshot.Snapshot{
		Version:   snapshot.Version,
		Node:      n.self,
		Taken:     n.clock.Now(),
		Objects:   n.objects.All(),
		Summaries: n.details.Summaries(),
	}
}

// Restore warm starts the node from a snapshot taken by the same node.
// Restored summaries keep completeness, raw chunks are not part of snapshots.
func (n *Node) Restore(snap *snapshot.Snapshot) error {
	if snap.Node != n.self {
		return fmt.Errorf("snapshot of node %s restored on %s", snap.Node, n.self)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, obj := range snap.Objects {
		if _, err := n.objects.Put(obj); err != nil {
			return fmt.Errorf("restore object %s: %w", obj.ID, err)
		}
		n.index(obj)
	}
	for _, sum := range snap.Summaries {
		if err := n.details.Restore(sum); err != nil {
			return fmt.Errorf("restore summary %s: %w", sum.Object, err)
		}
	}
	n.logger.Info("restored from snapshot",
		zap.Time("taken", snap.Taken),
		zap.Int("objects", len(snap.Objects)),
		zap.Int("summaries", len(snap.Summaries)),
	)
	return nil
}

// Close releases the broadcast queues.
func (n *Node) Close() {
	n.sched.Close()
}
