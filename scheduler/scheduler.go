// Package scheduler decides what a node transmits at each broadcast opportunity.
//
// Control packets (discovery responses, removals) always go first. The
// remaining opportunities are shared between live updates, which cycle over
// every known object, and detail chunks, which drain a priority queue. Every
// LiveEvery-th opportunity is reserved for live state so detail traffic can
// never starve it; if the preferred kind has nothing to send the other kind
// is used instead.
package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/meshsync/go-meshsync/common/types"
	"github.com/meshsync/go-meshsync/detail"
	"github.com/meshsync/go-meshsync/objects"
	"github.com/meshsync/go-meshsync/priorityq"
	"github.com/meshsync/go-meshsync/wire"
)

// Kind of an outgoing packet.
type Kind uint8

const (
	KindControl Kind = iota
	KindLive
	KindDetail
)

func (k Kind) String() string {
	switch k {
	case KindControl:
		return "control"
	case KindLive:
		return "live"
	case KindDetail:
		return "detail"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Outgoing is a payload chosen for transmission. The node adds the header.
type Outgoing struct {
	Kind        Kind
	Type        types.PacketType
	Destination types.NodeID
	Payload     []byte
}

type Config struct {
	// LiveEvery reserves every n-th opportunity for a live update.
	LiveEvery int `mapstructure:"live-every"`
	// LiveBatch is the number of objects per live update packet.
	LiveBatch int `mapstructure:"live-batch"`
	// QueueSize bounds each priority of the detail queue.
	QueueSize int `mapstructure:"queue-size"`
	// ControlQueueSize bounds each priority of the control queue.
	ControlQueueSize int `mapstructure:"control-queue-size"`
}

func DefaultConfig() Config {
	return Config{
		LiveEvery:        5,
		LiveBatch:        wire.MaxObjectsPerPacket,
		QueueSize:        1024,
		ControlQueueSize: 64,
	}
}

// ControlPriority orders control packets.
type ControlPriority = priorityq.Priority

const (
	ControlHigh = priorityq.High
	ControlMid  = priorityq.Mid
	ControlLow  = priorityq.Low
)

type request struct {
	object   types.ObjectID
	category types.DetailCategory
	chunk    types.ChunkID
}

// Priority returns the queue priority of a detail category.
func Priority(category types.DetailCategory) priorityq.Priority {
	switch category {
	case types.CategoryBasic:
		return priorityq.High
	case types.CategoryMaterial, types.CategorySystems:
		return priorityq.Mid
	default:
		return priorityq.Low
	}
}

type Opt func(*Scheduler)

func WithLogger(logger *zap.Logger) Opt {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithConfig(cfg Config) Opt {
	return func(s *Scheduler) {
		s.cfg = cfg
	}
}

// Scheduler selects the next payload to broadcast.
type Scheduler struct {
	logger  *zap.Logger
	cfg     Config
	objects *objects.Store
	details *detail.Store

	closed  atomic.Bool
	control *priorityq.Queue[Outgoing]
	queue   *priorityq.Queue[request]

	mu          sync.Mutex
	queued      map[request]struct{}
	opportunity uint64
	cursor      types.ObjectID
}

func New(objs *objects.Store, details *detail.Store, opts ...Opt) *Scheduler {
	s := &Scheduler{
		logger:  zap.NewNop(),
		cfg:     DefaultConfig(),
		objects: objs,
		details: details,
		queued:  map[request]struct{}{},
		// first live update starts at the smallest id
		cursor: types.ObjectID(^uint16(0)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.LiveEvery < 1 {
		s.cfg.LiveEvery = 1
	}
	if s.cfg.LiveBatch < 1 || s.cfg.LiveBatch > wire.MaxObjectsPerPacket {
		s.cfg.LiveBatch = wire.MaxObjectsPerPacket
	}
	s.control = priorityq.New[Outgoing](s.cfg.ControlQueueSize)
	s.queue = priorityq.New[request](s.cfg.QueueSize)
	return s
}

// EnqueueControl queues a control packet ahead of any live or detail traffic.
func (s *Scheduler) EnqueueControl(prio ControlPriority, out Outgoing) error {
	out.Kind = KindControl
	if err := s.control.Push(prio, out); err != nil {
		return fmt.Errorf("enqueue %s: %w", out.Type, err)
	}
	return nil
}

// EnqueueChunk queues a stored chunk for broadcast. Chunks already waiting
// are not queued twice.
func (s *Scheduler) EnqueueChunk(object types.ObjectID, category types.DetailCategory, chunk types.ChunkID) error {
	req := request{object: object, category: category, chunk: chunk}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueue(req)
}

func (s *Scheduler) enqueue(req request) error {
	if _, ok := s.queued[req]; ok {
		return nil
	}
	if err := s.queue.Push(Priority(req.category), req); err != nil {
		return err
	}
	s.queued[req] = struct{}{}
	return nil
}

// EnqueueObject queues every stored chunk of object.
func (s *Scheduler) EnqueueObject(object types.ObjectID) int {
	chunks := s.details.Chunks(object)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueueChunks(chunks)
}

func (s *Scheduler) enqueueChunks(chunks []types.DetailChunk) int {
	n := 0
	for _, c := range chunks {
		req := request{object: c.Object, category: c.Category, chunk: c.Chunk}
		if _, ok := s.queued[req]; ok {
			continue
		}
		if err := s.enqueue(req); err != nil {
			if errors.Is(err, priorityq.ErrQueueFull) {
				continue
			}
			s.logger.Debug("failed to queue chunk", zap.Error(err))
			return n
		}
		n++
	}
	return n
}

// Reseed queues every chunk held by the detail store that is not already
// waiting. It returns the number of newly queued chunks.
func (s *Scheduler) Reseed() int {
	n := 0
	for _, id := range s.details.Objects() {
		n += s.EnqueueObject(id)
	}
	return n
}

// Pending returns the number of queued control and detail packets.
func (s *Scheduler) Pending() (control, details int) {
	return s.control.Len(), s.queue.Len()
}

// Next returns the payload for the next broadcast opportunity.
// ok is false when there is nothing to send.
func (s *Scheduler) Next() (Outgoing, bool) {
	if s.closed.Load() {
		return Outgoing{}, false
	}
	if out, ok := s.control.Pop(); ok {
		return out, true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opportunity++
	if s.opportunity%uint64(s.cfg.LiveEvery) == 0 {
		if out, ok := s.nextLive(); ok {
			return out, true
		}
		return s.nextDetail()
	}
	if out, ok := s.nextDetail(); ok {
		return out, true
	}
	return s.nextLive()
}

func (s *Scheduler) nextLive() (Outgoing, bool) {
	batch := s.objects.After(s.cursor, s.cfg.LiveBatch)
	if len(batch) == 0 {
		return Outgoing{}, false
	}
	payload, err := wire.EncodeLiveUpdate(batch)
	if err != nil {
		s.logger.Error("failed to encode live update", zap.Error(err))
		return Outgoing{}, false
	}
	s.cursor = batch[len(batch)-1].ID
	return Outgoing{
		Kind:        KindLive,
		Type:        types.PacketLiveUpdate,
		Destination: types.BroadcastID,
		Payload:     payload,
	}, true
}

func (s *Scheduler) nextDetail() (Outgoing, bool) {
	for {
		req, ok := s.queue.Pop()
		if !ok {
			return Outgoing{}, false
		}
		delete(s.queued, req)
		chunk, ok := s.details.Chunk(req.object, req.category, req.chunk)
		if !ok {
			// pruned or removed while waiting
			continue
		}
		payload, err := wire.EncodeDetailChunk(chunk)
		if err != nil {
			s.logger.Error("failed to encode detail chunk", zap.Object("chunk", &chunk), zap.Error(err))
			continue
		}
		return Outgoing{
			Kind:        KindDetail,
			Type:        types.PacketDetailChunk,
			Destination: types.BroadcastID,
			Payload:     payload,
		}, true
	}
}

// Close releases the queues. Next returns nothing afterwards.
func (s *Scheduler) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.control.Close()
	s.queue.Close()
}
