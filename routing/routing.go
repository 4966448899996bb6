// Package routing keeps the neighbors a node hears directly and the best
// known route to every other node.
//
// Routes only ever improve: an update replaces a route when its hop count is
// strictly smaller. There is no aging, so a route to a node that moved or went
// silent stays until a shorter one is observed.
package routing

import (
	"errors"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meshsync/go-meshsync/common/types"
)

const (
	DefaultNeighborCapacity = 64
	DefaultRouteCapacity    = 256
)

// ErrTableFull is returned when a route to a new destination does not fit.
var ErrTableFull = errors.New("routing table full")

// NeighborInfo describes a node heard directly.
type NeighborInfo struct {
	ID          types.NodeID
	LastSeen    time.Time
	Signal      int16
	PacketCount uint64
}

// Route is the best known way to reach Destination.
type Route struct {
	Destination types.NodeID
	NextHop     types.NodeID
	HopCount    uint8
	LastUpdated time.Time
}

// MarshalLogObject implements logging encoder for Route.
func (r Route) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("dst", r.Destination.String())
	encoder.AddString("next", r.NextHop.String())
	encoder.AddUint8("hops", r.HopCount)
	return nil
}

type Opt func(*Table)

func WithLogger(logger *zap.Logger) Opt {
	return func(t *Table) {
		t.logger = logger
	}
}

// WithNeighborCapacity bounds the neighbor table. The least recently heard neighbor is evicted.
func WithNeighborCapacity(capacity int) Opt {
	return func(t *Table) {
		if capacity > 0 {
			t.neighborCapacity = capacity
		}
	}
}

// WithRouteCapacity bounds the route table. New destinations are rejected once full.
func WithRouteCapacity(capacity int) Opt {
	return func(t *Table) {
		if capacity > 0 {
			t.routeCapacity = capacity
		}
	}
}

// Table holds neighbors and routes of a single node.
type Table struct {
	logger           *zap.Logger
	self             types.NodeID
	neighborCapacity int
	routeCapacity    int

	mu        sync.Mutex
	neighbors *lru.Cache[types.NodeID, *NeighborInfo]
	routes    map[types.NodeID]*Route
}

// New creates a table for the node self.
func New(self types.NodeID, opts ...Opt) *Table {
	t := &Table{
		logger:           zap.NewNop(),
		self:             self,
		neighborCapacity: DefaultNeighborCapacity,
		routeCapacity:    DefaultRouteCapacity,
	}
	for _, opt := range opts {
		opt(t)
	}
	neighbors, err := lru.New[types.NodeID, *NeighborInfo](t.neighborCapacity)
	if err != nil {
		panic(err)
	}
	t.neighbors = neighbors
	t.routes = make(map[types.NodeID]*Route, t.routeCapacity)
	return t
}

// ObserveNeighbor records a packet heard directly from id and seeds a one hop route to it.
func (t *Table) ObserveNeighbor(id types.NodeID, signal int16, now time.Time) NeighborInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.neighbors.Get(id)
	if !ok {
		info = &NeighborInfo{ID: id}
		if evicted := t.neighbors.Add(id, info); evicted {
			t.logger.Debug("neighbor table full, evicted least recently heard")
		}
		t.logger.Debug("new neighbor", zap.Stringer("id", id), zap.Int16("signal", signal))
	}
	info.LastSeen = now
	info.Signal = signal
	info.PacketCount++
	if _, err := t.update(id, id, 1, now); err != nil {
		t.logger.Debug("no room for neighbor route", zap.Stringer("id", id), zap.Error(err))
	}
	return *info
}

// Neighbor returns the record for id.
func (t *Table) Neighbor(id types.NodeID) (NeighborInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.neighbors.Peek(id)
	if !ok {
		return NeighborInfo{}, false
	}
	return *info, true
}

// Neighbors returns all neighbors ordered by id.
func (t *Table) Neighbors() []NeighborInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	rst := make([]NeighborInfo, 0, t.neighbors.Len())
	for _, info := range t.neighbors.Values() {
		rst = append(rst, *info)
	}
	slices.SortFunc(rst, func(a, b NeighborInfo) int { return int(a.ID) - int(b.ID) })
	return rst
}

// Update offers a route to dest through nextHop. It returns true if the table changed.
//
// An existing route is replaced only by a strictly smaller hop count. Offering
// the same one hop route again refreshes its timestamp but is not a change.
func (t *Table) Update(dest, nextHop types.NodeID, hops uint8, now time.Time) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.update(dest, nextHop, hops, now)
}

func (t *Table) update(dest, nextHop types.NodeID, hops uint8, now time.Time) (bool, error) {
	if dest == t.self || !dest.Valid() || hops == 0 {
		return false, nil
	}
	current, ok := t.routes[dest]
	if !ok {
		if len(t.routes) >= t.routeCapacity {
			return false, ErrTableFull
		}
		t.routes[dest] = &Route{Destination: dest, NextHop: nextHop, HopCount: hops, LastUpdated: now}
		t.logger.Debug("route added", zap.Object("route", *t.routes[dest]))
		return true, nil
	}
	if hops < current.HopCount {
		current.NextHop = nextHop
		current.HopCount = hops
		current.LastUpdated = now
		t.logger.Debug("route improved", zap.Object("route", *current))
		return true, nil
	}
	if hops == 1 && current.HopCount == 1 {
		if current.NextHop == nextHop {
			current.LastUpdated = now
			return false, nil
		}
		if nextHop == dest {
			// hearing dest directly beats a one hop route through someone else
			current.NextHop = nextHop
			current.LastUpdated = now
			t.logger.Debug("route made direct", zap.Object("route", *current))
			return true, nil
		}
	}
	return false, nil
}

// Lookup returns the route to dest.
func (t *Table) Lookup(dest types.NodeID) (Route, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.routes[dest]
	if !ok {
		return Route{}, false
	}
	return *r, true
}

// Routes returns all routes ordered by destination.
func (t *Table) Routes() []Route {
	t.mu.Lock()
	defer t.mu.Unlock()
	rst := make([]Route, 0, len(t.routes))
	for _, r := range t.routes {
		rst = append(rst, *r)
	}
	slices.SortFunc(rst, func(a, b Route) int { return int(a.Destination) - int(b.Destination) })
	return rst
}

// Len returns the number of routes.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.routes)
}
