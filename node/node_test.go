package node

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"github.com/meshsync/go-meshsync/common/types"
	"github.com/meshsync/go-meshsync/snapshot"
	"github.com/meshsync/go-meshsync/spatial"
	"github.com/meshsync/go-meshsync/transport/mocks"
	"github.com/meshsync/go-meshsync/wire"
)

const self = types.NodeID(1)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ID = uint16(self)
	return cfg
}

func newTestNode(t *testing.T, cfg Config, opts ...Opt) *Node {
	t.Helper()
	tr := mocks.NewMockTransport(gomock.NewController(t))
	opts = append([]Opt{
		WithLogger(zaptest.NewLogger(t)),
		WithClock(clockwork.NewFakeClockAt(time.Unix(1_000_000, 0))),
		WithFs(afero.NewMemMapFs()),
	}, opts...)
	n, err := New(cfg, tr, opts...)
	require.NoError(t, err)
	t.Cleanup(n.Close)
	return n
}

func frame(t *testing.T, h wire.Header, payload []byte) []byte {
	t.Helper()
	buf, err := wire.EncodePacket(h, payload)
	require.NoError(t, err)
	return buf
}

func liveFrame(t *testing.T, h wire.Header, objs ...types.BuildingObject) []byte {
	t.Helper()
	payload, err := wire.EncodeLiveUpdate(objs)
	require.NoError(t, err)
	h.Type = types.PacketLiveUpdate
	return frame(t, h, payload)
}

func nextPacket(t *testing.T, n *Node) wire.Packet {
	t.Helper()
	buf, ok := n.NextFrame()
	require.True(t, ok)
	pkt, err := wire.DecodePacket(buf)
	require.NoError(t, err)
	return pkt
}

// requireOwnFrame checks that the next frame originates here and was not relayed.
func requireOwnFrame(t *testing.T, n *Node) {
	t.Helper()
	pkt := nextPacket(t, n)
	require.Equal(t, self, pkt.Source)
	require.Zero(t, pkt.HopCount)
}

func wall(id types.ObjectID, x uint16) types.BuildingObject {
	return types.BuildingObject{
		ID:         id,
		Type:       types.ObjectWall,
		Position:   types.Position{X: x, Y: 2000, Z: 0},
		Properties: types.Properties{1, 2, 3, 4},
	}
}

func TestNewInvalidID(t *testing.T) {
	for _, id := range []uint16{0, 0xffff} {
		cfg := testConfig()
		cfg.ID = id
		_, err := New(cfg, nil)
		require.ErrorIs(t, err, ErrInvalidID)
	}
	cfg := testConfig()
	cfg.SpatialIndex = "octree"
	_, err := New(cfg, nil)
	require.Error(t, err)
}

func TestApplyBroadcastLiveUpdate(t *testing.T) {
	n := newTestNode(t, testConfig())
	h := wire.Header{Source: 2, Destination: types.BroadcastID, Sequence: 10}
	require.Equal(t, Applied, n.HandleFrame(liveFrame(t, h, wall(5, 100), wall(6, 9000)), -70))

	obj, ok := n.Objects().Get(5)
	require.True(t, ok)
	require.Equal(t, wall(5, 100), obj)
	require.Equal(t, 2, n.Spatial().Len())
	require.Equal(t, []types.ObjectID{5}, n.Spatial().QueryBBox(
		spatial.Point{X: 0, Y: 2000}, spatial.Point{X: 100, Y: 2000}))

	nb, ok := n.Routing().Neighbor(2)
	require.True(t, ok)
	require.EqualValues(t, -70, nb.Signal)
	require.EqualValues(t, 1, nb.PacketCount)
	route, ok := n.Routing().Lookup(2)
	require.True(t, ok)
	require.EqualValues(t, 1, route.HopCount)

	// relayed once with the hop count incremented
	relayed := nextPacket(t, n)
	require.Equal(t, types.NodeID(2), relayed.Source)
	require.Equal(t, types.BroadcastID, relayed.Destination)
	require.EqualValues(t, 10, relayed.Sequence)
	require.EqualValues(t, 1, relayed.HopCount)

	require.Equal(t, Stats{Received: 1, Applied: 1, Relayed: 1}, n.Stats())
}

func TestLastWriteWins(t *testing.T) {
	n := newTestNode(t, testConfig())
	h := wire.Header{Source: 2, Destination: types.BroadcastID, Sequence: 1}
	n.HandleFrame(liveFrame(t, h, wall(5, 100)), 0)
	h.Sequence++
	n.HandleFrame(liveFrame(t, h, wall(5, 700)), 0)
	obj, _ := n.Objects().Get(5)
	require.EqualValues(t, 700, obj.Position.X)
	e, ok := n.Spatial().Entry(5)
	require.True(t, ok)
	require.EqualValues(t, 700, e.Center.X)
}

func TestDuplicates(t *testing.T) {
	n := newTestNode(t, testConfig())
	buf := liveFrame(t, wire.Header{Source: 2, Destination: types.BroadcastID, Sequence: 3}, wall(1, 1))
	require.Equal(t, Applied, n.HandleFrame(buf, 0))
	require.Equal(t, Duplicate, n.HandleFrame(buf, 0))

	// the relayed copy comes back with a higher hop count
	relayed, ok := n.NextFrame()
	require.True(t, ok)
	require.Equal(t, Duplicate, n.HandleFrame(relayed, 0))

	stats := n.Stats()
	require.EqualValues(t, 3, stats.Received)
	require.EqualValues(t, 2, stats.Duplicates)
	require.EqualValues(t, 2, stats.Dropped)
	require.EqualValues(t, 1, stats.Applied)
}

func TestEchoDropped(t *testing.T) {
	n := newTestNode(t, testConfig())
	require.NoError(t, n.PutObject(wall(1, 1)))
	own, ok := n.NextFrame()
	require.True(t, ok)
	require.Equal(t, Duplicate, n.HandleFrame(own, 0))

	// even when the id is no longer remembered
	echo := liveFrame(t, wire.Header{Source: self, Destination: types.BroadcastID, Sequence: 999}, wall(1, 1))
	require.Equal(t, Duplicate, n.HandleFrame(echo, 0))
}

func TestMalformed(t *testing.T) {
	n := newTestNode(t, testConfig())
	bad := [][]byte{
		{1, 2, 3},
		frame(t, wire.Header{Source: 2, Destination: types.BroadcastID, Type: types.PacketLiveUpdate}, nil)[:7],
		append(frame(t, wire.Header{Source: 2, Destination: types.BroadcastID, Type: types.PacketDiscovery}, []byte{0, 0, 0})[:7], 9),
		frame(t, wire.Header{Source: 2, Destination: types.BroadcastID, Sequence: 1, Type: types.PacketLiveUpdate}, make([]byte, 5)),
		frame(t, wire.Header{Source: 2, Destination: types.BroadcastID, Sequence: 2, Type: types.PacketDetailChunk}, []byte{0, 1, 0, 1, 9}),
		frame(t, wire.Header{Source: 0, Destination: types.BroadcastID, Sequence: 3, Type: types.PacketDiscovery}, []byte{0, 0, 0}),
		make([]byte, wire.MaxFrameSize+1),
	}
	for i, buf := range bad {
		require.Equal(t, Malformed, n.HandleFrame(buf, 0), "frame %d", i)
	}
	stats := n.Stats()
	require.EqualValues(t, len(bad), stats.Malformed)
	require.EqualValues(t, len(bad), stats.Dropped)
	require.Zero(t, stats.Applied)
	require.Zero(t, n.Objects().Len())
	_, ok := n.NextFrame()
	require.False(t, ok)
}

func TestForwardRouted(t *testing.T) {
	n := newTestNode(t, testConfig())
	_, err := n.Routing().Update(9, 3, 2, time.Now())
	require.NoError(t, err)

	buf := liveFrame(t, wire.Header{Source: 4, Destination: 9, Sequence: 77, HopCount: 2}, wall(1, 1))
	require.Equal(t, Routed, n.HandleFrame(buf, 0))
	// not applied locally
	require.Zero(t, n.Objects().Len())

	pkt := nextPacket(t, n)
	require.Equal(t, types.NodeID(9), pkt.Destination)
	require.Equal(t, types.NodeID(4), pkt.Source)
	require.EqualValues(t, 77, pkt.Sequence)
	require.EqualValues(t, 3, pkt.HopCount)
	require.Equal(t, buf[wire.HeaderSize:], pkt.Payload)

	// a multi hop frame does not make the source a neighbor
	_, ok := n.Routing().Neighbor(4)
	require.False(t, ok)
	require.Equal(t, Stats{Received: 1, Routed: 1}, n.Stats())
}

func TestForwardFlooded(t *testing.T) {
	n := newTestNode(t, testConfig())
	buf := liveFrame(t, wire.Header{Source: 4, Destination: 9, Sequence: 1}, wall(1, 1))
	require.Equal(t, Flooded, n.HandleFrame(buf, 0))
	pkt := nextPacket(t, n)
	require.Equal(t, types.BroadcastID, pkt.Destination)
	require.EqualValues(t, 1, pkt.HopCount)
	require.EqualValues(t, 1, n.Stats().Flooded)
}

func TestHopLimit(t *testing.T) {
	n := newTestNode(t, testConfig())
	buf := liveFrame(t, wire.Header{Source: 4, Destination: 9, Sequence: 1, HopCount: wire.MaxHops}, wall(1, 1))
	require.Equal(t, Flooded, n.HandleFrame(buf, 0))
	pkt := nextPacket(t, n)
	require.EqualValues(t, wire.MaxHops+1, pkt.HopCount)

	buf = liveFrame(t, wire.Header{Source: 4, Destination: 9, Sequence: 2, HopCount: wire.MaxHops + 1}, wall(1, 1))
	require.Equal(t, HopLimitExceeded, n.HandleFrame(buf, 0))
	_, ok := n.NextFrame()
	require.False(t, ok)
	stats := n.Stats()
	require.EqualValues(t, 1, stats.HopLimitExceeded)
	require.EqualValues(t, 1, stats.Dropped)

	// broadcasts past the limit are applied but not relayed
	buf = liveFrame(t, wire.Header{Source: 4, Destination: types.BroadcastID, Sequence: 3, HopCount: wire.MaxHops + 1}, wall(1, 1))
	require.Equal(t, Applied, n.HandleFrame(buf, 0))
	requireOwnFrame(t, n)
	require.Zero(t, n.Stats().Relayed)
}

func TestRelayDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.RelayBroadcast = false
	n := newTestNode(t, cfg)
	buf := liveFrame(t, wire.Header{Source: 2, Destination: types.BroadcastID, Sequence: 1}, wall(1, 1))
	require.Equal(t, Applied, n.HandleFrame(buf, 0))
	requireOwnFrame(t, n)
	require.Zero(t, n.Stats().Relayed)
}

func TestRelayQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.RelayQueueSize = 1
	n := newTestNode(t, cfg)
	require.Equal(t, Flooded, n.HandleFrame(liveFrame(t, wire.Header{Source: 4, Destination: 9, Sequence: 1}, wall(1, 1)), 0))
	require.Equal(t, Dropped, n.HandleFrame(liveFrame(t, wire.Header{Source: 4, Destination: 9, Sequence: 2}, wall(1, 1)), 0))
	require.EqualValues(t, 1, n.Stats().Dropped)
}

func TestDiscovery(t *testing.T) {
	n := newTestNode(t, testConfig())
	now := time.Now()
	_, err := n.Routing().Update(20, 21, 3, now)
	require.NoError(t, err)
	n.Routing().ObserveNeighbor(4, -50, now)

	req := frame(t, wire.Header{Source: 4, Destination: types.BroadcastID, Sequence: 1, Type: types.PacketDiscovery},
		wire.EncodeDiscovery(wire.Discovery{Mode: types.ModeDiscovering}))
	require.Equal(t, Applied, n.HandleFrame(req, 0))

	// discovery is never relayed, the response goes first
	pkt := nextPacket(t, n)
	require.Equal(t, types.PacketDiscoveryResponse, pkt.Type)
	require.Equal(t, self, pkt.Source)
	require.Equal(t, types.NodeID(4), pkt.Destination)
	require.Zero(t, pkt.HopCount)
	resp, err := wire.DecodeDiscoveryResponse(pkt.Payload)
	require.NoError(t, err)
	require.Equal(t, []wire.RouteEntry{{Node: 20, Hops: 3}}, resp.Routes)

	_, ok := n.NextFrame()
	require.False(t, ok)
}

func TestDiscoveryResponse(t *testing.T) {
	n := newTestNode(t, testConfig())
	payload, err := wire.EncodeDiscoveryResponse(wire.DiscoveryResponse{
		Mode:   types.ModeContributing,
		Routes: []wire.RouteEntry{{Node: 7, Hops: 2}, {Node: self, Hops: 1}, {Node: 8, Hops: 255}},
	})
	require.NoError(t, err)
	buf := frame(t, wire.Header{Source: 5, Destination: self, Sequence: 1, Type: types.PacketDiscoveryResponse}, payload)
	require.Equal(t, Applied, n.HandleFrame(buf, 0))

	route, ok := n.Routing().Lookup(7)
	require.True(t, ok)
	require.Equal(t, types.NodeID(5), route.NextHop)
	require.EqualValues(t, 3, route.HopCount)
	route, ok = n.Routing().Lookup(5)
	require.True(t, ok)
	require.EqualValues(t, 1, route.HopCount)
	_, ok = n.Routing().Lookup(8)
	require.False(t, ok)
	_, ok = n.Routing().Lookup(self)
	require.False(t, ok)

	// responses addressed to self are not relayed
	_, ok = n.NextFrame()
	require.False(t, ok)
}

func TestDiscoveryResponseIgnoresZeroHops(t *testing.T) {
	n := newTestNode(t, testConfig())
	payload, err := wire.EncodeDiscoveryResponse(wire.DiscoveryResponse{
		Mode:   types.ModeContributing,
		Routes: []wire.RouteEntry{{Node: 7, Hops: 0}, {Node: 3, Hops: 0}},
	})
	require.NoError(t, err)
	buf := frame(t, wire.Header{Source: 3, Destination: self, Sequence: 1, Type: types.PacketDiscoveryResponse}, payload)
	require.Equal(t, Applied, n.HandleFrame(buf, 0))

	_, ok := n.Routing().Lookup(7)
	require.False(t, ok)
	route, ok := n.Routing().Lookup(3)
	require.True(t, ok)
	require.Equal(t, types.NodeID(3), route.NextHop)

	// hearing 7 directly gives a direct route
	buf = liveFrame(t, wire.Header{Source: 7, Destination: types.BroadcastID, Sequence: 1}, wall(1, 1))
	require.Equal(t, Applied, n.HandleFrame(buf, 0))
	route, ok = n.Routing().Lookup(7)
	require.True(t, ok)
	require.Equal(t, types.NodeID(7), route.NextHop)
	require.EqualValues(t, 1, route.HopCount)
}

func TestRemove(t *testing.T) {
	n := newTestNode(t, testConfig())
	n.HandleFrame(liveFrame(t, wire.Header{Source: 2, Destination: types.BroadcastID, Sequence: 1}, wall(5, 1), wall(6, 1)), 0)
	_, err := n.PutDetail(types.DetailChunk{Object: 5, Category: types.CategoryBasic, Chunk: 1, Data: []byte{1}})
	require.NoError(t, err)

	payload, err := wire.EncodeRemove([]types.ObjectID{5})
	require.NoError(t, err)
	buf := frame(t, wire.Header{Source: 2, Destination: types.BroadcastID, Sequence: 2, Type: types.PacketObjectRemove}, payload)
	require.Equal(t, Applied, n.HandleFrame(buf, 0))

	_, ok := n.Objects().Get(5)
	require.False(t, ok)
	_, ok = n.Spatial().Entry(5)
	require.False(t, ok)
	require.Empty(t, n.Detail().Chunks(5))
	require.Equal(t, 1, n.Objects().Len())
}

func TestDetailChunk(t *testing.T) {
	n := newTestNode(t, testConfig())
	payload, err := wire.EncodeDetailChunk(types.DetailChunk{Object: 3, Chunk: 1, Category: types.CategoryBasic, Data: make([]byte, 26)})
	require.NoError(t, err)
	buf := frame(t, wire.Header{Source: 2, Destination: types.BroadcastID, Sequence: 1, Type: types.PacketDetailChunk}, payload)
	require.Equal(t, Applied, n.HandleFrame(buf, 0))
	require.Equal(t, types.RenderPresence, n.Detail().Level(3))

	relayed := nextPacket(t, n)
	require.Equal(t, types.NodeID(2), relayed.Source)
	own := nextPacket(t, n)
	require.Equal(t, self, own.Source)
	require.Equal(t, types.PacketDetailChunk, own.Type)
	require.Equal(t, payload, own.Payload)
}

func TestChunkBeforeObject(t *testing.T) {
	cfg := testConfig()
	cfg.RelayBroadcast = false
	n := newTestNode(t, cfg)
	_, err := n.PutDetail(types.DetailChunk{Object: 3, Chunk: 1, Category: types.CategoryHistorical, Data: []byte{1}})
	require.NoError(t, err)
	// drain the queued chunk
	nextPacket(t, n)

	n.HandleFrame(liveFrame(t, wire.Header{Source: 2, Destination: types.BroadcastID, Sequence: 1}, wall(3, 1)), 0)
	pkt := nextPacket(t, n)
	require.Equal(t, types.PacketDetailChunk, pkt.Type)
}

func TestNextFrameSequence(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.LiveBatch = 1
	n := newTestNode(t, cfg)
	require.NoError(t, n.PutObject(wall(1, 1)))
	require.NoError(t, n.PutObject(wall(2, 1)))

	first := nextPacket(t, n)
	second := nextPacket(t, n)
	require.Equal(t, first.Sequence+1, second.Sequence)
	objs, err := wire.DecodeLiveUpdate(second.Payload)
	require.NoError(t, err)
	require.Equal(t, []types.BuildingObject{wall(2, 1)}, objs)
}

func TestPutObjectFull(t *testing.T) {
	cfg := testConfig()
	cfg.ObjectCapacity = 1
	n := newTestNode(t, cfg)
	require.NoError(t, n.PutObject(wall(1, 1)))
	require.ErrorIs(t, n.PutObject(wall(2, 1)), ErrStoreFull)
	require.NoError(t, n.PutObject(wall(1, 2)))

	n.HandleFrame(liveFrame(t, wire.Header{Source: 2, Destination: types.BroadcastID, Sequence: 1}, wall(3, 1)), 0)
	require.EqualValues(t, 2, n.Stats().StoreFull)
	require.Equal(t, 1, n.Objects().Len())
}

func TestPutDetailLimits(t *testing.T) {
	n := newTestNode(t, testConfig())
	_, err := n.PutDetail(types.DetailChunk{Object: 1, Category: types.CategoryBasic, Data: make([]byte, wire.MaxChunkData+1)})
	require.ErrorIs(t, err, wire.ErrCodec)
	_, err = n.PutDetail(types.DetailChunk{Object: 1, Category: 6})
	require.Error(t, err)
}

func TestRemoveObject(t *testing.T) {
	n := newTestNode(t, testConfig())
	require.NoError(t, n.PutObject(wall(1, 1)))
	require.NoError(t, n.RemoveObject(1))
	require.Zero(t, n.Objects().Len())

	pkt := nextPacket(t, n)
	require.Equal(t, types.PacketObjectRemove, pkt.Type)
	ids, err := wire.DecodeRemove(pkt.Payload)
	require.NoError(t, err)
	require.Equal(t, []types.ObjectID{1}, ids)
	require.NoError(t, n.RemoveObject())
}

func TestDiscover(t *testing.T) {
	n := newTestNode(t, testConfig())
	require.NoError(t, n.PutObject(wall(1, 1)))
	require.NoError(t, n.Discover())
	pkt := nextPacket(t, n)
	require.Equal(t, types.PacketDiscovery, pkt.Type)
	d, err := wire.DecodeDiscovery(pkt.Payload)
	require.NoError(t, err)
	require.Equal(t, wire.Discovery{Mode: types.ModeDiscovering, Objects: 1}, d)
}

func TestMode(t *testing.T) {
	n := newTestNode(t, testConfig())
	require.Equal(t, types.ModeDiscovering, n.Mode())
	for i := range 10 {
		n.HandleFrame(liveFrame(t, wire.Header{Source: 2, Destination: types.BroadcastID, Sequence: uint16(i)}, wall(1, 1)), 0)
	}
	require.Equal(t, types.ModeSynchronizing, n.Mode())
	for i := range 90 {
		n.HandleFrame([]byte{byte(i)}, 0)
	}
	require.Equal(t, types.ModeContributing, n.Mode())
}

func TestSnapshotRestore(t *testing.T) {
	n := newTestNode(t, testConfig())
	require.NoError(t, n.PutObject(wall(1, 1)))
	require.NoError(t, n.PutObject(wall(2, 5000)))
	_, err := n.PutDetail(types.DetailChunk{Object: 1, Category: types.CategoryBasic, Chunk: 4, Data: make([]byte, 26)})
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, snapshot.Write(fs, "/node.snap", n.Snapshot()))
	snap, err := snapshot.Read(fs, "/node.snap")
	require.NoError(t, err)

	restored := newTestNode(t, testConfig())
	require.NoError(t, restored.Restore(snap))
	require.Equal(t, n.Objects().All(), restored.Objects().All())
	require.Equal(t, 2, restored.Spatial().Len())
	require.Equal(t, types.RenderPresence, restored.Detail().Level(1))

	other := testConfig()
	other.ID = 2
	require.Error(t, newTestNode(t, other).Restore(snap))
}
