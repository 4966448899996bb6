package node

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"github.com/meshsync/go-meshsync/common/types"
	"github.com/meshsync/go-meshsync/transport/loopback"
	"github.com/meshsync/go-meshsync/transport/mocks"
)

func runNode(t *testing.T, n *Node) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- n.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errc)
	})
}

func TestChainConvergence(t *testing.T) {
	hub := loopback.NewHub(loopback.WithHubLogger(zaptest.NewLogger(t)))
	hub.Chain(loopback.DefaultLink, "n1", "n2", "n3")

	nodes := make([]*Node, 3)
	for i := range nodes {
		cfg := DefaultConfig()
		cfg.ID = uint16(i + 1)
		cfg.Endpoint = []string{"n1", "n2", "n3"}[i]
		cfg.BroadcastRate = 0
		cfg.IdleInterval = 5 * time.Millisecond
		cfg.DiscoveryInterval = 20 * time.Millisecond
		cfg.ReceiveTimeout = 20 * time.Millisecond
		cfg.Detail.MaintenanceInterval = 0
		n, err := New(cfg, loopback.New(hub), WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		nodes[i] = n
	}
	require.NoError(t, nodes[0].PutObject(wall(42, 1000)))
	_, err := nodes[0].PutDetail(types.DetailChunk{
		Object:   42,
		Category: types.CategoryBasic,
		Chunk:    1,
		Data:     make([]byte, 26),
	})
	require.NoError(t, err)
	for _, n := range nodes {
		runNode(t, n)
	}

	last := nodes[2]
	require.Eventually(t, func() bool {
		obj, ok := last.Objects().Get(42)
		return ok && obj == wall(42, 1000) && last.Detail().Level(42) == types.RenderPresence
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		route, ok := last.Routing().Lookup(1)
		return ok && route.NextHop == 2 && route.HopCount == 2
	}, 5*time.Second, 10*time.Millisecond)

	_, ok := last.Routing().Neighbor(1)
	require.False(t, ok)
	require.NotZero(t, nodes[1].Stats().Relayed)
	require.Equal(t, 1, last.Spatial().Len())
}

func TestRunReconnects(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	clock := clockwork.NewFakeClock()

	var connected atomic.Bool
	var attempts atomic.Int32
	tr.EXPECT().IsConnected().DoAndReturn(connected.Load).AnyTimes()
	tr.EXPECT().Connect(gomock.Any(), "node-1").DoAndReturn(func(context.Context, string) error {
		if attempts.Add(1) == 1 {
			return errors.New("device busy")
		}
		connected.Store(true)
		return nil
	}).Times(2)
	tr.EXPECT().Receive(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ time.Duration) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).AnyTimes()
	tr.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("tx failed")).MinTimes(1)
	tr.EXPECT().Disconnect().Return(nil)

	cfg := DefaultConfig()
	cfg.DiscoveryInterval = 0
	cfg.Detail.MaintenanceInterval = 0
	cfg.BroadcastRate = 1000
	n, err := New(cfg, tr, WithLogger(zaptest.NewLogger(t)), WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, n.PutObject(wall(1, 1)))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- n.Run(ctx) }()

	clock.BlockUntil(1)
	require.False(t, connected.Load())
	clock.Advance(cfg.ReconnectBackoff)
	require.Eventually(t, connected.Load, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		return n.Stats().SendErrors > 0
	}, time.Second, time.Millisecond)
	require.Zero(t, n.Stats().Sent)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(time.Second):
		require.FailNow(t, "run did not stop")
	}
}

func TestRunBacksOffOnReceiveErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	clock := clockwork.NewFakeClock()

	var receives atomic.Int32
	tr.EXPECT().IsConnected().Return(true).AnyTimes()
	tr.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	tr.EXPECT().Receive(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, time.Duration) ([]byte, error) {
			receives.Add(1)
			return nil, errors.New("crc mismatch")
		}).AnyTimes()
	tr.EXPECT().Disconnect().Return(nil)

	cfg := DefaultConfig()
	cfg.DiscoveryInterval = 0
	cfg.Detail.MaintenanceInterval = 0
	n, err := New(cfg, tr, WithLogger(zaptest.NewLogger(t)), WithClock(clock))
	require.NoError(t, err)
	runNode(t, n)

	require.Eventually(t, func() bool { return receives.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 1, receives.Load())

	clock.Advance(cfg.ReconnectBackoff)
	require.Eventually(t, func() bool { return receives.Load() == 2 }, time.Second, time.Millisecond)
}

func TestRunGivesUpOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	tr.EXPECT().IsConnected().Return(false)
	tr.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(errors.New("no device")).MinTimes(1)

	clock := clockwork.NewFakeClock()
	n, err := New(DefaultConfig(), tr, WithLogger(zaptest.NewLogger(t)), WithClock(clock))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- n.Run(ctx) }()
	clock.BlockUntil(1)
	cancel()
	require.NoError(t, <-errc)
}
