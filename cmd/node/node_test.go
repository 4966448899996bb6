package node

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/meshsync/go-meshsync/common/types"
	"github.com/meshsync/go-meshsync/config"
	"github.com/meshsync/go-meshsync/snapshot"
	"github.com/meshsync/go-meshsync/transport/udp"
)

func testConfig(id uint16) *config.Config {
	conf := config.DefaultConfig()
	conf.Node.ID = id
	conf.Node.Endpoint = "127.0.0.1:0"
	conf.Node.BroadcastRate = 0
	conf.Node.IdleInterval = 5 * time.Millisecond
	conf.Node.DiscoveryInterval = 0
	conf.Node.ReceiveTimeout = 20 * time.Millisecond
	conf.Transport.Peers = nil
	return &conf
}

func wall(id types.ObjectID) types.BuildingObject {
	return types.BuildingObject{ID: id, Type: types.ObjectWall, Position: types.Position{X: 10, Y: 20, Z: 30}}
}

func TestInitializeRestoresSnapshot(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, snapshot.Write(fs, "/node.snap", &snapshot.Snapshot{
		Version: snapshot.Version,
		Node:    1,
		Taken:   time.Unix(1000, 0),
		Objects: []types.BuildingObject{wall(1), wall(2)},
	}))
	conf := testConfig(1)
	conf.Node.SnapshotPath = "/node.snap"

	app := New(WithConfig(conf), WithLog(zaptest.NewLogger(t)), WithFs(fs))
	require.NoError(t, app.Initialize())
	t.Cleanup(app.Cleanup)
	require.Equal(t, 2, app.Node().Objects().Len())
	require.Equal(t, 2, app.Node().Spatial().Len())
}

func TestInitializeWithoutSnapshot(t *testing.T) {
	conf := testConfig(1)
	conf.Node.SnapshotPath = "/missing.snap"
	app := New(WithConfig(conf), WithLog(zaptest.NewLogger(t)), WithFs(afero.NewMemMapFs()))
	require.NoError(t, app.Initialize())
	t.Cleanup(app.Cleanup)
	require.Zero(t, app.Node().Objects().Len())
}

func TestInitializeIgnoresBrokenSnapshot(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/node.snap", []byte{0xff, 0xff, 0xff}, 0o600))
	conf := testConfig(1)
	conf.Node.SnapshotPath = "/node.snap"
	app := New(WithConfig(conf), WithLog(zaptest.NewLogger(t)), WithFs(fs))
	require.NoError(t, app.Initialize())
	t.Cleanup(app.Cleanup)
	require.Zero(t, app.Node().Objects().Len())
}

func TestInitializeForeignSnapshot(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, snapshot.Write(fs, "/node.snap", &snapshot.Snapshot{Version: snapshot.Version, Node: 5}))
	conf := testConfig(1)
	conf.Node.SnapshotPath = "/node.snap"
	app := New(WithConfig(conf), WithLog(zaptest.NewLogger(t)), WithFs(fs))
	require.Error(t, app.Initialize())
}

func TestInitializeTransport(t *testing.T) {
	conf := testConfig(1)
	conf.Transport.Kind = config.TransportLoopback
	require.ErrorContains(t, New(WithConfig(conf)).Initialize(), "only available in simulations")

	conf.Transport.Kind = "lora"
	require.ErrorContains(t, New(WithConfig(conf)).Initialize(), `unknown transport "lora"`)

	for _, kind := range []string{config.TransportUDP, config.TransportStream} {
		conf.Transport.Kind = kind
		app := New(WithConfig(conf))
		require.NoError(t, app.Initialize())
		app.Cleanup()
	}
}

func TestStartOverUDP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transports := []*udp.Transport{
		udp.New(udp.WithLogger(zaptest.NewLogger(t))),
		udp.New(udp.WithLogger(zaptest.NewLogger(t))),
	}
	for _, tr := range transports {
		require.NoError(t, tr.Connect(ctx, "127.0.0.1:0"))
	}
	require.NoError(t, transports[0].AddPeer(transports[1].LocalAddr().String()))
	require.NoError(t, transports[1].AddPeer(transports[0].LocalAddr().String()))

	apps := make([]*App, len(transports))
	errc := make(chan error, len(apps))
	for i, tr := range transports {
		app := New(
			WithConfig(testConfig(uint16(i+1))),
			WithLog(zaptest.NewLogger(t)),
			WithFs(afero.NewMemMapFs()),
			WithTransport(tr),
		)
		require.NoError(t, app.Initialize())
		apps[i] = app
	}
	require.NoError(t, apps[0].Node().PutObject(wall(77)))
	for _, app := range apps {
		go func() { errc <- app.Start(ctx) }()
	}

	require.Eventually(t, func() bool {
		obj, ok := apps[1].Node().Objects().Get(77)
		return ok && obj == wall(77)
	}, 5*time.Second, 10*time.Millisecond)
	_, ok := apps[1].Node().Routing().Neighbor(1)
	require.True(t, ok)

	cancel()
	for range apps {
		require.NoError(t, <-errc)
	}
	for _, app := range apps {
		app.Cleanup()
	}
}

func TestLock(t *testing.T) {
	conf := testConfig(1)
	conf.FileLock = filepath.Join(t.TempDir(), "data", "LOCK")

	first := New(WithConfig(conf), WithLog(zaptest.NewLogger(t)))
	require.NoError(t, first.Lock())
	t.Cleanup(first.Unlock)

	second := New(WithConfig(conf), WithLog(zaptest.NewLogger(t)))
	require.ErrorContains(t, second.Lock(), "only one node should be running")

	first.Unlock()
	require.NoError(t, second.Lock())
	second.Unlock()
}

func TestLockDisabled(t *testing.T) {
	app := New(WithConfig(testConfig(1)), WithLog(zaptest.NewLogger(t)))
	require.NoError(t, app.Lock())
	app.Unlock()
}
