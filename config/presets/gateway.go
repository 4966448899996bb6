package presets

import (
	"time"

	"github.com/meshsync/go-meshsync/config"
)

func init() {
	register("gateway", gateway())
}

// gateway is a mains powered node bridging a building to the network.
func gateway() config.Config {
	conf := config.DefaultConfig()

	conf.CollectMetrics = true
	conf.MetricsPushPeriod = 30 * time.Second

	conf.Transport.Kind = config.TransportUDP
	conf.Transport.BufferSize = 1024
	conf.Node.Endpoint = "0.0.0.0:7400"

	conf.Node.ObjectCapacity = 1 << 15
	conf.Node.DedupCapacity = 4096
	conf.Node.NeighborCapacity = 256
	conf.Node.RouteCapacity = 1024
	conf.Node.RelayQueueSize = 512
	conf.Node.BroadcastRate = 50
	conf.Node.BroadcastBurst = 5

	conf.FileLock = "meshsync/LOCK"
	conf.Node.SnapshotPath = "meshsync/node.snap"
	conf.Node.SnapshotInterval = 5 * time.Minute

	conf.Node.Detail.MaxObjects = 1 << 15
	conf.Node.Detail.MaxChunkAge = 7 * 24 * time.Hour
	conf.Node.Scheduler.QueueSize = 8192

	conf.LOGGING.Encoder = config.JSONLogEncoder
	return conf
}
