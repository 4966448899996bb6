package presets

import (
	"time"

	"github.com/meshsync/go-meshsync/config"
)

func init() {
	register("microcontroller", microcontroller())
}

// microcontroller mirrors the memory budget of a battery powered radio node.
func microcontroller() config.Config {
	conf := config.DefaultConfig()

	conf.Transport.Kind = config.TransportStream
	conf.Transport.Peers = nil
	conf.Transport.BufferSize = 16
	conf.Node.Endpoint = "/dev/ttyUSB0"

	conf.Node.ObjectCapacity = 512
	conf.Node.DedupCapacity = 128
	conf.Node.NeighborCapacity = 16
	conf.Node.RouteCapacity = 64
	conf.Node.RelayQueueSize = 8
	conf.Node.SpatialIndex = "linear"

	conf.Node.BroadcastRate = 1
	conf.Node.IdleInterval = time.Second
	conf.Node.DiscoveryInterval = 2 * time.Minute

	conf.Node.Detail.MaxObjects = 256
	conf.Node.Detail.MaxChunksPerObject = 16
	conf.Node.Detail.MaxChunkAge = 2 * time.Hour
	conf.Node.Scheduler.QueueSize = 64
	conf.Node.Scheduler.ControlQueueSize = 8

	conf.LOGGING.NodeLoggerLevel = "warn"
	return conf
}
