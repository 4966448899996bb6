package presets

import (
	"time"

	"github.com/meshsync/go-meshsync/config"
)

func init() {
	register("sim", sim())
}

func sim() config.Config {
	conf := config.DefaultConfig()

	conf.Transport.Kind = config.TransportLoopback
	conf.Transport.Peers = nil

	conf.Node.BroadcastRate = 200
	conf.Node.BroadcastBurst = 4
	conf.Node.IdleInterval = 10 * time.Millisecond
	conf.Node.DiscoveryInterval = 500 * time.Millisecond
	conf.Node.ReceiveTimeout = 50 * time.Millisecond
	conf.Node.ReconnectBackoff = 10 * time.Millisecond
	conf.Node.MaxReconnectBackoff = time.Second
	conf.Node.Detail.MaintenanceInterval = 5 * time.Second

	conf.LOGGING.NodeLoggerLevel = "warn"
	return conf
}
