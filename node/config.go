package node

import (
	"time"

	"github.com/meshsync/go-meshsync/dedup"
	"github.com/meshsync/go-meshsync/detail"
	"github.com/meshsync/go-meshsync/objects"
	"github.com/meshsync/go-meshsync/routing"
	"github.com/meshsync/go-meshsync/scheduler"
	"github.com/meshsync/go-meshsync/spatial"
)

type Config struct {
	// ID of this node. 0x0000 and 0xFFFF are reserved.
	ID uint16 `mapstructure:"id"`
	// Endpoint is passed to Transport.Connect.
	Endpoint string `mapstructure:"endpoint"`

	ObjectCapacity   int `mapstructure:"object-capacity"`
	DedupCapacity    int `mapstructure:"dedup-capacity"`
	NeighborCapacity int `mapstructure:"neighbor-capacity"`
	RouteCapacity    int `mapstructure:"route-capacity"`
	// RelayQueueSize bounds frames waiting to be forwarded.
	RelayQueueSize int `mapstructure:"relay-queue-size"`

	// RelayBroadcast floods broadcast live updates, detail chunks and removals
	// one more hop after applying them.
	RelayBroadcast bool `mapstructure:"relay-broadcast"`

	// BroadcastRate is the number of frames per second the node transmits.
	BroadcastRate float64 `mapstructure:"broadcast-rate"`
	// BroadcastBurst is the number of frames that may be sent back to back.
	BroadcastBurst int `mapstructure:"broadcast-burst"`
	// IdleInterval is how long the broadcast loop waits when there is nothing to send.
	IdleInterval time.Duration `mapstructure:"idle-interval"`
	// DiscoveryInterval is the period of discovery beacons. Zero disables them.
	DiscoveryInterval time.Duration `mapstructure:"discovery-interval"`
	// ReceiveTimeout bounds a single Transport.Receive call.
	ReceiveTimeout time.Duration `mapstructure:"receive-timeout"`
	// ReconnectBackoff is the first delay after a failed connect. It doubles
	// up to MaxReconnectBackoff. Failed receives wait this long too.
	ReconnectBackoff    time.Duration `mapstructure:"reconnect-backoff"`
	MaxReconnectBackoff time.Duration `mapstructure:"max-reconnect-backoff"`

	// SpatialIndex is either "grid" or "linear".
	SpatialIndex string `mapstructure:"spatial-index"`
	// CellSize of the grid index in millimeters.
	CellSize float64 `mapstructure:"cell-size"`

	// SnapshotPath enables periodic snapshots when set.
	SnapshotPath     string        `mapstructure:"snapshot-path"`
	SnapshotInterval time.Duration `mapstructure:"snapshot-interval"`

	Detail    detail.Config    `mapstructure:"detail"`
	Scheduler scheduler.Config `mapstructure:"scheduler"`
}

func DefaultConfig() Config {
	return Config{
		ID:                  1,
		Endpoint:            "node-1",
		ObjectCapacity:      objects.DefaultCapacity,
		DedupCapacity:       dedup.DefaultCapacity,
		NeighborCapacity:    routing.DefaultNeighborCapacity,
		RouteCapacity:       routing.DefaultRouteCapacity,
		RelayQueueSize:      64,
		RelayBroadcast:      true,
		BroadcastRate:       10,
		BroadcastBurst:      1,
		IdleInterval:        100 * time.Millisecond,
		DiscoveryInterval:   30 * time.Second,
		ReceiveTimeout:      time.Second,
		ReconnectBackoff:    time.Second,
		MaxReconnectBackoff: time.Minute,
		SpatialIndex:        "grid",
		CellSize:            spatial.DefaultCellSize,
		SnapshotInterval:    time.Minute,
		Detail:              detail.DefaultConfig(),
		Scheduler:           scheduler.DefaultConfig(),
	}
}
