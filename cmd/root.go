package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfg "github.com/meshsync/go-meshsync/config"
	"github.com/meshsync/go-meshsync/config/presets"
)

var config = cfg.DefaultConfig()

// AddCommands adds cobra commands to the app.
func AddCommands(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("preset", "p", "",
		fmt.Sprintf("preset overwrites default values of the config. options %+s", presets.Options()))

	/** ======================== BaseConfig Flags ========================== **/
	cmd.PersistentFlags().StringVarP(&config.BaseConfig.ConfigFile,
		"config", "c", "", "Load configuration from file")
	cmd.PersistentFlags().BoolVar(&config.CollectMetrics, "metrics",
		config.CollectMetrics, "collect node metrics")
	cmd.PersistentFlags().IntVar(&config.MetricsPort, "metrics-port",
		config.MetricsPort, "metric server port")
	cmd.PersistentFlags().StringVar(&config.MetricsPush, "metrics-push",
		config.MetricsPush, "Push metrics to url")
	cmd.PersistentFlags().DurationVar(&config.MetricsPushPeriod, "metrics-push-period",
		config.MetricsPushPeriod, "Push period")
	cmd.PersistentFlags().StringVar(&config.FileLock, "filelock",
		config.FileLock, "Filesystem lock to prevent running more than one instance")
	cmd.PersistentFlags().StringVar(&config.LOGGING.Encoder, "log-encoder",
		config.LOGGING.Encoder, "Log as JSON instead of plain text")

	/** ======================== Node Flags ========================== **/
	cmd.PersistentFlags().Uint16Var(&config.Node.ID, "id",
		config.Node.ID, "node id, 0x0000 and 0xffff are reserved")
	cmd.PersistentFlags().StringVar(&config.Node.Endpoint, "endpoint",
		config.Node.Endpoint, "udp listen address, serial device or tcp://host:port of a radio modem")
	cmd.PersistentFlags().IntVar(&config.Node.ObjectCapacity, "object-capacity",
		config.Node.ObjectCapacity, "max number of live objects")
	cmd.PersistentFlags().IntVar(&config.Node.DedupCapacity, "dedup-capacity",
		config.Node.DedupCapacity, "number of recent packet ids remembered")
	cmd.PersistentFlags().BoolVar(&config.Node.RelayBroadcast, "relay-broadcast",
		config.Node.RelayBroadcast, "relay broadcast updates one more hop")
	cmd.PersistentFlags().Float64Var(&config.Node.BroadcastRate, "broadcast-rate",
		config.Node.BroadcastRate, "frames per second, 0 is unlimited")
	cmd.PersistentFlags().IntVar(&config.Node.BroadcastBurst, "broadcast-burst",
		config.Node.BroadcastBurst, "frames that may be sent back to back")
	cmd.PersistentFlags().DurationVar(&config.Node.DiscoveryInterval, "discovery-interval",
		config.Node.DiscoveryInterval, "period of discovery beacons, 0 disables them")
	cmd.PersistentFlags().StringVar(&config.Node.SpatialIndex, "spatial-index",
		config.Node.SpatialIndex, "spatial index implementation (grid, linear)")
	cmd.PersistentFlags().Float64Var(&config.Node.CellSize, "cell-size",
		config.Node.CellSize, "grid cell size in millimeters")
	cmd.PersistentFlags().StringVar(&config.Node.SnapshotPath, "snapshot-path",
		config.Node.SnapshotPath, "persist objects and detail summaries to this file")
	cmd.PersistentFlags().DurationVar(&config.Node.SnapshotInterval, "snapshot-interval",
		config.Node.SnapshotInterval, "period of snapshots")

	/**======================== Detail Flags ========================== **/
	cmd.PersistentFlags().DurationVar(&config.Node.Detail.MaxChunkAge, "max-chunk-age",
		config.Node.Detail.MaxChunkAge, "raw chunks older than this are pruned")
	cmd.PersistentFlags().DurationVar(&config.Node.Detail.MaintenanceInterval, "maintenance-interval",
		config.Node.Detail.MaintenanceInterval, "period of pruning and rebroadcast, 0 disables it")

	/**======================== Scheduler Flags ========================== **/
	cmd.PersistentFlags().IntVar(&config.Node.Scheduler.LiveEvery, "live-every",
		config.Node.Scheduler.LiveEvery, "every n-th broadcast opportunity carries a live update")

	/** ======================== Transport Flags ========================== **/
	cmd.PersistentFlags().StringVar(&config.Transport.Kind, "transport",
		config.Transport.Kind, "transport kind (udp, stream)")
	cmd.PersistentFlags().StringSliceVar(&config.Transport.Peers, "peers",
		config.Transport.Peers, "udp destinations of sent frames")
	cmd.PersistentFlags().IntVar(&config.Transport.BufferSize, "buffer-size",
		config.Transport.BufferSize, "received frames buffered before they are processed")

	// Bind Flags to config
	err := viper.BindPFlags(cmd.PersistentFlags())
	if err != nil {
		fmt.Println("an error has occurred while binding flags:", err)
	}
}
