// sim runs a group of nodes over an in-memory radio and prints how they converged.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meshsync/go-meshsync/config"
	"github.com/meshsync/go-meshsync/config/presets"
	"github.com/meshsync/go-meshsync/log"
	"github.com/meshsync/go-meshsync/sim"
)

var simConfig = sim.DefaultConfig()

var logLevel string

func AddCommands(cmd *cobra.Command) {
	cmd.PersistentFlags().IntVarP(&simConfig.Nodes, "nodes", "n",
		simConfig.Nodes, "number of nodes")
	cmd.PersistentFlags().StringVarP(&simConfig.Topology, "topology", "t",
		simConfig.Topology, "how nodes hear each other (chain, grid, full)")
	cmd.PersistentFlags().IntVar(&simConfig.Sources, "sources",
		simConfig.Sources, "number of nodes producing objects")
	cmd.PersistentFlags().IntVarP(&simConfig.Objects, "objects", "o",
		simConfig.Objects, "number of objects")
	cmd.PersistentFlags().IntVar(&simConfig.Chunks, "chunks",
		simConfig.Chunks, "detail chunks per object")
	cmd.PersistentFlags().Float64Var(&simConfig.Loss, "loss",
		simConfig.Loss, "probability a frame is lost on a link")
	cmd.PersistentFlags().Uint64Var(&simConfig.Seed, "seed",
		simConfig.Seed, "seed of generated objects and link losses")
	cmd.PersistentFlags().DurationVar(&simConfig.Timeout, "timeout",
		simConfig.Timeout, "give up after this long")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level",
		"info", "simulation log level")
}

// Cmd is the simulator command.
var Cmd = &cobra.Command{
	Use:   "sim",
	Short: "simulate a mesh of nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		preset, err := presets.Get("sim")
		if err != nil {
			return err
		}
		cfg := simConfig
		cfg.Node = preset.Node
		level, err := zap.ParseAtomicLevel(logLevel)
		if err != nil {
			return err
		}
		encoder, err := log.NewEncoder(config.ConsoleLogEncoder)
		if err != nil {
			return err
		}
		logger := log.NewWithLevel(config.SimLogger, level, encoder)
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		rst, err := sim.Run(ctx, logger, cfg)
		if err != nil {
			return err
		}
		return report(cmd, rst)
	},
}

func report(cmd *cobra.Command, rst *sim.Result) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "converged: %v in %v, delivered %d, lost %d, overflowed %d\n",
		rst.Converged, rst.Elapsed, rst.Delivered, rst.Lost, rst.Overflowed)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "node\tobjects\trenderable\tneighbors\troutes\tsent\treceived\tapplied\trelayed\tflooded\tduplicates\tdropped")
	for _, n := range rst.Nodes {
		s := n.Stats
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			n.ID, n.Objects, n.Renderable, n.Neighbors, n.Routes,
			s.Sent, s.Received, s.Applied, s.Relayed, s.Flooded, s.Duplicates, s.Dropped)
	}
	return w.Flush()
}

func init() {
	AddCommands(Cmd)
}

func main() {
	if err := Cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
