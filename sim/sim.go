// Package sim runs a group of nodes over an in-memory radio hub and reports
// how long the group takes to agree on a generated building.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meshsync/go-meshsync/common/types"
	"github.com/meshsync/go-meshsync/node"
	"github.com/meshsync/go-meshsync/transport/loopback"
)

// Topologies.
const (
	Chain = "chain"
	Grid  = "grid"
	Full  = "full"
)

const linkRSSI = -70

// Config of a simulation run.
type Config struct {
	Nodes    int    `mapstructure:"nodes"`
	Topology string `mapstructure:"topology"`
	// Sources is the number of nodes that produce objects.
	Sources int `mapstructure:"sources"`
	Objects int `mapstructure:"objects"`
	// Chunks is the number of detail chunks produced per object.
	Chunks int `mapstructure:"chunks"`
	// Loss is the probability a frame is not heard on a link.
	Loss    float64       `mapstructure:"loss"`
	Seed    uint64        `mapstructure:"seed"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Poll is how often convergence is checked.
	Poll time.Duration `mapstructure:"poll"`

	Node node.Config `mapstructure:"node"`
}

func DefaultConfig() Config {
	return Config{
		Nodes:    5,
		Topology: Chain,
		Sources:  1,
		Objects:  20,
		Chunks:   2,
		Seed:     1,
		Timeout:  time.Minute,
		Poll:     50 * time.Millisecond,
		Node:     node.DefaultConfig(),
	}
}

func (c Config) validate() error {
	if c.Nodes < 1 || c.Nodes >= int(types.BroadcastID) {
		return fmt.Errorf("invalid number of nodes %d", c.Nodes)
	}
	switch c.Topology {
	case Chain, Grid, Full:
	default:
		return fmt.Errorf("unknown topology %q", c.Topology)
	}
	if c.Sources < 1 || c.Sources > c.Nodes {
		return fmt.Errorf("sources must be in [1, %d], got %d", c.Nodes, c.Sources)
	}
	if c.Objects < 0 || c.Objects > math.MaxUint16 || c.Objects > c.Node.ObjectCapacity {
		return fmt.Errorf("invalid number of objects %d", c.Objects)
	}
	if c.Loss < 0 || c.Loss >= 1 {
		return fmt.Errorf("loss must be in [0, 1), got %v", c.Loss)
	}
	return nil
}

// NodeResult is the state of one node when the run ended.
type NodeResult struct {
	ID         types.NodeID
	Objects    int
	Renderable int
	Neighbors  int
	Routes     int
	Stats      node.Stats
}

// Result of a simulation run.
type Result struct {
	Converged bool
	Elapsed   time.Duration
	Delivered uint64
	// Lost frames were dropped by link loss.
	Lost uint64
	// Overflowed frames were dropped by a full receiver queue.
	Overflowed uint64
	Nodes      []NodeResult
}

// Run builds the topology, seeds objects on the source nodes and runs every
// node until each holds all objects at presence level or the timeout expires.
func Run(ctx context.Context, logger *zap.Logger, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	opts := []loopback.HubOpt{loopback.WithSeed(cfg.Seed), loopback.WithHubLogger(logger.Named("hub"))}
	if cfg.Topology == Full {
		opts = append(opts, loopback.FullyConnected())
	}
	hub := loopback.NewHub(opts...)
	names := make([]string, cfg.Nodes)
	for i := range names {
		names[i] = fmt.Sprintf("n%d", i+1)
	}
	link := loopback.Link{Loss: cfg.Loss, RSSI: linkRSSI}
	switch cfg.Topology {
	case Chain:
		hub.Chain(link, names...)
	case Grid:
		side := int(math.Ceil(math.Sqrt(float64(cfg.Nodes))))
		for i := range names {
			if (i+1)%side != 0 && i+1 < len(names) {
				hub.Link(names[i], names[i+1], link)
			}
			if i+side < len(names) {
				hub.Link(names[i], names[i+side], link)
			}
		}
	case Full:
		if cfg.Loss > 0 {
			for i := range names {
				for j := i + 1; j < len(names); j++ {
					hub.Link(names[i], names[j], link)
				}
			}
		}
	}

	nodes := make([]*node.Node, cfg.Nodes)
	for i := range nodes {
		nc := cfg.Node
		nc.ID = uint16(i + 1)
		nc.Endpoint = names[i]
		nc.SnapshotPath = ""
		n, err := node.New(nc,
			loopback.New(hub, loopback.WithLogger(logger.Named("transport").With(zap.String("port", names[i])))),
			node.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create node %s: %w", names[i], err)
		}
		defer n.Close()
		nodes[i] = n
	}
	if err := seed(nodes[:cfg.Sources], cfg); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, egCtx := errgroup.WithContext(runCtx)
	for _, n := range nodes {
		eg.Go(func() error {
			return n.Run(egCtx)
		})
	}

	start := time.Now()
	logger.Info("simulation started",
		zap.Int("nodes", cfg.Nodes),
		zap.String("topology", cfg.Topology),
		zap.Int("objects", cfg.Objects),
		zap.Float64("loss", cfg.Loss),
	)
	converged, err := wait(egCtx, nodes, cfg)
	elapsed := time.Since(start)
	cancel()
	if werr := eg.Wait(); werr != nil {
		return nil, werr
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	rst := &Result{
		Converged:  converged,
		Elapsed:    elapsed,
		Delivered:  hub.Delivered(),
		Lost:       hub.Lost(),
		Overflowed: hub.Overflowed(),
	}
	for _, n := range nodes {
		rst.Nodes = append(rst.Nodes, NodeResult{
			ID:         n.ID(),
			Objects:    n.Objects().Len(),
			Renderable: renderable(n),
			Neighbors:  len(n.Routing().Neighbors()),
			Routes:     n.Routing().Len(),
			Stats:      n.Stats(),
		})
	}
	logger.Info("simulation finished", zap.Bool("converged", converged), zap.Duration("elapsed", elapsed))
	return rst, nil
}

func seed(sources []*node.Node, cfg Config) error {
	rng := rand.New(rand.NewPCG(cfg.Seed, ^cfg.Seed))
	for i := range cfg.Objects {
		src := sources[i%len(sources)]
		obj := types.BuildingObject{
			ID:   types.ObjectID(i + 1),
			Type: types.ObjectType(1 + rng.IntN(int(types.ObjectCable))),
			Position: types.Position{
				X: uint16(rng.IntN(math.MaxUint16 + 1)),
				Y: uint16(rng.IntN(math.MaxUint16 + 1)),
				Z: uint16(rng.IntN(10)) * 3000,
			},
		}
		props := rng.Uint32()
		obj.Properties = types.Properties{byte(props >> 24), byte(props >> 16), byte(props >> 8), byte(props)}
		if err := src.PutObject(obj); err != nil {
			return fmt.Errorf("seed object %s: %w", obj.ID, err)
		}
		for c := range cfg.Chunks {
			data := make([]byte, 16+rng.IntN(48))
			for j := range data {
				data[j] = byte(rng.Uint32())
			}
			chunk := types.DetailChunk{
				Object:   obj.ID,
				Chunk:    types.ChunkID(c + 1),
				Category: types.DetailCategory(c % types.CategoryCount),
				Data:     data,
			}
			if _, err := src.PutDetail(chunk); err != nil {
				return fmt.Errorf("seed chunk %d of %s: %w", c, obj.ID, err)
			}
		}
	}
	return nil
}

func renderable(n *node.Node) int {
	count := 0
	for _, obj := range n.Objects().All() {
		if n.Detail().Renderable(obj.ID, types.RenderPresence) {
			count++
		}
	}
	return count
}

func converged(nodes []*node.Node, cfg Config) bool {
	for _, n := range nodes {
		if n.Objects().Len() != cfg.Objects {
			return false
		}
		if cfg.Chunks > 0 && renderable(n) != cfg.Objects {
			return false
		}
	}
	return true
}

func wait(ctx context.Context, nodes []*node.Node, cfg Config) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()
	for {
		if converged(nodes, cfg) {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}
