package node

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/meshsync/go-meshsync/detail"
	"github.com/meshsync/go-meshsync/snapshot"
	"github.com/meshsync/go-meshsync/transport"
)

// Run connects the transport and runs the node until ctx is canceled.
func (n *Node) Run(ctx context.Context) error {
	n.logger.Info("node started",
		zap.String("endpoint", n.cfg.Endpoint),
		zap.Float64("broadcast rate", n.cfg.BroadcastRate),
		zap.Bool("relay broadcast", n.cfg.RelayBroadcast),
	)
	defer n.logger.Info("node stopped")
	if !n.transport.IsConnected() {
		if err := n.connect(ctx); err != nil {
			return nil
		}
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return n.receiveLoop(ctx)
	})
	eg.Go(func() error {
		return n.broadcastLoop(ctx)
	})
	if n.cfg.DiscoveryInterval > 0 {
		eg.Go(func() error {
			return n.discoveryLoop(ctx)
		})
	}
	if n.cfg.Detail.MaintenanceInterval > 0 {
		eg.Go(func() error {
			m := detail.NewMaintainer(n.details, n.sched, n.logger.Named("maintenance"))
			detail.Run(ctx, m, n.clock, n.cfg.Detail.MaintenanceInterval)
			return nil
		})
	}
	if n.cfg.SnapshotPath != "" {
		eg.Go(func() error {
			snapshot.Run(ctx, n.logger.Named("snapshot"), n.fs, n.cfg.SnapshotPath, n.cfg.SnapshotInterval, n.clock, n)
			return nil
		})
	}
	err := eg.Wait()
	if derr := n.transport.Disconnect(); derr != nil {
		n.logger.Warn("failed to disconnect", zap.Error(derr))
	}
	return err
}

// connect retries with exponential backoff until it succeeds or ctx is done.
func (n *Node) connect(ctx context.Context) error {
	backoff := n.cfg.ReconnectBackoff
	for {
		err := n.transport.Connect(ctx, n.cfg.Endpoint)
		if err == nil {
			n.logger.Info("transport connected", zap.String("endpoint", n.cfg.Endpoint))
			return nil
		}
		n.logger.Warn("failed to connect transport",
			zap.String("endpoint", n.cfg.Endpoint),
			zap.Duration("retry in", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-n.clock.After(backoff):
		}
		backoff = min(2*backoff, n.cfg.MaxReconnectBackoff)
	}
}

func (n *Node) reconnect(ctx context.Context) error {
	if err := n.transport.Disconnect(); err != nil {
		n.logger.Debug("disconnect before reconnect", zap.Error(err))
	}
	return n.connect(ctx)
}

func (n *Node) receiveLoop(ctx context.Context) error {
	rssi, _ := n.transport.(transport.RSSIReporter)
	for {
		if !n.transport.IsConnected() {
			if err := n.reconnect(ctx); err != nil {
				return nil
			}
		}
		frame, err := n.transport.Receive(ctx, n.cfg.ReceiveTimeout)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, transport.ErrClosed), errors.Is(err, transport.ErrNotConnected):
			n.logger.Warn("transport lost", zap.Error(err))
			if err := n.reconnect(ctx); err != nil {
				return nil
			}
			continue
		case err != nil:
			n.logger.Warn("receive failed", zap.Duration("retry in", n.cfg.ReconnectBackoff), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-n.clock.After(n.cfg.ReconnectBackoff):
			}
			continue
		case frame == nil:
			continue
		}
		var signal int16
		if rssi != nil {
			signal = rssi.LastRSSI()
		}
		n.HandleFrame(frame, signal)
	}
}

func (n *Node) broadcastLoop(ctx context.Context) error {
	limit := rate.Inf
	if n.cfg.BroadcastRate > 0 {
		limit = rate.Limit(n.cfg.BroadcastRate)
	}
	limiter := rate.NewLimiter(limit, max(1, n.cfg.BroadcastBurst))
	for {
		frame, ok := n.NextFrame()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-n.clock.After(n.cfg.IdleInterval):
			}
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		if err := n.transport.Send(ctx, frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			n.stats.sendErrors.inc()
			n.logger.Debug("send failed", zap.Error(err))
			continue
		}
		n.stats.sent.inc()
	}
}

func (n *Node) discoveryLoop(ctx context.Context) error {
	for {
		if err := n.Discover(); err != nil {
			n.logger.Debug("discovery not queued", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-n.clock.After(n.cfg.DiscoveryInterval):
		}
	}
}
