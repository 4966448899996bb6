package node

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/meshsync/go-meshsync/common/types"
	"github.com/meshsync/go-meshsync/detail"
	"github.com/meshsync/go-meshsync/objects"
	"github.com/meshsync/go-meshsync/routing"
	"github.com/meshsync/go-meshsync/scheduler"
	"github.com/meshsync/go-meshsync/wire"
)

// HandleFrame processes a received frame. rssi is the signal strength the
// transport measured for it, or zero if unknown.
//
// Frames addressed to this node or broadcast are applied to local state.
// Other frames are forwarded one more hop, along a known route if there is
// one and as broadcast otherwise. Frames heard before and frames that already
// traveled wire.MaxHops hops are dropped.
func (n *Node) HandleFrame(frame []byte, rssi int16) Outcome {
	n.stats.received.inc()
	pkt, err := wire.DecodePacket(frame)
	if err != nil {
		return n.malformed(err, frame)
	}
	if !pkt.Source.Valid() {
		return n.malformed(errors.New("invalid source"), frame)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	logger := n.logger.With(zap.Object("header", pkt.Header))
	if pkt.Source == n.self || n.dedup.Seen(pkt.ID()) {
		n.stats.duplicates.inc()
		n.stats.dropped.inc()
		return Duplicate
	}
	now := n.clock.Now()
	if pkt.HopCount == 0 {
		n.routing.ObserveNeighbor(pkt.Source, rssi, now)
	}

	if pkt.Destination != n.self && !pkt.Destination.IsBroadcast() {
		return n.forward(logger, frame, pkt.Header)
	}
	if err := n.apply(logger, pkt, now); err != nil {
		return n.malformed(err, frame)
	}
	n.stats.applied.inc()
	if pkt.Destination.IsBroadcast() && n.cfg.RelayBroadcast && relayable(pkt.Type) {
		n.relayBroadcast(logger, frame, pkt.Header)
	}
	return Applied
}

func relayable(t types.PacketType) bool {
	switch t {
	case types.PacketLiveUpdate, types.PacketDetailChunk, types.PacketObjectRemove:
		return true
	}
	return false
}

func (n *Node) malformed(err error, frame []byte) Outcome {
	n.stats.malformed.inc()
	n.stats.dropped.inc()
	n.logger.Debug("dropping malformed frame", zap.Int("size", len(frame)), zap.Error(err))
	return Malformed
}

func (n *Node) enqueueRelay(frame []byte) bool {
	select {
	case n.relay <- frame:
		return true
	default:
		return false
	}
}

func (n *Node) forward(logger *zap.Logger, frame []byte, h wire.Header) Outcome {
	if h.HopCount > wire.MaxHops {
		n.stats.hopLimit.inc()
		n.stats.dropped.inc()
		logger.Debug("hop limit exceeded")
		return HopLimitExceeded
	}
	h.HopCount++
	outcome := Routed
	if route, ok := n.routing.Lookup(h.Destination); ok {
		logger.Debug("forwarding", zap.Stringer("next hop", route.NextHop))
	} else {
		h.Destination = types.BroadcastID
		outcome = Flooded
	}
	out, err := wire.Rewrite(frame, h)
	if err != nil {
		return n.malformed(err, frame)
	}
	if !n.enqueueRelay(out) {
		n.stats.dropped.inc()
		logger.Debug("relay queue full")
		return Dropped
	}
	if outcome == Routed {
		n.stats.routed.inc()
	} else {
		n.stats.flooded.inc()
	}
	return outcome
}

func (n *Node) relayBroadcast(logger *zap.Logger, frame []byte, h wire.Header) {
	if h.HopCount > wire.MaxHops {
		n.stats.hopLimit.inc()
		return
	}
	h.HopCount++
	out, err := wire.Rewrite(frame, h)
	if err != nil {
		return
	}
	if !n.enqueueRelay(out) {
		n.stats.dropped.inc()
		logger.Debug("relay queue full")
		return
	}
	n.stats.relayed.inc()
}

func (n *Node) apply(logger *zap.Logger, pkt wire.Packet, now time.Time) error {
	switch pkt.Type {
	case types.PacketLiveUpdate:
		objs, err := wire.DecodeLiveUpdate(pkt.Payload)
		if err != nil {
			return err
		}
		for _, obj := range objs {
			n.applyObject(logger, obj)
		}
	case types.PacketDetailChunk:
		chunk, err := wire.DecodeDetailChunk(pkt.Payload)
		if err != nil {
			return err
		}
		n.applyChunk(logger, chunk, now)
	case types.PacketDiscovery:
		d, err := wire.DecodeDiscovery(pkt.Payload)
		if err != nil {
			return err
		}
		n.answerDiscovery(logger, pkt.Source, d)
	case types.PacketDiscoveryResponse:
		resp, err := wire.DecodeDiscoveryResponse(pkt.Payload)
		if err != nil {
			return err
		}
		n.learnRoutes(logger, pkt.Source, resp, now)
	case types.PacketObjectRemove:
		ids, err := wire.DecodeRemove(pkt.Payload)
		if err != nil {
			return err
		}
		for _, id := range ids {
			n.remove(id)
		}
	}
	return nil
}

func (n *Node) applyObject(logger *zap.Logger, obj types.BuildingObject) {
	change, err := n.objects.Put(obj)
	if errors.Is(err, objects.ErrFull) {
		n.stats.storeFull.inc()
		logger.Debug("object store full", zap.Stringer("object", obj.ID))
		return
	}
	if change == objects.Unchanged {
		return
	}
	n.index(obj)
	if change == objects.Created {
		// chunks may have arrived before the object itself
		n.sched.EnqueueObject(obj.ID)
	}
}

func (n *Node) applyChunk(logger *zap.Logger, chunk types.DetailChunk, now time.Time) {
	upd, err := n.details.Apply(chunk, now)
	if errors.Is(err, detail.ErrFull) {
		n.stats.storeFull.inc()
		logger.Debug("detail store full", zap.Object("chunk", &chunk))
		return
	}
	if err != nil || !upd.Fresh {
		return
	}
	if err := n.sched.EnqueueChunk(chunk.Object, chunk.Category, chunk.Chunk); err != nil {
		logger.Debug("chunk not queued", zap.Object("chunk", &chunk), zap.Error(err))
	}
}

func (n *Node) answerDiscovery(logger *zap.Logger, requester types.NodeID, d wire.Discovery) {
	logger.Debug("discovery",
		zap.Stringer("mode", d.Mode),
		zap.Uint16("objects", d.Objects),
	)
	routes := n.routing.Routes()
	entries := make([]wire.RouteEntry, 0, min(len(routes), wire.MaxRouteEntries))
	for _, r := range routes {
		if r.Destination == requester {
			continue
		}
		entries = append(entries, wire.RouteEntry{Node: r.Destination, Hops: r.HopCount})
		if len(entries) == wire.MaxRouteEntries {
			break
		}
	}
	payload, err := wire.EncodeDiscoveryResponse(wire.DiscoveryResponse{
		Mode:   types.ModeFor(n.stats.received.load()),
		Routes: entries,
	})
	if err != nil {
		logger.Error("failed to encode discovery response", zap.Error(err))
		return
	}
	if err := n.sched.EnqueueControl(scheduler.ControlMid, scheduler.Outgoing{
		Type:        types.PacketDiscoveryResponse,
		Destination: requester,
		Payload:     payload,
	}); err != nil {
		logger.Debug("discovery response not queued", zap.Error(err))
	}
}

func (n *Node) learnRoutes(logger *zap.Logger, responder types.NodeID, resp wire.DiscoveryResponse, now time.Time) {
	for _, e := range resp.Routes {
		// the responder itself is a neighbor, zero hops would claim it as one too
		if e.Node == n.self || e.Node == responder || e.Hops == 0 || e.Hops == ^uint8(0) {
			continue
		}
		if _, err := n.routing.Update(e.Node, responder, e.Hops+1, now); errors.Is(err, routing.ErrTableFull) {
			n.stats.storeFull.inc()
			logger.Debug("route table full", zap.Stringer("dest", e.Node))
		}
	}
}
