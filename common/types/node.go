package types

import (
	"fmt"
	"strconv"

	"go.uber.org/zap/zapcore"
)

// NodeID identifies a mesh node.
type NodeID uint16

const (
	// EmptyNodeID is reserved and never assigned to a node.
	EmptyNodeID NodeID = 0x0000
	// BroadcastID addresses every node in range.
	BroadcastID NodeID = 0xFFFF
)

func (id NodeID) String() string {
	if id == BroadcastID {
		return "broadcast"
	}
	return "0x" + strconv.FormatUint(uint64(id), 16)
}

// IsBroadcast returns true if id is the broadcast address.
func (id NodeID) IsBroadcast() bool { return id == BroadcastID }

// Valid returns false for the reserved and broadcast ids.
func (id NodeID) Valid() bool { return id != EmptyNodeID && id != BroadcastID }

// PacketID identifies a packet for deduplication.
type PacketID struct {
	Source   NodeID
	Sequence uint16
}

func (id PacketID) String() string {
	return fmt.Sprintf("%s/%d", id.Source, id.Sequence)
}

// MarshalLogObject implements logging encoder for PacketID.
func (id PacketID) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("source", id.Source.String())
	encoder.AddUint16("seq", id.Sequence)
	return nil
}

// PacketType selects how a packet payload is interpreted.
type PacketType uint8

const (
	PacketLiveUpdate PacketType = iota + 1
	PacketDetailChunk
	PacketDiscovery
	PacketDiscoveryResponse
	PacketObjectRemove
)

// Known returns true if t is a packet type this protocol version understands.
func (t PacketType) Known() bool {
	return t >= PacketLiveUpdate && t <= PacketObjectRemove
}

func (t PacketType) String() string {
	switch t {
	case PacketLiveUpdate:
		return "live-update"
	case PacketDetailChunk:
		return "detail-chunk"
	case PacketDiscovery:
		return "discovery"
	case PacketDiscoveryResponse:
		return "discovery-response"
	case PacketObjectRemove:
		return "object-remove"
	}
	return fmt.Sprintf("packet(%d)", uint8(t))
}

// NodeMode is a reporting-only classification of node progress.
type NodeMode uint8

const (
	ModeDiscovering NodeMode = iota
	ModeSynchronizing
	ModeContributing
)

const (
	synchronizingThreshold = 10
	contributingThreshold  = 100
)

// ModeFor derives the mode from the cumulative number of received packets.
// The result never decreases as received grows.
func ModeFor(received uint64) NodeMode {
	switch {
	case received >= contributingThreshold:
		return ModeContributing
	case received >= synchronizingThreshold:
		return ModeSynchronizing
	}
	return ModeDiscovering
}

func (m NodeMode) String() string {
	switch m {
	case ModeDiscovering:
		return "discovering"
	case ModeSynchronizing:
		return "synchronizing"
	case ModeContributing:
		return "contributing"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}
