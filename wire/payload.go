package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/meshsync/go-meshsync/common/types"
)

const (
	// MaxObjectsPerPacket is the number of objects a live-update can carry.
	MaxObjectsPerPacket = MaxPayloadSize / ObjectSize

	chunkHeaderSize = 5
	// MaxChunkData is the largest detail payload that fits a frame.
	MaxChunkData = MaxPayloadSize - chunkHeaderSize

	routeEntrySize = 3
	// MaxRouteEntries is the number of routes a discovery-response can advertise.
	MaxRouteEntries = (MaxPayloadSize - 1) / routeEntrySize

	// MaxRemovals is the number of object ids an object-remove can carry.
	MaxRemovals = MaxPayloadSize / 2

	discoverySize = 3
)

// EncodeLiveUpdate packs objects into a live-update payload.
func EncodeLiveUpdate(objects []types.BuildingObject) ([]byte, error) {
	if len(objects) == 0 || len(objects) > MaxObjectsPerPacket {
		return nil, fmt.Errorf("%w: live update with %d objects", ErrCodec, len(objects))
	}
	buf := make([]byte, 0, len(objects)*ObjectSize)
	for _, o := range objects {
		buf = AppendObject(buf, o)
	}
	return buf, nil
}

// DecodeLiveUpdate unpacks a live-update payload.
func DecodeLiveUpdate(payload []byte) ([]types.BuildingObject, error) {
	if len(payload) == 0 || len(payload)%ObjectSize != 0 {
		return nil, fmt.Errorf("%w: live update payload of %d bytes", ErrCodec, len(payload))
	}
	objects := make([]types.BuildingObject, 0, len(payload)/ObjectSize)
	for off := 0; off < len(payload); off += ObjectSize {
		o, err := DecodeObject(payload[off : off+ObjectSize])
		if err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}
	return objects, nil
}

// EncodeDetailChunk packs a detail chunk payload.
func EncodeDetailChunk(c types.DetailChunk) ([]byte, error) {
	if len(c.Data) > MaxChunkData {
		return nil, fmt.Errorf("%w: chunk data %d bytes exceeds %d", ErrCodec, len(c.Data), MaxChunkData)
	}
	if !c.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown chunk type %d", ErrCodec, c.Category)
	}
	buf := make([]byte, chunkHeaderSize+len(c.Data))
	binary.BigEndian.PutUint16(buf[0:2], uint16(c.Object))
	binary.BigEndian.PutUint16(buf[2:4], uint16(c.Chunk))
	buf[4] = byte(c.Category)
	copy(buf[chunkHeaderSize:], c.Data)
	return buf, nil
}

// DecodeDetailChunk unpacks a detail chunk payload.
func DecodeDetailChunk(payload []byte) (types.DetailChunk, error) {
	if len(payload) < chunkHeaderSize {
		return types.DetailChunk{}, fmt.Errorf("%w: truncated chunk of %d bytes", ErrCodec, len(payload))
	}
	c := types.DetailChunk{
		Object:   types.ObjectID(binary.BigEndian.Uint16(payload[0:2])),
		Chunk:    types.ChunkID(binary.BigEndian.Uint16(payload[2:4])),
		Category: types.DetailCategory(payload[4]),
	}
	if !c.Category.Valid() {
		return types.DetailChunk{}, fmt.Errorf("%w: unknown chunk type %d", ErrCodec, c.Category)
	}
	c.Data = make([]byte, len(payload)-chunkHeaderSize)
	copy(c.Data, payload[chunkHeaderSize:])
	return c, nil
}

// Discovery is the advertisement a node broadcasts to find neighbors.
type Discovery struct {
	Mode    types.NodeMode
	Objects uint16
}

// EncodeDiscovery packs a discovery payload.
func EncodeDiscovery(d Discovery) []byte {
	buf := make([]byte, discoverySize)
	buf[0] = byte(d.Mode)
	binary.BigEndian.PutUint16(buf[1:3], d.Objects)
	return buf
}

// DecodeDiscovery unpacks a discovery payload.
func DecodeDiscovery(payload []byte) (Discovery, error) {
	if len(payload) != discoverySize {
		return Discovery{}, fmt.Errorf("%w: discovery payload of %d bytes", ErrCodec, len(payload))
	}
	return Discovery{
		Mode:    types.NodeMode(payload[0]),
		Objects: binary.BigEndian.Uint16(payload[1:3]),
	}, nil
}

// RouteEntry advertises that the responder reaches Node in Hops hops.
type RouteEntry struct {
	Node types.NodeID
	Hops uint8
}

// DiscoveryResponse answers a discovery with the responder's known routes.
type DiscoveryResponse struct {
	Mode   types.NodeMode
	Routes []RouteEntry
}

// EncodeDiscoveryResponse packs a discovery-response payload.
func EncodeDiscoveryResponse(r DiscoveryResponse) ([]byte, error) {
	if len(r.Routes) > MaxRouteEntries {
		return nil, fmt.Errorf("%w: %d route entries exceed %d", ErrCodec, len(r.Routes), MaxRouteEntries)
	}
	buf := make([]byte, 1, 1+len(r.Routes)*routeEntrySize)
	buf[0] = byte(r.Mode)
	for _, e := range r.Routes {
		buf = binary.BigEndian.AppendUint16(buf, uint16(e.Node))
		buf = append(buf, e.Hops)
	}
	return buf, nil
}

// DecodeDiscoveryResponse unpacks a discovery-response payload.
func DecodeDiscoveryResponse(payload []byte) (DiscoveryResponse, error) {
	if len(payload) < 1 || (len(payload)-1)%routeEntrySize != 0 {
		return DiscoveryResponse{}, fmt.Errorf("%w: discovery response of %d bytes", ErrCodec, len(payload))
	}
	r := DiscoveryResponse{Mode: types.NodeMode(payload[0])}
	for off := 1; off < len(payload); off += routeEntrySize {
		r.Routes = append(r.Routes, RouteEntry{
			Node: types.NodeID(binary.BigEndian.Uint16(payload[off : off+2])),
			Hops: payload[off+2],
		})
	}
	return r, nil
}

// EncodeRemove packs an object-remove payload.
func EncodeRemove(ids []types.ObjectID) ([]byte, error) {
	if len(ids) == 0 || len(ids) > MaxRemovals {
		return nil, fmt.Errorf("%w: remove with %d ids", ErrCodec, len(ids))
	}
	buf := make([]byte, 0, 2*len(ids))
	for _, id := range ids {
		buf = binary.BigEndian.AppendUint16(buf, uint16(id))
	}
	return buf, nil
}

// DecodeRemove unpacks an object-remove payload.
func DecodeRemove(payload []byte) ([]types.ObjectID, error) {
	if len(payload) == 0 || len(payload)%2 != 0 {
		return nil, fmt.Errorf("%w: remove payload of %d bytes", ErrCodec, len(payload))
	}
	ids := make([]types.ObjectID, 0, len(payload)/2)
	for off := 0; off < len(payload); off += 2 {
		ids = append(ids, types.ObjectID(binary.BigEndian.Uint16(payload[off:off+2])))
	}
	return ids, nil
}
