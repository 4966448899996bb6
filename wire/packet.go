package wire

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/meshsync/go-meshsync/common/types"
)

const (
	// HeaderSize is the size of the fixed packet header.
	HeaderSize = 8
	// MaxFrameSize is the largest frame a radio transmission unit carries.
	MaxFrameSize = 255
	// MaxPayloadSize is the largest payload that fits a single frame.
	MaxPayloadSize = MaxFrameSize - HeaderSize
	// MaxHops is the largest hop count a packet may arrive with and still be forwarded.
	MaxHops = 15
)

// Header is the fixed-layout header of every mesh packet.
type Header struct {
	Source      types.NodeID
	Destination types.NodeID
	Sequence    uint16
	HopCount    uint8
	Type        types.PacketType
}

// ID returns the deduplication key of the packet.
func (h Header) ID() types.PacketID {
	return types.PacketID{Source: h.Source, Sequence: h.Sequence}
}

// MarshalLogObject implements logging encoder for Header.
func (h Header) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("src", h.Source.String())
	encoder.AddString("dst", h.Destination.String())
	encoder.AddUint16("seq", h.Sequence)
	encoder.AddUint8("hops", h.HopCount)
	encoder.AddString("type", h.Type.String())
	return nil
}

// Packet is a decoded frame.
type Packet struct {
	Header
	Payload []byte
}

// EncodePacket frames payload behind h.
func EncodePacket(h Header, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload %d bytes exceeds %d", ErrProtocol, len(payload), MaxPayloadSize)
	}
	if !h.Type.Known() {
		return nil, fmt.Errorf("%w: unknown packet type %d", ErrProtocol, h.Type)
	}
	buf := make([]byte, HeaderSize+len(payload))
	putHeader(buf, h)
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

func putHeader(buf []byte, h Header) {
	binary.BigEndian.PutUint16(buf[0:2], uint16(h.Source))
	binary.BigEndian.PutUint16(buf[2:4], uint16(h.Destination))
	binary.BigEndian.PutUint16(buf[4:6], h.Sequence)
	buf[6] = h.HopCount
	buf[7] = byte(h.Type)
}

// DecodeHeader parses only the header of a frame.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: truncated frame of %d bytes", ErrProtocol, len(buf))
	}
	h := Header{
		Source:      types.NodeID(binary.BigEndian.Uint16(buf[0:2])),
		Destination: types.NodeID(binary.BigEndian.Uint16(buf[2:4])),
		Sequence:    binary.BigEndian.Uint16(buf[4:6]),
		HopCount:    buf[6],
		Type:        types.PacketType(buf[7]),
	}
	if !h.Type.Known() {
		return Header{}, fmt.Errorf("%w: unknown packet type %d", ErrProtocol, h.Type)
	}
	return h, nil
}

// DecodePacket parses a frame. The returned payload does not alias buf.
func DecodePacket(buf []byte) (Packet, error) {
	if len(buf) > MaxFrameSize {
		return Packet{}, fmt.Errorf("%w: frame of %d bytes exceeds %d", ErrProtocol, len(buf), MaxFrameSize)
	}
	h, err := DecodeHeader(buf)
	if err != nil {
		return Packet{}, err
	}
	payload := make([]byte, len(buf)-HeaderSize)
	copy(payload, buf[HeaderSize:])
	return Packet{Header: h, Payload: payload}, nil
}

// Rewrite returns a copy of frame with the header replaced by h.
func Rewrite(frame []byte, h Header) ([]byte, error) {
	if len(frame) < HeaderSize {
		return nil, fmt.Errorf("%w: truncated frame of %d bytes", ErrProtocol, len(frame))
	}
	out := make([]byte, len(frame))
	copy(out, frame)
	putHeader(out, h)
	return out, nil
}
