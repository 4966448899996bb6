package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshsync/go-meshsync/common/types"
)

func TestPacketLayout(t *testing.T) {
	h := Header{
		Source:      0x1234,
		Destination: types.BroadcastID,
		Sequence:    7,
		HopCount:    3,
		Type:        types.PacketLiveUpdate,
	}
	frame, err := EncodePacket(h, []byte{0xaa, 0xbb})
	require.NoError(t, err)
	require.Equal(t, []byte{0x12, 0x34, 0xff, 0xff, 0x00, 0x07, 0x03, 0x01, 0xaa, 0xbb}, frame)

	pkt, err := DecodePacket(frame)
	require.NoError(t, err)
	require.Equal(t, h, pkt.Header)
	require.Equal(t, []byte{0xaa, 0xbb}, pkt.Payload)
	require.Equal(t, types.PacketID{Source: 0x1234, Sequence: 7}, pkt.ID())

	frame[HeaderSize] = 0
	require.Equal(t, []byte{0xaa, 0xbb}, pkt.Payload, "payload must not alias the frame")
}

func TestEncodePacketLimits(t *testing.T) {
	h := Header{Source: 1, Destination: 2, Type: types.PacketDetailChunk}

	frame, err := EncodePacket(h, make([]byte, MaxPayloadSize))
	require.NoError(t, err)
	require.Len(t, frame, MaxFrameSize)

	_, err = EncodePacket(h, make([]byte, MaxPayloadSize+1))
	require.ErrorIs(t, err, ErrProtocol)

	h.Type = 0
	_, err = EncodePacket(h, nil)
	require.ErrorIs(t, err, ErrProtocol)
}

func TestDecodePacketMalformed(t *testing.T) {
	for _, tc := range []struct {
		desc  string
		frame []byte
	}{
		{desc: "empty", frame: nil},
		{desc: "truncated header", frame: []byte{0, 1, 0, 2, 0, 3, 0}},
		{desc: "unknown type", frame: []byte{0, 1, 0, 2, 0, 3, 0, 0x7f}},
		{desc: "zero type", frame: []byte{0, 1, 0, 2, 0, 3, 0, 0}},
		{desc: "oversized", frame: append([]byte{0, 1, 0, 2, 0, 3, 0, 1}, make([]byte, MaxPayloadSize+1)...)},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := DecodePacket(tc.frame)
			require.ErrorIs(t, err, ErrProtocol)
		})
	}
}

func TestRewrite(t *testing.T) {
	h := Header{Source: 5, Destination: 9, Sequence: 100, HopCount: 2, Type: types.PacketDetailChunk}
	frame, err := EncodePacket(h, []byte{1, 2, 3})
	require.NoError(t, err)

	h.HopCount++
	h.Destination = types.BroadcastID
	out, err := Rewrite(frame, h)
	require.NoError(t, err)

	pkt, err := DecodePacket(out)
	require.NoError(t, err)
	require.Equal(t, h, pkt.Header)
	require.Equal(t, []byte{1, 2, 3}, pkt.Payload)

	original, err := DecodeHeader(frame)
	require.NoError(t, err)
	require.EqualValues(t, 2, original.HopCount)

	_, err = Rewrite([]byte{1}, h)
	require.ErrorIs(t, err, ErrProtocol)
}
