// Package transport defines how a node exchanges raw frames with the radio
// medium. A frame is one complete packet of at most wire.MaxFrameSize bytes.
// Delivery is unreliable: frames may be lost, duplicated or reordered.
package transport

import (
	"context"
	"errors"
	"time"
)

//go:generate mockgen -typed -package=mocks -destination=./mocks/mocks.go -source=./transport.go

var (
	// ErrNotConnected is returned by Send and Receive before Connect.
	ErrNotConnected = errors.New("transport not connected")
	// ErrFrameTooLarge is returned for frames above wire.MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrConnect wraps failures to open the medium.
	ErrConnect = errors.New("connect failed")
	// ErrClosed is returned when the medium went away while in use.
	ErrClosed = errors.New("transport closed")
)

// Transport sends and receives frames.
type Transport interface {
	// Connect opens the medium. The identifier format is backend specific.
	Connect(ctx context.Context, identifier string) error
	// Send transmits a single frame.
	Send(ctx context.Context, frame []byte) error
	// Receive waits up to timeout for a frame. It returns nil, nil on timeout.
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)
	Disconnect() error
	IsConnected() bool
	Stats() Stats
}

// RSSIReporter is implemented by transports that measure signal strength.
type RSSIReporter interface {
	// LastRSSI returns the signal strength of the last received frame in dBm.
	LastRSSI() int16
}

// Stats are transport level counters.
type Stats struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	Errors          uint64
}
