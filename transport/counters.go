package transport

import (
	"sync/atomic"

	"github.com/meshsync/go-meshsync/metrics"
)

const (
	namespace = "transport"
	incoming  = "incoming"
	outgoing  = "outgoing"
)

var (
	packetsCounter = metrics.NewCounter(
		"packets",
		namespace,
		"number of frames by backend and direction",
		[]string{"backend", "direction"},
	)
	bytesCounter = metrics.NewCounter(
		"bytes",
		namespace,
		"number of frame bytes by backend and direction",
		[]string{"backend", "direction"},
	)
	errorsCounter = metrics.NewCounter(
		"errors",
		namespace,
		"number of transport errors by backend",
		[]string{"backend"},
	)
)

// Counters tracks Stats for a backend and mirrors them to prometheus.
// The zero value is not usable, use NewCounters.
type Counters struct {
	backend               string
	packetsIn, packetsOut atomic.Uint64
	bytesIn, bytesOut     atomic.Uint64
	errors                atomic.Uint64
}

func NewCounters(backend string) *Counters {
	return &Counters{backend: backend}
}

func (c *Counters) Sent(size int) {
	c.packetsOut.Add(1)
	c.bytesOut.Add(uint64(size))
	packetsCounter.WithLabelValues(c.backend, outgoing).Inc()
	bytesCounter.WithLabelValues(c.backend, outgoing).Add(float64(size))
}

func (c *Counters) Received(size int) {
	c.packetsIn.Add(1)
	c.bytesIn.Add(uint64(size))
	packetsCounter.WithLabelValues(c.backend, incoming).Inc()
	bytesCounter.WithLabelValues(c.backend, incoming).Add(float64(size))
}

func (c *Counters) Failed() {
	c.errors.Add(1)
	errorsCounter.WithLabelValues(c.backend).Inc()
}

func (c *Counters) Stats() Stats {
	return Stats{
		PacketsSent:     c.packetsOut.Load(),
		PacketsReceived: c.packetsIn.Load(),
		BytesSent:       c.bytesOut.Load(),
		BytesReceived:   c.bytesIn.Load(),
		Errors:          c.errors.Load(),
	}
}
