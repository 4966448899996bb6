package node

import (
	"sync/atomic"

	"github.com/meshsync/go-meshsync/metrics"
)

// Stats counts what the node did with frames.
type Stats struct {
	Sent             uint64
	Received         uint64
	Applied          uint64
	Routed           uint64
	Flooded          uint64
	Relayed          uint64
	Dropped          uint64
	Duplicates       uint64
	HopLimitExceeded uint64
	Malformed        uint64
	StoreFull        uint64
	SendErrors       uint64
}

const subsystem = "node"

var frameEvents = metrics.NewCounter(
	"frames",
	subsystem,
	"number of frames by outcome",
	[]string{"event"},
)

type counter struct {
	value  atomic.Uint64
	metric interface{ Inc() }
}

func newCounter(event string) *counter {
	return &counter{metric: frameEvents.WithLabelValues(event)}
}

func (c *counter) inc() {
	c.value.Add(1)
	c.metric.Inc()
}

func (c *counter) load() uint64 { return c.value.Load() }

type counters struct {
	sent, received, applied, routed, flooded, relayed *counter
	dropped, duplicates, hopLimit, malformed          *counter
	storeFull, sendErrors                             *counter
}

func newCounters() *counters {
	return &counters{
		sent:       newCounter("sent"),
		received:   newCounter("received"),
		applied:    newCounter("applied"),
		routed:     newCounter("routed"),
		flooded:    newCounter("flooded"),
		relayed:    newCounter("relayed"),
		dropped:    newCounter("dropped"),
		duplicates: newCounter("duplicate"),
		hopLimit:   newCounter("hop_limit_exceeded"),
		malformed:  newCounter("malformed"),
		storeFull:  newCounter("store_full"),
		sendErrors: newCounter("send_error"),
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Sent:             c.sent.load(),
		Received:         c.received.load(),
		Applied:          c.applied.load(),
		Routed:           c.routed.load(),
		Flooded:          c.flooded.load(),
		Relayed:          c.relayed.load(),
		Dropped:          c.dropped.load(),
		Duplicates:       c.duplicates.load(),
		HopLimitExceeded: c.hopLimit.load(),
		Malformed:        c.malformed.load(),
		StoreFull:        c.storeFull.load(),
		SendErrors:       c.sendErrors.load(),
	}
}
