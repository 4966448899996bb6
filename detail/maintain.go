package detail

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Reseeder refills a broadcast queue from the current store contents.
type Reseeder interface {
	Reseed() int
}

// Maintainer prunes expired raw chunks and reseeds the broadcast queue.
type Maintainer struct {
	logger   *zap.Logger
	store    *Store
	reseeder Reseeder
}

func NewMaintainer(store *Store, reseeder Reseeder, logger *zap.Logger) *Maintainer {
	return &Maintainer{logger: logger, store: store, reseeder: reseeder}
}

// Maintain runs a single maintenance pass.
func (m *Maintainer) Maintain(now time.Time) {
	start := time.Now()
	removed := m.store.Prune(now)
	chunksLatency.Observe(time.Since(start).Seconds())
	prunedChunks.Add(float64(removed))

	queued := 0
	if m.reseeder != nil {
		start = time.Now()
		queued = m.reseeder.Reseed()
		reseedLatency.Observe(time.Since(start).Seconds())
	}
	m.logger.Debug("detail maintenance",
		zap.Int("pruned", removed),
		zap.Int("queued", queued),
	)
}

// Run performs maintenance every interval until ctx is canceled.
func Run(ctx context.Context, m *Maintainer, clock clockwork.Clock, interval time.Duration) {
	m.logger.Info("detail maintenance launched",
		zap.Duration("interval", interval),
		zap.Duration("max chunk age", m.store.cfg.MaxChunkAge),
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-clock.After(interval):
			m.Maintain(clock.Now())
		}
	}
}
