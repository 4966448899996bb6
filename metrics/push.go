package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

// StartPushingMetrics pushes all registered metrics to a pushgateway every period.
// Gateway nodes behind NAT use it instead of being scraped.
func StartPushingMetrics(ctx context.Context, logger *zap.Logger, url string, period time.Duration, nodeID string) {
	pusher := push.New(url, "meshsync").
		Gatherer(prometheus.DefaultGatherer).
		Grouping("node", nodeID)
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := pusher.PushContext(ctx); err != nil {
					logger.Warn("failed to push metrics", zap.String("url", url), zap.Error(err))
				}
			}
		}
	}()
}
