package workers

import (
	"context"
	"log/slog"
	"meet-lab/observability"
	"time"
)

// StatsSource reports the live counts of the presence engine.
type StatsSource interface {
	Stats() observability.PresenceStats
}

// HeartbeatWorker periodically refreshes the monitoring stats and logs them.
type HeartbeatWorker struct {
	log        *slog.Logger
	source     StatsSource
	monitoring *observability.MonitoringManager
	interval   time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, source StatsSource,
	monitoring *observability.MonitoringManager, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{
		log:        log,
		source:     source,
		monitoring: monitoring,
		interval:   interval,
	}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats, err := w.monitoring.Collect(w.source.Stats())
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.log.Debug("Heartbeat",
				"rooms", stats.Rooms,
				"participants", stats.Participants,
				"sessions", stats.Sessions,
				"rss", stats.RSSBytes,
				"cpu", stats.CPUPercent,
				"goroutines", stats.Goroutines,
			)
		}
	}
}
