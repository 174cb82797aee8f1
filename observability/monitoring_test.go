package observability

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestMonitoringManager_Collect(t *testing.T) {
	req := require.New(t)
	mm, err := NewMonitoringManager(logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)

	// Given a few rounds were processed
	mm.IncrRounds()
	mm.IncrRounds()
	mm.IncrQuoteErrors()

	// When stats are collected
	stats, err := mm.Collect(PresenceStats{Rooms: 1, Participants: 2, Sessions: 2})

	// Then counters and process metrics are filled
	req.NoError(err)
	req.Equal(uint64(2), stats.Rounds)
	req.Equal(uint64(1), stats.QuoteErrors)
	req.Equal(2, stats.Participants)
	req.NotZero(stats.RSSBytes)
	req.Positive(stats.Goroutines)
	req.Equal(stats, mm.GetLatest())
}
