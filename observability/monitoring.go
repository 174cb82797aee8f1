package observability

import (
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// PresenceStats counts the live state of the presence engine.
type PresenceStats struct {
	Rooms        int `json:"rooms"`
	Participants int `json:"participants"`
	Sessions     int `json:"sessions"`
}

// MonitoringStats aggregates every metric exposed on /health.
type MonitoringStats struct {
	PresenceStats
	Pid         int32     `json:"pid"`
	RSSBytes    uint64    `json:"rss_bytes"`
	CPUPercent  float64   `json:"cpu_percent"`
	AllocMemMb  uint64    `json:"alloc_mem_mb"`
	NumGC       uint32    `json:"num_gc"`
	Goroutines  int       `json:"goroutines"`
	Rounds      uint64    `json:"rounds"`
	QuoteErrors uint64    `json:"quote_errors"`
	CollectedAt time.Time `json:"collected_at"`
}

// MonitoringManager keeps the latest collected stats and a few counters.
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats MonitoringStats
	proc        *process.Process

	Rounds      uint64
	QuoteErrors uint64
}

func NewMonitoringManager(log *slog.Logger) (*MonitoringManager, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &MonitoringManager{log: log, proc: p}, nil
}

func (mm *MonitoringManager) IncrRounds() {
	atomic.AddUint64(&mm.Rounds, 1)
}

func (mm *MonitoringManager) IncrQuoteErrors() {
	atomic.AddUint64(&mm.QuoteErrors, 1)
}

// Collect refreshes the process metrics and stores them along with the presence counts.
func (mm *MonitoringManager) Collect(presence PresenceStats) (MonitoringStats, error) {
	memInfo, err := mm.proc.MemoryInfo()
	if err != nil {
		return MonitoringStats{}, err
	}
	cpuPercent, err := mm.proc.CPUPercent()
	if err != nil {
		return MonitoringStats{}, err
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := MonitoringStats{
		PresenceStats: presence,
		Pid:           mm.proc.Pid,
		RSSBytes:      memInfo.RSS,
		CPUPercent:    cpuPercent,
		AllocMemMb:    m.Alloc / 1024 / 1024,
		NumGC:         m.NumGC,
		Goroutines:    runtime.NumGoroutine(),
		Rounds:        atomic.LoadUint64(&mm.Rounds),
		QuoteErrors:   atomic.LoadUint64(&mm.QuoteErrors),
		CollectedAt:   time.Now().UTC(),
	}

	mm.mu.Lock()
	mm.latestStats = stats
	mm.mu.Unlock()
	return stats, nil
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latestStats
}
