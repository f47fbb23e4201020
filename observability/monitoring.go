// Package observability aggregates runtime counters for the debug
// stats endpoint. Counters are atomics; collection never blocks the
// hub's fan-out path.
package observability

import (
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/shirou/gopsutil/process"
)

// Stats is the snapshot served by /debug/stats.
type Stats struct {
	LiveSessions   int64  `json:"live_sessions"`
	MessagesStored uint64 `json:"messages_stored"`
	Broadcasts     uint64 `json:"broadcasts"`
	DeliveryFaults uint64 `json:"delivery_faults"`
	HistoryReplays uint64 `json:"history_replays"`

	AllocMemMb uint64  `json:"alloc_mem_mb"`
	NumGC      uint32  `json:"num_gc"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
}

type Monitor struct {
	log *slog.Logger

	liveSessions   int64
	messagesStored uint64
	broadcasts     uint64
	deliveryFaults uint64
	historyReplays uint64

	proc *process.Process
}

func NewMonitor(log *slog.Logger) *Monitor {
	m := &Monitor{log: log}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Self process stats unavailable", "error", err)
		return m
	}
	m.proc = p
	return m
}

func (m *Monitor) IncrStored()         { atomic.AddUint64(&m.messagesStored, 1) }
func (m *Monitor) IncrBroadcasts()     { atomic.AddUint64(&m.broadcasts, 1) }
func (m *Monitor) IncrDeliveryFaults() { atomic.AddUint64(&m.deliveryFaults, 1) }
func (m *Monitor) IncrHistoryReplays() { atomic.AddUint64(&m.historyReplays, 1) }

func (m *Monitor) SetLiveSessions(n int) { atomic.StoreInt64(&m.liveSessions, int64(n)) }

// Snapshot gathers the chat counters plus self process stats.
func (m *Monitor) Snapshot() Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := Stats{
		LiveSessions:   atomic.LoadInt64(&m.liveSessions),
		MessagesStored: atomic.LoadUint64(&m.messagesStored),
		Broadcasts:     atomic.LoadUint64(&m.broadcasts),
		DeliveryFaults: atomic.LoadUint64(&m.deliveryFaults),
		HistoryReplays: atomic.LoadUint64(&m.historyReplays),
		AllocMemMb:     mem.Alloc / 1024 / 1024,
		NumGC:          mem.NumGC,
	}

	if m.proc != nil {
		if memInfo, err := m.proc.MemoryInfo(); err == nil {
			stats.RSSBytes = memInfo.RSS
		}
		if cpu, err := m.proc.CPUPercent(); err == nil {
			stats.CPUPercent = cpu
		}
	}
	return stats
}
