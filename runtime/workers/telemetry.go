package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"chat-relay/observability"

	"github.com/shirou/gopsutil/process"
)

// TelemetryWorker periodically samples the relay's own process metrics
// (CPU, RSS) into the shared stats so the debug endpoint can expose
// them alongside the relay counters.
type TelemetryWorker struct {
	log      *slog.Logger
	stats    *observability.Stats
	interval time.Duration
}

func NewTelemetryWorker(log *slog.Logger, stats *observability.Stats, interval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, stats: stats, interval: interval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	w.log.Info("Starting telemetry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.stats.SetProcess(rss, cpu)
			w.log.Debug("Telemetry sample",
				"rss_bytes", rss,
				"cpu_percent", cpu,
				"sessions_open", w.stats.SessionsOpen())
		}
	}
}

// selfStats retrieves memory and CPU usage for the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
