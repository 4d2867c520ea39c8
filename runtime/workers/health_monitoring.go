package workers

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"

	"duochat/realtime"
)

// HealthSnapshot is the last set of self-metrics sampled by the health
// monitoring worker, plus live counts from the group registry.
type HealthSnapshot struct {
	SampledAt   time.Time `json:"sampled_at"`
	PID         int       `json:"pid"`
	Status      string    `json:"status"`
	CPUPercent  float64   `json:"cpu_percent"`
	RSSBytes    uint64    `json:"rss_bytes"`
	Groups      int       `json:"groups"`
	LiveMembers int       `json:"live_members"`
}

// HealthMonitoringWorker periodically samples the server's own process
// metrics and the registry's group counts. The latest snapshot is served
// by the debug inspector.
type HealthMonitoringWorker struct {
	mu       sync.RWMutex
	latest   HealthSnapshot
	registry *realtime.Registry
	interval time.Duration
	log      *slog.Logger
}

func NewHealthMonitoringWorker(registry *realtime.Registry, interval time.Duration, log *slog.Logger) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		registry: registry,
		interval: interval,
		log:      log.With(slog.String("component", "health_monitoring")),
	}
}

// Latest returns the most recent snapshot; zero value before the first
// sample.
func (w *HealthMonitoringWorker) Latest() HealthSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latest
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snapshot, err := w.sample(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.mu.Lock()
			w.latest = snapshot
			w.mu.Unlock()
		}
	}
}

func (w *HealthMonitoringWorker) sample(p *process.Process) (HealthSnapshot, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return HealthSnapshot{}, err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return HealthSnapshot{}, err
	}
	status, err := p.Status()
	if err != nil {
		return HealthSnapshot{}, err
	}

	return HealthSnapshot{
		SampledAt:   time.Now().UTC(),
		PID:         os.Getpid(),
		Status:      status,
		CPUPercent:  cpu,
		RSSBytes:    memInfo.RSS,
		Groups:      w.registry.GroupCount(),
		LiveMembers: len(w.registry.AllMembers()),
	}, nil
}
