// Package admin computes the statistics, metrics and log views behind the admin dashboard.
package admin

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

const (
	SourceHost      = "host"
	SourceSimulated = "simulated"
)

// Snapshot is one reading of host utilisation, in percent.
type Snapshot struct {
	CPU    float64       `json:"cpu"`
	Memory float64       `json:"memory"`
	Disk   float64       `json:"disk"`
	Uptime time.Duration `json:"uptime"`
	Source string        `json:"source"`
	At     time.Time     `json:"at"`
}

// Source produces metric snapshots.
type Source interface {
	Sample(ctx context.Context) (Snapshot, error)
}

// HostMetrics reads utilisation of the machine running the service.
type HostMetrics struct {
	DiskPath string
	Now      func() time.Time
}

// NewHostMetrics measures disk usage of the filesystem holding diskPath.
func NewHostMetrics(diskPath string) *HostMetrics {
	if diskPath == "" {
		diskPath = "/"
	}
	return &HostMetrics{DiskPath: diskPath, Now: time.Now}
}

// Sample reads CPU, memory, disk and uptime. CPU load is measured since the previous call.
func (h *HostMetrics) Sample(ctx context.Context) (Snapshot, error) {
	loads, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read cpu: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read memory: %w", err)
	}
	usage, err := disk.UsageWithContext(ctx, h.DiskPath)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read disk: %w", err)
	}
	uptime, err := host.UptimeWithContext(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read uptime: %w", err)
	}

	var load float64
	if len(loads) > 0 {
		load = loads[0]
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	return Snapshot{
		CPU:    round1(load),
		Memory: round1(vm.UsedPercent),
		Disk:   round1(usage.UsedPercent),
		Uptime: time.Duration(uptime) * time.Second,
		Source: SourceHost,
		At:     now().UTC(),
	}, nil
}

type walk struct {
	value, step, min, max float64
}

func (w *walk) next(r *rand.Rand) float64 {
	w.value += r.Float64()*w.step*2 - w.step
	w.value = math.Max(w.min, math.Min(w.max, w.value))
	return math.Round(w.value)
}

// SimulatedMetrics is a random walk used when real telemetry is unavailable or unwanted.
// Values drift a few percent per sample and stay inside plausible bounds.
type SimulatedMetrics struct {
	mu      sync.Mutex
	rng     *rand.Rand
	cpu     walk
	memory  walk
	disk    walk
	started time.Time
	base    time.Duration
	now     func() time.Time
}

// NewSimulatedMetrics seeds a generator. The same seed yields the same sequence.
func NewSimulatedMetrics(seed uint64) *SimulatedMetrics {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	now := time.Now
	return &SimulatedMetrics{
		rng:     r,
		cpu:     walk{value: 20 + r.Float64()*60, step: 5, min: 10, max: 95},
		memory:  walk{value: 40 + r.Float64()*30, step: 3, min: 30, max: 85},
		disk:    walk{value: 50 + r.Float64()*30, step: 1, min: 45, max: 95},
		started: now(),
		base:    time.Duration(3+r.IntN(5)) * 24 * time.Hour,
		now:     now,
	}
}

// Sample advances every walk by one step.
func (s *SimulatedMetrics) Sample(context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	return Snapshot{
		CPU:    s.cpu.next(s.rng),
		Memory: s.memory.next(s.rng),
		Disk:   s.disk.next(s.rng),
		Uptime: s.base + now.Sub(s.started),
		Source: SourceSimulated,
		At:     now.UTC(),
	}, nil
}

// History extends current into n points of a bounded random walk, oldest first,
// ending at current.
func (s *SimulatedMetrics) History(current float64, n int, volatility float64) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return randomHistory(s.rng, current, n, volatility)
}

func randomHistory(r *rand.Rand, current float64, n int, volatility float64) []float64 {
	if n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)
	out[n-1] = math.Round(current)
	for i := n - 2; i >= 0; i-- {
		v := out[i+1] + r.Float64()*volatility*2 - volatility
		out[i] = math.Round(math.Max(0, math.Min(100, v)))
	}
	return out
}

// EstimateProcessTime scales a two minute baseline by up to two more minutes under load.
func EstimateProcessTime(cpu, memory float64) time.Duration {
	load := math.Max(0, math.Min(1, (cpu+memory)/200))
	seconds := math.Round(120 + 120*load)
	return time.Duration(seconds) * time.Second
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
