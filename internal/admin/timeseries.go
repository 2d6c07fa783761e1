package admin

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/motionlab/backend/internal/models"
)

const (
	RangeDay   = "day"
	RangeWeek  = "week"
	RangeMonth = "month"
)

var weekdayLabels = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// window describes how a time range is cut into chart buckets.
type window struct {
	start  time.Time
	labels []string
	index  func(t time.Time) int
}

func newWindow(timeRange string, now time.Time) (window, error) {
	switch timeRange {
	case RangeDay:
		labels := make([]string, 24)
		for i := range labels {
			labels[i] = fmt.Sprintf("%d:00", i)
		}
		return window{start: now.Add(-24 * time.Hour), labels: labels, index: func(t time.Time) int { return t.Hour() }}, nil
	case RangeWeek:
		return window{
			start:  now.Add(-7 * 24 * time.Hour),
			labels: weekdayLabels,
			index:  func(t time.Time) int { return (int(t.Weekday()) + 6) % 7 },
		}, nil
	case RangeMonth:
		labels := make([]string, 30)
		for i := range labels {
			labels[i] = fmt.Sprintf("Day %d", i+1)
		}
		start := now.Add(-30 * 24 * time.Hour)
		return window{start: start, labels: labels, index: func(t time.Time) int {
			return int(t.Sub(start) / (24 * time.Hour))
		}}, nil
	}
	return window{}, ErrInvalidTimeRange
}

// RangeLabels returns the chart labels for a time range.
func RangeLabels(timeRange string) ([]string, error) {
	w, err := newWindow(timeRange, time.Now())
	if err != nil {
		return nil, err
	}
	return w.labels, nil
}

// SystemMetrics builds the chart series for a time range. CPU and memory are averaged from
// recorded samples; processing history and error rate come from projects created in the range.
func (s *Service) SystemMetrics(ctx context.Context, timeRange string) (models.SystemMetrics, error) {
	if timeRange == "" {
		timeRange = RangeDay
	}
	now := s.now()
	w, err := newWindow(timeRange, now)
	if err != nil {
		return models.SystemMetrics{}, err
	}
	n := len(w.labels)

	out := models.SystemMetrics{
		TimeRange:         timeRange,
		Labels:            w.labels,
		CPU:               make([]float64, n),
		Memory:            make([]float64, n),
		ProcessingHistory: make([]float64, n),
		ErrorRate:         make([]float64, n),
	}

	var current Snapshot
	if s.Metrics != nil {
		samples, err := s.Metrics.History(ctx, w.start)
		if err != nil {
			return models.SystemMetrics{}, fmt.Errorf("load metric history: %w", err)
		}
		averageSamples(samples, w, out.CPU, out.Memory)

		if current, err = s.Metrics.Current(ctx); err == nil {
			out.DiskUsage = current.Disk
			out.Source = current.Source
		}
	}

	projects, err := s.Projects.ListCreatedSince(ctx, w.start)
	if err != nil {
		return models.SystemMetrics{}, fmt.Errorf("load projects: %w", err)
	}
	buckets := bucketProjects(projects, w)
	var (
		total    time.Duration
		finished int
	)
	for i, b := range buckets {
		out.ProcessingHistory[i] = float64(b.Total)
		if b.Total > 0 {
			out.ErrorRate[i] = round1(float64(b.Failed) / float64(b.Total) * 100)
		}
	}
	for _, p := range projects {
		if p.Status == models.ProjectStatusCompleted && p.CompletedAt != nil {
			total += p.CompletedAt.Sub(p.CreationDate)
			finished++
		}
	}

	switch {
	case finished > 0:
		out.AvgProcessTime = FormatDuration(total / time.Duration(finished))
	case !current.At.IsZero():
		out.AvgProcessTime = FormatDuration(EstimateProcessTime(current.CPU, current.Memory))
	default:
		out.AvgProcessTime = FormatDuration(0)
	}
	return out, nil
}

func averageSamples(samples []Snapshot, w window, cpu, memory []float64) {
	counts := make([]int, len(cpu))
	for _, s := range samples {
		i := w.index(s.At.UTC())
		if i < 0 || i >= len(cpu) {
			continue
		}
		cpu[i] += s.CPU
		memory[i] += s.Memory
		counts[i]++
	}
	for i, c := range counts {
		if c > 0 {
			cpu[i] = math.Round(cpu[i] / float64(c))
			memory[i] = math.Round(memory[i] / float64(c))
		}
	}
}

func bucketProjects(projects []models.Project, w window) []models.BucketCount {
	buckets := make([]models.BucketCount, len(w.labels))
	for _, p := range projects {
		i := w.index(p.CreationDate.UTC())
		if i < 0 || i >= len(buckets) {
			continue
		}
		buckets[i].Total++
		switch p.Status {
		case models.ProjectStatusCompleted:
			buckets[i].Completed++
		case models.ProjectStatusFailed:
			buckets[i].Failed++
		}
	}
	return buckets
}
