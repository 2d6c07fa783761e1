package adminview

import (
	"context"
	"sync"
	"time"

	"github.com/motionlab/backend/internal/client"
	"github.com/motionlab/backend/internal/models"
)

// Status is the load state of one panel.
type Status int

const (
	Loading Status = iota
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "error"
	}
	return "unknown"
}

// State holds one panel's data. Data keeps the last good value when a refresh fails.
type State[T any] struct {
	Status    Status
	Data      T
	Message   string
	Demo      bool
	UpdatedAt time.Time
}

// Apply folds a response into the state.
func (s State[T]) Apply(resp client.Response[T], demo bool, now time.Time) State[T] {
	s.Demo = demo
	s.UpdatedAt = now
	if !resp.Success {
		s.Status = Failed
		s.Message = resp.Message
		if s.Message == "" {
			s.Message = "request failed"
		}
		return s
	}
	s.Status = Ready
	s.Message = ""
	s.Data = resp.Data
	return s
}

// Overview is the dashboard's landing page.
type Overview struct {
	Stats    State[models.DashboardStats]
	Activity State[[]models.ActivityEvent]
	Queue    State[[]models.QueueItem]
}

// Dashboard loads the overview panels from a Source.
type Dashboard struct {
	Source Source
	Demo   bool
	// Limit caps the activity and queue lists.
	Limit int
	Now   func() time.Time

	mu       sync.RWMutex
	overview Overview
}

// NewDashboard picks the source for demo and returns a dashboard over it.
func NewDashboard(demo bool, live Source, seed uint64) *Dashboard {
	src, isDemo := Select(demo, live, seed)
	return &Dashboard{Source: src, Demo: isDemo, Limit: 10}
}

// Overview returns the current panels.
func (d *Dashboard) Overview() Overview {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.overview
}

// Refresh reloads all three panels in parallel. Each panel fails independently.
func (d *Dashboard) Refresh(ctx context.Context) Overview {
	var (
		wg       sync.WaitGroup
		stats    client.Response[models.DashboardStats]
		activity client.Response[[]models.ActivityEvent]
		queue    client.Response[[]models.QueueItem]
	)
	wg.Add(3)
	go func() { defer wg.Done(); stats = d.Source.DashboardStats(ctx) }()
	go func() { defer wg.Done(); activity = d.Source.RecentActivity(ctx, d.Limit) }()
	go func() { defer wg.Done(); queue = d.Source.ProcessingQueue(ctx, d.Limit) }()
	wg.Wait()

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	at := now()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.overview.Stats = d.overview.Stats.Apply(stats, d.Demo, at)
	d.overview.Activity = d.overview.Activity.Apply(activity, d.Demo, at)
	d.overview.Queue = d.overview.Queue.Apply(queue, d.Demo, at)
	return d.overview
}

// Load fetches one panel outside the overview.
func Load[T any](ctx context.Context, demo bool, fetch func(context.Context) client.Response[T]) State[T] {
	return State[T]{}.Apply(fetch(ctx), demo, time.Now())
}
