package adminview

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is how often the dashboard refreshes while auto-refresh is on.
const DefaultInterval = 5 * time.Second

// Poller calls Refresh immediately and then on every tick until stopped.
type Poller struct {
	Interval time.Duration
	Refresh  func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Running reports whether auto-refresh is on.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Start turns auto-refresh on. It is a no-op when already running. The loop also ends when
// ctx is canceled.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done
	go p.loop(ctx, interval, done)
}

// Stop turns auto-refresh off and waits for an in-flight refresh to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Toggle flips auto-refresh and reports whether it is now on.
func (p *Poller) Toggle(ctx context.Context) bool {
	if p.Running() {
		p.Stop()
		return false
	}
	p.Start(ctx)
	return true
}

// Wait blocks until the loop exits, either through Stop or ctx.
func (p *Poller) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (p *Poller) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		if p.done == done {
			p.cancel, p.done = nil, nil
		}
		p.mu.Unlock()
		close(done)
	}()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			p.Refresh(ctx)
		}
	}
}
