package bvh

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Loader fetches and parses a clip from a location.
type Loader interface {
	Load(ctx context.Context, location string) (*Clip, error)
}

// Mixer drives the animated skeleton.
type Mixer interface {
	// SetTime jumps the action to seconds and applies it without advancing.
	SetTime(seconds float64)
	// Advance moves the action forward by delta seconds and returns the new time.
	Advance(delta float64) float64
	Time() float64
}

// ClipMixer is a Mixer that plays a clip once and clamps at its end.
type ClipMixer struct {
	clip *Clip
	time float64
}

// NewClipMixer binds a mixer to clip.
func NewClipMixer(clip *Clip) *ClipMixer {
	return &ClipMixer{clip: clip}
}

func (m *ClipMixer) SetTime(seconds float64) { m.time = m.clamp(seconds) }

func (m *ClipMixer) Advance(delta float64) float64 {
	if delta > 0 {
		m.time = m.clamp(m.time + delta)
	}
	return m.time
}

func (m *ClipMixer) Time() float64 { return m.time }

// Frame reports the frame index currently applied.
func (m *ClipMixer) Frame() int { return m.clip.FrameAt(m.time) }

func (m *ClipMixer) clamp(t float64) float64 {
	if t < 0 {
		return 0
	}
	if d := m.clip.Duration(); t > d {
		return d
	}
	return t
}

// ErrNoClip is returned by controls used before a clip is loaded.
var ErrNoClip = errors.New("no clip loaded")

// PlayerConfig wires a Player to its loader and observers.
type PlayerConfig struct {
	Loader        Loader
	NewMixer      func(*Clip) Mixer
	OnDurationSet func(seconds float64)
	OnTimeUpdate  func(seconds float64)
}

// Player controls playback of a single BVH clip. Frame is the per-frame
// callback; the host render loop supplies the elapsed delta.
type Player struct {
	cfg PlayerConfig

	// loadMu serializes Load so concurrent loads of one location report its duration once.
	loadMu sync.Mutex

	mu        sync.Mutex
	location  string
	clip      *Clip
	mixer     Mixer
	playing   bool
	scrolling bool
	scrubTime float64
}

// NewPlayer builds a player. A nil NewMixer uses ClipMixer.
func NewPlayer(cfg PlayerConfig) *Player {
	if cfg.NewMixer == nil {
		cfg.NewMixer = func(c *Clip) Mixer { return NewClipMixer(c) }
	}
	return &Player{cfg: cfg}
}

// Load fetches the clip at location. Reloading the current location is a no-op,
// so OnDurationSet fires once per distinct successful load.
func (p *Player) Load(ctx context.Context, location string) error {
	if p.cfg.Loader == nil {
		return errors.New("bvh player: loader is required")
	}
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	p.mu.Lock()
	if p.clip != nil && p.location == location {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	clip, err := p.cfg.Loader.Load(ctx, location)
	if err != nil {
		return fmt.Errorf("load bvh %s: %w", location, err)
	}

	p.mu.Lock()
	p.location = location
	p.clip = clip
	p.mixer = p.cfg.NewMixer(clip)
	p.mu.Unlock()

	if p.cfg.OnDurationSet != nil {
		p.cfg.OnDurationSet(clip.Duration())
	}
	return nil
}

// SetPlaying starts or pauses playback.
func (p *Player) SetPlaying(playing bool) {
	p.mu.Lock()
	p.playing = playing
	p.mu.Unlock()
}

// Playing reports whether playback is running. It turns off at clip end.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Scrub enters scrolling mode pinned at seconds.
func (p *Player) Scrub(seconds float64) {
	p.mu.Lock()
	p.scrolling = true
	p.scrubTime = seconds
	p.mu.Unlock()
}

// EndScrub leaves scrolling mode; playback resumes from the scrubbed time.
func (p *Player) EndScrub() {
	p.mu.Lock()
	p.scrolling = false
	p.mu.Unlock()
}

// Frame applies one render tick of delta seconds.
func (p *Player) Frame(delta float64) {
	var (
		report bool
		now    float64
	)

	p.mu.Lock()
	switch {
	case p.mixer == nil:
	case p.scrolling:
		p.mixer.SetTime(p.scrubTime)
	case p.playing:
		now = p.mixer.Advance(delta)
		report = true
		if now >= p.clip.Duration() {
			p.mixer.SetTime(0)
			p.playing = false
		}
	}
	p.mu.Unlock()

	if report && p.cfg.OnTimeUpdate != nil {
		p.cfg.OnTimeUpdate(now)
	}
}

// Time returns the mixer's current time.
func (p *Player) Time() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mixer == nil {
		return 0, ErrNoClip
	}
	return p.mixer.Time(), nil
}

// Clip returns the loaded clip, if any.
func (p *Player) Clip() *Clip {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clip
}
