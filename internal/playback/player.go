package playback

import (
	"fmt"
	"math"
	"sync"

	"recomo/internal/scene"
)

// State is the viewer's playback state.
type State struct {
	CurrentTime float64
	Duration    float64
	Playing     bool
	Ended       bool
}

// Player owns playback state for one viewer.
type Player struct {
	mu       sync.Mutex
	timeline *Timeline
	clock    Clock
	current  float64
	playing  bool
	ended    bool
}

// NewPlayer returns a paused player at zero. A nil clock uses a TimerClock.
func NewPlayer(timeline *Timeline, clock Clock) *Player {
	if timeline == nil {
		timeline = NewTimeline(scene.CameraPath{})
	}
	if clock == nil {
		clock = NewTimerClock(nil)
	}
	return &Player{timeline: timeline, clock: clock}
}

// Timeline returns the player's timeline.
func (p *Player) Timeline() *Timeline { return p.timeline }

// Play starts playback, rewinding first when playback had ended.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	duration := p.timeline.Duration()
	if duration <= 0 {
		return
	}
	if p.ended || p.current >= duration {
		p.current = 0
		p.clock.Seek(0)
	}
	p.ended = false
	p.playing = true
	if t, ok := p.clock.(Transport); ok {
		t.Play()
	}
}

// Pause stops playback at the current time.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pause()
}

func (p *Player) pause() {
	p.playing = false
	if t, ok := p.clock.(Transport); ok {
		t.Pause()
	}
}

// Scrub moves playback to seconds, clamped to the timeline, and seeks the clock.
func (p *Player) Scrub(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	duration := p.timeline.Duration()
	if math.IsNaN(seconds) {
		seconds = 0
	}
	seconds = clamp(seconds, 0, math.Max(0, duration))
	p.current = seconds
	p.ended = false
	p.clock.Seek(seconds)
}

// Tick polls the clock once per frame and returns the updated state.
// Reaching the end pauses playback.
func (p *Player) Tick() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	duration := p.timeline.Duration()
	if p.playing && duration > 0 {
		now := math.Min(duration, math.Max(0, p.clock.CurrentTime()))
		p.current = now
		if now >= duration {
			p.finish(duration)
		}
	}
	return p.state(duration)
}

// VideoEnded handles the reference video reaching its end.
func (p *Player) VideoEnded() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finish(p.timeline.Duration())
}

func (p *Player) finish(duration float64) {
	p.current = duration
	p.ended = true
	p.pause()
	p.clock.Seek(duration)
}

// SetVideoDuration forwards video metadata to the timeline.
func (p *Player) SetVideoDuration(seconds float64) {
	p.timeline.SetVideoDuration(seconds)
}

// State returns a snapshot of the playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state(p.timeline.Duration())
}

func (p *Player) state(duration float64) State {
	return State{CurrentTime: p.current, Duration: duration, Playing: p.playing, Ended: p.ended}
}

// Ended reports whether playback stopped by reaching the end.
func (p *Player) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ended
}

// Sample returns the camera sample at the current playback time.
func (p *Player) Sample() (Sample, bool) {
	return p.timeline.Sample(p.State().CurrentTime)
}

// FormatTime renders seconds as MM:SS. Negative and non-finite values render as 00:00.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
