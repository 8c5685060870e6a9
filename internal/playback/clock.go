package playback

import (
	"sync"
	"time"
)

// Clock is the playback time source the Player follows.
type Clock interface {
	CurrentTime() float64
	Seek(seconds float64)
}

// Transport is implemented by clocks that can be started and stopped.
type Transport interface {
	Play()
	Pause()
}

// VideoElement is the reference video the viewer is synced to.
type VideoElement interface {
	CurrentTime() float64
	SetCurrentTime(seconds float64)
	Play()
	Pause()
}

// VideoClock follows a reference video's own clock.
type VideoClock struct {
	Video VideoElement
}

func (c VideoClock) CurrentTime() float64 { return c.Video.CurrentTime() }

func (c VideoClock) Seek(seconds float64) { c.Video.SetCurrentTime(seconds) }

func (c VideoClock) Play() { c.Video.Play() }

func (c VideoClock) Pause() { c.Video.Pause() }

// TimerClock substitutes for a video by measuring elapsed wall time.
type TimerClock struct {
	mu      sync.Mutex
	now     func() time.Time
	base    float64
	started time.Time
	running bool
}

// NewTimerClock returns a paused clock at zero. A nil now uses time.Now.
func NewTimerClock(now func() time.Time) *TimerClock {
	if now == nil {
		now = time.Now
	}
	return &TimerClock{now: now}
}

func (c *TimerClock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current()
}

func (c *TimerClock) current() float64 {
	if !c.running {
		return c.base
	}
	return c.base + c.now().Sub(c.started).Seconds()
}

func (c *TimerClock) Seek(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = seconds
	c.started = c.now()
}

func (c *TimerClock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.started = c.now()
	c.running = true
}

func (c *TimerClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.base = c.current()
	c.running = false
}
