package simctx

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yegors/atcsim/internal/rand"
)

// Clock reports simulated time. Controllers compute deadlines (runway
// release, dwell timers) against it rather than the wall clock.
type Clock interface {
	Now() time.Time
}

// ScaledClock runs simulated time at a fixed multiple of wall-clock time.
type ScaledClock struct {
	start time.Time
	scale float64
}

func NewScaledClock(scale float64) *ScaledClock {
	if scale <= 0 {
		scale = 1
	}
	return &ScaledClock{start: time.Now(), scale: scale}
}

func (c *ScaledClock) Now() time.Time {
	elapsed := time.Since(c.start)
	return c.start.Add(time.Duration(float64(elapsed) * c.scale))
}

// Scale returns the simulated seconds per wall-clock second.
func (c *ScaledClock) Scale() float64 { return c.scale }

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Context is the explicit simulation context handed to constructors in
// place of global state.
type Context struct {
	Clock Clock
	Rand  *rand.Rand
	Start time.Time
	RunID string
}

// New creates a context whose simulated time runs timeScale times faster
// than wall-clock time.
func New(seed int64, timeScale float64) *Context {
	clock := NewScaledClock(timeScale)
	return &Context{
		Clock: clock,
		Rand:  rand.New(seed),
		Start: clock.Now(),
		RunID: uuid.NewString(),
	}
}

// NewManual creates a context driven by a ManualClock, for tests and
// step-by-step replays.
func NewManual(seed int64, start time.Time) (*Context, *ManualClock) {
	clock := NewManualClock(start)
	return &Context{
		Clock: clock,
		Rand:  rand.New(seed),
		Start: start,
		RunID: uuid.NewString(),
	}, clock
}

// Elapsed returns simulated time since the context was created.
func (c *Context) Elapsed() time.Duration {
	return c.Clock.Now().Sub(c.Start)
}
