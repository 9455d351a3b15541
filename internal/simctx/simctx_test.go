package simctx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	ctx, clock := NewManual(1, start)

	assert.Equal(t, start, ctx.Clock.Now())
	clock.Advance(30 * time.Second)
	assert.Equal(t, 30*time.Second, ctx.Elapsed())
	assert.NotEmpty(t, ctx.RunID)
}

func TestScaledClockRunsFaster(t *testing.T) {
	c := NewScaledClock(50)
	before := c.Now()
	time.Sleep(20 * time.Millisecond)
	assert.GreaterOrEqual(t, c.Now().Sub(before), 500*time.Millisecond)
	assert.Equal(t, 50.0, c.Scale())

	assert.Equal(t, 1.0, NewScaledClock(0).Scale())
}

func TestContextsHaveDistinctRunIDs(t *testing.T) {
	a := New(1, 1)
	b := New(1, 1)
	assert.NotEqual(t, a.RunID, b.RunID)
}
