package controller

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/atcsim/internal/aircraft"
	"github.com/yegors/atcsim/internal/geo"
	"github.com/yegors/atcsim/internal/message"
)

type countingTick struct {
	calls atomic.Int32
	fail  func(n int32) error
}

func (c *countingTick) Tick(time.Time) error {
	n := c.calls.Add(1)
	if c.fail != nil {
		return c.fail(n)
	}
	return nil
}

func TestRosterOperations(t *testing.T) {
	te := newTestEnv(t)
	te.spawn(t, "AF1", aircraft.Parked, geo.Position{}, aircraft.Destination{})
	te.spawn(t, "BA2", aircraft.Parked, geo.Position{}, aircraft.Destination{})
	c := newActor("TEST", 0, te.Env, &countingTick{}, te.log)

	c.AddAircraft("AF1")
	c.AddAircraft("AF1")
	c.AddAircraft("")
	c.AddAircraft("GHOST")
	c.AddAircraft("BA2")
	assert.Equal(t, []string{"AF1", "BA2"}, c.RosterIDs())

	snaps := c.Roster()
	require.Len(t, snaps, 2)
	assert.Equal(t, "TEST", snaps[0].Owner)

	c.RemoveAircraft("AF1")
	c.RemoveAircraft("AF1")
	assert.Equal(t, []string{"BA2"}, c.RosterIDs())
}

func TestHandoffThroughInbox(t *testing.T) {
	te := newTestEnv(t)
	te.spawn(t, "AF1", aircraft.Cruise, geo.Position{}, aircraft.Destination{})
	src := newActor("SRC", 0, te.Env, &countingTick{}, te.log)
	dst := newActor("DST", 0, te.Env, &countingTick{}, te.log)
	src.AddAircraft("AF1")

	src.mu.Lock()
	ok := src.handOff(dst, "AF1", "test")
	src.mu.Unlock()
	require.True(t, ok)

	assert.False(t, src.Owns("AF1"))
	assert.True(t, dst.Owns("AF1"))
	assert.Empty(t, dst.RosterIDs())

	dst.TickOnce()
	assert.Equal(t, []string{"AF1"}, dst.RosterIDs())
	assert.True(t, dst.Owns("AF1"))
	assert.Equal(t, 1, messagesOfType(src, string(message.TypeHandoff)))

	src.mu.Lock()
	assert.False(t, src.handOff(dst, "AF1", "again"))
	src.mu.Unlock()
}

func TestSendMessageSwallowsSinkErrors(t *testing.T) {
	te := newTestEnv(t)
	var written int
	te.Sink = message.SinkFunc(func(message.Message) error {
		written++
		return errors.New("sink down")
	})
	c := newActor("TEST", 0, te.Env, &countingTick{}, te.log)

	c.SendMessage(message.New("TEST", Broadcast, message.TypeInfo, "", "hello", simStart))
	assert.Equal(t, 1, written)
	assert.Len(t, c.Messages(), 1)
}

func TestTickFaultsAreContained(t *testing.T) {
	te := newTestEnv(t)
	tick := &countingTick{fail: func(n int32) error {
		switch n {
		case 1:
			panic("boom")
		case 2:
			return errors.New("bad tick")
		}
		return nil
	}}
	c := newActor("TEST", 0, te.Env, tick, te.log)

	assert.NotPanics(t, c.TickOnce)
	assert.NotPanics(t, c.TickOnce)
	c.TickOnce()

	assert.Equal(t, int32(3), tick.calls.Load())
	assert.Equal(t, 2, messagesOfType(c, string(message.TypeFault)))
}

func TestLoopSurvivesPanics(t *testing.T) {
	te := newTestEnv(t)
	tick := &countingTick{fail: func(n int32) error {
		if n%2 == 1 {
			panic("odd tick")
		}
		return nil
	}}
	c := newActor("TEST", 5*time.Millisecond, te.Env, tick, te.log)

	require.NoError(t, c.Start())
	require.Eventually(t, func() bool { return tick.calls.Load() >= 4 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop())
}

func TestStartStopIdempotent(t *testing.T) {
	te := newTestEnv(t)
	tower := NewTower(TowerConfig{Name: "TWR-A", TickInterval: 5 * time.Millisecond}, te.Env, te.log)

	require.NoError(t, tower.Start())
	require.NoError(t, tower.Start())
	assert.True(t, tower.Running())

	require.NoError(t, tower.Stop())
	assert.False(t, tower.Running())

	done := make(chan error, 1)
	go func() { done <- tower.Stop() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second Stop blocked")
	}

	require.NoError(t, tower.Start())
	require.NoError(t, tower.Stop())
}

func TestStartWithoutTickable(t *testing.T) {
	te := newTestEnv(t)
	c := newActor("TEST", 0, te.Env, nil, te.log)
	assert.ErrorIs(t, c.Start(), ErrNilTickable)
	assert.False(t, c.Running())
}
