package controller

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/yegors/atcsim/internal/aircraft"
	"github.com/yegors/atcsim/internal/message"
	"github.com/yegors/atcsim/internal/metrics"
	"github.com/yegors/atcsim/internal/simctx"
	"github.com/yegors/atcsim/pkg/logger"
)

const (
	DefaultTickInterval = 100 * time.Millisecond

	// Broadcast is the receiver of messages addressed to every controller.
	Broadcast = "ALL"
)

// Tickable is the per-tick logic of a controller.
type Tickable interface {
	Tick(now time.Time) error
}

// admitter is implemented by controllers that prepare aircraft entering
// their roster. admit runs with the actor lock held.
type admitter interface {
	admit(a *aircraft.Aircraft)
}

// Env holds the collaborators shared by every controller.
type Env struct {
	Fleet   *aircraft.Fleet
	Sim     *simctx.Context
	Sink    message.Sink
	Metrics *metrics.Metrics
}

// Handoff is a pending ownership transfer waiting in a controller's inbox.
type Handoff struct {
	AircraftID string
	From       string
}

// Actor is the runtime shared by all controllers: a roster of aircraft
// ids, a message log, an inbox of incoming handoffs, and a periodic tick
// loop. mu guards the roster and every resource of the embedding
// controller. inboxMu is a leaf lock: nothing else is acquired while it
// is held, so a controller may post into another's inbox while holding
// its own mu.
type Actor struct {
	name     string
	interval time.Duration
	env      Env
	tickable Tickable
	logger   *logger.Logger

	mu      sync.Mutex
	roster  []string
	members map[string]struct{}

	inboxMu sync.Mutex
	inbox   []Handoff

	log message.Log

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newActor(name string, interval time.Duration, env Env, tickable Tickable, logger *logger.Logger) *Actor {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Actor{
		name:     name,
		interval: interval,
		env:      env,
		tickable: tickable,
		logger:   logger,
		members:  make(map[string]struct{}),
	}
}

func (c *Actor) Name() string { return c.name }

// AddAircraft inserts an aircraft into the roster. Unknown ids and ids
// already present are ignored.
func (c *Actor) AddAircraft(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insert(id)
}

// RemoveAircraft removes an aircraft from the roster if present.
func (c *Actor) RemoveAircraft(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(id)
}

// RosterIDs returns the ids in the roster, in admission order.
func (c *Actor) RosterIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.roster...)
}

// Roster returns a snapshot of every aircraft in the roster.
func (c *Actor) Roster() []aircraft.Snapshot {
	ids := c.RosterIDs()
	snaps := make([]aircraft.Snapshot, 0, len(ids))
	for _, id := range ids {
		if a, ok := c.env.Fleet.Get(id); ok {
			snaps = append(snaps, a.Snapshot())
		}
	}
	return snaps
}

// Owns reports whether the aircraft is in the roster or pending in the inbox.
func (c *Actor) Owns(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.members[id]; ok {
		return true
	}
	c.inboxMu.Lock()
	defer c.inboxMu.Unlock()
	for _, h := range c.inbox {
		if h.AircraftID == id {
			return true
		}
	}
	return false
}

// OfferHandoff queues an aircraft for admission at the start of this
// controller's next tick. The sender must already have removed it from
// its own roster.
func (c *Actor) OfferHandoff(from, id string) {
	c.inboxMu.Lock()
	defer c.inboxMu.Unlock()
	c.inbox = append(c.inbox, Handoff{AircraftID: id, From: from})
}

// SendMessage appends to the message log and forwards to the sink. Sink
// failures are logged and dropped. The log has its own lock, so this is
// safe to call from tick code holding mu.
func (c *Actor) SendMessage(m message.Message) {
	c.log.Append(m)
	c.env.Metrics.RecordMessage(c.name, string(m.Type))
	if c.env.Sink == nil {
		return
	}
	if err := c.env.Sink.Write(m); err != nil {
		c.logger.Debug("Message sink write failed", logger.Error(err))
	}
}

// Messages returns this controller's message log, oldest first.
func (c *Actor) Messages() []message.Message {
	return c.log.Entries()
}

// MessageLog exposes the append-only log for filtering and tailing.
func (c *Actor) MessageLog() *message.Log {
	return &c.log
}

// Start launches the tick loop. Starting a running controller is a no-op.
func (c *Actor) Start() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.cancel != nil {
		return nil
	}
	if c.tickable == nil {
		return fmt.Errorf("%s: %w", c.name, ErrNilTickable)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.done = cancel, done

	c.logger.Info("Starting controller", logger.Duration("interval", c.interval))
	go c.run(ctx, done)
	return nil
}

// Stop ends the tick loop and waits for it to exit. Stopping a stopped
// controller is a no-op.
func (c *Actor) Stop() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	<-c.done
	c.cancel, c.done = nil, nil
	c.logger.Info("Controller stopped")
	return nil
}

func (c *Actor) Running() bool {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	return c.cancel != nil
}

func (c *Actor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.TickOnce()
		}
	}
}

// TickOnce drains the inbox and runs one tick. A fault, returned or
// panicked, is logged and recorded; it never escapes.
func (c *Actor) TickOnce() {
	start := time.Now()
	faulted := false
	defer func() {
		if r := recover(); r != nil {
			faulted = true
			c.logger.Error("Controller tick panicked",
				logger.String("controller", c.name),
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())))
			c.fault(fmt.Sprintf("panic: %v", r))
		}
		c.env.Metrics.RecordTick(c.name, time.Since(start).Seconds(), faulted)
	}()

	c.drainInbox()
	if err := c.tickable.Tick(c.now()); err != nil {
		faulted = true
		c.logger.Error("Controller tick failed",
			logger.String("controller", c.name),
			logger.Error(err))
		c.fault(err.Error())
	}

	c.mu.Lock()
	n := len(c.roster)
	c.mu.Unlock()
	c.env.Metrics.SetRosterSize(c.name, n)
}

func (c *Actor) fault(content string) {
	c.SendMessage(message.New(c.name, c.name, message.TypeFault, "", content, c.now()))
}

func (c *Actor) drainInbox() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inboxMu.Lock()
	pending := c.inbox
	c.inbox = nil
	c.inboxMu.Unlock()

	for _, h := range pending {
		if c.insert(h.AircraftID) {
			c.logger.Debug("Accepted handoff",
				logger.String("aircraft", h.AircraftID),
				logger.String("from", h.From))
		}
	}
}

// insert adds id to the roster and runs the admission hook. Caller holds mu.
func (c *Actor) insert(id string) bool {
	if _, ok := c.members[id]; ok {
		return false
	}
	a, ok := c.env.Fleet.Get(id)
	if !ok {
		c.logger.Warn("Ignoring unknown aircraft", logger.String("aircraft", id))
		return false
	}
	c.members[id] = struct{}{}
	c.roster = append(c.roster, id)
	a.SetOwner(c.name)
	if adm, ok := c.tickable.(admitter); ok {
		adm.admit(a)
	}
	return true
}

// remove drops id from the roster. Caller holds mu.
func (c *Actor) remove(id string) bool {
	if _, ok := c.members[id]; !ok {
		return false
	}
	delete(c.members, id)
	for i, rid := range c.roster {
		if rid == id {
			c.roster = append(c.roster[:i], c.roster[i+1:]...)
			break
		}
	}
	return true
}

// handOff transfers id to dest: removed here, then posted to dest's
// inbox. Caller holds mu; only dest's leaf inbox lock is taken.
func (c *Actor) handOff(dest *Actor, id, content string) bool {
	if !c.remove(id) {
		return false
	}
	dest.OfferHandoff(c.name, id)
	c.env.Metrics.RecordHandoff(c.name, dest.name)
	c.send(dest.name, message.TypeHandoff, id, content)
	c.logger.Info("Handed off aircraft",
		logger.String("aircraft", id),
		logger.String("to", dest.name))
	return true
}

// aircraftLocked resolves the roster in order. Caller holds mu.
func (c *Actor) aircraftLocked() []*aircraft.Aircraft {
	out := make([]*aircraft.Aircraft, 0, len(c.roster))
	for _, id := range c.roster {
		if a, ok := c.env.Fleet.Get(id); ok {
			out = append(out, a)
		}
	}
	return out
}

func (c *Actor) send(receiver string, typ message.Type, aircraftID, content string) {
	c.SendMessage(message.New(c.name, receiver, typ, aircraftID, content, c.now()))
}

func (c *Actor) now() time.Time {
	return c.env.Sim.Clock.Now()
}
