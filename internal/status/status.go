// Package status provides a thread-safe status tracker for the drivestats daemon.
// It is read by the HTTP handlers and by the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/drivestats/internal/logic"
	"github.com/sweeney/drivestats/internal/ring"
)

// recentCapacity is how many recent events the tracker keeps for display.
const recentCapacity = 20

// Config contains daemon configuration for display.
type Config struct {
	IdleIntervalMs   int64
	ActiveIntervalMs int64
	HeartbeatMs      int64
	Classification   string
	PodiumByClass    bool
	SetupEnabled     bool
	SetupDir         string
	Source           string
	DBPath           string
	Broker           string
	HTTPAddr         string
}

// Live is the per-tick state published by runLoop.
type Live struct {
	Tracking     bool
	Paused       bool
	Stale        bool
	Key          logic.Key
	LiveMeters   float64
	Session      logic.Record
	PendingSetup string
	Counts       logic.Counts
}

// Flush describes the last activation written to the store.
type Flush struct {
	At     time.Time
	Key    logic.Key
	Delta  logic.Record
	Totals logic.Record
}

// RecentEvent is one line of the recent activity list.
type RecentEvent struct {
	At     time.Time
	Event  string
	Detail string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Live
	LastFlush     *Flush
	Recent        []RecentEvent
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu        sync.RWMutex
	snap      Snapshot
	recent    *ring.Buffer[RecentEvent]
	lastFlush *Flush
	now       func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		recent: ring.New[RecentEvent](recentCapacity),
		now:    time.Now,
	}
}

// Update replaces the live state. Called from runLoop on every tick.
func (t *Tracker) Update(live Live) {
	t.mu.Lock()
	t.snap.Live = live
	t.mu.Unlock()
}

// SetFlushed records the most recent store write.
func (t *Tracker) SetFlushed(f Flush) {
	t.mu.Lock()
	t.lastFlush = &f
	t.mu.Unlock()
}

// AddEvent appends to the recent activity list, dropping the oldest entry
// once full.
func (t *Tracker) AddEvent(at time.Time, event, detail string) {
	t.mu.Lock()
	t.recent.Push(RecentEvent{At: at, Event: event, Detail: detail})
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if t.lastFlush != nil {
		f := *t.lastFlush
		s.LastFlush = &f
	}
	s.Recent = t.recent.Items()
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
