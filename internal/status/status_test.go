package status

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/drivestats/internal/logic"
)

var testKey = logic.Key{Track: "Sebring", Subject: "Porsche 963"}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{IdleIntervalMs: 1000, ActiveIntervalMs: 200, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.ActiveIntervalMs != 200 {
		t.Errorf("Config.ActiveIntervalMs: got %d, want 200", snap.Config.ActiveIntervalMs)
	}
	if snap.Tracking {
		t.Error("expected Tracking=false initially")
	}
	if snap.State() != "WAITING" {
		t.Errorf("State: got %q, want WAITING", snap.State())
	}
	if snap.LastFlush != nil {
		t.Error("expected no flush initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	session := logic.NewRecord()
	session.Meters = 512
	tr.Update(Live{
		Tracking:   true,
		Key:        testKey,
		LiveMeters: 10512,
		Session:    session,
		Counts:     logic.Counts{Ticks: 7, Activations: 1},
	})

	snap := tr.Snapshot()
	if !snap.Tracking || snap.State() != "TRACKING" {
		t.Errorf("expected tracking state, got %q", snap.State())
	}
	if snap.Key != testKey {
		t.Errorf("Key: got %v", snap.Key)
	}
	if snap.LiveMeters != 10512 {
		t.Errorf("LiveMeters: got %v", snap.LiveMeters)
	}
	if snap.Counts.Ticks != 7 {
		t.Errorf("Counts.Ticks: got %d, want 7", snap.Counts.Ticks)
	}

	tr.Update(Live{Counts: logic.Counts{Ticks: 8}})
	if got := tr.Snapshot().State(); got != "IDLE" {
		t.Errorf("State: got %q, want IDLE", got)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetFlushedIsCopied(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	totals := logic.NewRecord()
	totals.Valid = 5
	tr.SetFlushed(Flush{At: time.Now(), Key: testKey, Totals: totals})

	snap := tr.Snapshot()
	if snap.LastFlush == nil || snap.LastFlush.Totals.Valid != 5 {
		t.Fatalf("unexpected flush: %+v", snap.LastFlush)
	}
	snap.LastFlush.Totals.Valid = 99
	if tr.Snapshot().LastFlush.Totals.Valid != 5 {
		t.Error("mutating a snapshot must not affect the tracker")
	}
}

func TestRecentEventsBounded(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < recentCapacity+5; i++ {
		tr.AddEvent(at.Add(time.Duration(i)*time.Second), "TICK", fmt.Sprint(i))
	}

	recent := tr.Snapshot().Recent
	if len(recent) != recentCapacity {
		t.Fatalf("expected %d recent events, got %d", recentCapacity, len(recent))
	}
	if recent[0].Detail != "5" {
		t.Errorf("oldest kept event: got %q, want 5", recent[0].Detail)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(n int) {
			defer wg.Done()
			tr.Update(Live{Counts: logic.Counts{Ticks: n}})
		}(i)
		go func() {
			defer wg.Done()
			tr.AddEvent(time.Now(), "FLUSHED", "x")
		}()
		go func() {
			defer wg.Done()
			_ = tr.Snapshot()
		}()
	}
	wg.Wait()
}

func fixedSnapshot() Snapshot {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	session := logic.NewRecord()
	session.Meters = 1500
	session.Valid = 2
	session.PersonalBest = 110.5
	totals := logic.NewRecord()
	totals.Meters = 25000
	return Snapshot{
		Live: Live{
			Tracking:     true,
			Key:          testKey,
			LiveMeters:   26500,
			Session:      session,
			PendingSetup: "LMU - x",
			Counts:       logic.Counts{Ticks: 42, Flushes: 1},
		},
		LastFlush:     &Flush{At: start, Key: testKey, Totals: totals},
		Recent:        []RecentEvent{{At: start, Event: "ACTIVATED", Detail: testKey.String()}},
		StartTime:     start,
		Now:           start.Add(90 * time.Second),
		MQTTConnected: true,
		Config:        Config{ActiveIntervalMs: 200, Broker: "tcp://broker:1883", Source: "replay"},
	}
}

func TestFormatJSON(t *testing.T) {
	var sj StatusJSON
	if err := json.Unmarshal(FormatJSON(fixedSnapshot()), &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := sj.Status
	if s.State != "TRACKING" {
		t.Errorf("State: got %q", s.State)
	}
	if s.Track != "Sebring" || s.Subject != "Porsche 963" {
		t.Errorf("key: got %q / %q", s.Track, s.Subject)
	}
	if s.Session == nil || s.Session.Meters != 1500 || s.Session.PersonalBest == nil {
		t.Errorf("unexpected session: %+v", s.Session)
	}
	if s.Session.QualifyingBest != nil {
		t.Error("unset best should be omitted")
	}
	if s.LastFlush == nil || s.LastFlush.Totals.Meters != 25000 {
		t.Errorf("unexpected last flush: %+v", s.LastFlush)
	}
	if s.UptimeSeconds != 90 {
		t.Errorf("UptimeSeconds: got %d, want 90", s.UptimeSeconds)
	}
	if len(s.Recent) != 1 || s.Recent[0].Event != "ACTIVATED" {
		t.Errorf("unexpected recent: %+v", s.Recent)
	}
	if s.Event != "" || s.Reason != "" {
		t.Error("web JSON must not carry event/reason")
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("unexpected mqtt: %+v", s.MQTT)
	}
}

func TestFormatJSONIdleOmitsSession(t *testing.T) {
	snap := fixedSnapshot()
	snap.Tracking = false

	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(FormatJSON(snap), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, field := range []string{"session", "track", "subject"} {
		if _, ok := raw["status"][field]; ok {
			t.Errorf("%s should be omitted while idle", field)
		}
	}
}

func TestFormatStatusEvent(t *testing.T) {
	var sj StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(fixedSnapshot(), "SHUTDOWN", "SIGTERM"), &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if sj.Status.Event != "SHUTDOWN" || sj.Status.Reason != "SIGTERM" {
		t.Errorf("event/reason: got %q/%q", sj.Status.Event, sj.Status.Reason)
	}
	if len(sj.Status.Recent) != 0 {
		t.Error("status events should not carry the recent list")
	}
	if sj.Status.Counts.Ticks != 42 {
		t.Errorf("Counts.Ticks: got %d", sj.Status.Counts.Ticks)
	}
}
