package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/drivestats/internal/gpio"
	"github.com/sweeney/drivestats/internal/logic"
	"github.com/sweeney/drivestats/internal/mqtt"
	"github.com/sweeney/drivestats/internal/setupfile"
	"github.com/sweeney/drivestats/internal/status"
	"github.com/sweeney/drivestats/internal/store"
	"github.com/sweeney/drivestats/internal/telemetry"
)

// loopDeps are the adapters runLoop drives. Pause, Sink, MQTT and Status
// may be nil.
type loopDeps struct {
	Poller    *telemetry.Poller
	Pause     *gpio.PauseSwitch
	Store     store.Store
	Sink      setupfile.Sink
	Publisher mqtt.Publisher
	MQTT      mqtt.ConnectionStatus
	Status    *status.Tracker
}

type loopConfig struct {
	Tracker        logic.TrackerConfig
	Setup          logic.SetupConfig
	SetupEnabled   bool
	IdleInterval   time.Duration
	ActiveInterval time.Duration
	Heartbeat      time.Duration
}

// host carries the per-run state of runLoop.
type host struct {
	loopDeps
	cfg loopConfig
	now func() time.Time

	stats     *logic.StatsTracker
	setup     *logic.SetupCapture
	heartbeat *logic.Heartbeat
	counts    logic.Counts

	interval    time.Duration
	setInterval func(time.Duration)

	readFailing bool
	stale       bool
	paused      bool

	// unsaved names a capture that produced no file, so its rename is skipped.
	unsaved string
}

// runLoop samples telemetry on every tick until a signal arrives or ctx is
// done. An activation in progress is flushed before it returns.
func runLoop(ctx context.Context, d loopDeps, cfg loopConfig, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, setInterval func(time.Duration)) error {
	if setInterval == nil {
		setInterval = func(time.Duration) {}
	}
	h := &host{
		loopDeps:    d,
		cfg:         cfg,
		now:         now,
		stats:       logic.NewStatsTracker(cfg.Tracker),
		setup:       logic.NewSetupCapture(cfg.Setup),
		heartbeat:   logic.NewHeartbeat(now()),
		interval:    cfg.IdleInterval,
		setInterval: setInterval,
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			h.shutdown(context.WithoutCancel(ctx), signalName(s))
			return nil

		case <-ctx.Done():
			h.shutdown(context.WithoutCancel(ctx), "CANCELLED")
			return nil

		case <-tick:
			h.step(ctx, h.now())
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func (h *host) step(ctx context.Context, t time.Time) {
	h.counts.Ticks++

	frame, stale, err := h.Poller.Poll(ctx)
	h.stale = stale
	if stale {
		h.counts.StaleReads++
	}
	if err != nil {
		if !h.readFailing {
			log.Printf("telemetry: %v", err)
		}
		h.readFailing = true
	} else if h.readFailing {
		log.Printf("telemetry: reads recovered")
		h.readFailing = false
	}
	if !h.Poller.HasFrame() {
		h.publishStatus(t)
		return
	}

	state := frame.State
	if h.Pause != nil {
		p, err := h.Pause.Paused()
		if err != nil {
			log.Printf("gpio: pause switch: %v", err)
		}
		state.Paused = state.Paused || p
	}
	if state.Paused != h.paused {
		log.Printf("setup: capture paused=%v", state.Paused)
		h.paused = state.Paused
	}

	for _, ev := range h.stats.Process(state, frame.Sample) {
		h.handleStats(ctx, t, ev)
	}

	if h.cfg.SetupEnabled && h.Sink != nil && !state.Paused && !state.Spectating && !state.Overriding {
		for _, a := range h.setup.Advance(logic.SetupInput{Sample: frame.Sample, Now: t}) {
			h.applySetup(t, a)
		}
	}

	h.switchInterval()
	h.publishStatus(t)
}

// switchInterval moves between the idle and active polling regimes.
func (h *host) switchInterval() {
	want := h.cfg.IdleInterval
	if h.stats.Tracking() {
		want = h.cfg.ActiveInterval
	}
	if want == h.interval || want <= 0 {
		return
	}
	h.interval = want
	h.setInterval(want)
}

func (h *host) handleStats(ctx context.Context, t time.Time, ev logic.StatsEvent) {
	out := mqtt.Event{Timestamp: t, Type: string(ev.Type), Key: ev.Key}

	switch ev.Type {
	case logic.EventActivated:
		h.counts.Activations++
		rec, err := h.Store.Load(ctx, ev.Key)
		if err != nil {
			log.Printf("stats: load %s: %v", ev.Key, err)
			rec = logic.NewRecord()
		}
		h.stats.SetBaseline(rec)
		log.Printf("stats: tracking %s (%.0f m on record)", ev.Key, rec.Meters)
		h.addEvent(t, string(ev.Type), ev.Key.String())

	case logic.EventFlush:
		h.counts.Flushes++
		delta := ev.Delta
		out.Delta = &delta
		totals, err := h.Store.Save(ctx, ev.Key, ev.Delta)
		if err != nil {
			log.Printf("stats: save %s: %v", ev.Key, err)
		} else {
			out.Totals = &totals
			if h.Status != nil {
				h.Status.SetFlushed(status.Flush{At: t, Key: ev.Key, Delta: delta, Totals: totals})
			}
		}
		log.Printf("stats: flushed %s: +%.0f m, %d valid, %d invalid laps",
			ev.Key, delta.Meters, delta.Valid, delta.Invalid)
		h.addEvent(t, string(ev.Type), fmt.Sprintf("%s +%.1f km", ev.Key, delta.Meters/1000))

	case logic.EventAbandoned:
		h.counts.Abandoned++
		log.Printf("stats: abandoned %s (spectating or overriding)", ev.Key)
		h.addEvent(t, string(ev.Type), ev.Key.String())
	}

	h.publish(out)
}

func (h *host) applySetup(t time.Time, a logic.SetupAction) {
	switch a.Kind {
	case logic.ActionWrite:
		lines := setupfile.ExportLMU(a.Payload, a.Class)
		if len(lines) == 0 {
			log.Printf("setup: %q has no vehicle class, not saved", a.Name)
			h.unsaved = a.Name
			return
		}
		if err := h.Sink.Write(a.Name, lines); err != nil {
			log.Printf("setup: write %q: %v", a.Name, err)
			return
		}
		h.counts.SetupsSaved++
		log.Printf("setup: saved %q", a.Name)
		h.addEvent(t, mqtt.EventSetupSaved, a.Name)
		h.publish(mqtt.Event{Timestamp: t, Type: mqtt.EventSetupSaved, File: a.Name})

	case logic.ActionRename:
		if a.Name == h.unsaved {
			h.unsaved = ""
			return
		}
		if err := h.Sink.Rename(a.Name, a.NewName); err != nil {
			log.Printf("setup: rename %q: %v", a.Name, err)
			return
		}
		h.counts.SetupsRenamed++
		log.Printf("setup: renamed %q -> %q", a.Name, a.NewName)
		h.addEvent(t, mqtt.EventSetupRenamed, a.NewName)
		h.publish(mqtt.Event{Timestamp: t, Type: mqtt.EventSetupRenamed, File: a.Name, NewFile: a.NewName})
	}
}

func (h *host) publish(ev mqtt.Event) {
	if err := h.Publisher.Publish(ev); err != nil {
		log.Printf("publish error: %v", err)
	}
}

func (h *host) addEvent(t time.Time, event, detail string) {
	if h.Status != nil {
		h.Status.AddEvent(t, event, detail)
	}
}

// publishStatus refreshes the status tracker and sends a heartbeat when due.
func (h *host) publishStatus(t time.Time) {
	h.updateStatus()

	hb := h.heartbeat.Check(t, h.cfg.Heartbeat, h.counts)
	if hb == nil {
		return
	}
	log.Printf("heartbeat: uptime=%v ticks=%d stale=%d flushes=%d setups=%d",
		hb.Uptime, hb.Counts.Ticks, hb.Counts.StaleReads, hb.Counts.Flushes, hb.Counts.SetupsSaved)
	event := mqtt.SystemEvent{Timestamp: hb.Timestamp, Event: "HEARTBEAT"}
	if h.Status != nil {
		event.RawPayload = status.FormatStatusEvent(h.Status.Snapshot(), "HEARTBEAT", "")
	}
	if err := h.Publisher.PublishSystem(event); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

func (h *host) updateStatus() {
	if h.Status == nil {
		return
	}
	live := status.Live{
		Tracking:     h.stats.Tracking(),
		Paused:       h.paused,
		Stale:        h.stale,
		PendingSetup: h.setup.Pending(),
		Counts:       h.counts,
	}
	if live.Tracking {
		live.Key = h.stats.Key()
		live.LiveMeters = h.stats.LiveMeters()
		live.Session = h.stats.Delta()
	}
	h.Status.Update(live)
	if h.MQTT != nil {
		h.Status.SetMQTTConnected(h.MQTT.IsConnected())
	}
}

func (h *host) shutdown(ctx context.Context, reason string) {
	if ev, ok := h.stats.Flush(); ok {
		h.handleStats(ctx, h.now(), ev)
	}
	h.updateStatus()

	event := mqtt.SystemEvent{
		Timestamp: h.now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if h.Status != nil {
		event.RawPayload = status.FormatStatusEvent(h.Status.Snapshot(), "SHUTDOWN", reason)
	}
	if err := h.Publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}
