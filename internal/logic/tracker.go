package logic

import "math"

const (
	// MaxMoveSpeed caps plausible movement in m/s; anything faster between two
	// ticks is a teleport (reset to pits, session restart) and is discarded.
	MaxMoveSpeed = 1500.0

	laptimeEpsilon = 0.001 // max gap between reported and measured lap time
	minLapElapsed  = 2.0   // seconds into a lap before a start edge counts
	movingSpeed    = 1.0   // m/s; slower than this is not time on track
)

// TrackerConfig configures a StatsTracker.
type TrackerConfig struct {
	Mode          ClassificationMode
	Brands        map[string]string
	PodiumByClass bool
	// TickSeconds is the sampling interval while tracking. It sets the
	// per-tick teleport cap.
	TickSeconds float64
}

// StatsTracker accumulates per-activation statistics from successive
// samples. It performs no I/O; persistence is driven by the returned events.
type StatsTracker struct {
	cfg     TrackerConfig
	maxMove float64

	tracking bool
	key      Key
	baseline Record
	delta    Record

	pitLap      bool
	lapStart    optFloat
	lapElapsed  optFloat
	bestLaptime optFloat
	rawLaptime  optFloat
	penalties   optInt
	finishState optInt
	position    optPos
	fuel        float64
}

// NewStatsTracker creates an idle tracker.
func NewStatsTracker(cfg TrackerConfig) *StatsTracker {
	return &StatsTracker{
		cfg:      cfg,
		maxMove:  MaxMoveSpeed * cfg.TickSeconds,
		baseline: NewRecord(),
		delta:    NewRecord(),
	}
}

// Process feeds one sample. It returns an event on activation edges and nil
// on ordinary ticks.
func (t *StatsTracker) Process(ctx Context, s Sample) []StatsEvent {
	// Spectating or overriding drops the activation without saving it.
	if ctx.Spectating || ctx.Overriding {
		if !t.tracking {
			return nil
		}
		t.tracking = false
		return []StatsEvent{{Type: EventAbandoned, Key: t.key}}
	}

	if !ctx.Active {
		if !t.tracking {
			return nil
		}
		ev, _ := t.Flush()
		return []StatsEvent{ev}
	}

	var events []StatsEvent
	if !t.tracking {
		t.activate(s)
		events = append(events, StatsEvent{Type: EventActivated, Key: t.key})
	}

	t.sample(s)
	return events
}

// SetBaseline installs the persisted record loaded for the current key.
// It only affects LiveMeters; the delta is saved separately.
func (t *StatsTracker) SetBaseline(r Record) {
	t.baseline = r.Sanitize()
}

// Flush ends the current activation and returns its delta. The second value
// is false if nothing was being tracked.
func (t *StatsTracker) Flush() (StatsEvent, bool) {
	if !t.tracking {
		return StatsEvent{}, false
	}
	t.tracking = false
	return StatsEvent{Type: EventFlush, Key: t.key, Delta: t.delta}, true
}

// Tracking reports whether an activation is in progress.
func (t *StatsTracker) Tracking() bool { return t.tracking }

// Key returns the key of the current (or last) activation.
func (t *StatsTracker) Key() Key { return t.key }

// Delta returns the statistics accumulated in the current activation.
func (t *StatsTracker) Delta() Record { return t.delta }

// LiveMeters returns persisted plus session distance.
func (t *StatsTracker) LiveMeters() float64 {
	return t.baseline.Meters + t.delta.Meters
}

func (t *StatsTracker) activate(s Sample) {
	t.tracking = true
	t.key = DeriveKey(t.cfg.Mode, s.Track, s.Vehicle, s.Class, t.cfg.Brands)
	t.baseline = NewRecord()
	t.delta = NewRecord()
	t.pitLap = false
	t.lapStart = optFloat{}
	t.lapElapsed = optFloat{}
	t.bestLaptime = optFloat{}
	t.rawLaptime = optFloat{}
	t.penalties = optInt{}
	t.finishState = optInt{}
	t.position = optPos{}
	t.fuel = 0
}

func (t *StatsTracker) sample(s Sample) {
	d := &t.delta
	t.pitLap = t.pitLap || s.InPits

	// Best lap time: last reported lap must match the measured one.
	lv := s.LastLaptime
	if lv > 0 && t.bestLaptime.greater(lv) &&
		t.rawLaptime.ok && math.Abs(lv-t.rawLaptime.v) < laptimeEpsilon {
		t.bestLaptime.set(lv)
		if d.PersonalBest > lv {
			d.PersonalBest = lv
		}
		switch s.Phase {
		case PhaseQualifying:
			if d.QualifyingBest > lv {
				d.QualifyingBest = lv
			}
		case PhaseRace:
			if d.RaceBest > lv {
				d.RaceBest = lv
			}
		}
	}

	// Driven distance. The watermark advances even when the move is
	// discarded so one real jump is not re-measured on every tick.
	if t.position.differs(s.Position) {
		if t.position.ok {
			if moved := distance(t.position.v, s.Position); moved < t.maxMove {
				d.Meters += moved
			}
		}
		t.position.set(s.Position)
	}

	// Laps completed.
	if t.lapStart.greater(s.LapStart) {
		t.lapStart.set(s.LapStart)
	} else if t.lapStart.less(s.LapStart) && s.LapElapsed-s.LapStart > minLapElapsed {
		t.rawLaptime.set(s.LapStart - t.lapStart.v)
		if lv > 0 {
			d.Valid++
		} else if !t.pitLap {
			d.Invalid++
		}
		t.pitLap = false
		t.lapStart.set(s.LapStart)
	}

	// Time on track.
	if t.lapElapsed.greater(s.LapElapsed) {
		t.lapElapsed.set(s.LapElapsed)
	} else if t.lapElapsed.less(s.LapElapsed) {
		if s.Speed > movingSpeed {
			d.Seconds += s.LapElapsed - t.lapElapsed.v
		}
		t.lapElapsed.set(s.LapElapsed)
	}

	// Fuel: a rise is a refuel, a drop is consumption.
	if t.fuel < s.Fuel {
		t.fuel = s.Fuel
	} else if t.fuel > s.Fuel {
		d.Liters += t.fuel - s.Fuel
		t.fuel = s.Fuel
	}

	if s.Phase != PhaseRace {
		return
	}

	if t.penalties.greater(s.Penalties) {
		t.penalties.set(s.Penalties)
	} else if t.penalties.less(s.Penalties) {
		d.Penalties += s.Penalties - t.penalties.v
		t.penalties.set(s.Penalties)
	}

	if t.finishState.greater(s.FinishState) {
		t.finishState.set(s.FinishState)
	} else if t.finishState.v == FinishNone && t.finishState.less(s.FinishState) {
		t.finishState.set(s.FinishState)
		if s.FinishState == FinishFinished {
			d.Races++
			place := FinishPosition(s.Place, t.cfg.PodiumByClass, s.Class, s.Vehicles)
			if place == 1 {
				d.Wins++
			}
			if place <= 3 {
				d.Podiums++
			}
		}
	}
}

func distance(a, b [3]float64) float64 {
	dx, dy, dz := b[0]-a[0], b[1]-a[1], b[2]-a[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
