// Package logic contains the pure state machines that turn telemetry samples
// into driver statistics and setup capture actions.
// This package has NO external dependencies (no sim API, MQTT, SQLite, OS).
// Time and telemetry are always injected through Sample and SetupInput.
package logic

import (
	"math"
)

// Phase is the session type reported by the sim.
type Phase int

const (
	PhaseOther      Phase = 0
	PhasePractice   Phase = 1
	PhaseQualifying Phase = 2
	PhaseRace       Phase = 4
)

// Finish state codes reported by the sim.
const (
	FinishNone         = 0
	FinishFinished     = 1
	FinishDNF          = 2
	FinishDisqualified = 3
)

// Competitor is one entry of the vehicle list.
type Competitor struct {
	Place int    `json:"place"`
	Class string `json:"class"`
	Name  string `json:"name"`
}

// Sample is a point-in-time read of the sim. Every field is instantaneous;
// nothing is buffered between ticks.
type Sample struct {
	Phase          Phase   `json:"phase"`
	SessionElapsed float64 `json:"session_elapsed"`
	Track          string  `json:"track"`

	LapStart    float64 `json:"lap_start"`
	LapElapsed  float64 `json:"lap_elapsed"`
	LastLaptime float64 `json:"last_laptime"`

	InPits      bool       `json:"in_pits"`
	InGarage    bool       `json:"in_garage"`
	Position    [3]float64 `json:"position"`
	Speed       float64    `json:"speed"`
	Fuel        float64    `json:"fuel"`
	Penalties   int        `json:"penalties"`
	FinishState int        `json:"finish_state"`
	Place       int        `json:"place"`
	Vehicle     string     `json:"vehicle"`
	Class       string     `json:"class"`

	Vehicles []Competitor `json:"vehicles,omitempty"`
	Setup    SetupPayload `json:"setup,omitempty"`
}

// Context carries the host flags that gate tracking on a given tick.
type Context struct {
	Active     bool `json:"active"`
	Spectating bool `json:"spectating"`
	Overriding bool `json:"overriding"`
	Paused     bool `json:"paused"`
}

// Record holds accumulated driver statistics for one key.
// Best lap fields are in seconds; +Inf means unset.
type Record struct {
	Meters         float64 `json:"meters"`
	Valid          int     `json:"valid"`
	Invalid        int     `json:"invalid"`
	Seconds        float64 `json:"seconds"`
	Liters         float64 `json:"liters"`
	Penalties      int     `json:"penalties"`
	Races          int     `json:"races"`
	Wins           int     `json:"wins"`
	Podiums        int     `json:"podiums"`
	PersonalBest   float64 `json:"pb"`
	QualifyingBest float64 `json:"qb"`
	RaceBest       float64 `json:"rb"`
}

// NewRecord returns a zero record with every best lap unset.
func NewRecord() Record {
	inf := math.Inf(1)
	return Record{PersonalBest: inf, QualifyingBest: inf, RaceBest: inf}
}

// IsSet reports whether a best lap value holds a real time.
func IsSet(laptime float64) bool {
	return laptime > 0 && !math.IsInf(laptime, 0) && !math.IsNaN(laptime)
}

// Merge adds delta to r. Counters add; best laps keep the lower set value.
func (r Record) Merge(delta Record) Record {
	r = r.Sanitize()
	delta = delta.Sanitize()
	r.Meters += delta.Meters
	r.Valid += delta.Valid
	r.Invalid += delta.Invalid
	r.Seconds += delta.Seconds
	r.Liters += delta.Liters
	r.Penalties += delta.Penalties
	r.Races += delta.Races
	r.Wins += delta.Wins
	r.Podiums += delta.Podiums
	r.PersonalBest = minBest(r.PersonalBest, delta.PersonalBest)
	r.QualifyingBest = minBest(r.QualifyingBest, delta.QualifyingBest)
	r.RaceBest = minBest(r.RaceBest, delta.RaceBest)
	return r
}

// Sanitize clamps values that cannot come from a healthy record:
// negative or NaN accumulators become zero, invalid best laps become unset.
func (r Record) Sanitize() Record {
	r.Meters = nonNegative(r.Meters)
	r.Seconds = nonNegative(r.Seconds)
	r.Liters = nonNegative(r.Liters)
	r.Valid = max(r.Valid, 0)
	r.Invalid = max(r.Invalid, 0)
	r.Penalties = max(r.Penalties, 0)
	r.Races = max(r.Races, 0)
	r.Wins = max(r.Wins, 0)
	r.Podiums = max(r.Podiums, 0)
	if !IsSet(r.PersonalBest) {
		r.PersonalBest = math.Inf(1)
	}
	if !IsSet(r.QualifyingBest) {
		r.QualifyingBest = math.Inf(1)
	}
	if !IsSet(r.RaceBest) {
		r.RaceBest = math.Inf(1)
	}
	return r
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func minBest(a, b float64) float64 {
	if !IsSet(b) {
		return a
	}
	if !IsSet(a) || b < a {
		return b
	}
	return a
}

// Key identifies a statistics record.
type Key struct {
	Track   string
	Subject string
}

func (k Key) String() string {
	return k.Track + " / " + k.Subject
}

// ClassificationMode selects how the subject half of a Key is derived.
type ClassificationMode string

const (
	ClassifyVehicle    ClassificationMode = "Vehicle"
	ClassifyClass      ClassificationMode = "Class"
	ClassifyClassBrand ClassificationMode = "Class - Brand"
)

// ParseClassificationMode maps a config value to a mode. Unknown values fall
// back to per-vehicle keys.
func ParseClassificationMode(s string) ClassificationMode {
	switch ClassificationMode(s) {
	case ClassifyClass:
		return ClassifyClass
	case ClassifyClassBrand:
		return ClassifyClassBrand
	default:
		return ClassifyVehicle
	}
}

// DeriveKey builds the record key for the current track and vehicle.
func DeriveKey(mode ClassificationMode, track, vehicle, class string, brands map[string]string) Key {
	var subject string
	switch mode {
	case ClassifyClass:
		subject = class
	case ClassifyClassBrand:
		if brand := brands[vehicle]; brand != "" {
			subject = class + " - " + brand
		} else {
			subject = class
		}
	default:
		subject = vehicle
	}
	return Key{Track: track, Subject: subject}
}

// StatsEventType identifies a StatsTracker transition.
type StatsEventType string

const (
	EventActivated StatsEventType = "ACTIVATED"
	EventFlush     StatsEventType = "FLUSHED"
	EventAbandoned StatsEventType = "ABANDONED"
)

// StatsEvent is emitted on activation edges. Delta is only meaningful for
// EventFlush.
type StatsEvent struct {
	Type  StatsEventType
	Key   Key
	Delta Record
}
