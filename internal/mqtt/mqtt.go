// Package mqtt publishes statistics and setup events to an MQTT broker, with
// an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/drivestats/internal/logic"
)

// Topic is the MQTT topic for statistics and setup events.
const Topic = "drivestats/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "drivestats/system"

// Event types published on Topic. The first three mirror the tracker's
// transitions.
const (
	EventActivated    = string(logic.EventActivated)
	EventFlushed      = string(logic.EventFlush)
	EventAbandoned    = string(logic.EventAbandoned)
	EventSetupSaved   = "SETUP_SAVED"
	EventSetupRenamed = "SETUP_RENAMED"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a stats or setup event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Event is a statistics or setup capture event.
type Event struct {
	Timestamp time.Time
	Type      string
	Key       logic.Key
	Delta     *logic.Record // FLUSHED only
	Totals    *logic.Record // FLUSHED only
	File      string        // setup events
	NewFile   string        // SETUP_RENAMED only
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Drivestats EventPayload `json:"drivestats"`
}

// EventPayload contains the event details.
type EventPayload struct {
	Timestamp string         `json:"timestamp"`
	Event     string         `json:"event"`
	Track     string         `json:"track,omitempty"`
	Subject   string         `json:"subject,omitempty"`
	Delta     *RecordPayload `json:"delta,omitempty"`
	Totals    *RecordPayload `json:"totals,omitempty"`
	File      string         `json:"file,omitempty"`
	NewFile   string         `json:"new_file,omitempty"`
}

// RecordPayload is the wire form of a record. Unset best laps are omitted
// because JSON has no infinity.
type RecordPayload struct {
	Meters         float64  `json:"meters"`
	Valid          int      `json:"valid_laps"`
	Invalid        int      `json:"invalid_laps"`
	Seconds        float64  `json:"seconds"`
	Liters         float64  `json:"liters"`
	Penalties      int      `json:"penalties"`
	Races          int      `json:"races"`
	Wins           int      `json:"wins"`
	Podiums        int      `json:"podiums"`
	PersonalBest   *float64 `json:"personal_best,omitempty"`
	QualifyingBest *float64 `json:"qualifying_best,omitempty"`
	RaceBest       *float64 `json:"race_best,omitempty"`
}

// NewRecordPayload converts a record to its wire form.
func NewRecordPayload(r logic.Record) *RecordPayload {
	return &RecordPayload{
		Meters:         r.Meters,
		Valid:          r.Valid,
		Invalid:        r.Invalid,
		Seconds:        r.Seconds,
		Liters:         r.Liters,
		Penalties:      r.Penalties,
		Races:          r.Races,
		Wins:           r.Wins,
		Podiums:        r.Podiums,
		PersonalBest:   bestPtr(r.PersonalBest),
		QualifyingBest: bestPtr(r.QualifyingBest),
		RaceBest:       bestPtr(r.RaceBest),
	}
}

func bestPtr(v float64) *float64 {
	if !logic.IsSet(v) {
		return nil
	}
	return &v
}

// FormatPayload creates the JSON payload for an event.
func FormatPayload(event Event) ([]byte, error) {
	inner := EventPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     event.Type,
		Track:     event.Key.Track,
		Subject:   event.Key.Subject,
		File:      event.File,
		NewFile:   event.NewFile,
	}
	if event.Delta != nil {
		inner.Delta = NewRecordPayload(*event.Delta)
	}
	if event.Totals != nil {
		inner.Totals = NewRecordPayload(*event.Totals)
	}
	return json.Marshal(Payload{Drivestats: inner})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
