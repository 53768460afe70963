package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/drivestats/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	State         string       `json:"state"`
	Paused        bool         `json:"paused"`
	Stale         bool         `json:"stale"`
	Track         string       `json:"track,omitempty"`
	Subject       string       `json:"subject,omitempty"`
	LiveMeters    float64      `json:"live_meters"`
	Session       *RecordJSON  `json:"session,omitempty"`
	PendingSetup  string       `json:"pending_setup,omitempty"`
	LastFlush     *FlushJSON   `json:"last_flush,omitempty"`
	Recent        []RecentJSON `json:"recent,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// RecordJSON is the JSON representation of a record. Unset bests are omitted.
type RecordJSON struct {
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

// FlushJSON is the JSON representation of the last store write.
type FlushJSON struct {
	Timestamp string     `json:"timestamp"`
	Track     string     `json:"track"`
	Subject   string     `json:"subject"`
	Delta     RecordJSON `json:"delta"`
	Totals    RecordJSON `json:"totals"`
}

// RecentJSON is one recent activity entry.
type RecentJSON struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Detail    string `json:"detail,omitempty"`
}

// CountsJSON is the JSON representation of loop counters.
type CountsJSON struct {
	Ticks         int `json:"ticks"`
	StaleReads    int `json:"stale_reads"`
	Activations   int `json:"activations"`
	Flushes       int `json:"flushes"`
	Abandoned     int `json:"abandoned"`
	SetupsSaved   int `json:"setups_saved"`
	SetupsRenamed int `json:"setups_renamed"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	IdleIntervalMs   int64  `json:"idle_interval_ms"`
	ActiveIntervalMs int64  `json:"active_interval_ms"`
	HeartbeatMs      int64  `json:"heartbeat_ms"`
	Classification   string `json:"classification"`
	PodiumByClass    bool   `json:"podium_by_class"`
	SetupEnabled     bool   `json:"setup_enabled"`
	SetupDir         string `json:"setup_dir,omitempty"`
	Source           string `json:"source"`
	DBPath           string `json:"db_path"`
	Broker           string `json:"broker,omitempty"`
	HTTPAddr         string `json:"http_addr,omitempty"`
}

// State returns the display name of the tracker state.
func (s Snapshot) State() string {
	switch {
	case s.Tracking:
		return "TRACKING"
	case s.Counts.Ticks == 0:
		return "WAITING"
	default:
		return "IDLE"
	}
}

// NewRecordJSON converts a record for display.
func NewRecordJSON(r logic.Record) RecordJSON {
	return RecordJSON{
		Meters:         r.Meters,
		Valid:          r.Valid,
		Invalid:        r.Invalid,
		Seconds:        r.Seconds,
		Liters:         r.Liters,
		Penalties:      r.Penalties,
		Races:          r.Races,
		Wins:           r.Wins,
		Podiums:        r.Podiums,
		PersonalBest:   optionalBest(r.PersonalBest),
		QualifyingBest: optionalBest(r.QualifyingBest),
		RaceBest:       optionalBest(r.RaceBest),
	}
}

func optionalBest(v float64) *float64 {
	if !logic.IsSet(v) {
		return nil
	}
	return &v
}

func buildInner(snap Snapshot) StatusInner {
	c := snap.Counts
	inner := StatusInner{
		State:         snap.State(),
		Paused:        snap.Paused,
		Stale:         snap.Stale,
		LiveMeters:    snap.LiveMeters,
		PendingSetup:  snap.PendingSetup,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Ticks:         c.Ticks,
			StaleReads:    c.StaleReads,
			Activations:   c.Activations,
			Flushes:       c.Flushes,
			Abandoned:     c.Abandoned,
			SetupsSaved:   c.SetupsSaved,
			SetupsRenamed: c.SetupsRenamed,
		},
		Config: ConfigJSON{
			IdleIntervalMs:   snap.Config.IdleIntervalMs,
			ActiveIntervalMs: snap.Config.ActiveIntervalMs,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			Classification:   snap.Config.Classification,
			PodiumByClass:    snap.Config.PodiumByClass,
			SetupEnabled:     snap.Config.SetupEnabled,
			SetupDir:         snap.Config.SetupDir,
			Source:           snap.Config.Source,
			DBPath:           snap.Config.DBPath,
			Broker:           snap.Config.Broker,
			HTTPAddr:         snap.Config.HTTPAddr,
		},
	}
	if snap.Tracking {
		inner.Track = snap.Key.Track
		inner.Subject = snap.Key.Subject
		session := NewRecordJSON(snap.Session)
		inner.Session = &session
	}
	if f := snap.LastFlush; f != nil {
		inner.LastFlush = &FlushJSON{
			Timestamp: f.At.UTC().Format(time.RFC3339),
			Track:     f.Key.Track,
			Subject:   f.Key.Subject,
			Delta:     NewRecordJSON(f.Delta),
			Totals:    NewRecordJSON(f.Totals),
		}
	}
	for _, e := range snap.Recent {
		inner.Recent = append(inner.Recent, RecentJSON{
			Timestamp: e.At.UTC().Format(time.RFC3339),
			Event:     e.Event,
			Detail:    e.Detail,
		})
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
// The recent activity list is left out to keep the message small.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	inner.Recent = nil

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
