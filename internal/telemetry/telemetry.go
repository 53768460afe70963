// Package telemetry reads simulation telemetry frames from replay files or
// an MQTT bridge and bounds every read with a timeout.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/sweeney/drivestats/internal/logic"
)

// ErrNoSamples is returned when a source has nothing to report yet.
var ErrNoSamples = errors.New("telemetry: no samples")

// ErrTimeout is returned by Poller when a read does not finish in time.
var ErrTimeout = errors.New("telemetry: read timeout")

// Frame is one telemetry document: the sample plus the sim's gating flags.
type Frame struct {
	logic.Sample
	State logic.Context `json:"state"`
}

// Source produces the current telemetry frame.
type Source interface {
	// Read returns the current frame. It should return promptly when ctx
	// is done.
	Read(ctx context.Context) (Frame, error)

	Close() error
}

// mergeFrame decodes data on top of prev. Fields absent from data keep
// their previous values. The setup payload and vehicle list are replaced
// whole when present instead of being decoded into prev's memory.
func mergeFrame(prev Frame, data []byte) (Frame, error) {
	next := prev
	next.Setup = nil
	next.Vehicles = nil
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&next); err != nil {
		return prev, err
	}
	if next.Setup == nil {
		next.Setup = prev.Setup
	}
	if next.Vehicles == nil {
		next.Vehicles = prev.Vehicles
	}
	return next, nil
}
