package logic

import (
	"encoding/json"
	"hash/fnv"
	"time"
)

// SetupPayload is a generic setup document as read from the sim. Numbers
// should be decoded as json.Number so exported values keep their literal text.
type SetupPayload map[string]any

// Hash returns a content hash over the canonical JSON encoding of p
// (map keys sorted). It returns false for an empty payload.
func (p SetupPayload) Hash() (uint64, bool) {
	if len(p) == 0 {
		return 0, false
	}
	data, err := json.Marshal(map[string]any(p))
	if err != nil {
		return 0, false
	}
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64(), true
}

// SetupActionKind identifies a file operation requested by SetupCapture.
type SetupActionKind string

const (
	ActionWrite  SetupActionKind = "WRITE"
	ActionRename SetupActionKind = "RENAME"
)

// SetupAction is a file operation for the host to carry out.
type SetupAction struct {
	Kind    SetupActionKind
	Name    string
	NewName string       // rename only
	Class   string       // write only
	Payload SetupPayload // write only
}

// SetupConfig configures a SetupCapture.
type SetupConfig struct {
	// Identifier prefixes every file name (usually the sim API name).
	Identifier string
	Brands     map[string]string
}

// SetupInput is one tick of setup capture input.
type SetupInput struct {
	Sample Sample
	Now    time.Time
}

// SetupCapture snapshots the car setup once per stint and names the file
// after the stint's best lap when the car returns to the garage.
type SetupCapture struct {
	cfg SetupConfig

	started     bool
	lastReset   bool
	lastElapsed float64

	dataAvailable bool
	best          optFloat
	pending       string
	lastHash      uint64
}

// NewSetupCapture creates a capture engine with no setup seen yet.
func NewSetupCapture(cfg SetupConfig) *SetupCapture {
	return &SetupCapture{cfg: cfg, lastElapsed: -1}
}

// Advance processes one tick and returns file operations to perform.
func (c *SetupCapture) Advance(in SetupInput) []SetupAction {
	s := in.Sample

	newSession := c.lastElapsed > s.SessionElapsed
	c.lastElapsed = s.SessionElapsed
	reset := s.InGarage || newSession

	var actions []SetupAction
	if !c.started || c.lastReset != reset {
		c.started = true
		c.lastReset = reset
		if reset {
			if c.dataAvailable && c.pending != "" {
				actions = append(actions, SetupAction{
					Kind:    ActionRename,
					Name:    c.pending,
					NewName: c.pending + " - " + LaptimeSuffix(c.bestSeconds()),
				})
			}
			c.best = optFloat{}
			c.dataAvailable = false
			c.pending = ""
		}
	}

	if reset {
		return actions
	}

	if c.dataAvailable {
		if lv := s.LastLaptime; lv > 0 && c.best.greater(lv) {
			c.best.set(lv)
		}
		return actions
	}

	if s.InPits {
		return actions
	}
	hash, ok := s.Setup.Hash()
	if !ok {
		return actions
	}
	c.dataAvailable = true
	if hash != c.lastHash {
		brand := c.cfg.Brands[s.Vehicle]
		if brand == "" {
			brand = s.Vehicle
		}
		c.pending = Filename(c.cfg.Identifier, in.Now.Format(TimestampLayout), s.Track, s.Class, brand)
		actions = append(actions, SetupAction{
			Kind:    ActionWrite,
			Name:    c.pending,
			Class:   s.Class,
			Payload: s.Setup,
		})
	}
	c.lastHash = hash
	return actions
}

// Pending returns the name of the file written this stint, if any.
func (c *SetupCapture) Pending() string { return c.pending }

func (c *SetupCapture) bestSeconds() float64 {
	if !c.best.ok {
		return 0
	}
	return c.best.v
}
