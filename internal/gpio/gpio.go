// Package gpio reads the rig's pause switch through the Linux GPIO character
// device. The fake implementation allows testing without hardware.
package gpio

// Reader reads the pause switch line.
type Reader interface {
	// Read reports whether the switch is closed. The line is wired
	// active-low with a pull-up: raw 0 = closed.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Mode selects how switch reads map to the paused flag.
type Mode string

const (
	// ModeLevel pauses while the switch is held closed (toggle switch).
	ModeLevel Mode = "level"
	// ModeToggle flips the paused flag on each press (momentary button).
	ModeToggle Mode = "toggle"
)

// PauseSwitch turns raw reads into the paused flag.
type PauseSwitch struct {
	reader Reader
	mode   Mode

	paused bool
	last   bool
}

// NewPauseSwitch wraps reader. Unknown modes behave as ModeLevel.
func NewPauseSwitch(reader Reader, mode Mode) *PauseSwitch {
	if mode != ModeToggle {
		mode = ModeLevel
	}
	return &PauseSwitch{reader: reader, mode: mode}
}

// Paused reads the switch once and returns the paused flag. On a read error
// the previous value is kept and the error returned.
func (p *PauseSwitch) Paused() (bool, error) {
	closed, err := p.reader.Read()
	if err != nil {
		return p.paused, err
	}
	switch p.mode {
	case ModeToggle:
		if closed && !p.last {
			p.paused = !p.paused
		}
	default:
		p.paused = closed
	}
	p.last = closed
	return p.paused, nil
}

// Close releases the underlying reader.
func (p *PauseSwitch) Close() error {
	return p.reader.Close()
}
