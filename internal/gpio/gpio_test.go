package gpio

import (
	"errors"
	"testing"
)

func TestFakeReaderRepeatsLast(t *testing.T) {
	f := NewFakeReader(false, true)
	want := []bool{false, true, true, true}
	for i, w := range want {
		got, err := f.Read()
		if err != nil {
			t.Fatalf("read %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("read %d: got %v, want %v", i, got, w)
		}
	}
}

func TestFakeReaderNoSamples(t *testing.T) {
	if _, err := NewFakeReader().Read(); err == nil {
		t.Error("expected error with no samples")
	}
}

func TestPauseSwitchLevel(t *testing.T) {
	sw := NewPauseSwitch(NewFakeReader(false, true, true, false), ModeLevel)
	want := []bool{false, true, true, false}
	for i, w := range want {
		got, err := sw.Paused()
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if got != w {
			t.Errorf("tick %d: paused=%v, want %v", i, got, w)
		}
	}
}

func TestPauseSwitchToggle(t *testing.T) {
	// press, hold, release, press again
	sw := NewPauseSwitch(NewFakeReader(false, true, true, false, true, false), ModeToggle)
	want := []bool{false, true, true, true, false, false}
	for i, w := range want {
		got, err := sw.Paused()
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if got != w {
			t.Errorf("tick %d: paused=%v, want %v", i, got, w)
		}
	}
}

func TestPauseSwitchUnknownModeIsLevel(t *testing.T) {
	sw := NewPauseSwitch(NewFakeReader(true), Mode("bogus"))
	if got, _ := sw.Paused(); !got {
		t.Error("unknown mode should behave as level")
	}
}

func TestPauseSwitchReadErrorKeepsState(t *testing.T) {
	f := NewFakeReader(true)
	sw := NewPauseSwitch(f, ModeLevel)
	if got, _ := sw.Paused(); !got {
		t.Fatal("expected paused")
	}

	f.ReadError = errors.New("line busy")
	got, err := sw.Paused()
	if err == nil {
		t.Error("expected read error")
	}
	if !got {
		t.Error("read error must keep the previous paused value")
	}
}

func TestPauseSwitchClose(t *testing.T) {
	f := NewFakeReader(false)
	sw := NewPauseSwitch(f, ModeLevel)
	if err := sw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !f.Closed {
		t.Error("expected reader closed")
	}
}
