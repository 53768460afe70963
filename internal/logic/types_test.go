package logic

import (
	"math"
	"testing"
)

func TestNewRecordBestsUnset(t *testing.T) {
	r := NewRecord()
	if IsSet(r.PersonalBest) || IsSet(r.QualifyingBest) || IsSet(r.RaceBest) {
		t.Errorf("new record bests should be unset: %+v", r)
	}
}

func TestRecordMergeAddsAndKeepsMinimum(t *testing.T) {
	loaded := NewRecord()
	loaded.Meters = 1000
	loaded.Valid = 3
	loaded.Races = 1
	loaded.PersonalBest = 90

	delta := NewRecord()
	delta.Meters = 250.5
	delta.Valid = 2
	delta.Invalid = 1
	delta.Wins = 1
	delta.PersonalBest = 89.5
	delta.RaceBest = 91

	got := loaded.Merge(delta)
	if got.Meters != 1250.5 || got.Valid != 5 || got.Invalid != 1 || got.Races != 1 || got.Wins != 1 {
		t.Errorf("unexpected counters: %+v", got)
	}
	if got.PersonalBest != 89.5 {
		t.Errorf("personal best: got %v, want 89.5", got.PersonalBest)
	}
	if got.RaceBest != 91 {
		t.Errorf("race best: got %v, want 91", got.RaceBest)
	}
	if IsSet(got.QualifyingBest) {
		t.Errorf("qualifying best should stay unset, got %v", got.QualifyingBest)
	}
}

func TestRecordMergeNeverWorsensBest(t *testing.T) {
	loaded := NewRecord()
	loaded.PersonalBest = 85
	delta := NewRecord()
	delta.PersonalBest = 88
	if got := loaded.Merge(delta).PersonalBest; got != 85 {
		t.Errorf("slower session best must not replace record, got %v", got)
	}
}

func TestRecordMergeSequentialActivations(t *testing.T) {
	a := NewRecord()
	a.Meters, a.Seconds, a.Liters, a.Valid = 100, 60, 2.5, 1
	b := NewRecord()
	b.Meters, b.Seconds, b.Liters, b.Valid = 300, 120, 7.5, 2

	total := NewRecord().Merge(a).Merge(b)
	if total.Meters != 400 || total.Seconds != 180 || total.Liters != 10 || total.Valid != 3 {
		t.Errorf("unexpected totals: %+v", total)
	}
}

func TestRecordSanitize(t *testing.T) {
	r := Record{
		Meters:         math.NaN(),
		Seconds:        -4,
		Liters:         math.Inf(1),
		Valid:          -2,
		PersonalBest:   0,
		QualifyingBest: -1,
		RaceBest:       95,
	}
	got := r.Sanitize()
	if got.Meters != 0 || got.Seconds != 0 || got.Liters != 0 || got.Valid != 0 {
		t.Errorf("accumulators not clamped: %+v", got)
	}
	if IsSet(got.PersonalBest) || IsSet(got.QualifyingBest) {
		t.Errorf("invalid bests should be unset: %+v", got)
	}
	if got.RaceBest != 95 {
		t.Errorf("valid best must be kept, got %v", got.RaceBest)
	}
}

func TestParseClassificationMode(t *testing.T) {
	tests := map[string]ClassificationMode{
		"Vehicle":       ClassifyVehicle,
		"Class":         ClassifyClass,
		"Class - Brand": ClassifyClassBrand,
		"":              ClassifyVehicle,
		"bogus":         ClassifyVehicle,
	}
	for in, want := range tests {
		if got := ParseClassificationMode(in); got != want {
			t.Errorf("ParseClassificationMode(%q) = %q, want %q", in, got, want)
		}
	}
}
