package telemetry

import (
	"context"
	"sync/atomic"
)

// FakeSource is a test double that returns scripted frames.
type FakeSource struct {
	// Frames contains scripted frames. Each call to Read consumes the next
	// one; once exhausted the last frame repeats.
	Frames []Frame

	// ReadError, if set, will be returned by Read.
	ReadError error

	// Block, if set, makes Read wait until it is closed or ctx is done.
	Block chan struct{}

	Closed bool

	index int
	reads atomic.Int32
}

// NewFakeSource creates a FakeSource with the given frames.
func NewFakeSource(frames ...Frame) *FakeSource {
	return &FakeSource{Frames: frames}
}

// Read returns the next scripted frame.
func (f *FakeSource) Read(ctx context.Context) (Frame, error) {
	f.reads.Add(1)
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}
	if f.ReadError != nil {
		return Frame{}, f.ReadError
	}
	if len(f.Frames) == 0 {
		return Frame{}, ErrNoSamples
	}
	frame := f.Frames[f.index]
	if f.index < len(f.Frames)-1 {
		f.index++
	}
	return frame, nil
}

// Reads returns how many times Read was called.
func (f *FakeSource) Reads() int { return int(f.reads.Load()) }

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}
