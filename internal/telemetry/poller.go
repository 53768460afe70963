package telemetry

import (
	"context"
	"time"
)

// DefaultReadTimeout bounds a single Source.Read.
const DefaultReadTimeout = 500 * time.Millisecond

type readResult struct {
	frame Frame
	err   error
}

// Poller reads a Source with a timeout and keeps the last good frame. A
// failed or stuck read yields the previous frame marked stale, so a bad tick
// looks like "nothing changed" to the state machines.
//
// Poller is not safe for concurrent use.
type Poller struct {
	src     Source
	timeout time.Duration

	last     Frame
	have     bool
	inflight chan readResult
}

// NewPoller wraps src. A non-positive timeout uses DefaultReadTimeout.
func NewPoller(src Source, timeout time.Duration) *Poller {
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	return &Poller{src: src, timeout: timeout}
}

// Poll returns the current frame. stale is true when the frame is the last
// good one rather than a fresh read; err says why.
func (p *Poller) Poll(ctx context.Context) (frame Frame, stale bool, err error) {
	// A read that outlived its timeout is still running: wait for it
	// instead of stacking another one on the source.
	if p.inflight == nil {
		ch := make(chan readResult, 1)
		rctx, cancel := context.WithTimeout(ctx, p.timeout)
		go func() {
			defer cancel()
			f, err := p.src.Read(rctx)
			ch <- readResult{frame: f, err: err}
		}()
		p.inflight = ch
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case r := <-p.inflight:
		p.inflight = nil
		if r.err != nil {
			return p.last, true, r.err
		}
		p.last = r.frame
		p.have = true
		return r.frame, false, nil
	case <-timer.C:
		return p.last, true, ErrTimeout
	case <-ctx.Done():
		return p.last, true, ctx.Err()
	}
}

// HasFrame reports whether at least one read has succeeded.
func (p *Poller) HasFrame() bool { return p.have }
