package telemetry

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
)

const maxLineBytes = 4 << 20 // setup payloads are large

// ReplaySource plays back recorded telemetry, one JSON document per line and
// one line per Read. Each line is applied on top of the previous frame, so a
// recording only needs to carry the fields that changed. At the end of the
// recording the last frame repeats.
type ReplaySource struct {
	closer  io.Closer
	scanner *bufio.Scanner
	line    int

	last Frame
	have bool
	eof  bool
}

// OpenReplay opens a recording file.
func OpenReplay(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	return NewReplaySource(f), nil
}

// NewReplaySource reads a recording from r. If r is an io.Closer it is
// closed by Close.
func NewReplaySource(r io.Reader) *ReplaySource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	rs := &ReplaySource{scanner: sc}
	if c, ok := r.(io.Closer); ok {
		rs.closer = c
	}
	return rs
}

// Read returns the next frame. Blank lines are skipped. A malformed line is
// reported as an error and skipped on the next call.
func (r *ReplaySource) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return r.last, err
	}
	for !r.eof {
		if !r.scanner.Scan() {
			r.eof = true
			if err := r.scanner.Err(); err != nil {
				return r.last, fmt.Errorf("replay line %d: %w", r.line+1, err)
			}
			log.Printf("telemetry: replay finished after %d lines, holding last frame", r.line)
			break
		}
		r.line++
		data := bytes.TrimSpace(r.scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		next, err := mergeFrame(r.last, data)
		if err != nil {
			return r.last, fmt.Errorf("replay line %d: %w", r.line, err)
		}
		r.last = next
		r.have = true
		return next, nil
	}
	if !r.have {
		return Frame{}, ErrNoSamples
	}
	return r.last, nil
}

// Close releases the underlying file.
func (r *ReplaySource) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
