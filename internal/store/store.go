// Package store persists driver statistics keyed by track and subject.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sweeney/drivestats/internal/logic"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// Entry is one persisted record.
type Entry struct {
	Key     logic.Key
	Record  logic.Record
	Updated time.Time
}

// Store loads and merges statistics records.
type Store interface {
	// Load returns the persisted record for key, or logic.NewRecord() if
	// there is none.
	Load(ctx context.Context, key logic.Key) (logic.Record, error)

	// Save merges delta into the persisted record for key and returns the
	// new totals. The load-merge-write is atomic.
	Save(ctx context.Context, key logic.Key, delta logic.Record) (logic.Record, error)

	// List returns every persisted record ordered by track then subject.
	List(ctx context.Context) ([]Entry, error)

	Close() error
}
