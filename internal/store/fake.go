package store

import (
	"context"
	"sort"

	"github.com/sweeney/drivestats/internal/logic"
)

// FakeStore is an in-memory Store for tests.
type FakeStore struct {
	Records map[logic.Key]logic.Record

	// LoadError and SaveError, if set, are returned by Load and Save.
	LoadError error
	SaveError error

	// Loads and Saves record the keys passed to each call, in order.
	Loads []logic.Key
	Saves []logic.Key

	Closed bool
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{Records: make(map[logic.Key]logic.Record)}
}

// Load returns the stored record or a fresh one.
func (f *FakeStore) Load(_ context.Context, key logic.Key) (logic.Record, error) {
	f.Loads = append(f.Loads, key)
	if f.LoadError != nil {
		return logic.Record{}, f.LoadError
	}
	if r, ok := f.Records[key]; ok {
		return r, nil
	}
	return logic.NewRecord(), nil
}

// Save merges delta into the stored record.
func (f *FakeStore) Save(_ context.Context, key logic.Key, delta logic.Record) (logic.Record, error) {
	f.Saves = append(f.Saves, key)
	if f.SaveError != nil {
		return logic.Record{}, f.SaveError
	}
	r, ok := f.Records[key]
	if !ok {
		r = logic.NewRecord()
	}
	r = r.Merge(delta)
	f.Records[key] = r
	return r, nil
}

// List returns all records ordered by track then subject.
func (f *FakeStore) List(context.Context) ([]Entry, error) {
	entries := make([]Entry, 0, len(f.Records))
	for k, r := range f.Records {
		entries = append(entries, Entry{Key: k, Record: r})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Key.Track != entries[j].Key.Track {
			return entries[i].Key.Track < entries[j].Key.Track
		}
		return entries[i].Key.Subject < entries[j].Key.Subject
	})
	return entries, nil
}

// Close marks the store closed.
func (f *FakeStore) Close() error {
	f.Closed = true
	return nil
}
