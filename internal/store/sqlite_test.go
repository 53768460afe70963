package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sweeney/drivestats/internal/logic"
)

var testKey = logic.Key{Track: "Sebring", Subject: "Porsche 963"}

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "stats.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadMissingReturnsFreshRecord(t *testing.T) {
	s := openTestStore(t)

	r, err := s.Load(context.Background(), testKey)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if r.Meters != 0 || r.Valid != 0 || r.Races != 0 {
		t.Errorf("expected zero record, got %+v", r)
	}
	if logic.IsSet(r.PersonalBest) {
		t.Errorf("expected unset best, got %v", r.PersonalBest)
	}
}

func TestSaveThenLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	delta := logic.NewRecord()
	delta.Meters = 5012.5
	delta.Valid = 4
	delta.Invalid = 1
	delta.Seconds = 420
	delta.Liters = 11.25
	delta.Races = 1
	delta.Podiums = 1
	delta.PersonalBest = 110.875
	delta.RaceBest = 111.5

	saved, err := s.Save(ctx, testKey, delta)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := s.Load(ctx, testKey)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != saved {
		t.Errorf("loaded %+v, saved %+v", loaded, saved)
	}
	if loaded.PersonalBest != 110.875 || loaded.RaceBest != 111.5 {
		t.Errorf("bests: got %v / %v", loaded.PersonalBest, loaded.RaceBest)
	}
	if logic.IsSet(loaded.QualifyingBest) {
		t.Errorf("qualifying best should stay unset, got %v", loaded.QualifyingBest)
	}
}

func TestTwoActivationsSum(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := logic.NewRecord()
	a.Meters, a.Seconds, a.Liters, a.Valid, a.PersonalBest = 1000, 60, 2.5, 1, 112
	b := logic.NewRecord()
	b.Meters, b.Seconds, b.Liters, b.Valid, b.Invalid, b.PersonalBest = 3000, 180, 7.5, 3, 2, 111

	if _, err := s.Save(ctx, testKey, a); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if _, err := s.Save(ctx, testKey, b); err != nil {
		t.Fatalf("save b: %v", err)
	}

	got, err := s.Load(ctx, testKey)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := logic.NewRecord().Merge(a).Merge(b)
	if got != want {
		t.Errorf("totals: got %+v, want %+v", got, want)
	}
	if got.Meters != 4000 || got.Valid != 4 || got.Invalid != 2 || got.PersonalBest != 111 {
		t.Errorf("unexpected totals %+v", got)
	}
}

func TestSaveSlowerBestKeepsRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fast := logic.NewRecord()
	fast.PersonalBest = 100
	slow := logic.NewRecord()
	slow.PersonalBest = 105
	s.Save(ctx, testKey, fast)
	got, err := s.Save(ctx, testKey, slow)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if got.PersonalBest != 100 {
		t.Errorf("personal best: got %v, want 100", got.PersonalBest)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	other := logic.Key{Track: "Sebring", Subject: "Hypercar"}

	d := logic.NewRecord()
	d.Meters = 10
	s.Save(ctx, testKey, d)

	r, _ := s.Load(ctx, other)
	if r.Meters != 0 {
		t.Errorf("other key should be empty, got %v", r.Meters)
	}
}

func TestCorruptRowLoadsAsZero(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`INSERT INTO driver_stats (track, subject, meters, valid_laps, updated_at)
		VALUES (?, ?, 'garbage', 3, '')`, testKey.Track, testKey.Subject)
	if err != nil {
		t.Fatalf("insert corrupt row: %v", err)
	}

	r, err := s.Load(ctx, testKey)
	if err != nil {
		t.Fatalf("corrupt row must not fail load: %v", err)
	}
	if r.Meters != 0 || r.Valid != 0 {
		t.Errorf("expected zero record, got %+v", r)
	}

	// A save replaces the corrupt row with a healthy one.
	d := logic.NewRecord()
	d.Meters = 50
	got, err := s.Save(ctx, testKey, d)
	if err != nil {
		t.Fatalf("save over corrupt row: %v", err)
	}
	if got.Meters != 50 {
		t.Errorf("meters: got %v, want 50", got.Meters)
	}
}

func TestListOrdered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }

	d := logic.NewRecord()
	d.Meters = 1
	for _, k := range []logic.Key{
		{Track: "Spa", Subject: "GT3"},
		{Track: "Le Mans", Subject: "Hypercar"},
		{Track: "Le Mans", Subject: "GT3"},
	} {
		if _, err := s.Save(ctx, k, d); err != nil {
			t.Fatalf("save %s: %v", k, err)
		}
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"Le Mans / GT3", "Le Mans / Hypercar", "Spa / GT3"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, e := range entries {
		if e.Key.String() != want[i] {
			t.Errorf("entry %d: got %s, want %s", i, e.Key, want[i])
		}
		if e.Record.Meters != 1 {
			t.Errorf("entry %d: meters %v", i, e.Record.Meters)
		}
		if !e.Updated.Equal(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)) {
			t.Errorf("entry %d: updated %v", i, e.Updated)
		}
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	d := logic.NewRecord()
	d.Wins = 2
	s.Save(ctx, testKey, d)
	s.Close()

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	r, _ := s2.Load(ctx, testKey)
	if r.Wins != 2 {
		t.Errorf("wins after reopen: got %d, want 2", r.Wins)
	}
}

func TestClosedStore(t *testing.T) {
	s := openTestStore(t)
	s.Close()

	if _, err := s.Load(context.Background(), testKey); !errors.Is(err, ErrClosed) {
		t.Errorf("Load after close: got %v, want ErrClosed", err)
	}
	if _, err := s.Save(context.Background(), testKey, logic.NewRecord()); !errors.Is(err, ErrClosed) {
		t.Errorf("Save after close: got %v, want ErrClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestFakeStore(t *testing.T) {
	f := NewFakeStore()
	ctx := context.Background()

	d := logic.NewRecord()
	d.Meters = 10
	f.Save(ctx, testKey, d)
	f.Save(ctx, testKey, d)

	r, _ := f.Load(ctx, testKey)
	if r.Meters != 20 {
		t.Errorf("meters: got %v, want 20", r.Meters)
	}
	if len(f.Saves) != 2 || len(f.Loads) != 1 {
		t.Errorf("call log: %d saves, %d loads", len(f.Saves), len(f.Loads))
	}

	f.SaveError = errors.New("disk full")
	if _, err := f.Save(ctx, testKey, d); err == nil {
		t.Error("expected injected error")
	}
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*FakeStore)(nil)

func TestSaveWaitsForOtherWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	seed := logic.NewRecord()
	seed.Meters = 5000
	if _, err := s.Save(ctx, testKey, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// A second process holds the write lock for a while.
	other, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open second db: %v", err)
	}
	defer other.Close()
	conn, err := other.Conn(ctx)
	if err != nil {
		t.Fatalf("conn: %v", err)
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := conn.ExecContext(ctx,
		`INSERT INTO driver_stats (track, subject, meters, updated_at) VALUES ('Spa', 'BMW M4', 1, '')`); err != nil {
		t.Fatalf("write under lock: %v", err)
	}

	r, err := s.Load(ctx, testKey)
	if err != nil {
		t.Fatalf("load while another writer holds the lock: %v", err)
	}
	if r.Meters != 5000 {
		t.Errorf("load while locked: meters %v, want 5000", r.Meters)
	}

	released := make(chan error, 1)
	go func() {
		time.Sleep(200 * time.Millisecond)
		_, err := conn.ExecContext(ctx, "COMMIT")
		released <- err
	}()

	d := logic.NewRecord()
	d.Meters = 100
	got, err := s.Save(ctx, testKey, d)
	if err != nil {
		t.Fatalf("save should wait for the lock: %v", err)
	}
	if got.Meters != 5100 {
		t.Errorf("save: meters %v, want 5100", got.Meters)
	}
	if err := <-released; err != nil {
		t.Fatalf("commit second writer: %v", err)
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected both writers' rows, got %d", len(entries))
	}
}

func TestLoadReturnsDriverErrors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	d := logic.NewRecord()
	d.Meters = 5000
	if _, err := s.Save(ctx, testKey, d); err != nil {
		t.Fatalf("save: %v", err)
	}

	// A closed handle stands in for any query failure that is not a bad row.
	s.db.Close()

	if _, err := s.Load(ctx, testKey); err == nil {
		t.Error("load on a broken connection must fail, not return a zero record")
	}
	if _, err := s.Save(ctx, testKey, d); err == nil {
		t.Error("save on a broken connection must fail")
	}
}
