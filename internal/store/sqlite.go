package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sweeney/drivestats/internal/logic"

	_ "modernc.org/sqlite" // SQLite driver.
)

// dsnOptions makes the daemon coexist with the stats and export commands
// reading the same file: WAL keeps readers off the writer's lock, writers
// take the lock at BEGIN and wait up to busyTimeout for it.
const dsnOptions = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

const recordColumns = `meters, valid_laps, invalid_laps, seconds, liters, penalties,
	races, wins, podiums, personal_best, qualifying_best, race_best`

// SQLiteStore keeps records in a SQLite database.
type SQLiteStore struct {
	mu     sync.Mutex // serializes load-merge-save
	db     *sql.DB
	closed bool
	now    func() time.Time
}

// OpenSQLite opens or creates the database at path and applies migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Writes are serialized by mu; other processes are waited out by busy_timeout.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS driver_stats (
			track TEXT NOT NULL,
			subject TEXT NOT NULL,
			meters REAL NOT NULL DEFAULT 0,
			valid_laps INTEGER NOT NULL DEFAULT 0,
			invalid_laps INTEGER NOT NULL DEFAULT 0,
			seconds REAL NOT NULL DEFAULT 0,
			liters REAL NOT NULL DEFAULT 0,
			penalties INTEGER NOT NULL DEFAULT 0,
			races INTEGER NOT NULL DEFAULT 0,
			wins INTEGER NOT NULL DEFAULT 0,
			podiums INTEGER NOT NULL DEFAULT 0,
			personal_best REAL,
			qualifying_best REAL,
			race_best REAL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (track, subject)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Load returns the persisted record for key.
func (s *SQLiteStore) Load(ctx context.Context, key logic.Key) (logic.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return logic.Record{}, ErrClosed
	}
	return loadRecord(ctx, s.db, key)
}

// Save merges delta into the persisted record inside one transaction.
func (s *SQLiteStore) Save(ctx context.Context, key logic.Key, delta logic.Record) (rec logic.Record, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return logic.Record{}, ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return logic.Record{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	loaded, err := loadRecord(ctx, tx, key)
	if err != nil {
		return logic.Record{}, err
	}
	rec = loaded.Merge(delta)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO driver_stats (track, subject, `+recordColumns+`, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (track, subject) DO UPDATE SET
			meters = excluded.meters,
			valid_laps = excluded.valid_laps,
			invalid_laps = excluded.invalid_laps,
			seconds = excluded.seconds,
			liters = excluded.liters,
			penalties = excluded.penalties,
			races = excluded.races,
			wins = excluded.wins,
			podiums = excluded.podiums,
			personal_best = excluded.personal_best,
			qualifying_best = excluded.qualifying_best,
			race_best = excluded.race_best,
			updated_at = excluded.updated_at`,
		key.Track, key.Subject,
		rec.Meters, rec.Valid, rec.Invalid, rec.Seconds, rec.Liters, rec.Penalties,
		rec.Races, rec.Wins, rec.Podiums,
		nullBest(rec.PersonalBest), nullBest(rec.QualifyingBest), nullBest(rec.RaceBest),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return logic.Record{}, fmt.Errorf("write %s: %w", key, err)
	}
	if err = tx.Commit(); err != nil {
		return logic.Record{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// List returns every persisted record. Rows that fail to decode are listed
// as zero records.
func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT track, subject, updated_at FROM driver_stats ORDER BY track, subject`)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	var entries []Entry
	for rows.Next() {
		var e Entry
		var updated string
		if err := rows.Scan(&e.Key.Track, &e.Key.Subject, &updated); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("list: %w", err)
		}
		e.Updated, _ = time.Parse(time.RFC3339Nano, updated)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("list: %w", err)
	}
	_ = rows.Close()

	for i := range entries {
		rec, err := loadRecord(ctx, s.db, entries[i].Key)
		if err != nil {
			return nil, err
		}
		entries[i].Record = rec
	}
	return entries, nil
}

// loadRecord reads one row. A missing row is a fresh record; a row whose
// values cannot be decoded is logged and treated as a fresh record too.
// Query and driver errors are returned.
func loadRecord(ctx context.Context, q querier, key logic.Key) (logic.Record, error) {
	vals := make([]any, recordColumnCount)
	ptrs := make([]any, len(vals))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	err := q.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM driver_stats WHERE track = ? AND subject = ?`,
		key.Track, key.Subject,
	).Scan(ptrs...)
	if errors.Is(err, sql.ErrNoRows) {
		return logic.NewRecord(), nil
	}
	if err != nil {
		return logic.Record{}, fmt.Errorf("load %s: %w", key, err)
	}

	r, err := decodeRecord(vals)
	if err != nil {
		log.Printf("store: record %s unreadable, starting from zero: %v", key, err)
		return logic.NewRecord(), nil
	}
	return r.Sanitize(), nil
}

const recordColumnCount = 12

// decodeRecord converts raw column values in recordColumns order.
func decodeRecord(vals []any) (logic.Record, error) {
	var (
		r   logic.Record
		err error
	)
	floats := []*float64{&r.Meters, &r.Seconds, &r.Liters}
	for i, col := range []int{0, 3, 4} {
		if *floats[i], err = asFloat(vals[col]); err != nil {
			return logic.Record{}, err
		}
	}
	ints := []*int{&r.Valid, &r.Invalid, &r.Penalties, &r.Races, &r.Wins, &r.Podiums}
	for i, col := range []int{1, 2, 5, 6, 7, 8} {
		if *ints[i], err = asInt(vals[col]); err != nil {
			return logic.Record{}, err
		}
	}
	bests := []*float64{&r.PersonalBest, &r.QualifyingBest, &r.RaceBest}
	for i, col := range []int{9, 10, 11} {
		if vals[col] == nil {
			*bests[i] = math.Inf(1)
			continue
		}
		if *bests[i], err = asFloat(vals[col]); err != nil {
			return logic.Record{}, err
		}
	}
	return r, nil
}

func asFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	}
	return 0, fmt.Errorf("not a number: %v (%T)", v, v)
}

func asInt(v any) (int, error) {
	switch x := v.(type) {
	case int64:
		return int(x), nil
	case float64:
		if x == math.Trunc(x) {
			return int(x), nil
		}
	}
	return 0, fmt.Errorf("not an integer: %v (%T)", v, v)
}

func nullBest(v float64) sql.NullFloat64 {
	if !logic.IsSet(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
