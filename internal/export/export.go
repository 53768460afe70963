// Package export writes persisted driver statistics to CSV and Parquet.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/sweeney/drivestats/internal/logic"
	"github.com/sweeney/drivestats/internal/store"
)

// Header is the CSV column order.
var Header = []string{
	"track", "subject", "meters", "valid", "invalid", "seconds", "liters",
	"penalties", "races", "wins", "podiums", "pb", "qb", "rb", "updated",
}

// WriteCSV writes one row per entry. Unset best laps are empty cells.
func WriteCSV(w io.Writer, entries []store.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, e := range entries {
		r := e.Record
		row := []string{
			e.Key.Track,
			e.Key.Subject,
			formatFloat(r.Meters),
			strconv.Itoa(r.Valid),
			strconv.Itoa(r.Invalid),
			formatFloat(r.Seconds),
			formatFloat(r.Liters),
			strconv.Itoa(r.Penalties),
			strconv.Itoa(r.Races),
			strconv.Itoa(r.Wins),
			strconv.Itoa(r.Podiums),
			formatBest(r.PersonalBest),
			formatBest(r.QualifyingBest),
			formatBest(r.RaceBest),
			formatTime(e.Updated),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type statsRow struct {
	Track     string   `parquet:"name=track, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Subject   string   `parquet:"name=subject, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Meters    float64  `parquet:"name=meters, type=DOUBLE"`
	Valid     int64    `parquet:"name=valid, type=INT64"`
	Invalid   int64    `parquet:"name=invalid, type=INT64"`
	Seconds   float64  `parquet:"name=seconds, type=DOUBLE"`
	Liters    float64  `parquet:"name=liters, type=DOUBLE"`
	Penalties int64    `parquet:"name=penalties, type=INT64"`
	Races     int64    `parquet:"name=races, type=INT64"`
	Wins      int64    `parquet:"name=wins, type=INT64"`
	Podiums   int64    `parquet:"name=podiums, type=INT64"`
	PB        *float64 `parquet:"name=pb, type=DOUBLE, repetitiontype=OPTIONAL"`
	QB        *float64 `parquet:"name=qb, type=DOUBLE, repetitiontype=OPTIONAL"`
	RB        *float64 `parquet:"name=rb, type=DOUBLE, repetitiontype=OPTIONAL"`
	Updated   string   `parquet:"name=updated, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func newStatsRow(e store.Entry) statsRow {
	r := e.Record
	return statsRow{
		Track:     e.Key.Track,
		Subject:   e.Key.Subject,
		Meters:    r.Meters,
		Valid:     int64(r.Valid),
		Invalid:   int64(r.Invalid),
		Seconds:   r.Seconds,
		Liters:    r.Liters,
		Penalties: int64(r.Penalties),
		Races:     int64(r.Races),
		Wins:      int64(r.Wins),
		Podiums:   int64(r.Podiums),
		PB:        bestPtr(r.PersonalBest),
		QB:        bestPtr(r.QualifyingBest),
		RB:        bestPtr(r.RaceBest),
		Updated:   formatTime(e.Updated),
	}
}

// MarshalParquet encodes the entries as a Snappy-compressed Parquet file.
func MarshalParquet(entries []store.Entry) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(statsRow), 4)
	if err != nil {
		return nil, fmt.Errorf("parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, e := range entries {
		if err := pw.Write(newStatsRow(e)); err != nil {
			_ = pw.WriteStop()
			return nil, fmt.Errorf("parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("parquet finish: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}

// WriteParquet writes the entries to w in Parquet format.
func WriteParquet(w io.Writer, entries []store.Entry) error {
	data, err := MarshalParquet(entries)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBest(v float64) string {
	if !logic.IsSet(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func bestPtr(v float64) *float64 {
	if !logic.IsSet(v) {
		return nil
	}
	return &v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
