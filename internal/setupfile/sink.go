// Package setupfile writes captured car setups to disk and converts setup
// payloads into the LMU .svm text format.
package setupfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sweeney/drivestats/internal/logic"
)

// DefaultExt is the LMU setup file extension.
const DefaultExt = ".svm"

// minLines is the smallest export worth writing: a header alone is not a setup.
const minLines = 2

// Sink stores setup files by name. Names carry no directory or extension.
type Sink interface {
	Write(name string, lines []string) error
	Rename(oldName, newName string) error
	Remove(name string) error
}

// DirSink stores setup files in one directory.
type DirSink struct {
	Dir string
	Ext string // defaults to DefaultExt
}

// NewDirSink creates the directory if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create setup dir: %w", err)
	}
	return &DirSink{Dir: dir, Ext: DefaultExt}, nil
}

// Path returns the file path for name.
func (d *DirSink) Path(name string) string {
	ext := d.Ext
	if ext == "" {
		ext = DefaultExt
	}
	return filepath.Join(d.Dir, name+ext)
}

// Write stores lines joined with CRLF. Fewer than two lines are not written.
// The file is written to a temp file first and renamed into place.
func (d *DirSink) Write(name string, lines []string) error {
	if len(lines) < minLines {
		return nil
	}
	path := d.Path(name)
	tmp, err := os.CreateTemp(d.Dir, ".drivestats-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.WriteString(tmp, strings.Join(lines, "\r\n")); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Rename moves oldName to newName within the directory.
func (d *DirSink) Rename(oldName, newName string) error {
	if err := os.Rename(d.Path(oldName), d.Path(newName)); err != nil {
		return fmt.Errorf("rename %s: %w", oldName, err)
	}
	return nil
}

// Remove deletes name. A missing file is not an error.
func (d *DirSink) Remove(name string) error {
	if err := os.Remove(d.Path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// DecodePayload reads a setup JSON document. Numbers keep their literal text.
func DecodePayload(r io.Reader) (logic.SetupPayload, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var p logic.SetupPayload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode setup: %w", err)
	}
	return p, nil
}
