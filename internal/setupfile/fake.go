package setupfile

import "fmt"

// FakeSink is an in-memory Sink for tests.
type FakeSink struct {
	Files map[string][]string

	// WriteError, RenameError and RemoveError, if set, are returned by the
	// matching operation.
	WriteError  error
	RenameError error
	RemoveError error

	// Ops records each successful operation as "WRITE name",
	// "RENAME old -> new" or "REMOVE name".
	Ops []string
}

// NewFakeSink creates an empty FakeSink.
func NewFakeSink() *FakeSink {
	return &FakeSink{Files: make(map[string][]string)}
}

func (f *FakeSink) Write(name string, lines []string) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if len(lines) < minLines {
		return nil
	}
	f.Files[name] = append([]string(nil), lines...)
	f.Ops = append(f.Ops, "WRITE "+name)
	return nil
}

func (f *FakeSink) Rename(oldName, newName string) error {
	if f.RenameError != nil {
		return f.RenameError
	}
	lines, ok := f.Files[oldName]
	if !ok {
		return fmt.Errorf("rename %s: no such file", oldName)
	}
	delete(f.Files, oldName)
	f.Files[newName] = lines
	f.Ops = append(f.Ops, "RENAME "+oldName+" -> "+newName)
	return nil
}

func (f *FakeSink) Remove(name string) error {
	if f.RemoveError != nil {
		return f.RemoveError
	}
	delete(f.Files, name)
	f.Ops = append(f.Ops, "REMOVE "+name)
	return nil
}
