package setupfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sweeney/drivestats/internal/logic"
)

func TestExportLMUHeaderAndSections(t *testing.T) {
	source := logic.SetupPayload{
		"VM_REAR_WING":       map[string]any{"value": json.Number("5")},
		"symmetric":          true,
		"VM_FUEL_CAPACITY":   json.Number("0.85"),
		"VM_FRONT_TOEIN":     map[string]any{"value": json.Number("-0.25"), "stringValue": "-0.25 deg"},
		"VM_BRAKE_MIGRATION": map[string]any{"value": nil},
		"WM_CAMBER-W_FL":     map[string]any{"value": false},
		"WM_COMPOUND-W_FL":   map[string]any{"value": json.Number("2")},
		"VM_RATIO_SET":       "Long",
	}

	lines := ExportLMU(source, "Hypercar")

	wantPrefix := []string{`VehicleClassSetting="Hypercar"`, "UpgradeSetting=(0,0,0,0)", "", "[GENERAL]", "Symmetric=1", "FuelCapacitySetting=0.85", ""}
	for i, w := range wantPrefix {
		if lines[i] != w {
			t.Errorf("line %d: got %q, want %q", i, lines[i], w)
		}
	}

	text := strings.Join(lines, "\n")
	for _, want := range []string{
		"[REARWING]\nRWSetting=5\n",
		"FrontToeInSetting=-0.25\n",
		"[FRONTLEFT]\nCamberSetting=0\n",
		"RatioSetSetting=Long\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("export missing %q", want)
		}
	}
	if strings.Contains(text, "BrakeMigrationSetting") {
		t.Error("null value should be omitted")
	}
	if strings.Contains(text, "CompoundSetting=2") {
		t.Error("per-wheel compound is not exported")
	}
	if lines[len(lines)-1] != "" {
		t.Error("every section should end with a blank line")
	}
}

func TestExportLMUEmptyPayloadKeepsSections(t *testing.T) {
	lines := ExportLMU(logic.SetupPayload{}, "GT3")
	if len(lines) != 3+2*len(lmuSections) {
		t.Errorf("expected header and empty sections, got %d lines", len(lines))
	}
}

func TestExportLMUWithoutClass(t *testing.T) {
	if lines := ExportLMU(logic.SetupPayload{"symmetric": true}, ""); lines != nil {
		t.Errorf("expected nil without class, got %d lines", len(lines))
	}
}

func TestDecodePayloadKeepsNumberText(t *testing.T) {
	p, err := DecodePayload(strings.NewReader(`{"VM_FRONT_WING": {"value": 1.50}, "symmetric": false}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	lines := ExportLMU(p, "LMP2")
	text := strings.Join(lines, "\n")
	if !strings.Contains(text, "FWSetting=1.50") {
		t.Errorf("number literal should be kept, got:\n%s", text)
	}
	if !strings.Contains(text, "Symmetric=0") {
		t.Errorf("bool false should export as 0, got:\n%s", text)
	}
}

func TestDecodePayloadInvalid(t *testing.T) {
	if _, err := DecodePayload(strings.NewReader(`{"broken"`)); err == nil {
		t.Error("expected decode error")
	}
}

func TestDirSinkWriteUsesCRLF(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewDirSink(filepath.Join(dir, "setups"))
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	if err := sink.Write("LMU - a", []string{"line1", "line2", ""}); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "setups", "LMU - a.svm"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "line1\r\nline2\r\n" {
		t.Errorf("content: got %q", data)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "setups"))
	if len(entries) != 1 {
		t.Errorf("temp file left behind: %d entries", len(entries))
	}
}

func TestDirSinkSkipsShortExport(t *testing.T) {
	sink := &DirSink{Dir: t.TempDir()}
	if err := sink.Write("short", []string{`VehicleClassSetting="GT3"`}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(sink.Path("short")); !os.IsNotExist(err) {
		t.Error("a single line must not be written")
	}
}

func TestDirSinkRename(t *testing.T) {
	sink := &DirSink{Dir: t.TempDir()}
	sink.Write("a", []string{"x", "y"})

	if err := sink.Rename("a", "a - 1-23-456"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := os.Stat(sink.Path("a - 1-23-456")); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
	if _, err := os.Stat(sink.Path("a")); !os.IsNotExist(err) {
		t.Error("old name should be gone")
	}
}

func TestDirSinkRenameMissing(t *testing.T) {
	sink := &DirSink{Dir: t.TempDir()}
	if err := sink.Rename("nope", "other"); err == nil {
		t.Error("expected error renaming a missing file")
	}
}

func TestDirSinkRemove(t *testing.T) {
	sink := &DirSink{Dir: t.TempDir()}
	sink.Write("a", []string{"x", "y"})

	if err := sink.Remove("a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(sink.Path("a")); !os.IsNotExist(err) {
		t.Error("file should be removed")
	}
	if err := sink.Remove("a"); err != nil {
		t.Errorf("removing a missing file should succeed, got %v", err)
	}
}

func TestDirSinkCustomExt(t *testing.T) {
	sink := &DirSink{Dir: "/setups", Ext: ".txt"}
	if got := sink.Path("a"); got != filepath.Join("/setups", "a.txt") {
		t.Errorf("path: got %q", got)
	}
}

func TestFakeSink(t *testing.T) {
	f := NewFakeSink()
	f.Write("a", []string{"x", "y"})
	f.Write("skip", []string{"x"})
	if err := f.Rename("a", "b"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := f.Rename("missing", "c"); err == nil {
		t.Error("expected error renaming missing file")
	}
	f.Remove("b")

	want := []string{"WRITE a", "RENAME a -> b", "REMOVE b"}
	if len(f.Ops) != len(want) {
		t.Fatalf("ops: got %v, want %v", f.Ops, want)
	}
	for i := range want {
		if f.Ops[i] != want[i] {
			t.Errorf("op %d: got %q, want %q", i, f.Ops[i], want[i])
		}
	}
	if len(f.Files) != 0 {
		t.Errorf("expected no files left, got %v", f.Files)
	}
}

var _ Sink = (*DirSink)(nil)
var _ Sink = (*FakeSink)(nil)
