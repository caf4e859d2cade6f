package logmine

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/arolek/logmine/internal/config"
)

func TestEngineSeverityIsolation(t *testing.T) {
	e := NewEngine()
	e.AddMessage("ERROR", "User alice logged in")
	e.AddMessage("DEBUG", "User bob logged in")

	if got := len(e.Templates("ERROR")); got != 1 {
		t.Fatalf("ERROR templates = %d, want 1", got)
	}
	if got := len(e.Templates("DEBUG")); got != 1 {
		t.Fatalf("DEBUG templates = %d, want 1", got)
	}

	errTpl := e.Templates("ERROR")[0]
	if errTpl.Count != 1 {
		t.Errorf("ERROR template count = %d, want 1 (must not merge with DEBUG)", errTpl.Count)
	}
}

func TestEngineMergeAndCardinality(t *testing.T) {
	e := NewEngine()
	e.AddMessage("INFO", "User alice logged in")
	e.AddMessage("INFO", "User bob logged in")
	e.AddMessage("INFO", "User carol logged in")

	templates := e.Templates("INFO")
	if len(templates) != 1 {
		t.Fatalf("expected 1 merged template, got %d", len(templates))
	}

	tpl := templates[0]
	if tpl.Count != 3 {
		t.Errorf("count = %d, want 3", tpl.Count)
	}
	if len(tpl.SlotCardinality) != 1 {
		t.Fatalf("expected 1 wildcard slot, got %d", len(tpl.SlotCardinality))
	}
	if tpl.SlotCardinality[0] < 2 {
		t.Errorf("slot cardinality = %d, want at least 2 distinct names", tpl.SlotCardinality[0])
	}
}

func TestEnginePreMasking(t *testing.T) {
	e := NewEngineWithPatterns(config.DefaultPatterns())
	e.AddMessage("INFO", "Listening on port 8080")
	if got := len(e.Templates("INFO")); got != 1 {
		t.Fatalf("templates = %d, want 1", got)
	}
	if tpl := e.Templates("INFO")[0].Template; !strings.Contains(tpl, "<NUM>") {
		t.Errorf("template = %q, want the port masked as <NUM>", tpl)
	}
}

func TestEngineParamAndReparam(t *testing.T) {
	e := NewEngine()
	e.AddMessage("INFO", "User alice logged in")
	e.AddMessage("INFO", "User bob logged in")

	slots, ok := e.Param("INFO", "User dave logged in")
	if !ok {
		t.Fatalf("expected param match")
	}
	if len(slots) != 1 || len(slots[0]) != 1 || slots[0][0] != "dave" {
		t.Errorf("param = %v, want [[dave]]", slots)
	}

	slots, ok = e.Reparam("INFO", "User dave logged in")
	if !ok {
		t.Fatalf("expected reparam match")
	}
	if len(slots) != 1 || len(slots[0]) != 1 || slots[0][0] != "dave" {
		t.Errorf("reparam = %v, want [[dave]]", slots)
	}
}

func TestEngineSnapshotRoundTrip(t *testing.T) {
	e := NewEngine()
	e.AddMessage("INFO", "User alice logged in")
	e.AddMessage("INFO", "User bob logged in")
	e.AddMessage("ERROR", "Connection closed by peer")

	path := filepath.Join(t.TempDir(), "snapshot.json.gz")
	if err := e.SaveSnapshot(path); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	restored := NewEngine()
	if err := restored.LoadSnapshot(path); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	want := e.Templates("INFO")
	got := restored.Templates("INFO")
	if len(got) != len(want) {
		t.Fatalf("INFO templates = %d, want %d", len(got), len(want))
	}
	if got[0].Template != want[0].Template {
		t.Errorf("template = %q, want %q", got[0].Template, want[0].Template)
	}
	if got[0].SlotCardinality[0] != want[0].SlotCardinality[0] {
		t.Errorf("slot cardinality = %d, want %d", got[0].SlotCardinality[0], want[0].SlotCardinality[0])
	}

	if len(restored.Templates("ERROR")) != 1 {
		t.Errorf("expected ERROR severity to survive the round trip")
	}
}
