package logmine

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/arolek/logmine/pkg/hyperloglog"
	"github.com/arolek/logmine/pkg/lcsminer"
)

// SnapshotVersion is the Snapshot format version, bumped on incompatible
// layout changes.
const SnapshotVersion = 1

// Snapshot is the versioned, JSON+gzip persisted form of an Engine, in the
// same house style as internal/storage/sessions (versioned JSON blob written
// through gzip). Unlike a session it carries HLL sketches alongside the raw
// template maps, since those are needed to resume mining where the Engine
// left off. The pre-masking pattern table is not stored: a restored Engine
// keeps the patterns it was constructed with.
type Snapshot struct {
	Version    int                       `json:"version"`
	Severities map[string]severitySnapshot `json:"severities"`
}

type severitySnapshot struct {
	// TemplateMap is the gob-encoded lcsminer.TemplateMap for this severity,
	// base64-encoded by the surrounding JSON marshaler (json.Marshal encodes
	// []byte as base64 automatically).
	TemplateMap []byte `json:"template_map"`

	// SlotHLLs maps template id -> one binary-marshaled HyperLogLog per
	// wildcard slot, in slot order.
	SlotHLLs map[int][][]byte `json:"slot_hlls"`
}

// Snapshot captures the mining state of e: every severity's TemplateMap
// (gob-encoded, spec.md §4.3) plus its per-slot HLL sketches.
func (e *Engine) Snapshot() (*Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := &Snapshot{
		Version:    SnapshotVersion,
		Severities: make(map[string]severitySnapshot, len(e.severities)),
	}

	for severity, sm := range e.severities {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(sm.templates); err != nil {
			return nil, fmt.Errorf("encoding template map for severity %s: %w", severity, err)
		}

		hlls := make(map[int][][]byte, len(sm.slotHLLs))
		for tid, sketches := range sm.slotHLLs {
			encoded := make([][]byte, len(sketches))
			for i, h := range sketches {
				b, err := h.MarshalBinary()
				if err != nil {
					return nil, fmt.Errorf("encoding slot hll for template %d: %w", tid, err)
				}
				encoded[i] = b
			}
			hlls[tid] = encoded
		}

		snap.Severities[severity] = severitySnapshot{
			TemplateMap: buf.Bytes(),
			SlotHLLs:    hlls,
		}
	}

	return snap, nil
}

// Restore replaces e's state with a previously captured Snapshot.
func (e *Engine) Restore(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d (want %d)", snap.Version, SnapshotVersion)
	}

	severities := make(map[string]*severityMiner, len(snap.Severities))
	for severity, ss := range snap.Severities {
		tm := &lcsminer.TemplateMap{}
		if err := gob.NewDecoder(bytes.NewReader(ss.TemplateMap)).Decode(tm); err != nil {
			return fmt.Errorf("decoding template map for severity %s: %w", severity, err)
		}

		hlls := make(map[int][]*hyperloglog.HyperLogLog, len(ss.SlotHLLs))
		for tid, sketches := range ss.SlotHLLs {
			decoded := make([]*hyperloglog.HyperLogLog, len(sketches))
			for i, b := range sketches {
				h, err := hyperloglog.FromBytes(b)
				if err != nil {
					return fmt.Errorf("decoding slot hll for template %d: %w", tid, err)
				}
				decoded[i] = h
			}
			hlls[tid] = decoded
		}

		severities[severity] = &severityMiner{templates: tm, slotHLLs: hlls}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.severities = severities
	return nil
}

// SaveSnapshot writes e's Snapshot to path as gzip-compressed JSON.
func (e *Engine) SaveSnapshot(path string) error {
	snap, err := e.Snapshot()
	if err != nil {
		return err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot file %s: %w", path, err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if _, err := gz.Write(data); err != nil {
		return fmt.Errorf("writing snapshot to %s: %w", path, err)
	}
	return gz.Close()
}

// SnapshotBytes returns e's Snapshot as gzip-compressed JSON, for callers
// persisting to a database blob column rather than a file (SaveSnapshot).
func (e *Engine) SnapshotBytes() ([]byte, error) {
	snap, err := e.Snapshot()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, fmt.Errorf("compressing snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("closing snapshot writer: %w", err)
	}

	return buf.Bytes(), nil
}

// RestoreBytes restores e's state from gzip-compressed JSON previously
// produced by SnapshotBytes.
func (e *Engine) RestoreBytes(data []byte) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decompressing snapshot: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}

	return e.Restore(&snap)
}

// LoadSnapshot reads and restores a Snapshot previously written by
// SaveSnapshot.
func (e *Engine) LoadSnapshot(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening snapshot file %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("decompressing snapshot %s: %w", path, err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return fmt.Errorf("reading snapshot %s: %w", path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%s isn't a logmine snapshot: %w", path, err)
	}

	return e.Restore(&snap)
}
