package lcsminer

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"regexp"
)

// templateGob is the gob-serializable projection of a Template. refmt is
// shared across every Template in a map and is persisted once, on the
// TemplateMap itself, rather than per-template.
type templateGob struct {
	ID        int
	Tokens    []string
	LineIDs   []int
	Positions []int
	Separator string
}

// GobEncode implements gob.GobEncoder.
func (t *Template) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	g := templateGob{
		ID:        t.id,
		Tokens:    t.tokens,
		LineIDs:   t.lineIDs,
		Positions: t.positions,
		Separator: t.separator,
	}
	if err := gob.NewEncoder(&buf).Encode(g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder. The decoded Template has a nil refmt;
// TemplateMap.GobDecode fixes this up after decoding every template, since
// refmt is shared and persisted once at the map level.
func (t *Template) GobDecode(data []byte) error {
	var g templateGob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}
	t.id = g.ID
	t.tokens = g.Tokens
	t.lineIDs = g.LineIDs
	t.positions = g.Positions
	t.separator = g.Separator
	return nil
}

// templateMapGob is the gob-serializable projection of a TemplateMap.
type templateMapGob struct {
	RefmtPattern   string
	NextLineID     int
	NextTemplateID int
	Templates      []*Template
}

// GobEncode implements gob.GobEncoder.
func (m *TemplateMap) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	g := templateMapGob{
		RefmtPattern:   m.refmt.String(),
		NextLineID:     m.nextLineID,
		NextTemplateID: m.nextTemplateID,
		Templates:      m.templates,
	}
	if err := gob.NewEncoder(&buf).Encode(g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (m *TemplateMap) GobDecode(data []byte) error {
	var g templateMapGob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}

	refmt, err := regexp.Compile(g.RefmtPattern)
	if err != nil {
		return fmt.Errorf("recompiling tokenizer regex %q: %w", g.RefmtPattern, err)
	}

	m.refmt = refmt
	m.nextLineID = g.NextLineID
	m.nextTemplateID = g.NextTemplateID
	m.templates = g.Templates
	for _, t := range m.templates {
		t.refmt = refmt
	}
	return nil
}

// Save serializes m to path as an opaque gob-encoded blob. The format is not
// compatible with any other implementation of the miner; only Load from this
// package is required to read it back.
func Save(path string, m *TemplateMap) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return fmt.Errorf("encoding template map: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing template map to %s: %w", path, err)
	}
	return nil
}

// Load deserializes a TemplateMap previously written by Save. If the file
// does not hold a valid TemplateMap payload, it returns an error instead of
// a partially constructed map.
func Load(path string) (*TemplateMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template map from %s: %w", path, err)
	}

	m := &TemplateMap{}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(m); err != nil {
		return nil, fmt.Errorf("%s isn't a template map: %w", path, err)
	}
	return m, nil
}
