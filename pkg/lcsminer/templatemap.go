package lcsminer

import "regexp"

// TemplateMap is the streaming clustering driver: it tokenizes each inserted
// line, picks the best-matching Template under length pruning and a score
// threshold, and either merges into that Template or allocates a new one.
//
// TemplateMap is not safe for concurrent mutation. A single owning
// goroutine must drive Insert; read-only queries (Match, Len, At) must not
// run concurrently with an in-flight Insert.
type TemplateMap struct {
	templates      []*Template
	nextLineID     int
	nextTemplateID int
	refmt          *regexp.Regexp
}

// NewTemplateMap creates an empty TemplateMap using refmt to tokenize every
// inserted line.
func NewTemplateMap(refmt *regexp.Regexp) *TemplateMap {
	return &TemplateMap{refmt: refmt}
}

// Insert tokenizes entry, merges it into the best-matching Template (or
// allocates a new one if none qualifies), and returns the Template it was
// assigned to.
func (m *TemplateMap) Insert(entry string) *Template {
	seq := tokenize(m.refmt, entry)
	return m.InsertTokens(seq)
}

// InsertTokens is the token-sequence form of Insert, for callers that have
// already tokenized the line.
func (m *TemplateMap) InsertTokens(seq []string) *Template {
	best, _ := m.Match(seq)

	m.nextLineID++
	lineID := m.nextLineID

	if best != nil {
		best.Insert(seq, lineID)
		return best
	}

	t := newTemplate(m.nextTemplateID, seq, lineID, m.refmt)
	m.templates = append(m.templates, t)
	m.nextTemplateID++
	return t
}

// Match selects the best-matching Template for seq without mutating the map.
// Only templates with length in [len(seq)/2, 2*len(seq)] (integer division)
// are considered; among those, the one with the highest LCSLength score of
// at least len(seq)/2 wins. Ties go to the earliest-created template.
func (m *TemplateMap) Match(seq []string) (*Template, bool) {
	L := len(seq)
	var best *Template
	bestScore := 0

	for _, t := range m.templates {
		tl := t.Len()
		if tl < L/2 || tl > 2*L {
			continue
		}

		score := t.LCSLength(seq)
		if score >= L/2 && score > bestScore {
			best = t
			bestScore = score
		}
	}

	if best == nil {
		return nil, false
	}
	return best, true
}

// MatchString is the raw-string form of Match.
func (m *TemplateMap) MatchString(entry string) (*Template, bool) {
	return m.Match(tokenize(m.refmt, entry))
}

// Len returns the number of templates known to the map.
func (m *TemplateMap) Len() int { return len(m.templates) }

// At returns the template at position i, in creation order.
func (m *TemplateMap) At(i int) *Template { return m.templates[i] }

// Templates returns the templates known to the map, in creation order. The
// returned slice is a fresh copy; the Templates it references are owned by
// the map and callers must not mutate them.
func (m *TemplateMap) Templates() []*Template {
	out := make([]*Template, len(m.templates))
	copy(out, m.templates)
	return out
}
