// Package lcsminer implements online log template mining: given a stream of
// tokenized lines, it incrementally groups them into templates — token
// sequences with wildcard slots — by computing a greedy longest-common-
// subsequence score between an incoming line and each known template.
//
// The matching algorithm is a deliberate approximation, not an optimal LCS.
// It scans left to right and never backtracks; the resulting behavior,
// including its quirks on short or degenerate input, is part of the
// contract and must not be "fixed" into an optimal implementation.
package lcsminer

import (
	"regexp"
	"strings"
)

// Wildcard is the token that stands in for one or more variable tokens.
const Wildcard = "*"

// Template holds one discovered log line skeleton: its token sequence with
// wildcard markers, the ids of every line merged into it, and fields derived
// from the token sequence (wildcard positions, the separator regex used by
// Reparam).
//
// A Template is owned by exactly one TemplateMap; callers may read the
// Template returned by TemplateMap.Insert but must not mutate it directly.
type Template struct {
	id        int
	tokens    []string
	lineIDs   []int
	positions []int
	separator string
	refmt     *regexp.Regexp
}

func tokenize(refmt *regexp.Regexp, s string) []string {
	return refmt.Split(strings.TrimSpace(s), -1)
}

// newTemplate constructs a Template from an already-tokenized sequence. The
// new template starts with no wildcards: positions is empty and separator is
// a single space, since there is nothing yet to derive.
func newTemplate(id int, tokens []string, lineID int, refmt *regexp.Regexp) *Template {
	return &Template{
		id:        id,
		tokens:    tokens,
		lineIDs:   []int{lineID},
		positions: nil,
		separator: " ",
		refmt:     refmt,
	}
}

// ID returns the template's identifier, assigned at creation and never
// mutated afterward.
func (t *Template) ID() int { return t.id }

// Len returns the number of tokens in the template, including wildcards.
func (t *Template) Len() int { return len(t.tokens) }

// Tokens returns a copy of the template's token sequence.
func (t *Template) Tokens() []string {
	out := make([]string, len(t.tokens))
	copy(out, t.tokens)
	return out
}

// LineIDs returns a copy of the ids of every line merged into this template,
// in arrival order.
func (t *Template) LineIDs() []int {
	out := make([]int, len(t.lineIDs))
	copy(out, t.lineIDs)
	return out
}

// Positions returns a copy of the indices into Tokens() holding a wildcard.
func (t *Template) Positions() []int {
	out := make([]int, len(t.positions))
	copy(out, t.positions)
	return out
}

// Separator returns the derived alternation regex used by Reparam.
func (t *Template) Separator() string { return t.separator }

func (t *Template) isWildcardAt(i int) bool {
	for _, p := range t.positions {
		if p == i {
			return true
		}
	}
	return false
}

// LCSLength computes the greedy longest-common-subsequence score between the
// template's tokens and seq. Wildcard positions in the template never
// contribute to the count and are skipped. The scan over seq never moves
// backwards: once a token at seq[j] is consumed, the next search starts at
// j+1, and a template token with no remaining match is simply dropped
// without advancing the cursor.
func (t *Template) LCSLength(seq []string) int {
	count := 0
	lastmatch := -1
	for i := range t.tokens {
		if t.isWildcardAt(i) {
			continue
		}
		for j := lastmatch + 1; j < len(seq); j++ {
			if t.tokens[i] == seq[j] {
				lastmatch = j
				count++
				break
			}
		}
	}
	return count
}

// Insert merges seq, tagged with lineID, into the template. Every template
// token that fails to find a match against seq — whether because it was
// already a wildcard or because the greedy scan ran out of candidates —
// collapses into a single coalesced wildcard for that gap. positions and
// separator are recomputed from the resulting token sequence.
func (t *Template) Insert(seq []string, lineID int) {
	t.lineIDs = append(t.lineIDs, lineID)

	var buf strings.Builder
	lastmatch := -1
	placeholder := false
	for i := range t.tokens {
		if t.isWildcardAt(i) {
			if !placeholder {
				buf.WriteString(Wildcard)
				buf.WriteByte(' ')
			}
			placeholder = true
			continue
		}

		matched := false
		for j := lastmatch + 1; j < len(seq); j++ {
			if t.tokens[i] == seq[j] {
				placeholder = false
				buf.WriteString(t.tokens[i])
				buf.WriteByte(' ')
				lastmatch = j
				matched = true
				break
			}
			if !placeholder {
				buf.WriteString(Wildcard)
				buf.WriteByte(' ')
				placeholder = true
			}
		}
		_ = matched
	}

	merged := strings.TrimSpace(buf.String())
	t.tokens = tokenize(t.refmt, merged)
	t.positions = computePositions(t.tokens)
	t.separator = computeSeparator(t.tokens, t.positions)
}

func computePositions(tokens []string) []int {
	var pos []int
	for i, tok := range tokens {
		if tok == Wildcard {
			pos = append(pos, i)
		}
	}
	return pos
}

// computeSeparator partitions tokens into maximal runs of non-wildcard
// tokens, rejoins each run with single spaces, and joins the runs with '|'.
// A run adjacent to a wildcard on both sides (or at the start/end) may be
// empty and contributes no alternative.
func computeSeparator(tokens []string, positions []int) string {
	isWildcard := func(i int) bool {
		for _, p := range positions {
			if p == i {
				return true
			}
		}
		return false
	}

	var runs []string
	s := 0
	for i := range tokens {
		if isWildcard(i) {
			if i > s {
				runs = append(runs, strings.Join(tokens[s:i], " "))
			}
			s = i + 1
		}
	}
	if s < len(tokens) {
		runs = append(runs, strings.Join(tokens[s:], " "))
	}

	return strings.Join(runs, "|")
}

// Param extracts the variable-slot contents of seq against this template: one
// slot per wildcard position, in order. A terminal token mismatch or a
// leftover unconsumed suffix of seq is reported as ok == false.
func (t *Template) Param(seq []string) (slots [][]string, ok bool) {
	j := 0
	var ret [][]string
	for i := range t.tokens {
		if t.isWildcardAt(i) {
			var slot []string
			for j < len(seq) {
				if i != len(t.tokens)-1 && t.tokens[i+1] == seq[j] {
					break
				}
				slot = append(slot, seq[j])
				j++
			}
			ret = append(ret, slot)
			continue
		}
		if j >= len(seq) || t.tokens[i] != seq[j] {
			return nil, false
		}
		j++
	}

	if j != len(seq) {
		return nil, false
	}
	return ret, true
}

// Reparam recovers slots from a fully-joined line by splitting on the
// template's derived separator regex, then re-tokenizing each non-empty
// fragment with refmt. It reports ok == false when the number of fragments
// does not match the number of wildcard positions — including the
// degenerate case of an empty separator (an all-wildcard template).
func (t *Template) Reparam(seq string) (slots [][]string, ok bool) {
	seq = strings.TrimSpace(seq)
	if t.separator == "" {
		return nil, false
	}

	sepRe, err := regexp.Compile(t.separator)
	if err != nil {
		return nil, false
	}

	var ret [][]string
	for _, frag := range sepRe.Split(seq, -1) {
		if frag == "" {
			continue
		}
		ret = append(ret, tokenize(t.refmt, frag))
	}

	if len(ret) != len(t.positions) {
		return nil, false
	}
	return ret, true
}

// ReparamTokens joins seq with single spaces and delegates to Reparam.
func (t *Template) ReparamTokens(seq []string) ([][]string, bool) {
	return t.Reparam(strings.Join(seq, " "))
}

// JSON is the serialized diagnostic form of a Template.
type JSON struct {
	LCSSeq   string `json:"lcsseq"`
	LineIDs  []int  `json:"lineids"`
	Position []int  `json:"position"`
}

// ToJSON returns the template's diagnostic JSON form. LCSSeq joins the
// tokens with a single space and a trailing space, matching the reference
// serialization.
func (t *Template) ToJSON() JSON {
	var buf strings.Builder
	for _, tok := range t.tokens {
		buf.WriteString(tok)
		buf.WriteByte(' ')
	}
	return JSON{
		LCSSeq:   buf.String(),
		LineIDs:  t.LineIDs(),
		Position: t.Positions(),
	}
}
