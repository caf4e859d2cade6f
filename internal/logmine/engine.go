// Package logmine is the ambient port between the OTLP-facing analyzers and
// the LCS template miner in pkg/lcsminer. It keeps one lcsminer.TemplateMap
// per log severity level so that, say, ERROR bodies never merge with DEBUG
// bodies, applies an optional pre-masking pattern table ahead of tokenizing,
// and tracks per-wildcard-slot value cardinality with HyperLogLog.
package logmine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/arolek/logmine/internal/config"
	"github.com/arolek/logmine/pkg/hyperloglog"
	"github.com/arolek/logmine/pkg/lcsminer"
	"github.com/arolek/logmine/pkg/models"
)

// DefaultTokenizer is the separator regex used when a caller doesn't supply
// one: runs of whitespace, matching spec.md's worked examples.
var DefaultTokenizer = regexp.MustCompile(`\s+`)

// slotHLLPrecision is the HyperLogLog precision used for per-slot
// cardinality sketches. 10 keeps memory to ~1KB per slot, which matters
// since a busy severity level can accumulate many templates, each with
// several wildcard slots.
const slotHLLPrecision = 10

// severityMiner is one TemplateMap plus the per-template, per-slot
// cardinality sketches derived from Param results.
type severityMiner struct {
	templates *lcsminer.TemplateMap
	slotHLLs  map[int][]*hyperloglog.HyperLogLog // template id -> one HLL per wildcard position
}

// Engine is the log body template miner, with one miner per severity.
type Engine struct {
	mu         sync.RWMutex
	refmt      *regexp.Regexp
	severities map[string]*severityMiner
	patterns   []config.CompiledPattern
}

// NewEngine creates an Engine with the default (whitespace) tokenizer and no
// pre-masking patterns.
func NewEngine() *Engine {
	return NewEngineWithPatterns(nil)
}

// NewEngineWithPatterns creates an Engine that pre-masks every body through
// patterns before tokenizing. A nil slice disables pre-masking; to use the
// built-in pattern table, pass config.DefaultPatterns().
func NewEngineWithPatterns(patterns []config.CompiledPattern) *Engine {
	return &Engine{
		refmt:      DefaultTokenizer,
		severities: make(map[string]*severityMiner),
		patterns:   patterns,
	}
}

func (e *Engine) preMask(body string) string {
	for _, p := range e.patterns {
		body = p.Regex.ReplaceAllString(body, p.Placeholder)
	}
	return body
}

func (e *Engine) severityMinerLocked(severity string) *severityMiner {
	sm, ok := e.severities[severity]
	if !ok {
		sm = &severityMiner{
			templates: lcsminer.NewTemplateMap(e.refmt),
			slotHLLs:  make(map[int][]*hyperloglog.HyperLogLog),
		}
		e.severities[severity] = sm
	}
	return sm
}

// AddMessage pre-masks body, tokenizes it, merges it into the best-matching
// template for severity (or allocates a new one), updates per-slot
// cardinality sketches, and returns the assigned template.
func (e *Engine) AddMessage(severity, body string) *lcsminer.Template {
	masked := e.preMask(body)

	e.mu.Lock()
	defer e.mu.Unlock()

	sm := e.severityMinerLocked(severity)
	tpl := sm.templates.Insert(masked)
	e.recordSlotCardinalityLocked(sm, tpl, masked)
	return tpl
}

// recordSlotCardinalityLocked feeds each wildcard slot's joined value into
// its HyperLogLog sketch. Param can legitimately miss right after a merge
// widens the template's wildcards in a way the greedy walk can't re-align
// with the very line that caused the merge; that is not an error, it just
// means this line doesn't contribute a cardinality sample this round.
func (e *Engine) recordSlotCardinalityLocked(sm *severityMiner, tpl *lcsminer.Template, masked string) {
	seq := e.refmt.Split(strings.TrimSpace(masked), -1)

	slots, ok := tpl.Param(seq)
	if !ok {
		return
	}

	hlls, ok := sm.slotHLLs[tpl.ID()]
	if !ok || len(hlls) != len(slots) {
		hlls = make([]*hyperloglog.HyperLogLog, len(slots))
		for i := range hlls {
			hlls[i] = hyperloglog.New(slotHLLPrecision)
		}
		sm.slotHLLs[tpl.ID()] = hlls
	}

	for i, slot := range slots {
		hlls[i].Add(joinTokens(slot))
	}
}

func joinTokens(tokens []string) string {
	return strings.Join(tokens, " ")
}

// Param extracts the variable-slot contents of body against severity's
// currently-matching template.
func (e *Engine) Param(severity, body string) ([][]string, bool) {
	masked := e.preMask(body)

	e.mu.RLock()
	defer e.mu.RUnlock()

	sm, ok := e.severities[severity]
	if !ok {
		return nil, false
	}
	seq := e.refmt.Split(strings.TrimSpace(masked), -1)
	tpl, ok := sm.templates.Match(seq)
	if !ok {
		return nil, false
	}
	return tpl.Param(seq)
}

// Reparam recovers slots for a fully-joined line against severity's
// currently-matching template.
func (e *Engine) Reparam(severity, body string) ([][]string, bool) {
	masked := e.preMask(body)

	e.mu.RLock()
	defer e.mu.RUnlock()

	sm, ok := e.severities[severity]
	if !ok {
		return nil, false
	}
	seq := e.refmt.Split(strings.TrimSpace(masked), -1)
	tpl, ok := sm.templates.Match(seq)
	if !ok {
		return nil, false
	}
	return tpl.ReparamTokens(seq)
}

// Templates returns every template known for severity, sorted by line count
// (highest first; the order of templates with equal counts is not defined),
// converted to models.BodyTemplate with slot cardinality attached.
func (e *Engine) Templates(severity string) []*models.BodyTemplate {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sm, ok := e.severities[severity]
	if !ok {
		return nil
	}

	total := int64(0)
	templates := sm.templates.Templates()
	for _, t := range templates {
		total += int64(len(t.LineIDs()))
	}

	out := make([]*models.BodyTemplate, 0, len(templates))
	for _, t := range templates {
		j := t.ToJSON()
		count := int64(len(j.LineIDs))

		var pct float64
		if total > 0 {
			pct = float64(count) / float64(total) * 100
		}

		var card []uint64
		if hlls, ok := sm.slotHLLs[t.ID()]; ok {
			card = make([]uint64, len(hlls))
			for i, h := range hlls {
				card[i] = h.Count()
			}
		}

		out = append(out, &models.BodyTemplate{
			Template:        j.LCSSeq,
			Count:           count,
			Percentage:      pct,
			Example:         fmt.Sprintf("template #%d", t.ID()),
			LineIDs:         j.LineIDs,
			Positions:       j.Position,
			SlotCardinality: card,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Severities lists every severity level this Engine has seen a body for.
func (e *Engine) Severities() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]string, 0, len(e.severities))
	for sev := range e.severities {
		out = append(out, sev)
	}
	sort.Strings(out)
	return out
}

// Stats reports coarse counters, mirroring the teacher's
// AutoLogBodyAnalyzer.GetStats shape.
func (e *Engine) Stats() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	templateCount := 0
	for _, sm := range e.severities {
		templateCount += sm.templates.Len()
	}

	return map[string]any{
		"severities":     len(e.severities),
		"template_count": templateCount,
	}
}
