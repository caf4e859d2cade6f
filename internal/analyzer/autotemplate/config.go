package autotemplate

import (
	"strings"
	"unicode"
)

// Config holds configuration for the Drain template miner.
type Config struct {
	// Shards is the number of shards for concurrent processing.
	Shards int

	// MaxDepth is the maximum depth of the parse tree.
	MaxDepth int

	// MaxChildren is the maximum children per internal node.
	MaxChildren int

	// MaxClusters sizes the initial cluster capacity of each shard
	// (MaxClusters/Shards). It is not a cap: clusters are never evicted.
	MaxClusters int

	// SimThreshold is the similarity threshold (0.0-1.0) for matching clusters.
	SimThreshold float64

	// ExtraDelimiters are extra token delimiters beyond whitespace.
	ExtraDelimiters []rune

	// Training selects training mode (create new clusters) vs. match-only.
	Training bool
}

// DefaultConfig returns sensible defaults for span name mining.
func DefaultConfig() Config {
	return Config{
		Shards:          4,
		MaxDepth:        4,
		MaxChildren:     100,
		MaxClusters:     1000,
		SimThreshold:    0.5,
		ExtraDelimiters: []rune{':', '=', '/', '[', ']', '(', ')', ',', '"'},
		Training:        true,
	}
}

// tokenize splits a span name into tokens using whitespace plus any
// configured extra delimiters.
func tokenize(message string, extraDelimiters []rune) []string {
	if len(extraDelimiters) == 0 {
		return strings.Fields(message)
	}

	delims := make(map[rune]bool, len(extraDelimiters))
	for _, r := range extraDelimiters {
		delims[r] = true
	}

	var tokens []string
	var current strings.Builder
	for _, r := range message {
		if unicode.IsSpace(r) || delims[r] {
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		} else {
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}
