package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Pattern is a single pre-masking rule loaded from YAML.
type Pattern struct {
	Name        string `yaml:"name"`
	Regex       string `yaml:"regex"`
	Placeholder string `yaml:"placeholder"`
	Description string `yaml:"description"`
}

// PatternsConfig is the top-level shape of a patterns.yaml file.
type PatternsConfig struct {
	Patterns []Pattern `yaml:"patterns"`
}

// CompiledPattern is a Pattern with its regex compiled, ready to apply.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Placeholder string
	Description string
}

// LoadPatterns reads and compiles patterns from a YAML file.
func LoadPatterns(filepath string) ([]CompiledPattern, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("reading patterns file: %w", err)
	}

	var cfg PatternsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing patterns YAML: %w", err)
	}

	compiled := make([]CompiledPattern, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %s: %w", p.Name, err)
		}
		compiled = append(compiled, CompiledPattern{
			Name:        p.Name,
			Regex:       re,
			Placeholder: p.Placeholder,
			Description: p.Description,
		})
	}

	return compiled, nil
}

// DefaultPatterns returns the built-in pattern set applied before a log body
// or span name ever reaches the LCS/Drain miners. Order matters: patterns run
// left to right, and later patterns (notably "number") see the output of the
// earlier ones.
func DefaultPatterns() []CompiledPattern {
	return []CompiledPattern{
		{
			Name:        "timestamp",
			Regex:       regexp.MustCompile(`\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}`),
			Placeholder: "<TIMESTAMP>",
			Description: "ISO-like timestamps",
		},
		{
			Name:        "uuid",
			Regex:       regexp.MustCompile(`\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`),
			Placeholder: "<UUID>",
			Description: "Standard UUID format",
		},
		{
			Name:        "email",
			Regex:       regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`),
			Placeholder: "<EMAIL>",
			Description: "Email addresses",
		},
		{
			Name:        "service_method",
			Regex:       regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9_-]*)/([a-zA-Z][a-zA-Z0-9]+)$`),
			Placeholder: "$1/<METHOD>",
			Description: "gRPC or internal service/method style spans",
		},
		{
			Name:        "url",
			Regex:       regexp.MustCompile(`https?://[^\s]+|\s(/[a-zA-Z0-9/_.-]+)`),
			Placeholder: " <URL>",
			Description: "HTTP/HTTPS URLs and absolute paths",
		},
		{
			Name:        "duration",
			Regex:       regexp.MustCompile(`\d+(?:\.\d+)?(?:µs|ms|s|m|h)\b`),
			Placeholder: "<DURATION>",
			Description: "Time durations with units",
		},
		{
			Name:        "size",
			Regex:       regexp.MustCompile(`\d+(?:\.\d+)?(?:B|KB|MB|GB)\b`),
			Placeholder: "<SIZE>",
			Description: "File/memory sizes with units",
		},
		{
			Name:        "ip",
			Regex:       regexp.MustCompile(`\[::1\]|\b(?:\d{1,3}\.){3}\d{1,3}\b`),
			Placeholder: "<IP>",
			Description: "IPv4 addresses and localhost IPv6",
		},
		{
			Name:        "hex",
			Regex:       regexp.MustCompile(`\b[0-9a-f]{8,}\b`),
			Placeholder: "<HEX>",
			Description: "Long hexadecimal strings",
		},
		{
			Name:        "number",
			Regex:       regexp.MustCompile(`\b\d+\b`),
			Placeholder: "<NUM>",
			Description: "Any numeric value",
		},
	}
}
