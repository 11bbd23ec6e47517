package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sentinel-seed/sentinel/pkg/patterns"
	"github.com/sentinel-seed/sentinel/pkg/semantic"
)

// exemplarFile is the YAML shape of an exemplar set.
type exemplarFile struct {
	Exemplars []semantic.Exemplar `yaml:"exemplars"`
}

// LoadExemplars reads a YAML exemplar file for the similarity adapter.
func LoadExemplars(path string) ([]semantic.Exemplar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read exemplars: %w", err)
	}
	var f exemplarFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse exemplars: %w", err)
	}
	if len(f.Exemplars) == 0 {
		return nil, fmt.Errorf("config: exemplar file %s is empty", path)
	}
	for i, ex := range f.Exemplars {
		if ex.Text == "" || ex.Category == "" {
			return nil, fmt.Errorf("config: exemplar %d missing text or category", i)
		}
	}
	return f.Exemplars, nil
}

// customPatternEntry is one YAML custom pattern.
type customPatternEntry struct {
	Category string `yaml:"category"`
	ID       string `yaml:"id"`
	Pattern  string `yaml:"pattern"`
	Severity string `yaml:"severity"`
}

type patternFile struct {
	Patterns []customPatternEntry `yaml:"patterns"`
}

// LoadCustomPatterns reads a YAML pattern file into library options. Unknown
// categories and malformed expressions surface when the library is built.
func LoadCustomPatterns(path string) ([]patterns.Option, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read patterns: %w", err)
	}
	var f patternFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse patterns: %w", err)
	}

	opts := make([]patterns.Option, 0, len(f.Patterns))
	for i, p := range f.Patterns {
		if p.ID == "" || p.Pattern == "" {
			return nil, fmt.Errorf("config: pattern %d missing id or pattern", i)
		}
		opts = append(opts, patterns.WithCustom(
			patterns.Category(p.Category), p.ID, p.Pattern, parseSeverity(p.Severity)))
	}
	return opts, nil
}

func parseSeverity(s string) patterns.Severity {
	switch s {
	case "low":
		return patterns.SeverityLow
	case "high":
		return patterns.SeverityHigh
	case "critical":
		return patterns.SeverityCritical
	default:
		return patterns.SeverityMedium
	}
}

// LoadRuleBytes reads a compliance rule file; parsing lives in pkg/rules.
func LoadRuleBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read rules: %w", err)
	}
	return data, nil
}
