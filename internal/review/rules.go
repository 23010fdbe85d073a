package review

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleSet is the static-analysis configuration: the rules to run, focus
// areas for the prompt, and per-category severity overrides applied to the
// merged report. ReplaceDefaults drops the built-in rules instead of
// extending them.
type RuleSet struct {
	Rules             []Rule              `yaml:"rules"`
	Focus             []string            `yaml:"focus,omitempty"`
	SeverityOverrides map[string]Severity `yaml:"severityOverrides,omitempty"`
	ReplaceDefaults   bool                `yaml:"replaceDefaults,omitempty"`
}

// DefaultRuleSet returns the compiled built-in rules.
func DefaultRuleSet() *RuleSet {
	rs := &RuleSet{Rules: defaultRules()}
	if err := rs.compile(); err != nil {
		panic(err)
	}
	return rs
}

// LoadRules reads a YAML rules file. An empty path yields the defaults.
// File rules with an id matching a built-in rule replace it.
func LoadRules(path string) (*RuleSet, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRuleSet(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses YAML rule-set content.
func ParseRules(data []byte) (*RuleSet, error) {
	var file RuleSet
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}
	rs := &RuleSet{
		Focus:             file.Focus,
		SeverityOverrides: map[string]Severity{},
	}
	if !file.ReplaceDefaults {
		rs.Rules = defaultRules()
	}
	for _, r := range file.Rules {
		rs.upsert(r)
	}
	for cat, sev := range file.SeverityOverrides {
		c, ok := NormalizeCategory(cat)
		if !ok {
			return nil, fmt.Errorf("severity override: unknown category %q", cat)
		}
		s, ok := NormalizeSeverity(string(sev))
		if !ok {
			return nil, fmt.Errorf("severity override for %s: unknown severity %q", cat, sev)
		}
		rs.SeverityOverrides[string(c)] = s
	}
	if err := rs.compile(); err != nil {
		return nil, err
	}
	return rs, nil
}

func (rs *RuleSet) upsert(r Rule) {
	for i := range rs.Rules {
		if rs.Rules[i].ID == r.ID {
			rs.Rules[i] = r
			return
		}
	}
	rs.Rules = append(rs.Rules, r)
}

func (rs *RuleSet) compile() error {
	for i := range rs.Rules {
		if err := rs.Rules[i].compile(); err != nil {
			return err
		}
	}
	return nil
}

// PromptSection renders focus areas and severity policy for the review prompt.
func (rs *RuleSet) PromptSection() string {
	if rs == nil {
		return ""
	}
	var b strings.Builder
	if len(rs.Focus) > 0 {
		fmt.Fprintf(&b, "\nFocus areas: %s. Prioritize findings in these areas.\n", strings.Join(rs.Focus, ", "))
	}
	if len(rs.SeverityOverrides) > 0 {
		cats := make([]string, 0, len(rs.SeverityOverrides))
		for c := range rs.SeverityOverrides {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		b.WriteString("\nSeverity policy:\n")
		for _, c := range cats {
			fmt.Fprintf(&b, "- %s findings should be rated as %s severity.\n", c, rs.SeverityOverrides[c])
		}
	}
	return b.String()
}

func (rs *RuleSet) applyOverrides(suggestions []Suggestion) {
	if rs == nil || len(rs.SeverityOverrides) == 0 {
		return
	}
	for i := range suggestions {
		if sev, ok := rs.SeverityOverrides[string(suggestions[i].Category)]; ok {
			suggestions[i].Severity = sev
		}
	}
}
