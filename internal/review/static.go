package review

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

const (
	redacted          = "[REDACTED]"
	maxSnippetLen     = 200
	defaultMaxPerRule = 5
)

// Rule is one deterministic pattern check run over every source line.
// Secret rules only fire when the line also matches a credential pattern.
type Rule struct {
	ID          string   `yaml:"id" json:"id"`
	Category    Category `yaml:"category" json:"category"`
	Severity    Severity `yaml:"severity" json:"severity"`
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description" json:"description"`
	Suggestion  string   `yaml:"suggestion" json:"suggestion"`
	Pattern     string   `yaml:"pattern" json:"pattern"`
	Languages   []string `yaml:"languages,omitempty" json:"languages,omitempty"`
	MaxPerFile  int      `yaml:"maxPerFile,omitempty" json:"maxPerFile,omitempty"`
	Secret      bool     `yaml:"secret,omitempty" json:"secret,omitempty"`

	re *regexp.Regexp
}

func (r *Rule) compile() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("rule id is required")
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	r.re = re
	cat, _ := NormalizeCategory(string(r.Category))
	r.Category = cat
	sev, _ := NormalizeSeverity(string(r.Severity))
	r.Severity = sev
	if r.MaxPerFile <= 0 {
		r.MaxPerFile = defaultMaxPerRule
	}
	return nil
}

func (r *Rule) appliesTo(lang string) bool {
	if len(r.Languages) == 0 {
		return true
	}
	for _, l := range r.Languages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

// secretPatterns are regex heuristics for common secret types.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`),
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`),
}

// RedactSecrets replaces likely credentials in text with a placeholder.
func RedactSecrets(text string) string {
	for _, pat := range secretPatterns {
		text = pat.ReplaceAllString(text, redacted)
	}
	return text
}

func hasSecret(line string) bool {
	for _, pat := range secretPatterns {
		if pat.MatchString(line) {
			return true
		}
	}
	return false
}

var builtinRules = sync.OnceValue(DefaultRuleSet)

func defaultRules() []Rule {
	return []Rule{
		{
			ID: "hardcoded-secret", Category: CategorySecurity, Severity: SeverityHigh,
			Title:       "Hard-coded Credential",
			Description: "A credential or private key appears to be embedded in the source.",
			Suggestion:  "Load secrets from the environment or a secret manager and rotate the exposed value.",
			Pattern:     `(?i)(key|secret|token|password|passwd|credential|bearer|AKIA|PRIVATE KEY|eyJ|gh[pousr]_|sk-)`,
			Secret:      true,
		},
		{
			ID: "eval-usage", Category: CategorySecurity, Severity: SeverityHigh,
			Title:       "Dynamic Code Evaluation",
			Description: "Evaluating strings as code allows injection when any part of the input is user controlled.",
			Suggestion:  "Replace eval/exec with explicit parsing or a dispatch table.",
			Pattern:     `\b(eval|exec)\s*\(`,
			Languages:   []string{"JavaScript", "TypeScript", "Python", "PHP", "Ruby"},
		},
		{
			ID: "console-log", Category: CategoryDebugCode, Severity: SeverityLow,
			Title:       "Debug Logging Left In",
			Description: "console.log calls are usually leftovers from debugging.",
			Suggestion:  "Remove the call or route it through the application's logger.",
			Pattern:     `\bconsole\.(log|debug|trace)\s*\(`,
			Languages:   []string{"JavaScript", "TypeScript", "HTML"},
		},
		{
			ID: "python-print", Category: CategoryDebugCode, Severity: SeverityLow,
			Title:       "Print Statement",
			Description: "print() output is often debugging residue in library or service code.",
			Suggestion:  "Use the logging module with an appropriate level.",
			Pattern:     `^\s*print\s*\(`,
			Languages:   []string{"Python"},
		},
		{
			ID: "stdout-debug", Category: CategoryDebugCode, Severity: SeverityLow,
			Title:       "Direct Standard Output",
			Description: "Writing straight to standard output bypasses structured logging.",
			Suggestion:  "Use a logger instead of printing directly.",
			Pattern:     `\b(fmt\.Print(ln|f)?|System\.out\.print(ln)?|std::cout)\b`,
			Languages:   []string{"Go", "Java", "C++"},
		},
		{
			ID: "todo-marker", Category: CategoryMaintainability, Severity: SeverityLow,
			Title:       "Unresolved TODO",
			Description: "A TODO/FIXME marker indicates unfinished work.",
			Suggestion:  "Resolve the note or track it in the issue tracker.",
			Pattern:     `\b(TODO|FIXME|HACK|XXX)\b`,
		},
		{
			ID: "empty-catch", Category: CategoryBugs, Severity: SeverityMedium,
			Title:       "Swallowed Exception",
			Description: "An empty handler hides failures and makes debugging difficult.",
			Suggestion:  "Log or handle the error, or let it propagate.",
			Pattern:     `(catch\s*(\([^)]*\))?\s*\{\s*\}|except[^:]*:\s*pass\b)`,
		},
		{
			ID: "long-line", Category: CategoryReadability, Severity: SeverityLow,
			Title:       "Overly Long Line",
			Description: "Lines longer than 120 characters are hard to read and review.",
			Suggestion:  "Break the expression up or extract intermediate variables.",
			Pattern:     `^.{121,}$`,
		},
	}
}

// Check runs the rule set over in and returns one suggestion per matching
// (rule, line), capped per rule. Snippets are redacted.
func Check(in Input, rs *RuleSet) []Suggestion {
	if rs == nil {
		rs = builtinRules()
	}
	lines := in.Lines()
	var out []Suggestion
	for i := range rs.Rules {
		rule := &rs.Rules[i]
		if rule.re == nil || !rule.appliesTo(in.Language) {
			continue
		}
		hits := 0
		for n, line := range lines {
			if hits >= rule.MaxPerFile {
				break
			}
			if !rule.re.MatchString(line) {
				continue
			}
			if rule.Secret && !hasSecret(line) {
				continue
			}
			hits++
			out = append(out, Suggestion{
				ID:          fmt.Sprintf("static-%s-%d", rule.ID, n+1),
				Category:    rule.Category,
				Severity:    rule.Severity,
				Title:       rule.Title,
				Description: rule.Description,
				LineNumber:  n + 1,
				CodeSnippet: snippet(line),
				Suggestion:  rule.Suggestion,
				Origin:      OriginStatic,
			})
		}
	}
	return out
}

func snippet(line string) string {
	s := strings.TrimSpace(RedactSecrets(line))
	if r := []rune(s); len(r) > maxSnippetLen {
		s = string(r[:maxSnippetLen]) + "..."
	}
	return s
}
