package review

import (
	"strings"
	"time"
)

// Severity represents the severity level of a suggestion.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// MaxSeverity returns the more severe of a and b. Unknown values rank lowest.
func MaxSeverity(a, b Severity) Severity {
	if SeverityRank(b) > SeverityRank(a) {
		return b
	}
	return a
}

// Category is the closed set of suggestion categories a report may carry.
type Category string

const (
	CategoryReadability     Category = "readability"
	CategoryBugs            Category = "bugs"
	CategoryPerformance     Category = "performance"
	CategorySecurity        Category = "security"
	CategoryModularity      Category = "modularity"
	CategoryLogic           Category = "logic"
	CategorySyntax          Category = "syntax"
	CategoryStructure       Category = "structure"
	CategoryMaintainability Category = "maintainability"
	CategoryBestPractice    Category = "best_practice"
	CategoryDebugCode       Category = "debug_code"
	CategoryDesignIssue     Category = "design_issue"
)

// Origin records which stage produced a suggestion or report.
type Origin string

const (
	OriginLLM      Origin = "llm"
	OriginStatic   Origin = "static"
	OriginFallback Origin = "fallback"
)

// Suggestion is a single finding in a report.
type Suggestion struct {
	ID              string   `json:"id"`
	Category        Category `json:"category"`
	Severity        Severity `json:"severity"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	LineNumber      int      `json:"lineNumber"`
	CodeSnippet     string   `json:"codeSnippet"`
	Suggestion      string   `json:"suggestion"`
	ErrorType       string   `json:"errorType,omitempty"`
	PotentialImpact string   `json:"potentialImpact,omitempty"`
	Origin          Origin   `json:"origin,omitempty"`
}

// SeverityCounts holds counts by severity level.
type SeverityCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Summary aggregates a report. TotalIssues always equals len(Suggestions).
type Summary struct {
	TotalIssues       int            `json:"totalIssues"`
	OverallSeverity   Severity       `json:"overallSeverity"`
	MainCategories    []string       `json:"mainCategories"`
	OverallScore      int            `json:"overallScore"`
	ScoreBand         string         `json:"scoreBand"`
	Counts            SeverityCounts `json:"counts"`
	HasCriticalErrors bool           `json:"hasCriticalErrors"`
	HasRuntimeErrors  bool           `json:"hasRuntimeErrors"`
	HasLogicalErrors  bool           `json:"hasLogicalErrors"`
}

// CodeQuality scores range over [0,10].
type CodeQuality struct {
	Readability     int `json:"readability"`
	Maintainability int `json:"maintainability"`
	Efficiency      int `json:"efficiency"`
	Security        int `json:"security"`
}

type ExecutionAnalysis struct {
	WillCompile      bool   `json:"willCompile"`
	WillRun          bool   `json:"willRun"`
	HasInfiniteLoops bool   `json:"hasInfiniteLoops"`
	HasMemoryIssues  bool   `json:"hasMemoryIssues"`
	PotentialOutput  string `json:"potentialOutput"`
}

// Report is the normalized, persisted analysis of one document.
type Report struct {
	Summary           Summary            `json:"summary"`
	Suggestions       []Suggestion       `json:"suggestions"`
	CodeQuality       *CodeQuality       `json:"codeQuality,omitempty"`
	ExecutionAnalysis *ExecutionAnalysis `json:"executionAnalysis,omitempty"`
	Source            Origin             `json:"source"`
	FallbackReason    string             `json:"fallbackReason,omitempty"`
	Model             string             `json:"model,omitempty"`
	GeneratedAt       time.Time          `json:"generatedAt"`
}

// Input is the code under review.
type Input struct {
	FileName string
	Language string
	Content  string
}

// Lines splits the content the way line numbers are counted in reports.
func (in Input) Lines() []string {
	return strings.Split(strings.ReplaceAll(in.Content, "\r\n", "\n"), "\n")
}

// ScoreBand buckets an overall score for dashboards.
func ScoreBand(score int) string {
	switch {
	case score >= 80:
		return "excellent"
	case score >= 60:
		return "fair"
	default:
		return "poor"
	}
}

// ComputeCounts tallies suggestions by severity.
func ComputeCounts(suggestions []Suggestion) SeverityCounts {
	var c SeverityCounts
	for _, s := range suggestions {
		switch s.Severity {
		case SeverityHigh:
			c.High++
		case SeverityMedium:
			c.Medium++
		case SeverityLow:
			c.Low++
		}
	}
	return c
}

// HighestSeverity returns the most severe suggestion severity, or "" when empty.
func HighestSeverity(suggestions []Suggestion) Severity {
	var out Severity
	for _, s := range suggestions {
		out = MaxSeverity(out, s.Severity)
	}
	return out
}
