package review

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"codereview/internal/util/jsonutil"
)

// ErrNoJSON is returned when a response holds no parseable JSON object.
var ErrNoJSON = errors.New("review: no JSON object in response")

const (
	defaultScore       = 50
	defaultTitle       = "Code Improvement Opportunity"
	defaultDescription = "An area for code improvement has been identified."
	defaultAdvice      = "Consider reviewing and improving this code section."
	defaultSnippet     = "// Code section"
)

var categories = map[Category]bool{
	CategoryReadability: true, CategoryBugs: true, CategoryPerformance: true,
	CategorySecurity: true, CategoryModularity: true, CategoryLogic: true,
	CategorySyntax: true, CategoryStructure: true, CategoryMaintainability: true,
	CategoryBestPractice: true, CategoryDebugCode: true, CategoryDesignIssue: true,
}

var categorySynonyms = map[string]Category{
	"bug":             CategoryBugs,
	"error":           CategoryBugs,
	"errors":          CategoryBugs,
	"error_handling":  CategoryBugs,
	"correctness":     CategoryLogic,
	"logical":         CategoryLogic,
	"perf":            CategoryPerformance,
	"efficiency":      CategoryPerformance,
	"style":           CategoryReadability,
	"formatting":      CategoryReadability,
	"documentation":   CategoryReadability,
	"docs":            CategoryReadability,
	"naming":          CategoryReadability,
	"architecture":    CategoryDesignIssue,
	"design":          CategoryDesignIssue,
	"modular":         CategoryModularity,
	"organization":    CategoryStructure,
	"maintenance":     CategoryMaintainability,
	"best_practices":  CategoryBestPractice,
	"bestpractice":    CategoryBestPractice,
	"debug":           CategoryDebugCode,
	"debugging":       CategoryDebugCode,
	"vulnerability":   CategorySecurity,
	"vulnerabilities": CategorySecurity,
}

var severitySynonyms = map[string]Severity{
	"high":     SeverityHigh,
	"critical": SeverityHigh,
	"major":    SeverityHigh,
	"severe":   SeverityHigh,
	"error":    SeverityHigh,
	"blocker":  SeverityHigh,
	"medium":   SeverityMedium,
	"moderate": SeverityMedium,
	"warning":  SeverityMedium,
	"warn":     SeverityMedium,
	"low":      SeverityLow,
	"minor":    SeverityLow,
	"info":     SeverityLow,
	"trivial":  SeverityLow,
	"note":     SeverityLow,
}

func categoryKey(raw string) string {
	k := strings.ToLower(strings.TrimSpace(raw))
	k = strings.NewReplacer("-", "_", " ", "_", "&", "_").Replace(k)
	return k
}

// NormalizeCategory maps a free-form category onto the closed set.
// ok is false when the value had to be replaced by the default.
func NormalizeCategory(raw string) (Category, bool) {
	k := categoryKey(raw)
	if categories[Category(k)] {
		return Category(k), true
	}
	if c, found := categorySynonyms[k]; found {
		return c, true
	}
	return CategoryReadability, false
}

// NormalizeSeverity maps a free-form severity onto high/medium/low.
func NormalizeSeverity(raw string) (Severity, bool) {
	if s, ok := severitySynonyms[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s, true
	}
	return SeverityMedium, false
}

// ExtractJSON finds the first parseable JSON object in free text.
func ExtractJSON(text string) ([]byte, error) {
	cleaned := jsonutil.StripFences(text)
	for _, cand := range jsonutil.ObjectCandidates(cleaned) {
		var probe map[string]any
		if err := jsonutil.UnmarshalFlex([]byte(cand), &probe); err == nil {
			return []byte(cand), nil
		}
	}
	return nil, ErrNoJSON
}

// Normalize coerces a model's JSON object into a Report. Only a payload that
// is not a JSON object at all is an error; every field-level problem is
// repaired with a default.
func Normalize(raw []byte, in Input) (Report, error) {
	var doc map[string]any
	if err := jsonutil.UnmarshalFlex(raw, &doc); err != nil {
		return Report{}, fmt.Errorf("decode report: %w", err)
	}
	if doc == nil {
		return Report{}, fmt.Errorf("decode report: %w", ErrNoJSON)
	}

	lines := in.Lines()
	items := asSlice(first(doc, "suggestions", "issues", "findings"))
	suggestions := make([]Suggestion, 0, len(items))
	for _, item := range items {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		suggestions = append(suggestions, normalizeSuggestion(m, lines))
	}

	rep := Report{
		Suggestions: suggestions,
		Source:      OriginLLM,
		GeneratedAt: time.Now().UTC(),
	}
	summary, _ := asMap(doc["summary"])
	rep.Summary = normalizeSummary(summary)
	if cq, ok := asMap(first(doc, "codeQuality", "code_quality")); ok {
		rep.CodeQuality = normalizeCodeQuality(cq)
	}
	if ea, ok := asMap(first(doc, "executionAnalysis", "execution_analysis")); ok {
		rep.ExecutionAnalysis = &ExecutionAnalysis{
			WillCompile:      asBool(ea["willCompile"]),
			WillRun:          asBool(ea["willRun"]),
			HasInfiniteLoops: asBool(ea["hasInfiniteLoops"]),
			HasMemoryIssues:  asBool(ea["hasMemoryIssues"]),
			PotentialOutput:  asString(ea["potentialOutput"]),
		}
	}
	return rep, nil
}

func normalizeSuggestion(m map[string]any, lines []string) Suggestion {
	category, _ := NormalizeCategory(asString(first(m, "category", "type")))
	severity, _ := NormalizeSeverity(asString(first(m, "severity", "priority", "level")))

	line := 1
	if n, ok := asInt(first(m, "lineNumber", "line_number", "line", "startLine")); ok {
		line = n
	}
	line = clamp(line, 1, max(1, len(lines)))

	snippet := asString(first(m, "codeSnippet", "code_snippet", "snippet", "code"))
	if snippet == "" {
		snippet = firstNonEmpty(strings.TrimRight(lines[line-1], " \t\r"), defaultSnippet)
	}

	return Suggestion{
		ID:              asString(m["id"]),
		Category:        category,
		Severity:        severity,
		Title:           firstNonEmpty(asString(m["title"]), defaultTitle),
		Description:     firstNonEmpty(asString(first(m, "description", "message", "explanation")), defaultDescription),
		LineNumber:      line,
		CodeSnippet:     snippet,
		Suggestion:      firstNonEmpty(asString(first(m, "suggestion", "fix", "recommendation")), defaultAdvice),
		ErrorType:       asString(first(m, "errorType", "error_type")),
		PotentialImpact: asString(first(m, "potentialImpact", "potential_impact", "impact")),
		Origin:          OriginLLM,
	}
}

// normalizeSummary keeps the model's opinions (score, severity, categories,
// flags); counts are recomputed by Finalize.
func normalizeSummary(m map[string]any) Summary {
	s := Summary{OverallScore: defaultScore}
	if m == nil {
		return s
	}
	if score, ok := asNumber(first(m, "overallScore", "overall_score", "score")); ok {
		if score > 0 && score < 1 {
			score *= 100
		}
		s.OverallScore = roundInt(score, 0, 100)
	}
	if sev, ok := NormalizeSeverity(asString(first(m, "overallSeverity", "overall_severity", "severity"))); ok {
		s.OverallSeverity = sev
	}
	for _, c := range asSlice(first(m, "mainCategories", "main_categories", "categories")) {
		if cat, ok := NormalizeCategory(asString(c)); ok {
			s.MainCategories = appendUnique(s.MainCategories, string(cat))
		}
	}
	s.HasCriticalErrors = asBool(m["hasCriticalErrors"])
	s.HasRuntimeErrors = asBool(m["hasRuntimeErrors"])
	s.HasLogicalErrors = asBool(m["hasLogicalErrors"])
	return s
}

func normalizeCodeQuality(m map[string]any) *CodeQuality {
	score := func(key string) int {
		n, ok := asNumber(m[key])
		if !ok {
			return 0
		}
		// Some answers use a percentage scale.
		if n > 10 {
			n /= 10
		}
		return roundInt(n, 0, 10)
	}
	return &CodeQuality{
		Readability:     score("readability"),
		Maintainability: score("maintainability"),
		Efficiency:      score("efficiency"),
		Security:        score("security"),
	}
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
