package review

import (
	"fmt"
	"strings"
	"time"
)

// Fallback produces a deterministic heuristic report when the model cannot
// be used. The three suggestions cover documentation, structure and error
// handling, tuned by simple content signals.
func Fallback(in Input, reason string) Report {
	lines := in.Lines()
	n := len(lines)
	content := in.Content
	lang := firstNonEmpty(in.Language, "source")
	name := firstNonEmpty(in.FileName, "this file")

	hasFunctions := containsAny(content, "function ", "def ", "class ", "func ")
	hasComments := containsAny(content, "//", "/*", "#")
	hasErrorHandling := containsAny(content, "try", "catch", "except", "err != nil")

	severity, score := SeverityMedium, 65
	switch {
	case n > 100 && !hasComments:
		severity, score = SeverityHigh, 45
	case n > 50 && !hasErrorHandling:
		score = 60
	}

	at := func(line int) (int, string) {
		line = clamp(line, 1, max(1, n))
		return line, strings.TrimRight(lines[line-1], " \t\r")
	}

	docLine, docSnippet := at(n / 2)
	structLine, structSnippet := at(min(10, n))
	errLine, errSnippet := at(min(5, n))

	structure := Suggestion{
		ID:          "fallback-structure",
		Category:    CategoryModularity,
		Severity:    SeverityHigh,
		Title:       "Procedural Code Structure",
		Description: "Code appears to be written procedurally without function or module separation.",
		LineNumber:  structLine,
		CodeSnippet: firstNonEmpty(structSnippet, "// Main logic section"),
		Suggestion:  "Extract reusable logic into functions and organize code into modules by responsibility.",
		Origin:      OriginFallback,
	}
	if hasFunctions {
		structure.Severity = SeverityLow
		structure.Title = "Function Organization"
		structure.Description = "Functions could be organized with clearer responsibilities and separation of concerns."
		structure.Suggestion = "Keep each function to a single responsibility and split large functions into smaller, focused ones."
	}

	errors := Suggestion{
		ID:          "fallback-error-handling",
		Category:    CategoryBugs,
		Severity:    SeverityMedium,
		Title:       "Missing Error Handling",
		Description: "Code lacks error handling for runtime failures and edge cases.",
		LineNumber:  errLine,
		CodeSnippet: firstNonEmpty(errSnippet, "// Potential error-prone section"),
		Suggestion:  "Guard external calls, file operations and user input, and validate function parameters.",
		Origin:      OriginFallback,
	}
	if hasErrorHandling {
		errors.Severity = SeverityLow
		errors.Title = "Error Handling Review"
		errors.Description = "Existing error handling should be reviewed for completeness and consistency."
		errors.Suggestion = "Make sure every failure point is handled and errors are logged consistently."
	}

	return Report{
		Summary: Summary{
			OverallSeverity: severity,
			OverallScore:    score,
			MainCategories:  []string{string(CategoryReadability), string(CategoryStructure), string(CategoryMaintainability)},
		},
		Suggestions: []Suggestion{
			{
				ID:          "fallback-documentation",
				Category:    CategoryReadability,
				Severity:    SeverityMedium,
				Title:       "Code Documentation Needed",
				Description: fmt.Sprintf("The %s code in %s lacks sufficient comments and documentation, which makes its logic hard to follow.", lang, name),
				LineNumber:  docLine,
				CodeSnippet: firstNonEmpty(docSnippet, "// Complex logic section"),
				Suggestion:  "Explain complex logic inline, document function purposes and add a short file header.",
				Origin:      OriginFallback,
			},
			structure,
			errors,
		},
		Source:         OriginFallback,
		FallbackReason: reason,
		GeneratedAt:    time.Now().UTC(),
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
