package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeLineInput() Input {
	return Input{
		FileName: "main.go",
		Language: "Go",
		Content:  "package main\nfunc main() {\n\tvar p *int; _ = *p\n}",
	}
}

func TestExtractJSONFromProseAndFences(t *testing.T) {
	text := "Sure! Here is the review:\n```json\n{\"summary\": {\"overallScore\": 70}, \"suggestions\": []}\n```\nHope it helps."
	raw, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary": {"overallScore": 70}, "suggestions": []}`, string(raw))
}

func TestExtractJSONSkipsBrokenCandidate(t *testing.T) {
	// The greedy slice spans both braces and does not parse; the balanced
	// second object does.
	text := "{not json} and then {\"suggestions\": []}"
	raw, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.JSONEq(t, `{"suggestions": []}`, string(raw))
}

func TestExtractJSONNoObject(t *testing.T) {
	_, err := ExtractJSON("I could not review this code.")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ExtractJSON("")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestNormalizeCoercesFields(t *testing.T) {
	raw := []byte(`{
		"summary": {"overallScore": "82/100", "overallSeverity": "Critical", "mainCategories": ["bug", "nonsense", "bugs"]},
		"suggestions": [
			{"id": "s1", "category": "bug", "severity": "Major", "lineNumber": "line 3", "title": "Nil dereference"},
			{"category": "weird", "severity": "whatever", "lineNumber": 99},
			"not an object",
			{"category": "perf", "severity": "minor", "lineNumber": -4, "codeSnippet": "x := y"}
		]
	}`)
	rep, err := Normalize(raw, threeLineInput())
	require.NoError(t, err)
	require.Len(t, rep.Suggestions, 3)

	s := rep.Suggestions[0]
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, CategoryBugs, s.Category)
	assert.Equal(t, SeverityHigh, s.Severity)
	assert.Equal(t, 3, s.LineNumber)
	assert.Equal(t, "\tvar p *int; _ = *p", s.CodeSnippet)
	assert.Equal(t, defaultDescription, s.Description)
	assert.Equal(t, defaultAdvice, s.Suggestion)
	assert.Equal(t, OriginLLM, s.Origin)

	s = rep.Suggestions[1]
	assert.Equal(t, CategoryReadability, s.Category)
	assert.Equal(t, SeverityMedium, s.Severity)
	assert.Equal(t, 4, s.LineNumber, "clamped to the line count")
	assert.Equal(t, "}", s.CodeSnippet)
	assert.Equal(t, defaultTitle, s.Title)

	s = rep.Suggestions[2]
	assert.Equal(t, CategoryPerformance, s.Category)
	assert.Equal(t, SeverityLow, s.Severity)
	assert.Equal(t, 1, s.LineNumber)
	assert.Equal(t, "x := y", s.CodeSnippet)

	assert.Equal(t, 82, rep.Summary.OverallScore)
	assert.Equal(t, SeverityHigh, rep.Summary.OverallSeverity)
	assert.Equal(t, []string{"bugs"}, rep.Summary.MainCategories)
}

func TestNormalizeSummaryDefaults(t *testing.T) {
	rep, err := Normalize([]byte(`{"suggestions": "none"}`), threeLineInput())
	require.NoError(t, err)
	assert.Empty(t, rep.Suggestions)
	assert.Equal(t, defaultScore, rep.Summary.OverallScore)
	assert.Equal(t, Severity(""), rep.Summary.OverallSeverity)

	rep, err = Normalize([]byte(`{"summary": {"overallScore": 0.73}}`), threeLineInput())
	require.NoError(t, err)
	assert.Equal(t, 73, rep.Summary.OverallScore)

	rep, err = Normalize([]byte(`{"summary": {"overallScore": 250}}`), threeLineInput())
	require.NoError(t, err)
	assert.Equal(t, 100, rep.Summary.OverallScore)
	rep, err = Normalize([]byte(`{"summary": {"overallScore": -1e300}}`), threeLineInput())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Summary.OverallScore)
}

func TestNormalizeClampsHugeNumbersToUpperBound(t *testing.T) {
	raw := []byte(`{
		"summary": {"overallScore": 1e300},
		"codeQuality": {"readability": 1e300, "security": -1e300},
		"suggestions": [{"lineNumber": 1e30}, {"lineNumber": -1e30}]
	}`)
	rep, err := Normalize(raw, threeLineInput())
	require.NoError(t, err)

	assert.Equal(t, 100, rep.Summary.OverallScore)
	require.NotNil(t, rep.CodeQuality)
	assert.Equal(t, 10, rep.CodeQuality.Readability)
	assert.Equal(t, 0, rep.CodeQuality.Security)
	require.Len(t, rep.Suggestions, 2)
	assert.Equal(t, 4, rep.Suggestions[0].LineNumber)
	assert.Equal(t, 1, rep.Suggestions[1].LineNumber)
}

func TestNormalizeSnippetForEmptyLine(t *testing.T) {
	in := Input{Content: "a\n\nb"}
	rep, err := Normalize([]byte(`{"suggestions": [{"lineNumber": 2}]}`), in)
	require.NoError(t, err)
	require.Len(t, rep.Suggestions, 1)
	assert.Equal(t, defaultSnippet, rep.Suggestions[0].CodeSnippet)
}

func TestNormalizeOptionalSections(t *testing.T) {
	raw := []byte(`{
		"codeQuality": {"readability": 85, "maintainability": 7, "efficiency": "12", "security": -1},
		"executionAnalysis": {"willCompile": true, "willRun": "false", "potentialOutput": "42"}
	}`)
	rep, err := Normalize(raw, threeLineInput())
	require.NoError(t, err)
	require.NotNil(t, rep.CodeQuality)
	assert.Equal(t, CodeQuality{Readability: 9, Maintainability: 7, Efficiency: 1, Security: 0}, *rep.CodeQuality)
	require.NotNil(t, rep.ExecutionAnalysis)
	assert.True(t, rep.ExecutionAnalysis.WillCompile)
	assert.False(t, rep.ExecutionAnalysis.WillRun)
	assert.Equal(t, "42", rep.ExecutionAnalysis.PotentialOutput)
}

func TestNormalizeRejectsNonObject(t *testing.T) {
	_, err := Normalize([]byte(`[1, 2, 3]`), threeLineInput())
	assert.Error(t, err)
}

func TestNormalizeCategoryAndSeverity(t *testing.T) {
	cases := map[string]Category{
		"Bugs":           CategoryBugs,
		"best practices": CategoryBestPractice,
		"Error-Handling": CategoryBugs,
		"design":         CategoryDesignIssue,
		"debug_code":     CategoryDebugCode,
	}
	for in, want := range cases {
		got, ok := NormalizeCategory(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	got, ok := NormalizeCategory("vibes")
	assert.False(t, ok)
	assert.Equal(t, CategoryReadability, got)

	sev, ok := NormalizeSeverity(" WARNING ")
	assert.True(t, ok)
	assert.Equal(t, SeverityMedium, sev)
	sev, ok = NormalizeSeverity("")
	assert.False(t, ok)
	assert.Equal(t, SeverityMedium, sev)
}
