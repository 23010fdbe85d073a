package review

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackLongUncommentedCode(t *testing.T) {
	in := Input{FileName: "calc.rb", Language: "Ruby", Content: strings.Repeat("x = 1\n", 120)}
	rep := Degraded(in, "llm: timeout", Options{})

	assert.Equal(t, OriginFallback, rep.Source)
	assert.Equal(t, "llm: timeout", rep.FallbackReason)
	assert.Equal(t, 45, rep.Summary.OverallScore)
	assert.Equal(t, SeverityHigh, rep.Summary.OverallSeverity)
	assert.Equal(t, "poor", rep.Summary.ScoreBand)
	assert.Equal(t, []string{"readability", "structure", "maintainability"}, rep.Summary.MainCategories)

	require.Len(t, rep.Suggestions, 3)
	assert.Equal(t, "fallback-structure", rep.Suggestions[0].ID)
	assert.Equal(t, SeverityHigh, rep.Suggestions[0].Severity)
	assert.Equal(t, "fallback-error-handling", rep.Suggestions[1].ID)
	assert.Equal(t, 5, rep.Suggestions[1].LineNumber)
	assert.Equal(t, "fallback-documentation", rep.Suggestions[2].ID)
	assert.Equal(t, 60, rep.Suggestions[2].LineNumber)
	assert.Contains(t, rep.Suggestions[2].Description, "Ruby")
	for _, s := range rep.Suggestions {
		assert.Equal(t, OriginFallback, s.Origin)
		assert.Equal(t, "x = 1", s.CodeSnippet)
	}
}

func TestFallbackMediumLengthWithoutErrorHandling(t *testing.T) {
	in := Input{Content: "# setup\n" + strings.Repeat("y = 2\n", 60)}
	rep := Fallback(in, "no json")
	assert.Equal(t, 60, rep.Summary.OverallScore)
	assert.Equal(t, SeverityMedium, rep.Summary.OverallSeverity)
}

func TestFallbackShortCode(t *testing.T) {
	in := Input{
		FileName: "util.py",
		Language: "Python",
		Content:  "def f():\n    try:\n        return 1\n    except Exception:\n        raise",
	}
	rep := Fallback(in, "")
	assert.Equal(t, 65, rep.Summary.OverallScore)
	require.Len(t, rep.Suggestions, 3)

	doc, structure, errs := rep.Suggestions[0], rep.Suggestions[1], rep.Suggestions[2]
	assert.Equal(t, 2, doc.LineNumber)
	assert.Equal(t, "    try:", doc.CodeSnippet)
	assert.Equal(t, 5, structure.LineNumber)
	assert.Equal(t, SeverityLow, structure.Severity)
	assert.Equal(t, "Function Organization", structure.Title)
	assert.Equal(t, SeverityLow, errs.Severity)
	assert.Equal(t, "Error Handling Review", errs.Title)
}

func TestFallbackEmptyContent(t *testing.T) {
	rep := Degraded(Input{}, "empty", Options{})
	require.Len(t, rep.Suggestions, 3)
	for _, s := range rep.Suggestions {
		assert.Equal(t, 1, s.LineNumber)
		assert.NotEmpty(t, s.CodeSnippet)
	}
	assert.Equal(t, 3, rep.Summary.TotalIssues)
}
