package review

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessValidResponse(t *testing.T) {
	text := "Here you go:\n```json\n" + `{
		"summary": {"overallScore": "82", "overallSeverity": "low"},
		"suggestions": [
			{"category": "readability", "severity": "low", "lineNumber": 1},
			{"category": "bug", "severity": "critical", "lineNumber": 3, "title": "Nil dereference"}
		]
	}` + "\n```"
	rep, err := Process(text, threeLineInput(), Options{SkipStatic: true, Model: "gemini-test"})
	require.NoError(t, err)

	require.Len(t, rep.Suggestions, 2)
	assert.Equal(t, SeverityHigh, rep.Suggestions[0].Severity, "high severity sorts first")
	assert.Equal(t, "suggestion-1", rep.Suggestions[0].ID)
	assert.Equal(t, "suggestion-2", rep.Suggestions[1].ID)

	s := rep.Summary
	assert.Equal(t, 2, s.TotalIssues)
	assert.Equal(t, SeverityHigh, s.OverallSeverity, "raised to the highest suggestion")
	assert.Equal(t, 82, s.OverallScore)
	assert.Equal(t, "excellent", s.ScoreBand)
	assert.Equal(t, SeverityCounts{High: 1, Low: 1}, s.Counts)
	assert.Equal(t, []string{"bugs", "readability"}, s.MainCategories)
	assert.True(t, s.HasCriticalErrors)
	assert.True(t, s.HasRuntimeErrors)
	assert.False(t, s.HasLogicalErrors)

	assert.Equal(t, OriginLLM, rep.Source)
	assert.Equal(t, "gemini-test", rep.Model)
	assert.Empty(t, rep.FallbackReason)
}

func TestProcessFallsBackWithoutJSON(t *testing.T) {
	rep, err := Process("The service is overloaded, try again later.", threeLineInput(), Options{})
	require.ErrorIs(t, err, ErrNoJSON)

	assert.Equal(t, OriginFallback, rep.Source)
	assert.Equal(t, ErrNoJSON.Error(), rep.FallbackReason)
	assert.Len(t, rep.Suggestions, 3)
	assert.Equal(t, len(rep.Suggestions), rep.Summary.TotalIssues)
}

func TestProcessEmptySuggestionsIsLow(t *testing.T) {
	rep, err := Process(`{"suggestions": []}`, threeLineInput(), Options{SkipStatic: true})
	require.NoError(t, err)
	assert.Empty(t, rep.Suggestions)
	assert.NotNil(t, rep.Suggestions)
	assert.Equal(t, 0, rep.Summary.TotalIssues)
	assert.Equal(t, SeverityLow, rep.Summary.OverallSeverity)
	assert.Equal(t, []string{}, rep.Summary.MainCategories)
	assert.Equal(t, "poor", rep.Summary.ScoreBand)
}

func TestFinalizeAssignsUniqueIDs(t *testing.T) {
	rep := Report{Suggestions: []Suggestion{
		{ID: "a", Severity: SeverityLow, LineNumber: 1},
		{ID: "a", Severity: SeverityLow, LineNumber: 2},
		{ID: "", Severity: SeverityLow, LineNumber: 3},
		{ID: "a-2", Severity: SeverityLow, LineNumber: 4},
	}}
	out := Finalize(rep, Input{Content: "1\n2\n3\n4"}, Options{SkipStatic: true})
	ids := make([]string, len(out.Suggestions))
	for i, s := range out.Suggestions {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"a", "a-2", "suggestion-3", "a-2-2"}, ids)
}

func TestFinalizeCapsSuggestions(t *testing.T) {
	var suggestions []Suggestion
	for i := 0; i < 60; i++ {
		sev := SeverityLow
		if i == 59 {
			sev = SeverityHigh
		}
		suggestions = append(suggestions, Suggestion{ID: fmt.Sprintf("s%d", i), Category: CategoryReadability, Severity: sev, LineNumber: i + 1})
	}
	out := Finalize(Report{Suggestions: suggestions}, Input{}, Options{SkipStatic: true})
	require.Len(t, out.Suggestions, DefaultMaxSuggestions)
	assert.Equal(t, DefaultMaxSuggestions, out.Summary.TotalIssues)
	assert.Equal(t, "s59", out.Suggestions[0].ID, "the high finding survives the cap")

	out = Finalize(Report{Suggestions: suggestions}, Input{}, Options{SkipStatic: true, MaxSuggestions: 5})
	assert.Len(t, out.Suggestions, 5)
}

func TestFinalizeMergesStaticFindings(t *testing.T) {
	in := Input{
		FileName: "app.js",
		Language: "JavaScript",
		Content:  "const x = 1;\nconsole.log(x);\neval(userInput);",
	}
	rep := Report{Suggestions: []Suggestion{
		{Category: CategorySecurity, Severity: SeverityHigh, LineNumber: 3, Title: "eval is dangerous", Origin: OriginLLM},
	}}
	out := Finalize(rep, in, Options{})

	require.Len(t, out.Suggestions, 2, "eval on line 3 is already covered")
	assert.Equal(t, OriginLLM, out.Suggestions[0].Origin)
	assert.Equal(t, OriginStatic, out.Suggestions[1].Origin)
	assert.Equal(t, CategoryDebugCode, out.Suggestions[1].Category)
	assert.Equal(t, 2, out.Suggestions[1].LineNumber)
	assert.Equal(t, 2, out.Summary.TotalIssues)
}

func TestFinalizeAppliesSeverityOverrides(t *testing.T) {
	rs, err := ParseRules([]byte("severityOverrides:\n  debug_code: high\n"))
	require.NoError(t, err)

	in := Input{Language: "JavaScript", Content: "console.log('hi')"}
	out := Finalize(Report{}, in, Options{Rules: rs})
	require.Len(t, out.Suggestions, 1)
	assert.Equal(t, SeverityHigh, out.Suggestions[0].Severity)
	assert.Equal(t, SeverityHigh, out.Summary.OverallSeverity)
}

func TestMergeDedupesByLineAndCategory(t *testing.T) {
	base := []Suggestion{{ID: "x", Category: CategoryBugs, LineNumber: 5}}
	static := []Suggestion{
		{ID: "s1", Category: CategoryBugs, LineNumber: 5},
		{ID: "s2", Category: CategorySecurity, LineNumber: 5},
		{ID: "s3", Category: CategorySecurity, LineNumber: 5},
		{ID: "x", Category: CategoryReadability, LineNumber: 9},
	}
	out := Merge(base, static)
	require.Len(t, out, 3)
	assert.Equal(t, "s2", out[1].ID)
	assert.Equal(t, CategoryReadability, out[2].Category, "an id clash does not hide a finding")
}

func TestFinalizeRenamesClashingStaticID(t *testing.T) {
	in := Input{Language: "JavaScript", Content: "const a = 1;\nconsole.log(a);"}
	static := Check(in, nil)
	require.NotEmpty(t, static)

	rep := Report{Suggestions: []Suggestion{
		{ID: static[0].ID, Category: CategoryBugs, Severity: SeverityHigh, LineNumber: 1, Origin: OriginLLM},
	}}
	out := Finalize(rep, in, Options{})
	require.Len(t, out.Suggestions, 2)
	assert.Equal(t, static[0].ID, out.Suggestions[0].ID)
	assert.Equal(t, static[0].ID+"-2", out.Suggestions[1].ID)
	assert.Equal(t, OriginStatic, out.Suggestions[1].Origin)
}

func TestSummaryFlags(t *testing.T) {
	s := summarize(Summary{}, []Suggestion{
		{Category: CategoryLogic, Severity: SeverityLow},
		{Category: CategorySecurity, Severity: SeverityHigh},
	})
	assert.True(t, s.HasLogicalErrors)
	assert.True(t, s.HasCriticalErrors)
	assert.False(t, s.HasRuntimeErrors)

	// Model-provided flags are kept.
	s = summarize(Summary{HasRuntimeErrors: true}, nil)
	assert.True(t, s.HasRuntimeErrors)
}

func TestScoreBand(t *testing.T) {
	assert.Equal(t, "excellent", ScoreBand(80))
	assert.Equal(t, "fair", ScoreBand(79))
	assert.Equal(t, "fair", ScoreBand(60))
	assert.Equal(t, "poor", ScoreBand(59))
}
