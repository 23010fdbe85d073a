package explain

import (
	"fmt"
	"strconv"
	"strings"

	"codereview/internal/review"
	"codereview/internal/util/jsonutil"
)

// Normalize decodes a model response into an Explanation. Missing arrays
// become empty, unknown difficulties fall back to the content heuristic.
func Normalize(text string, in review.Input, aiml bool) (Explanation, error) {
	raw, err := review.ExtractJSON(text)
	if err != nil {
		return Explanation{}, err
	}
	var m map[string]any
	if err := jsonutil.UnmarshalFlex(raw, &m); err != nil || m == nil {
		return Explanation{}, fmt.Errorf("decode explanation: %w", review.ErrNoJSON)
	}

	out := Explanation{
		HighLevelOverview:     str(m["highLevelOverview"]),
		DetailedBreakdown:     make([]Section, 0),
		KeyConcepts:           make([]Concept, 0),
		PotentialIssues:       make([]Issue, 0),
		KeyTakeaways:          strList(m["keyTakeaways"]),
		EstimatedLearningTime: str(m["estimatedLearningTime"]),
		Glossary:              make([]GlossaryTerm, 0),
		IsAIML:                aiml,
		Source:                SourceLLM,
	}
	for _, s := range objects(m["detailedBreakdown"]) {
		out.DetailedBreakdown = append(out.DetailedBreakdown, Section{
			Section:      str(s["section"]),
			LineNumbers:  str(s["lineNumbers"]),
			WhatItDoes:   str(s["whatItDoes"]),
			WhyItMatters: str(s["whyItMatters"]),
			ConceptsUsed: strList(s["conceptsUsed"]),
			CodeSnippet:  str(s["codeSnippet"]),
		})
	}
	for _, c := range objects(m["keyConcepts"]) {
		out.KeyConcepts = append(out.KeyConcepts, Concept{
			Name:                str(c["name"]),
			SimpleDefinition:    str(c["simpleDefinition"]),
			TechnicalDefinition: str(c["technicalDefinition"]),
			WhyImportant:        str(c["whyImportant"]),
			RealWorldAnalogy:    str(c["realWorldAnalogy"]),
			ExamplesInCode:      strList(c["examplesInCode"]),
		})
	}
	for _, i := range objects(m["potentialIssues"]) {
		out.PotentialIssues = append(out.PotentialIssues, Issue{
			Issue:      str(i["issue"]),
			Impact:     str(i["impact"]),
			Suggestion: str(i["suggestion"]),
		})
	}
	for _, g := range objects(m["glossary"]) {
		out.Glossary = append(out.Glossary, GlossaryTerm{
			Term:             str(g["term"]),
			SimpleDefinition: str(g["simpleDefinition"]),
		})
	}

	stages := strList(m["pipelineStages"])
	flow := strList(m["programFlow"])
	if aiml {
		if len(stages) == 0 {
			stages = flow
		}
		out.PipelineStages = stages
	} else {
		if len(flow) == 0 {
			flow = stages
		}
		out.ProgramFlow = flow
	}

	diff, ok := ParseDifficulty(str(m["difficulty"]))
	if !ok {
		diff = guessDifficulty(in.Content)
	}
	out.Difficulty = diff
	if out.EstimatedLearningTime == "" {
		out.EstimatedLearningTime = "15-25 minutes"
	}
	return out, nil
}

// ParseDifficulty accepts the three levels case-insensitively, also inside
// longer labels such as "Intermediate to advanced" (the first level wins).
func ParseDifficulty(raw string) (Difficulty, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	best, at := Difficulty(""), -1
	for _, d := range []Difficulty{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced} {
		if i := strings.Index(s, string(d)); i >= 0 && (at < 0 || i < at) {
			best, at = d, i
		}
	}
	return best, at >= 0
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// strList accepts an array of scalars or a single string and never
// returns nil.
func strList(v any) []string {
	out := make([]string, 0)
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			if s := str(e); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func objects(v any) []map[string]any {
	arr, _ := v.([]any)
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
