package review

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultMaxSuggestions caps the number of suggestions kept in a report.
const DefaultMaxSuggestions = 50

// Options tune the pipeline. SkipStatic disables the static pass, e.g. when
// re-normalizing a report that already contains static findings.
type Options struct {
	MaxSuggestions int
	Rules          *RuleSet
	SkipStatic     bool
	Model          string
}

func (o Options) maxSuggestions() int {
	if o.MaxSuggestions <= 0 {
		return DefaultMaxSuggestions
	}
	return o.MaxSuggestions
}

// Process turns a raw model response into a final report. A response without
// a usable JSON object yields the fallback report together with the error
// that caused it, so callers always have something to persist.
func Process(text string, in Input, opts Options) (Report, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return Degraded(in, err.Error(), opts), err
	}
	rep, err := Normalize(raw, in)
	if err != nil {
		return Degraded(in, err.Error(), opts), err
	}
	rep.Model = opts.Model
	return Finalize(rep, in, opts), nil
}

// Degraded builds the heuristic fallback report for in.
func Degraded(in Input, reason string, opts Options) Report {
	return Finalize(Fallback(in, reason), in, opts)
}

// Finalize merges static findings into rep, applies severity overrides,
// orders and caps the suggestions, assigns unique ids and recomputes the
// summary so that it agrees with the suggestion list.
func Finalize(rep Report, in Input, opts Options) Report {
	suggestions := make([]Suggestion, 0, len(rep.Suggestions))
	suggestions = append(suggestions, rep.Suggestions...)
	if !opts.SkipStatic {
		suggestions = Merge(suggestions, Check(in, opts.Rules))
	}
	opts.Rules.applyOverrides(suggestions)

	sort.SliceStable(suggestions, func(i, j int) bool {
		ri, rj := SeverityRank(suggestions[i].Severity), SeverityRank(suggestions[j].Severity)
		if ri != rj {
			return ri > rj
		}
		return suggestions[i].LineNumber < suggestions[j].LineNumber
	})
	if limit := opts.maxSuggestions(); len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	assignIDs(suggestions)

	rep.Suggestions = suggestions
	rep.Summary = summarize(rep.Summary, suggestions)
	if rep.Source == "" {
		rep.Source = OriginLLM
	}
	return rep
}

// Merge appends static findings that are not already covered by an existing
// suggestion on the same line and category. Ids may collide; Finalize
// renames duplicates.
func Merge(base, static []Suggestion) []Suggestion {
	type key struct {
		line int
		cat  Category
	}
	covered := make(map[key]bool, len(base))
	for _, s := range base {
		covered[key{s.LineNumber, s.Category}] = true
	}
	out := base
	for _, s := range static {
		k := key{s.LineNumber, s.Category}
		if covered[k] {
			continue
		}
		covered[k] = true
		out = append(out, s)
	}
	return out
}

func assignIDs(suggestions []Suggestion) {
	used := make(map[string]bool, len(suggestions))
	for i := range suggestions {
		id := strings.TrimSpace(suggestions[i].ID)
		if id == "" {
			id = fmt.Sprintf("suggestion-%d", i+1)
		}
		base, n := id, 1
		for used[id] {
			n++
			id = fmt.Sprintf("%s-%d", base, n)
		}
		used[id] = true
		suggestions[i].ID = id
	}
}

func summarize(prev Summary, suggestions []Suggestion) Summary {
	s := prev
	s.TotalIssues = len(suggestions)
	s.Counts = ComputeCounts(suggestions)
	s.OverallScore = clamp(s.OverallScore, 0, 100)
	s.ScoreBand = ScoreBand(s.OverallScore)

	sev := MaxSeverity(s.OverallSeverity, HighestSeverity(suggestions))
	if SeverityRank(sev) == 0 {
		sev = SeverityLow
	}
	s.OverallSeverity = sev

	if len(s.MainCategories) == 0 {
		s.MainCategories = rankCategories(suggestions, 5)
	}
	if s.MainCategories == nil {
		s.MainCategories = []string{}
	}

	for _, sg := range suggestions {
		switch sg.Category {
		case CategoryBugs:
			if sg.Severity == SeverityHigh {
				s.HasRuntimeErrors = true
			}
		case CategoryLogic:
			s.HasLogicalErrors = true
		}
		if sg.Severity == SeverityHigh {
			switch sg.Category {
			case CategoryBugs, CategorySecurity, CategoryLogic, CategorySyntax:
				s.HasCriticalErrors = true
			}
		}
	}
	return s
}

// rankCategories orders categories by frequency, ties by first appearance.
func rankCategories(suggestions []Suggestion, limit int) []string {
	counts := map[Category]int{}
	var order []Category
	for _, s := range suggestions {
		if counts[s.Category] == 0 {
			order = append(order, s.Category)
		}
		counts[s.Category]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > limit {
		order = order[:limit]
	}
	out := make([]string, len(order))
	for i, c := range order {
		out[i] = string(c)
	}
	return out
}
