// Package explain produces beginner-friendly walkthroughs of a source file.
// Explanations are computed on request and never stored.
package explain

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

type Section struct {
	Section      string   `json:"section"`
	LineNumbers  string   `json:"lineNumbers"`
	WhatItDoes   string   `json:"whatItDoes"`
	WhyItMatters string   `json:"whyItMatters"`
	ConceptsUsed []string `json:"conceptsUsed"`
	CodeSnippet  string   `json:"codeSnippet"`
}

type Concept struct {
	Name                string   `json:"name"`
	SimpleDefinition    string   `json:"simpleDefinition"`
	TechnicalDefinition string   `json:"technicalDefinition"`
	WhyImportant        string   `json:"whyImportant"`
	RealWorldAnalogy    string   `json:"realWorldAnalogy"`
	ExamplesInCode      []string `json:"examplesInCode"`
}

type Issue struct {
	Issue      string `json:"issue"`
	Impact     string `json:"impact"`
	Suggestion string `json:"suggestion"`
}

type GlossaryTerm struct {
	Term             string `json:"term"`
	SimpleDefinition string `json:"simpleDefinition"`
}

// Explanation carries PipelineStages for machine-learning code and
// ProgramFlow otherwise; the other one is always empty.
type Explanation struct {
	HighLevelOverview     string         `json:"highLevelOverview"`
	DetailedBreakdown     []Section      `json:"detailedBreakdown"`
	KeyConcepts           []Concept      `json:"keyConcepts"`
	PipelineStages        []string       `json:"pipelineStages,omitempty"`
	ProgramFlow           []string       `json:"programFlow,omitempty"`
	PotentialIssues       []Issue        `json:"potentialIssues"`
	KeyTakeaways          []string       `json:"keyTakeaways"`
	Difficulty            Difficulty     `json:"difficulty"`
	EstimatedLearningTime string         `json:"estimatedLearningTime"`
	Glossary              []GlossaryTerm `json:"glossary"`
	IsAIML                bool           `json:"isAIML"`
	Source                string         `json:"source"`
	FallbackReason        string         `json:"fallbackReason,omitempty"`
}

const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)
