package explain

import (
	"fmt"
	"strings"

	"codereview/internal/review"
)

// Fallback describes the file from simple textual heuristics when the
// model is unavailable or its answer cannot be used.
func Fallback(in review.Input, aiml bool, reason string) Explanation {
	lines := in.Lines()
	content := in.Content
	hasFunctions := strings.Contains(content, "function") || strings.Contains(content, "def ") ||
		strings.Contains(content, "class ") || strings.Contains(content, "func ")
	hasImports := strings.Contains(content, "import ") || strings.Contains(content, "from ")
	hasVariables := strings.Contains(content, "let ") || strings.Contains(content, "const ") ||
		strings.Contains(content, "var ") || strings.Contains(content, "=")
	diff := guessDifficulty(content)

	kind := "a software program"
	if aiml {
		kind = "a machine learning pipeline"
	}
	var concepts []string
	if hasFunctions {
		concepts = append(concepts, "function definitions")
	}
	if hasVariables {
		concepts = append(concepts, "variable declarations")
	}
	if hasImports {
		concepts = append(concepts, "library imports")
	} else {
		concepts = append(concepts, "basic programming structures")
	}

	lang := in.Language
	if lang == "" {
		lang = "source"
	}
	out := Explanation{
		HighLevelOverview: fmt.Sprintf("This %s code file %q contains %d lines and implements %s. It demonstrates %s-level programming concepts including %s.",
			lang, in.FileName, len(lines), kind, diff, strings.Join(concepts, ", ")),
		DetailedBreakdown: []Section{
			{
				Section:      "File Structure & Imports",
				LineNumbers:  fmt.Sprintf("1-%d", min(10, len(lines))),
				WhatItDoes:   "Sets up the libraries and dependencies the program needs.",
				WhyItMatters: "Imports provide pre-built functionality so nothing has to be written from scratch.",
				ConceptsUsed: []string{"Module imports", "Dependency management"},
				CodeSnippet:  strings.Join(lines[:min(5, len(lines))], "\n"),
			},
			{
				Section:      "Main Program Logic",
				LineNumbers:  fmt.Sprintf("%d-%d", min(11, len(lines)), len(lines)),
				WhatItDoes:   "Contains the core functionality of the file.",
				WhyItMatters: "This is where the actual work happens: data processing, calculations or user interaction.",
				ConceptsUsed: []string{"Programming logic", "Algorithms", "Data processing"},
				CodeSnippet:  strings.Join(lines[min(5, len(lines)):min(15, len(lines))], "\n"),
			},
		},
		KeyConcepts: []Concept{{
			Name:                "Basic Programming Structure",
			SimpleDefinition:    "How code is organized into parts that work together.",
			TechnicalDefinition: "The architectural pattern and organization of code components.",
			WhyImportant:        "Good structure makes code easier to understand and change.",
			RealWorldAnalogy:    "Like organizing a kitchen: ingredients (variables) go in cabinets, recipes (functions) tell you what to do.",
			ExamplesInCode:      []string{"Function definitions", "Variable declarations", "Import statements"},
		}},
		PotentialIssues: []Issue{{
			Issue:      "Basic analysis only",
			Impact:     "Limited insight into specific code patterns.",
			Suggestion: "Try a smaller snippet or check the model configuration.",
		}},
		KeyTakeaways: []string{
			"Read code from top to bottom to follow the execution flow",
			"Look for function definitions to see the available operations",
			"Variable names often indicate their purpose",
			"Comments and documentation provide valuable context",
		},
		Difficulty:            diff,
		EstimatedLearningTime: "15-25 minutes",
		Glossary: []GlossaryTerm{
			{Term: "Function", SimpleDefinition: "A reusable block of code that performs a specific task"},
			{Term: "Variable", SimpleDefinition: "A named container that stores data values"},
		},
		IsAIML:         aiml,
		Source:         SourceFallback,
		FallbackReason: reason,
	}
	if aiml {
		out.PipelineStages = []string{"data_loading", "preprocessing", "model_training", "evaluation"}
	} else {
		out.ProgramFlow = []string{"initialization", "processing", "output"}
	}
	return out
}

// guessDifficulty: type declarations mean advanced, async code intermediate.
func guessDifficulty(content string) Difficulty {
	switch {
	case strings.Contains(content, "class ") || strings.Contains(content, "interface ") || strings.Contains(content, "type "):
		return DifficultyAdvanced
	case strings.Contains(content, "async") || strings.Contains(content, "await") || strings.Contains(content, "Promise"):
		return DifficultyIntermediate
	default:
		return DifficultyBeginner
	}
}
