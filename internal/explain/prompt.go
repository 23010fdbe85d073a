package explain

import (
	"fmt"
	"strings"

	"codereview/internal/language"
	"codereview/internal/review"
)

const promptHeader = `Analyze the following %[1]s %[2]scode from file "%[3]s" and provide an EXTREMELY DETAILED, COMPREHENSIVE breakdown in easy-to-understand language.

CODE:
` + "```%[4]s" + `
%[5]s
` + "```" + `

Provide analysis in this EXACT JSON format:

{
  "highLevelOverview": "2-3 paragraph high-level summary of what this program does",
  "detailedBreakdown": [
    {
      "section": "Section name (e.g., %[6]s)",
      "lineNumbers": "Lines 1-10",
      "whatItDoes": "Detailed explanation of what this section accomplishes",
      "whyItMatters": "Why this section is important in the overall %[7]s",
      "conceptsUsed": ["concept1", "concept2"],
      "codeSnippet": "Relevant code lines for context"
    }
  ],
  "keyConcepts": [
    {
      "name": "Concept Name",
      "simpleDefinition": "Easy-to-understand definition using analogies",
      "technicalDefinition": "More precise technical definition",
      "whyImportant": "Why this concept matters in %[8]s",
      "realWorldAnalogy": "Simple analogy to explain the concept",
      "examplesInCode": ["example1", "example2"]
    }
  ],
  %[9]s,
  "potentialIssues": [
    {
      "issue": "Potential problem or improvement area",
      "impact": "How this affects the code",
      "suggestion": "How to fix or improve it"
    }
  ],
  "keyTakeaways": ["Important learning point 1", "Important learning point 2"],
  "difficulty": "beginner|intermediate|advanced",
  "estimatedLearningTime": "%[10]s",
  "glossary": [
    {"term": "Technical term", "simpleDefinition": "Easy definition"}
  ]
}

ANALYSIS GUIDELINES:
1. Be EXTREMELY DETAILED: explain line by line and concept by concept.
2. Use SIMPLE LANGUAGE and ANALOGIES, as if teaching a beginner.
3. Focus on: %[11]s.
4. Break complex concepts into digestible parts.
5. Explain both WHAT the code does and WHY it does it that way.
6. Include potential issues and improvements.
7. Build a glossary of technical terms.

Return ONLY the JSON.
`

// BuildPrompt returns the explanation prompt. Machine-learning code is asked
// for pipelineStages, everything else for programFlow.
func BuildPrompt(in review.Input, aiml bool) string {
	lang := in.Language
	if lang == "" {
		lang = language.Unknown
	}
	name := in.FileName
	if name == "" {
		name = "untitled"
	}
	content := strings.ReplaceAll(in.Content, "```", "` ` `")
	if aiml {
		return fmt.Sprintf(promptHeader, lang, "AI/ML ", name, language.Fence(lang), content,
			"'Imports & Setup', 'Data Loading'", "pipeline", "AI/ML",
			`"pipelineStages": ["stage1", "stage2", "stage3"]`, "15-30 minutes",
			"data pipeline, model architecture, training process, evaluation, explainability")
	}
	return fmt.Sprintf(promptHeader, lang, "", name, language.Fence(lang), content,
		"'Imports & Setup', 'Function Definitions'", "program", "programming",
		`"programFlow": ["step1", "step2", "step3"]`, "10-20 minutes",
		"program structure, functions, data flow, algorithms")
}
