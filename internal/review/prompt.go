package review

import (
	"fmt"
	"strings"

	"codereview/internal/language"
)

const reviewTemplate = `You are an expert code reviewer analyzing %[1]s code. Review it thoroughly and give specific, actionable suggestions.

CODE TO REVIEW (File: %[2]s):
` + "```%[3]s" + `
%[4]s
` + "```" + `

Respond in this EXACT JSON format:

{
  "summary": {
    "totalIssues": <number>,
    "overallSeverity": "high|medium|low",
    "mainCategories": ["category1", "category2"],
    "overallScore": <number-between-0-100>
  },
  "suggestions": [
    {
      "id": "unique-id-1",
      "category": "readability|bugs|performance|security|modularity",
      "severity": "high|medium|low",
      "title": "Specific issue title",
      "description": "Detailed explanation of the issue",
      "lineNumber": <exact-line-number>,
      "codeSnippet": "The specific code line(s) with the issue",
      "suggestion": "Actionable improvement suggestion"
    }
  ]
}

ANALYSIS AREAS:
1. Readability: naming, formatting, comments, duplication, function length.
2. Bugs and error handling: runtime errors, null references, type safety, leaks, races, missing error handling.
3. Performance: inefficient algorithms, redundant work, memory use, I/O and query patterns.
4. Security: input validation, authorization, data exposure, injection, XSS.
5. Modularity: single responsibility, organization, dependencies, reuse, separation of concerns.

INSTRUCTIONS:
- Give exact line numbers and quote the offending code.
- Put the most critical issues first.
- Follow %[1]s best practices.
- Severity: high = critical bugs or security, medium = code quality, low = minor improvements.
- overallScore reflects code quality (100 = excellent, 0 = very poor).
%[5]s
Return ONLY the JSON, no additional text or explanations.
`

// BuildReviewPrompt embeds the code, its language and file name into the
// fixed review template. Line numbers in the answer refer to in.Lines().
func BuildReviewPrompt(in Input, rules *RuleSet) string {
	lang := firstNonEmpty(in.Language, language.Unknown)
	name := firstNonEmpty(in.FileName, "untitled")
	content := strings.ReplaceAll(in.Content, "```", "` ` `")
	return fmt.Sprintf(reviewTemplate, lang, name, language.Fence(lang), content, rules.PromptSection())
}
