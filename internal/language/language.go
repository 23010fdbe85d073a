// Package language maps uploaded file names to the language labels used in
// prompts and stored on documents.
package language

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Unknown is returned for extensions outside the table.
const Unknown = "Unknown"

var byExtension = map[string]string{
	"js":   "JavaScript",
	"jsx":  "JavaScript",
	"ts":   "TypeScript",
	"tsx":  "TypeScript",
	"py":   "Python",
	"java": "Java",
	"cpp":  "C++",
	"c":    "C",
	"go":   "Go",
	"rb":   "Ruby",
	"php":  "PHP",
	"sql":  "SQL",
	"css":  "CSS",
	"html": "HTML",
	"xml":  "XML",
	"json": "JSON",
	"yaml": "YAML",
	"yml":  "YAML",
}

var fenceTags = map[string]string{
	"JavaScript": "javascript",
	"TypeScript": "typescript",
	"Python":     "python",
	"Java":       "java",
	"C++":        "cpp",
	"C":          "c",
	"Go":         "go",
	"Ruby":       "ruby",
	"PHP":        "php",
	"SQL":        "sql",
	"CSS":        "css",
	"HTML":       "html",
	"XML":        "xml",
	"JSON":       "json",
	"YAML":       "yaml",
}

func extension(fileName string) string {
	ext := filepath.Ext(strings.TrimSpace(fileName))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Detect returns the language label for fileName's extension.
func Detect(fileName string) string {
	if label, ok := byExtension[extension(fileName)]; ok {
		return label
	}
	return Unknown
}

// Supported reports whether fileName has an extension the service accepts.
func Supported(fileName string) bool {
	_, ok := byExtension[extension(fileName)]
	return ok
}

// Extensions lists the accepted extensions, dot-prefixed and sorted.
func Extensions() []string {
	out := make([]string, 0, len(byExtension))
	for ext := range byExtension {
		out = append(out, "."+ext)
	}
	sort.Strings(out)
	return out
}

// Fence returns the markdown code-fence tag for a language label.
func Fence(label string) string {
	if tag, ok := fenceTags[label]; ok {
		return tag
	}
	return strings.ToLower(strings.TrimSpace(label))
}

// Normalize canonicalizes a caller-provided label ("python", "c++") to the
// table's spelling. Blank input falls back to detection from fileName.
func Normalize(label, fileName string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return Detect(fileName)
	}
	for _, known := range byExtension {
		if strings.EqualFold(known, label) {
			return known
		}
	}
	if known, ok := byExtension[strings.ToLower(label)]; ok {
		return known
	}
	return label
}

var aimlKeywords = []string{
	"import tensorflow", "import torch", "import sklearn", "import keras",
	"from sklearn", "from tensorflow", "from torch", "import xgboost",
	"import lightgbm", "import catboost", "import transformers", "import datasets",
	"model.fit", "model.predict", "neural network", "deep learning",
	"machine learning", "random forest", "gradient boosting", "convolutional",
	"recurrent", "transformer", "embedding", "epoch", "batch_size",
	"loss function", "optimizer", "activation", "layer", "feature",
	"training", "validation", "test split", "accuracy", "precision",
	"recall", "f1", "auc", "roc", "shap", "lime", "feature importance",
}

// aimlPattern matches the keywords as whole words so that short tokens like
// "roc" or "f1" do not fire inside identifiers such as "process".
var aimlPattern = func() *regexp.Regexp {
	quoted := make([]string, len(aimlKeywords))
	for i, kw := range aimlKeywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}
	return regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
}()

// IsAIML reports whether content looks like machine-learning code.
// The language label is accepted for symmetry with the prompt builders but
// the keyword scan is language independent.
func IsAIML(content, _ string) bool {
	return aimlPattern.MatchString(strings.ToLower(content))
}
