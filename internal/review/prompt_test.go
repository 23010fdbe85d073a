package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReviewPrompt(t *testing.T) {
	p := BuildReviewPrompt(Input{FileName: "main.cpp", Language: "C++", Content: "int main() { return 0; }"}, nil)

	assert.Contains(t, p, "analyzing C++ code")
	assert.Contains(t, p, "(File: main.cpp)")
	assert.Contains(t, p, "```cpp\nint main() { return 0; }\n```")
	assert.Contains(t, p, `"overallScore": <number-between-0-100>`)
	assert.Contains(t, p, "5. Modularity")
	assert.Contains(t, p, "Return ONLY the JSON")
	assert.NotContains(t, p, "Focus areas")
	assert.NotContains(t, p, "%!")
}

func TestBuildReviewPromptDefaultsAndFocus(t *testing.T) {
	rs, err := ParseRules([]byte("focus: [security]\n"))
	require.NoError(t, err)

	p := BuildReviewPrompt(Input{Content: "a ```fence``` b"}, rs)
	assert.Contains(t, p, "analyzing Unknown code")
	assert.Contains(t, p, "(File: untitled)")
	assert.Contains(t, p, "Focus areas: security.")
	assert.NotContains(t, p, "a ```fence")
}
