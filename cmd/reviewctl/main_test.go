package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codereview/internal/explain"
	"codereview/internal/review"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("LLM_PROVIDER", "fake")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RULES_PATH", "")
	rulesFlag = ""
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReviewCommand(t *testing.T) {
	path := writeFile(t, "main.py", "def main():\n    print('debug')\n")
	out, err := run(t, "review", "--fake", path)
	require.NoError(t, err)

	var rep review.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, review.OriginLLM, rep.Source)
	assert.Equal(t, len(rep.Suggestions), rep.Summary.TotalIssues)
	hasStatic := false
	for _, s := range rep.Suggestions {
		if s.Origin == review.OriginStatic {
			hasStatic = true
		}
	}
	assert.True(t, hasStatic, "static findings are merged")
}

func TestReviewCommandExplain(t *testing.T) {
	path := writeFile(t, "main.go", "package main\n\nfunc main() {}\n")
	out, err := run(t, "review", "--fake", "--explain", path)
	require.NoError(t, err)

	var ex explain.Explanation
	require.NoError(t, json.Unmarshal([]byte(out), &ex))
	assert.Equal(t, explain.SourceLLM, ex.Source)
}

func TestReviewCommandMissingFile(t *testing.T) {
	_, err := run(t, "review", "--fake", filepath.Join(t.TempDir(), "nope.py"))
	assert.Error(t, err)
}

func TestRulesCommand(t *testing.T) {
	out, err := run(t, "rules")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "security")

	custom := writeFile(t, "rules.yaml", "focus: [security]\nseverityOverrides:\n  readability: medium\n")
	out, err = run(t, "rules", "--rules", custom)
	require.NoError(t, err)
	assert.Contains(t, out, "focus: security")
	assert.Contains(t, out, "readability -> medium")

	out, err = run(t, "rules", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "rules:")

	_, err = run(t, "rules", "--format", "xml")
	assert.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "review.db")
	out, err := run(t, "migrate", "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "migrated sqlite database")

	_, err = run(t, "migrate")
	assert.Error(t, err)
}
