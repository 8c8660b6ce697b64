package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const taggedTemplate = `{
  "Resources": {
    "Vpc": {
      "Type": "AWS::EC2::VPC",
      "Properties": {"Tags": [{"Key": "app", "Value": "tap"}]}
    }
  }
}`

const untaggedTemplate = `{
  "Resources": {
    "Vpc": {
      "Type": "AWS::EC2::VPC",
      "Properties": {}
    }
  }
}`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func TestRunner(t *testing.T) {
	assert := assert.New(t)

	dir := writeFiles(t, map[string]string{
		"good.json":   taggedTemplate,
		"bad.json":    untaggedTemplate,
		"broken.json": "{",
	})

	files, err := CollectTemplates([]string{dir})
	require.NoError(t, err)
	require.Len(t, files, 3)

	runner := &Runner{Rules: []Rule{RequiredTags{Keys: []string{"app"}}}, Workers: 2}
	report, err := runner.Run(files)
	require.NoError(t, err)

	assert.Equal(3, report.FilesChecked)
	assert.False(report.Ok())
	require.Len(t, report.Violations, 2)

	// Violations come out sorted by file then rule regardless of worker
	// scheduling.
	assert.Contains(report.Violations[0].File, "bad.json")
	assert.Equal("required-tags", report.Violations[0].Rule)
	assert.Contains(report.Violations[1].File, "broken.json")
	assert.Equal("read", report.Violations[1].Rule)
}

func TestRunnerCleanReport(t *testing.T) {
	assert := assert.New(t)

	dir := writeFiles(t, map[string]string{"good.json": taggedTemplate})
	files, err := CollectTemplates([]string{dir})
	require.NoError(t, err)

	runner := &Runner{Rules: []Rule{RequiredTags{Keys: []string{"app"}}}}
	report, err := runner.Run(files)
	require.NoError(t, err)
	assert.True(report.Ok())
	assert.Empty(report.Violations)
}

func TestRunnerNoFiles(t *testing.T) {
	runner := &Runner{}
	_, err := runner.Run(nil)
	assert.ErrorContains(t, err, "no template files")
}

func TestCollectTemplates(t *testing.T) {
	assert := assert.New(t)

	dir := writeFiles(t, map[string]string{
		"a/stack.json":     taggedTemplate,
		"b/stack.yaml":     "Resources: {}",
		"b/notes.md":       "not a template",
		"c/stack.template": taggedTemplate,
	})

	files, err := CollectTemplates([]string{dir})
	require.NoError(t, err)
	require.Len(t, files, 3)
	for _, f := range files {
		assert.NotContains(f, "notes.md")
	}

	_, err = CollectTemplates([]string{filepath.Join(dir, "missing")})
	assert.Error(err)
}
