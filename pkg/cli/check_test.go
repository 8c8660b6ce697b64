package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invalidEnv = `app: tap
stage: dev
region: us-east-2
network:
  cidr_block: not-a-cidr
`

// check must refuse an environment that plan would reject, before any
// AWS client is built.
func TestCheckRejectsInvalidEnvironment(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	envPath := filepath.Join(dir, "env.yaml")
	require.NoError(t, os.WriteFile(envPath, []byte(invalidEnv), 0644))
	outputsPath := filepath.Join(dir, "outputs.json")
	require.NoError(t, os.WriteFile(outputsPath, []byte(`{}`), 0644))

	cmd := newCheckCmd()
	checkCfg.outputsFile = outputsPath
	err := runCheck(cmd, []string{envPath})
	require.Error(t, err)
	assert.ErrorContains(err, "invalid")
	assert.ErrorContains(err, "cidr_block")
}
