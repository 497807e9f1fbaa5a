// cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeNoPreRun runs the command tree with PersistentPreRunE disabled, for
// argument and flag validation tests that must not touch config or logging.
func executeNoPreRun(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	root.PersistentPreRunE = nil

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootVersionFlag(t *testing.T) {
	out, err := executeNoPreRun(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestApplyRequiresURLArgument(t *testing.T) {
	_, err := executeNoPreRun(t, "apply")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestPagesRejectsPositionalArguments(t *testing.T) {
	_, err := executeNoPreRun(t, "pages", "extra")
	require.Error(t, err)
}

func TestUnknownCommandFails(t *testing.T) {
	_, err := executeNoPreRun(t, "does-not-exist")
	require.Error(t, err)
}

func TestInitializeConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "engine:\n  max_fill_rounds: 7\nlogger:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	require.NoError(t, initializeConfig(path))
	require.NotNil(t, appConfig)
	assert.Equal(t, 7, appConfig.Engine.MaxFillRounds)
	assert.Equal(t, "debug", appConfig.Logger.Level)
}

func TestInitializeConfigMissingExplicitFileFails(t *testing.T) {
	err := initializeConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestInitializeConfigDefaultsWithoutFile(t *testing.T) {
	// No config.yaml in the working directory of the test; defaults apply.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer func() { _ = os.Chdir(wd) }()

	require.NoError(t, initializeConfig(""))
	require.NotNil(t, appConfig)
	assert.Equal(t, 5, appConfig.Engine.MaxFillRounds)
}
