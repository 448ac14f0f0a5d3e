package cmd

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	os.Args = append([]string{"stash"}, args...)
	t.Cleanup(func() { os.Args = orig })
}

func TestExecuteUnknownCommand(t *testing.T) {
	withArgs(t, "frobnicate")
	err := Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestExecuteHelp(t *testing.T) {
	withArgs(t, "help")
	assert.NoError(t, Execute())
}

func TestExecuteNoArgsShowsHelp(t *testing.T) {
	withArgs(t)
	assert.NoError(t, Execute())
}

func TestExecuteVersion(t *testing.T) {
	withArgs(t, "--version")
	assert.NoError(t, Execute())
}

func TestAskRequiresQuestion(t *testing.T) {
	withArgs(t, "ask")
	err := Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage: stash ask")
}

func TestImportRequiresFile(t *testing.T) {
	withArgs(t, "import")
	err := Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage: stash import")
}
