package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand()

	for _, path := range [][]string{
		{"serve"},
		{"migrate"},
		{"digest", "run"},
		{"report", "export"},
		{"report", "summary"},
		{"links", "check"},
	} {
		cmd, rest, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Empty(t, rest)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestReportExportFlagDefaults(t *testing.T) {
	cmd, _, err := newRootCommand().Find([]string{"report", "export"})
	require.NoError(t, err)
	assert.Equal(t, "resources", cmd.Flag("kind").DefValue)
	assert.Equal(t, "csv", cmd.Flag("format").DefValue)
}
