package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coah80/yoinkgram/internal/config"
	"github.com/coah80/yoinkgram/internal/services"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	assert.Equal(t, "yoinkgram "+config.Version+"\n", execute(t, "version"))
}

func TestStatsCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	reg, err := services.OpenRegistry(path, 0, zap.NewNop())
	require.NoError(t, err)
	_, err = reg.RecordInteraction(1, services.Names{Username: "ann"})
	require.NoError(t, err)
	require.NoError(t, reg.IncrementDownloads())

	out := execute(t, "stats", "--file", path)
	assert.Contains(t, out, "Total users:     1")
	assert.Contains(t, out, "Total downloads: 1")
	assert.Contains(t, out, " 1. @ann (ID: 1)")
}
