package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_ID", "42")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, int64(42), cfg.AdminID)
	assert.Equal(t, "yt-dlp", cfg.YtdlpPath)
	assert.Equal(t, "./temp", cfg.ScratchDir)
	assert.Equal(t, 10*time.Minute, cfg.FetchTimeout)
	assert.Equal(t, 4, cfg.MaxConcurrent)
	assert.True(t, cfg.IsAdmin(42))
	assert.False(t, cfg.IsAdmin(7))
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yml")
	require.NoError(t, os.WriteFile(path, []byte("telegram_token: from-file\nmax_concurrent_fetches: 2\nscratch_dir: /tmp/scratch\n"), 0o644))
	t.Setenv("SCRATCH_DIR", "/tmp/override")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.TelegramToken)
	assert.Equal(t, 2, cfg.MaxConcurrent)
	assert.Equal(t, "/tmp/override", cfg.ScratchDir)
}

func TestIsAdminUnset(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.IsAdmin(0))
}

func TestUploadCeilingIsFiftyMiB(t *testing.T) {
	assert.Equal(t, int64(52428800), MaxUploadBytes)
}
