package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coah80/yoinkgram/internal/services"
)

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "░░░░░░░░░░", progressBar(0))
	assert.Equal(t, "▓▓▓▓░░░░░░", progressBar(42))
	assert.Equal(t, "▓▓▓▓▓▓▓▓▓▓", progressBar(130))
	assert.Equal(t, "░░░░░░░░░░", progressBar(-5))
}

func TestProgressText(t *testing.T) {
	got := progressText(services.YtdlpProgress{Percent: 42.5, Speed: "3.1MiB/s", ETA: "00:03"})
	assert.Equal(t, "📥 Downloading...\n▓▓▓▓░░░░░░ 42% · 3.1MiB/s · ~00:03 left", got)
}

func TestDoneText(t *testing.T) {
	assert.Equal(t, "✅ Done! (12 MiB)", doneText(12*1024*1024))
}

func TestStatusText(t *testing.T) {
	s := services.Stats{TotalUsers: 1234, NewUsersToday: 5, TotalDownloads: 10, LastResetDate: "2024-05-01"}
	recent := []services.User{
		{ID: 2, FirstName: "Bo", FirstSeen: time.Now().Add(-2 * time.Hour)},
		{ID: 1, Username: "ann", FirstSeen: time.Now().Add(-48 * time.Hour)},
	}
	got := statusText(s, recent)
	assert.Contains(t, got, "Total Users: 1,234")
	assert.Contains(t, got, "Last Reset Date: 2024-05-01")
	assert.Contains(t, got, "Recent Users (last 2)")
	assert.Contains(t, got, "1. Bo (ID: 2) 2 hours ago")
	assert.Contains(t, got, "2. @ann (ID: 1) 2 days ago")

	assert.NotContains(t, statusText(s, nil), "Recent Users")
}
