package alerts

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coah80/yoinkgram/internal/config"
)

func TestParseWebhookURL(t *testing.T) {
	id, token, err := ParseWebhookURL("https://discord.com/api/webhooks/123456/abc-DEF_ghi")
	require.NoError(t, err)
	assert.Equal(t, "123456", id)
	assert.Equal(t, "abc-DEF_ghi", token)

	for _, bad := range []string{
		"",
		"http://discord.com/api/webhooks/1/x",
		"https://discord.com/api/webhooks/1",
		"https://example.com/hook",
		"::nope",
	} {
		_, _, err := ParseWebhookURL(bad)
		assert.ErrorIs(t, err, ErrBadWebhookURL, bad)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(&config.Config{DiscordWebhookURL: "https://example.com/nope"}, zap.NewNop())
	assert.Error(t, err)
}

func TestDisabledNotifierIsNoop(t *testing.T) {
	n, err := New(&config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, n.Enabled())
	n.FetchFailed("https://x", errors.New("boom"))
	n.Wait()

	var nilNotifier *Notifier
	assert.False(t, nilNotifier.Enabled())
}

type recorder struct {
	mu   sync.Mutex
	sent []*discordgo.WebhookParams
}

func (r *recorder) execute(p *discordgo.WebhookParams) error {
	r.mu.Lock()
	r.sent = append(r.sent, p)
	r.mu.Unlock()
	return nil
}

func testNotifier(t *testing.T, now *time.Time) (*Notifier, *recorder) {
	t.Helper()
	n, err := New(&config.Config{DiscordPingUserID: "99"}, zap.NewNop())
	require.NoError(t, err)
	rec := &recorder{}
	n.execute = rec.execute
	n.now = func() time.Time { return *now }
	return n, rec
}

func TestCooldownSuppressesBursts(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n, rec := testNotifier(t, &now)

	n.FetchFailed("https://a", errors.New("one"))
	n.FetchFailed("https://b", errors.New("two"))
	n.DeliveryFailed("https://c", 1024, errors.New("three"))
	now = now.Add(6 * time.Second)
	n.FetchFailed("https://d", errors.New("four"))
	n.Wait()

	assert.Len(t, rec.sent, 3)
}

func TestAlertPayload(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n, rec := testNotifier(t, &now)

	n.CookieIssue("https://www.instagram.com/reel/x/", errors.New(strings.Repeat("e", 600)))
	n.Wait()

	require.Len(t, rec.sent, 1)
	p := rec.sent[0]
	assert.Equal(t, "<@99>", p.Content)
	require.Len(t, p.Embeds, 1)
	e := p.Embeds[0]
	assert.Equal(t, "Cookie Issue", e.Title)
	assert.Equal(t, "2024-01-01T00:00:00Z", e.Timestamp)
	require.Len(t, e.Fields, 2)
	assert.Equal(t, "Error", e.Fields[0].Name)
	assert.Len(t, e.Fields[0].Value, 500)
	assert.Equal(t, "URL", e.Fields[1].Name)
}

func TestStartedHasNoPing(t *testing.T) {
	now := time.Now()
	n, rec := testNotifier(t, &now)
	n.BotStarted("yoinkbot")
	n.Wait()
	require.Len(t, rec.sent, 1)
	assert.Empty(t, rec.sent[0].Content)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))

	s := strings.Repeat("é", 10) // 20 bytes
	got := truncate(s, 10)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 10)
	assert.Equal(t, "ééé...", got)

	got = truncate("ab"+strings.Repeat("🎬", 5), 8)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "ab...", got)
}
