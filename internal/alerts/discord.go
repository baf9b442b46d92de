package alerts

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/coah80/yoinkgram/internal/config"
)

const (
	colorOrange = 0xFFA500
	colorRed    = 0xFF4444
	colorGreen  = 0x2ECC71
)

var ErrBadWebhookURL = errors.New("discord webhook URL must look like https://discord.com/api/webhooks/<id>/<token>")

// ParseWebhookURL splits a Discord webhook URL into its id and token.
func ParseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" {
		return "", "", ErrBadWebhookURL
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", ErrBadWebhookURL
}

// Notifier posts operator alerts to a Discord webhook. Each category has a
// cooldown so a burst of failures produces one message. A Notifier without
// a webhook does nothing.
type Notifier struct {
	webhookID  string
	token      string
	pingUserID string
	log        *zap.Logger
	execute    func(*discordgo.WebhookParams) error

	mu        sync.Mutex
	cooldowns map[string]time.Time
	now       func() time.Time
	wg        sync.WaitGroup
}

func New(cfg *config.Config, log *zap.Logger) (*Notifier, error) {
	n := &Notifier{
		pingUserID: cfg.DiscordPingUserID,
		log:        log.Named("alerts"),
		cooldowns:  make(map[string]time.Time),
		now:        time.Now,
	}
	if cfg.DiscordWebhookURL == "" {
		n.log.Info("Discord alerts disabled")
		return n, nil
	}
	id, token, err := ParseWebhookURL(cfg.DiscordWebhookURL)
	if err != nil {
		return nil, err
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	n.webhookID, n.token = id, token
	n.execute = func(p *discordgo.WebhookParams) error {
		_, err := session.WebhookExecute(n.webhookID, n.token, false, p)
		return err
	}
	return n, nil
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.execute != nil
}

// Wait blocks until queued alerts have been posted.
func (n *Notifier) Wait() {
	if n != nil {
		n.wg.Wait()
	}
}

func (n *Notifier) send(category string, cooldown time.Duration, ping bool, color int, title, description string, fields map[string]string) {
	if !n.Enabled() {
		return
	}

	n.mu.Lock()
	now := n.now()
	if cooldown > 0 {
		if last, ok := n.cooldowns[category]; ok && now.Sub(last) < cooldown {
			n.mu.Unlock()
			return
		}
	}
	n.cooldowns[category] = now
	n.mu.Unlock()

	params := n.buildParams(now, ping, color, title, description, fields)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.execute(params); err != nil {
			n.log.Warn("Discord send failed", zap.String("category", category), zap.Error(err))
		}
	}()
}

func (n *Notifier) buildParams(now time.Time, ping bool, color int, title, description string, fields map[string]string) *discordgo.WebhookParams {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	embedFields := make([]*discordgo.MessageEmbedField, 0, len(keys))
	for _, k := range keys {
		embedFields = append(embedFields, &discordgo.MessageEmbedField{Name: k, Value: truncate(fields[k], 1024), Inline: true})
	}

	p := &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       title,
			Description: truncate(description, 2048),
			Color:       color,
			Fields:      embedFields,
			Timestamp:   now.UTC().Format(time.RFC3339),
			Footer:      &discordgo.MessageEmbedFooter{Text: "yoinkgram " + config.Version},
		}},
	}
	if ping && n.pingUserID != "" {
		p.Content = fmt.Sprintf("<@%s>", n.pingUserID)
	}
	return p
}

func (n *Notifier) BotStarted(username string) {
	n.send("bot-start", 0, false, colorGreen, "Bot Started", fmt.Sprintf("@%s %s is polling for updates", username, config.Version), nil)
}

func (n *Notifier) BotStopping() {
	n.send("bot-stop", 0, false, colorOrange, "Bot Stopping", "yoinkgram is shutting down", nil)
}

func (n *Notifier) FetchFailed(url string, err error) {
	n.send("fetch", 5*time.Second, true, colorRed, "Fetch Failed", err.Error(), map[string]string{
		"URL":   truncate(url, 200),
		"Error": truncate(err.Error(), 500),
	})
}

func (n *Notifier) DeliveryFailed(url string, size int64, err error) {
	n.send("delivery", 5*time.Second, true, colorRed, "Delivery Failed", err.Error(), map[string]string{
		"URL":   truncate(url, 200),
		"Size":  humanize.IBytes(uint64(size)),
		"Error": truncate(err.Error(), 500),
	})
}

func (n *Notifier) CookieIssue(url string, err error) {
	n.send("cookie", 60*time.Second, true, colorOrange, "Cookie Issue",
		"The fetch tool asked for a login. Refresh INSTAGRAM_COOKIES_FILE or the browser profile.",
		map[string]string{
			"URL":   truncate(url, 200),
			"Error": truncate(err.Error(), 500),
		})
}

// truncate shortens s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
