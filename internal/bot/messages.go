package bot

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/coah80/yoinkgram/internal/services"
)

const (
	msgGreeting = "👋 Hi! Send me a link from Instagram, YouTube or most other sites and I'll send the file back.\n\n" +
		"You can also type a song or video name and I'll search for it."
	msgHelp = "📎 Paste a link to download it.\n" +
		"🔎 Type at least 3 characters to search YouTube for audio.\n\n" +
		"/download - guided download\n" +
		"/help - this message"
	msgUsage            = "Send me a link, or at least 3 characters to search. /help for more."
	msgSendLink         = "📎 Send me the link you want to download."
	msgNotALink         = "❌ That doesn't look like a link. Use /download to try again."
	msgChooseFormat     = "What do you want from this video?\n\n1️⃣ Video\n2️⃣ Audio only\n\nReply with 1 or 2."
	msgInvalidSelection = "❌ Invalid selection. Send the link again to start over."
	msgInvalidLink      = "❌ I can't download from that address."
	msgProcessing       = "📥 Downloading... Please wait."
	msgAdminOnly        = "❌ This command is only available for administrators."
	msgUnknownCommand   = "I don't know that command. /help lists what I can do."

	msgGenericError     = "❌ Could not download this. Please check the link and try again."
	msgNeedsCredentials = "❌ This site wants me to log in before it will share this. The operator has been notified."
	msgUnavailable      = "❌ This media is not available. It may have been deleted or is private."
	msgCookieConfig     = "❌ Login cookies are misconfigured on the server. The operator has been notified."
	msgTooLarge         = "❌ The file is too large (over 50MB). Telegram bots cannot send files that big."
)

func progressBar(percent float64) string {
	filled := int(percent / 10)
	if filled > 10 {
		filled = 10
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("\u2593", filled) + strings.Repeat("\u2591", 10-filled)
}

func progressText(p services.YtdlpProgress) string {
	s := fmt.Sprintf("📥 Downloading...\n%s %d%%", progressBar(p.Percent), int(p.Percent))
	details := []string{}
	if p.Speed != "" {
		details = append(details, p.Speed)
	}
	if p.ETA != "" {
		details = append(details, "~"+p.ETA+" left")
	}
	if len(details) > 0 {
		s += " · " + strings.Join(details, " · ")
	}
	return s
}

func doneText(size int64) string {
	return fmt.Sprintf("✅ Done! (%s)", humanize.IBytes(uint64(size)))
}

func statsLines(s services.Stats) string {
	return fmt.Sprintf("👥 Total Users: %s\n🆕 New Users Today: %s\n📥 Total Downloads: %s",
		humanize.Comma(int64(s.TotalUsers)),
		humanize.Comma(int64(s.NewUsersToday)),
		humanize.Comma(int64(s.TotalDownloads)))
}

func startupText(s services.Stats) string {
	return "🤖 Bot Started Successfully!\n\n" + statsLines(s) + "\n\nUse /status to view detailed statistics."
}

func statusText(s services.Stats, recent []services.User) string {
	var b strings.Builder
	b.WriteString("📊 Bot Status\n\n")
	b.WriteString(statsLines(s))
	fmt.Fprintf(&b, "\n📅 Last Reset Date: %s\n", s.LastResetDate)
	if len(recent) > 0 {
		fmt.Fprintf(&b, "\n👤 Recent Users (last %d):\n", len(recent))
		for i, u := range recent {
			fmt.Fprintf(&b, "%d. %s (ID: %d) %s\n", i+1, u.DisplayName(), u.ID, humanize.Time(u.FirstSeen))
		}
	}
	return b.String()
}

func newcomerText(in Incoming) string {
	u := services.User{ID: in.UserID, Username: in.Names.Username, FirstName: in.Names.FirstName, LastName: in.Names.LastName}
	return fmt.Sprintf("🆕 New user: %s (ID: %d)", u.DisplayName(), u.ID)
}
