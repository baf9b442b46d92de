package bot

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/coah80/yoinkgram/internal/config"
	"github.com/coah80/yoinkgram/internal/services"
	"github.com/coah80/yoinkgram/internal/util"
)

type Fetcher interface {
	Fetch(ctx context.Context, req services.FetchRequest) (*services.Artifact, error)
}

// Alerter receives operator-facing failure reports.
type Alerter interface {
	FetchFailed(url string, err error)
	DeliveryFailed(url string, size int64, err error)
	CookieIssue(url string, err error)
}

type nopAlerter struct{}

func (nopAlerter) FetchFailed(string, error)           {}
func (nopAlerter) DeliveryFailed(string, int64, error) {}
func (nopAlerter) CookieIssue(string, error)           {}

// Incoming is one user message, already detached from the client library.
type Incoming struct {
	ChatID    int64
	MessageID int
	UserID    int64
	Names     services.Names
	Text      string

	// Command is the bot command without the slash, or "".
	Command string
	Args    string
}

type Options struct {
	Config    *config.Config
	Logger    *zap.Logger
	API       *tgbotapi.BotAPI
	Messenger Messenger
	Fetcher   Fetcher
	Sessions  *services.SessionStore
	Registry  *services.Registry
	Alerts    Alerter
}

type Bot struct {
	cfg      *config.Config
	log      *zap.Logger
	api      *tgbotapi.BotAPI
	msg      Messenger
	fetcher  Fetcher
	sessions *services.SessionStore
	registry *services.Registry
	alerts   Alerter
	fetchSem *semaphore.Weighted
	wg       sync.WaitGroup

	// policy returns the retry policy for a messaging call carrying a
	// payload of the given size.
	policy func(payloadBytes int64) util.RetryPolicy
}

func New(opts Options) *Bot {
	msg := opts.Messenger
	if msg == nil && opts.API != nil {
		msg = NewTelegramMessenger(opts.API)
	}
	alerts := opts.Alerts
	if alerts == nil {
		alerts = nopAlerter{}
	}
	return &Bot{
		cfg:      opts.Config,
		log:      opts.Logger.Named("bot"),
		api:      opts.API,
		msg:      msg,
		fetcher:  opts.Fetcher,
		sessions: opts.Sessions,
		registry: opts.Registry,
		alerts:   alerts,
		fetchSem: semaphore.NewWeighted(int64(opts.Config.MaxConcurrent)),
		policy:   util.MessagingPolicy,
	}
}

func commandDefinitions() []Command {
	return []Command{
		{Name: "start", Description: "Start the bot"},
		{Name: "download", Description: "Download media from a link"},
		{Name: "help", Description: "How to use the bot"},
		{Name: "status", Description: "View bot status (admin only)"},
	}
}

// Run registers the command list, greets the admin and handles updates
// until ctx is done. It returns once every in-flight handler has finished.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.msg.SetCommands(ctx, commandDefinitions()); err != nil {
		b.log.Warn("Failed to register commands", zap.Error(err))
	}
	b.greetAdmin(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	b.log.Info("Bot is running", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	in, ok := incomingFrom(update)
	if !ok {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.log.Error("Panic while dispatching update",
					zap.Int("update", update.UpdateID), zap.Any("panic", r), zap.Stack("stack"))
			}
		}()
		b.Handle(ctx, in)
	}()
}

func incomingFrom(update tgbotapi.Update) (Incoming, bool) {
	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return Incoming{}, false
	}
	in := Incoming{
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
		UserID:    m.From.ID,
		Names: services.Names{
			Username:  m.From.UserName,
			FirstName: m.From.FirstName,
			LastName:  m.From.LastName,
		},
		Text: strings.TrimSpace(m.Text),
	}
	if m.IsCommand() {
		in.Command = strings.ToLower(m.Command())
		in.Args = strings.TrimSpace(m.CommandArguments())
	}
	return in, true
}

func (b *Bot) greetAdmin(ctx context.Context) {
	if b.cfg.AdminID == 0 {
		b.log.Warn("ADMIN_ID not set, admin features are disabled")
		return
	}
	if _, err := b.msg.SendText(ctx, b.cfg.AdminID, startupText(b.registry.Stats()), 0); err != nil {
		b.log.Warn("Failed to greet admin", zap.Error(err))
		return
	}
	b.log.Info("Admin notification sent")
}
