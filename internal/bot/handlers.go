package bot

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/coah80/yoinkgram/internal/config"
	"github.com/coah80/yoinkgram/internal/services"
	"github.com/coah80/yoinkgram/internal/util"
)

// Handle processes one message. Nothing it does can take the process
// down: panics become a generic reply.
func (b *Bot) Handle(ctx context.Context, in Incoming) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Panic in handler",
				zap.Int64("user", in.UserID), zap.String("command", in.Command),
				zap.Any("panic", r), zap.Stack("stack"))
			b.reply(ctx, in, msgGenericError)
		}
	}()

	b.log.Info("Message received",
		zap.Int64("user", in.UserID), zap.String("command", in.Command), zap.String("text", in.Text))

	class, err := b.registry.RecordInteraction(in.UserID, in.Names)
	if err != nil {
		b.log.Error("Failed to save user registry", zap.Int64("user", in.UserID), zap.Error(err))
	}
	if class == services.Newcomer {
		b.notifyNewcomer(ctx, in)
	}

	switch in.Command {
	case "start":
		b.reply(ctx, in, msgGreeting)
	case "help":
		b.reply(ctx, in, msgHelp)
	case "download":
		b.handleDownload(ctx, in)
	case "status":
		b.handleStatus(ctx, in)
	case "":
		b.handleText(ctx, in)
	default:
		b.reply(ctx, in, msgUnknownCommand)
	}
}

func (b *Bot) handleDownload(ctx context.Context, in Incoming) {
	// "/download <link>" skips the prompt.
	if in.Args != "" {
		if kind := util.ClassifyText(in.Args); kind.IsLink() {
			b.route(ctx, in, in.Args, kind)
			return
		}
	}
	b.sessions.Set(in.UserID, services.Pending{Kind: services.AwaitLink})
	b.reply(ctx, in, msgSendLink)
}

func (b *Bot) handleStatus(ctx context.Context, in Incoming) {
	if !b.cfg.IsAdmin(in.UserID) {
		b.reply(ctx, in, msgAdminOnly)
		return
	}
	b.reply(ctx, in, statusText(b.registry.Stats(), b.registry.RecentUsers(config.RecentUsersShown)))
}

func (b *Bot) handleText(ctx context.Context, in Incoming) {
	if p, ok := b.sessions.Take(in.UserID); ok {
		switch p.Kind {
		case services.AwaitFormat:
			choice, ok := p.Choose(in.Text)
			if !ok {
				b.reply(ctx, in, msgInvalidSelection)
				return
			}
			tag := "media"
			if choice.ExtractAudio {
				tag = "audio"
			}
			b.process(ctx, in, job{
				URL:            p.URL,
				Tag:            tag,
				FormatSelector: choice.FormatSelector,
				ExtractAudio:   choice.ExtractAudio,
			})
			return
		case services.AwaitLink:
			kind := util.ClassifyText(in.Text)
			if !kind.IsLink() {
				b.reply(ctx, in, msgNotALink)
				return
			}
			b.route(ctx, in, in.Text, kind)
			return
		}
	}
	b.route(ctx, in, in.Text, util.ClassifyText(in.Text))
}

// route acts on a classified message.
func (b *Bot) route(ctx context.Context, in Incoming, text string, kind util.LinkKind) {
	switch kind {
	case util.LinkInstagram:
		b.process(ctx, in, job{URL: util.NormalizeURL(text), Tag: "media", UseCookies: true})
	case util.LinkYouTube:
		b.sessions.Set(in.UserID, services.Pending{
			Kind:    services.AwaitFormat,
			URL:     util.NormalizeURL(text),
			Choices: services.YouTubeChoices(),
		})
		b.reply(ctx, in, msgChooseFormat)
	case util.LinkGeneric:
		target := util.NormalizeURL(text)
		if err := util.ValidateURL(target); err != nil {
			b.log.Warn("Rejected URL", zap.Int64("user", in.UserID), zap.String("url", target), zap.Error(err))
			b.reply(ctx, in, msgInvalidLink)
			return
		}
		b.process(ctx, in, job{URL: target, Tag: "media"})
	case util.LinkSearch:
		b.process(ctx, in, job{URL: "ytsearch1:" + strings.TrimSpace(text), Tag: "audio", ExtractAudio: true})
	default:
		b.reply(ctx, in, msgUsage)
	}
}

func (b *Bot) notifyNewcomer(ctx context.Context, in Incoming) {
	if b.cfg.AdminID == 0 || b.cfg.IsAdmin(in.UserID) {
		return
	}
	if _, err := b.msg.SendText(ctx, b.cfg.AdminID, newcomerText(in), 0); err != nil {
		b.log.Warn("Failed to notify admin of new user", zap.Int64("user", in.UserID), zap.Error(err))
	}
}
