package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/coah80/yoinkgram/internal/util"
)

type Command struct {
	Name        string
	Description string
}

// Messenger is everything the bot needs from the chat platform.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, replyTo int) (int, error)
	SendMedia(ctx context.Context, chatID int64, kind MediaKind, path, caption string, replyTo int) error
	EditText(ctx context.Context, chatID int64, msgID int, text string) error
	Delete(ctx context.Context, chatID int64, msgID int) error
	SetCommands(ctx context.Context, cmds []Command) error
}

type telegramMessenger struct {
	api *tgbotapi.BotAPI
}

func NewTelegramMessenger(api *tgbotapi.BotAPI) Messenger {
	return &telegramMessenger{api: api}
}

// ctxClient binds every request the client makes to ctx, so a call that
// outlives its deadline is aborted instead of left running.
type ctxClient struct {
	ctx  context.Context
	base tgbotapi.HTTPClient
}

func (c ctxClient) Do(req *http.Request) (*http.Response, error) {
	return c.base.Do(req.WithContext(c.ctx))
}

// with returns a shallow copy of the API whose requests are cancelled
// with ctx.
func (t *telegramMessenger) with(ctx context.Context) *tgbotapi.BotAPI {
	api := *t.api
	api.Client = ctxClient{ctx: ctx, base: t.api.Client}
	return &api
}

func (t *telegramMessenger) SendText(ctx context.Context, chatID int64, text string, replyTo int) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	sent, err := t.with(ctx).Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (t *telegramMessenger) SendMedia(ctx context.Context, chatID int64, kind MediaKind, path, caption string, replyTo int) error {
	file := tgbotapi.FilePath(path)
	var c tgbotapi.Chattable
	switch kind {
	case MediaPhoto:
		m := tgbotapi.NewPhoto(chatID, file)
		m.Caption = caption
		m.ReplyToMessageID = replyTo
		c = m
	case MediaVideo:
		m := tgbotapi.NewVideo(chatID, file)
		m.Caption = caption
		m.ReplyToMessageID = replyTo
		m.SupportsStreaming = true
		c = m
	case MediaAudio:
		m := tgbotapi.NewAudio(chatID, file)
		m.Caption = caption
		m.ReplyToMessageID = replyTo
		c = m
	default:
		m := tgbotapi.NewDocument(chatID, file)
		m.Caption = caption
		m.ReplyToMessageID = replyTo
		c = m
	}
	_, err := t.with(ctx).Send(c)
	if err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}
	return nil
}

func (t *telegramMessenger) EditText(ctx context.Context, chatID int64, msgID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	_, err := t.with(ctx).Send(edit)
	return err
}

func (t *telegramMessenger) Delete(ctx context.Context, chatID int64, msgID int) error {
	_, err := t.with(ctx).Request(tgbotapi.NewDeleteMessage(chatID, msgID))
	return err
}

func (t *telegramMessenger) SetCommands(ctx context.Context, cmds []Command) error {
	botCmds := make([]tgbotapi.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		botCmds = append(botCmds, tgbotapi.BotCommand{Command: c.Name, Description: c.Description})
	}
	_, err := t.with(ctx).Request(tgbotapi.NewSetMyCommands(botCmds...))
	return err
}

// isRetryableSend treats API rejections as final, except flood control
// and server-side errors.
func isRetryableSend(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return util.IsTransient(err)
}

// isRetryableUpload is stricter than isRetryableSend. An upload that timed
// out or lost its connection may still have reached the chat, so only
// answers from the server and refused connections are retried.
func isRetryableUpload(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
