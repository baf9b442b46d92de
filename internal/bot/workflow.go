package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/coah80/yoinkgram/internal/config"
	"github.com/coah80/yoinkgram/internal/services"
	"github.com/coah80/yoinkgram/internal/util"
)

var ErrTooLarge = errors.New("file exceeds the upload limit")

type job struct {
	URL            string
	Tag            string
	FormatSelector string
	ExtractAudio   bool
	UseCookies     bool
}

// process fetches j, uploads the result and cleans up. Every outcome ends
// with a reply to the user and no files left under the request's prefix.
func (b *Bot) process(ctx context.Context, in Incoming, j job) {
	prefix := util.NewArtifactPrefix(j.Tag)
	log := b.log.With(zap.Int64("user", in.UserID), zap.String("url", j.URL), zap.String("prefix", prefix))
	defer util.RemoveByPrefix(b.cfg.ScratchDir, prefix, log)

	noticeID, err := b.msg.SendText(ctx, in.ChatID, msgProcessing, in.MessageID)
	if err != nil {
		log.Warn("Failed to send processing notice", zap.Error(err))
		noticeID = 0
	}

	start := time.Now()
	art, err := b.fetch(ctx, services.FetchRequest{
		URL:            j.URL,
		Prefix:         prefix,
		FormatSelector: j.FormatSelector,
		ExtractAudio:   j.ExtractAudio,
		UseCookies:     j.UseCookies,
		OnProgress:     b.progressReporter(ctx, in.ChatID, noticeID),
	})
	if err != nil {
		b.reportFetchFailure(j, err, log)
		b.fail(ctx, in, noticeID, err, log)
		return
	}
	log.Info("Fetched",
		zap.String("file", art.Path),
		zap.String("size", humanize.IBytes(uint64(art.Size))),
		zap.Duration("took", time.Since(start)))

	if art.Size > config.MaxUploadBytes {
		b.fail(ctx, in, noticeID, fmt.Errorf("%w: %d bytes", ErrTooLarge, art.Size), log)
		return
	}

	kind := MediaKindFor(art.Ext)
	policy := b.policy(art.Size)
	policy.Retryable = isRetryableUpload
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn("Upload failed, retrying", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	}
	err = util.Retry(ctx, policy, func(ctx context.Context) error {
		return b.msg.SendMedia(ctx, in.ChatID, kind, art.Path, "", in.MessageID)
	})
	if err != nil {
		b.alerts.DeliveryFailed(j.URL, art.Size, err)
		b.fail(ctx, in, noticeID, err, log)
		return
	}

	util.RemoveByPrefix(b.cfg.ScratchDir, prefix, log)
	if noticeID != 0 {
		if err := b.msg.Delete(ctx, in.ChatID, noticeID); err != nil {
			log.Warn("Failed to delete processing notice", zap.Error(err))
		}
	}
	b.reply(ctx, in, doneText(art.Size))
	if err := b.registry.IncrementDownloads(); err != nil {
		log.Error("Failed to save download count", zap.Error(err))
	}
	log.Info("Delivered", zap.Stringer("kind", kind))
}

// fetch waits for a free fetch slot. Waiting requests queue, they are
// not rejected.
func (b *Bot) fetch(ctx context.Context, req services.FetchRequest) (*services.Artifact, error) {
	if err := b.fetchSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer b.fetchSem.Release(1)
	return b.fetcher.Fetch(ctx, req)
}

func (b *Bot) reportFetchFailure(j job, err error, log *zap.Logger) {
	var fe *services.FetchError
	if errors.As(err, &fe) && (fe.Kind == util.KindNeedsCredentials || fe.Kind == util.KindCookieConfig) {
		b.alerts.CookieIssue(j.URL, err)
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	log.Warn("Fetch failed", zap.Error(err))
	b.alerts.FetchFailed(j.URL, err)
}

// fail turns err into a canned reply. The processing notice is edited in
// place when possible, otherwise a new message is sent.
func (b *Bot) fail(ctx context.Context, in Incoming, noticeID int, err error, log *zap.Logger) {
	text := userMessage(err)
	log.Info("Request failed", zap.String("reply", text), zap.Error(err))
	if noticeID != 0 {
		editErr := b.msg.EditText(ctx, in.ChatID, noticeID, text)
		if editErr == nil {
			return
		}
		log.Warn("Failed to edit processing notice", zap.Error(editErr))
	}
	b.reply(ctx, in, text)
}

func userMessage(err error) string {
	if errors.Is(err, ErrTooLarge) {
		return msgTooLarge
	}
	var fe *services.FetchError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case util.KindNeedsCredentials:
			return msgNeedsCredentials
		case util.KindCookieConfig:
			return msgCookieConfig
		case util.KindUnavailable:
			return msgUnavailable
		}
	}
	return msgGenericError
}

// reply sends text in response to in, retrying transient failures.
func (b *Bot) reply(ctx context.Context, in Incoming, text string) {
	policy := b.policy(0)
	policy.Retryable = isRetryableSend
	err := util.Retry(ctx, policy, func(ctx context.Context) error {
		_, err := b.msg.SendText(ctx, in.ChatID, text, in.MessageID)
		return err
	})
	if err != nil {
		b.log.Warn("Failed to send reply", zap.Int64("chat", in.ChatID), zap.Error(err))
	}
}

// progressReporter edits the processing notice at most once per
// ProgressEditInterval.
func (b *Bot) progressReporter(ctx context.Context, chatID int64, noticeID int) func(services.YtdlpProgress) {
	if noticeID == 0 {
		return nil
	}
	var mu sync.Mutex
	var last time.Time
	return func(p services.YtdlpProgress) {
		mu.Lock()
		if time.Since(last) < config.ProgressEditInterval {
			mu.Unlock()
			return
		}
		last = time.Now()
		mu.Unlock()

		editCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := b.msg.EditText(editCtx, chatID, noticeID, progressText(p)); err != nil {
			b.log.Debug("Progress edit failed", zap.Error(err))
		}
	}
}
