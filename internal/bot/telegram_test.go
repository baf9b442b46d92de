package bot

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coah80/yoinkgram/internal/util"
)

const testToken = "123:abc"

type telegramServer struct {
	started   atomic.Int32
	completed atomic.Int32
	aborted   atomic.Int32

	// delay holds each sendVideo answer back.
	delay time.Duration

	// failFirst answers that many sendVideo calls with flood control.
	failFirst int32
}

func (s *telegramServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bot"+testToken+"/getMe", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"yoink","username":"yoink_bot"}}`))
	})
	mux.HandleFunc("/bot"+testToken+"/sendVideo", func(w http.ResponseWriter, r *http.Request) {
		n := s.started.Add(1)
		_ = r.ParseMultipartForm(1 << 20)
		_, _ = io.Copy(io.Discard, r.Body)
		if n <= s.failFirst {
			_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 1","parameters":{"retry_after":1}}`))
			return
		}
		select {
		case <-time.After(s.delay):
		case <-r.Context().Done():
			s.aborted.Add(1)
			return
		}
		s.completed.Add(1)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":9,"date":0,"chat":{"id":77,"type":"private"}}}`))
	})
	return mux
}

func newTestMessenger(t *testing.T, s *telegramServer) Messenger {
	t.Helper()
	srv := httptest.NewServer(s.handler())
	t.Cleanup(srv.Close)
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(testToken, srv.URL+"/bot%s/%s")
	require.NoError(t, err)
	return NewTelegramMessenger(api)
}

func writeClip(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(p, []byte("not really a video"), 0o644))
	return p
}

func uploadPolicy(timeout time.Duration) util.RetryPolicy {
	return util.RetryPolicy{
		Timeout:      timeout,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Retryable:    isRetryableUpload,
	}
}

func TestSendMediaTimeoutAbortsUpload(t *testing.T) {
	s := &telegramServer{delay: 300 * time.Millisecond}
	m := newTestMessenger(t, s)
	clip := writeClip(t)

	start := time.Now()
	err := util.Retry(context.Background(), uploadPolicy(100*time.Millisecond), func(ctx context.Context) error {
		return m.SendMedia(ctx, 77, MediaVideo, clip, "", 0)
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 300*time.Millisecond)
	assert.Equal(t, int32(1), s.started.Load())

	assert.Eventually(t, func() bool { return s.aborted.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(0), s.completed.Load())
	assert.Equal(t, int32(1), s.started.Load())
}

func TestSendMediaRetriesFloodControl(t *testing.T) {
	s := &telegramServer{failFirst: 1}
	m := newTestMessenger(t, s)
	clip := writeClip(t)

	err := util.Retry(context.Background(), uploadPolicy(5*time.Second), func(ctx context.Context) error {
		return m.SendMedia(ctx, 77, MediaVideo, clip, "", 0)
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), s.started.Load())
	assert.Equal(t, int32(1), s.completed.Load())
}

func TestSendMediaGivesUpAfterMaxAttempts(t *testing.T) {
	s := &telegramServer{failFirst: 3}
	m := newTestMessenger(t, s)
	clip := writeClip(t)

	policy := uploadPolicy(5 * time.Second)
	policy.MaxAttempts = 2
	err := util.Retry(context.Background(), policy, func(ctx context.Context) error {
		return m.SendMedia(ctx, 77, MediaVideo, clip, "", 0)
	})
	var apiErr *tgbotapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.Code)
	assert.Equal(t, int32(2), s.started.Load())
}
