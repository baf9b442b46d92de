package util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o deadline" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	}
}

func TestRetryRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("send: %w", context.DeadlineExceeded)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	var retried []int
	p := fastPolicy(4)
	p.OnRetry = func(attempt int, err error, delay time.Duration) { retried = append(retried, attempt) }

	err := Retry(context.Background(), p, func(ctx context.Context) error {
		calls++
		return timeoutErr{}
	})
	assert.Equal(t, timeoutErr{}, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int{1, 2, 3}, retried)
}

func TestRetryDoesNotRetryPermanentErrors(t *testing.T) {
	rejected := errors.New("Bad Request: file must be non-empty")
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func(ctx context.Context) error {
		calls++
		return rejected
	})
	assert.Equal(t, rejected, err)
	assert.Equal(t, 1, calls)
}

func TestRetryAppliesPerAttemptTimeout(t *testing.T) {
	p := fastPolicy(2)
	p.Timeout = 20 * time.Millisecond
	calls := 0
	err := Retry(context.Background(), p, func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, calls)
}

func TestRetryStopsWhenParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, fastPolicy(5), func(ctx context.Context) error {
		calls++
		cancel()
		return timeoutErr{}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryCustomPredicate(t *testing.T) {
	p := fastPolicy(3)
	p.Retryable = func(err error) bool { return err.Error() == "again" }
	calls := 0
	err := Retry(context.Background(), p, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("again")
		}
		return errors.New("stop")
	})
	assert.EqualError(t, err, "stop")
	assert.Equal(t, 2, calls)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(timeoutErr{}))
	assert.True(t, IsTransient(io.ErrUnexpectedEOF))
	assert.True(t, IsTransient(fmt.Errorf("post: %w", syscall.ECONNRESET)))
	assert.True(t, IsTransient(errors.New("net/http: TLS handshake timeout")))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(errors.New("Forbidden: bot was blocked by the user")))
}

func TestMessagingPolicyScalesWithSize(t *testing.T) {
	small := MessagingPolicy(0)
	assert.Equal(t, 2*time.Minute, small.Timeout)
	assert.Equal(t, 3, small.MaxAttempts)

	mid := MessagingPolicy(12 * 1024 * 1024)
	assert.Equal(t, 3*time.Minute, mid.Timeout)

	big := MessagingPolicy(50 * 1024 * 1024)
	assert.Equal(t, 4*time.Minute+30*time.Second, big.Timeout)

	huge := MessagingPolicy(500 * 1024 * 1024)
	assert.Equal(t, 5*time.Minute, huge.Timeout)
}
