package util

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/coah80/yoinkgram/internal/config"
)

type RetryPolicy struct {
	// Timeout bounds each attempt. Zero means no per-attempt timeout.
	Timeout      time.Duration
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Retryable    func(error) bool
	OnRetry      func(attempt int, err error, delay time.Duration)
}

// MessagingPolicy is the policy for one call to the messaging platform.
// The timeout grows with the payload size.
func MessagingPolicy(payloadBytes int64) RetryPolicy {
	timeout := config.MessagingBaseTimeout
	if payloadBytes > 0 {
		tenMB := int64(10 * 1024 * 1024)
		steps := (payloadBytes + tenMB - 1) / tenMB
		timeout += time.Duration(steps) * config.MessagingPerTenMB
	}
	if timeout > config.MessagingMaxTimeout {
		timeout = config.MessagingMaxTimeout
	}
	return RetryPolicy{
		Timeout:      timeout,
		MaxAttempts:  config.MessagingAttempts,
		InitialDelay: config.MessagingInitialDelay,
		MaxDelay:     30 * time.Second,
		Retryable:    IsTransient,
	}
}

// Retry runs fn until it succeeds, returns an error the policy does not
// consider retryable, runs out of attempts or ctx is done. The last error
// is returned unwrapped.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	eb := backoff.NewExponentialBackOff()
	if p.InitialDelay > 0 {
		eb.InitialInterval = p.InitialDelay
	}
	if p.MaxDelay > 0 {
		eb.MaxInterval = p.MaxDelay
	}
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = backoff.WithMaxRetries(eb, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	op := func() error {
		attempt++
		attemptCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}

		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
	}

	return backoff.RetryNotify(op, b, notify)
}

// IsTransient reports timeouts and dropped connections, which are worth
// retrying. Everything else, including API rejections, is not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "timed out", "connection reset", "broken pipe", "etimedout", "econnreset"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
