package sender

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Retryable reports whether a failed Telegram call may succeed when repeated:
// transport timeouts, failed dials, flood waits and 5xx answers.
// Other API errors such as a blocked bot or a missing chat are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return true
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

// retryDelay is the pause before attempt+1. A flood wait from Telegram
// overrides the linear backoff when it is longer.
func retryDelay(err error, backoff time.Duration, attempt int) time.Duration {
	delay := backoff * time.Duration(attempt)
	var flood tele.FloodError
	if errors.As(err, &flood) {
		if wait := time.Duration(flood.RetryAfter) * time.Second; wait > delay {
			delay = wait
		}
	}
	return delay
}

// Sleep waits for d or until ctx is done, reporting whether the full pause elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
