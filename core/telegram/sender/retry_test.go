package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return false }

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errors.New("bad request"), want: false},
		{name: "timeout", err: timeoutErr{}, want: true},
		{name: "dial", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: true},
		{name: "read", err: &net.OpError{Op: "read", Err: errors.New("reset")}, want: false},
		{name: "url wrapped timeout", err: &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: timeoutErr{}}, want: true},
		{name: "url wrapped plain", err: &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: errors.New("eof")}, want: false},
		{name: "flood", err: tele.FloodError{RetryAfter: 3}, want: true},
		{name: "bad gateway", err: fmt.Errorf("send: %w", &tele.Error{Code: 502, Description: "Bad Gateway"}), want: true},
		{name: "blocked", err: &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Fatalf("Retryable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryDelay(t *testing.T) {
	if got := retryDelay(errors.New("x"), time.Second, 3); got != 3*time.Second {
		t.Fatalf("linear delay = %v", got)
	}
	if got := retryDelay(tele.FloodError{RetryAfter: 10}, time.Second, 1); got != 10*time.Second {
		t.Fatalf("flood delay = %v", got)
	}
	if got := retryDelay(tele.FloodError{RetryAfter: 1}, 2*time.Second, 2); got != 4*time.Second {
		t.Fatalf("short flood wait must not shrink the backoff: %v", got)
	}
}

func TestSleepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if Sleep(ctx, time.Hour) {
		t.Fatal("Sleep must give up on a done context")
	}
	if !Sleep(context.Background(), time.Millisecond) {
		t.Fatal("Sleep must report a full pause")
	}
}
