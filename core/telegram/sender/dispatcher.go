package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/shopbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the worker owning the key has no room left.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize bounds the pending jobs of each worker.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
	// OnFailure is called once for every job that finally failed.
	OnFailure func(ctx context.Context, action string, err error)
}

// job is one outbound call. meta is the log context of the update that
// queued it, so delivery lines name the same chat, handler and order.
type job struct {
	to       int64
	meta     logger.Meta
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
// Jobs sharing a key run on the same worker, in enqueue order.
type Dispatcher struct {
	opts   Options
	queues []chan job
	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// NewDispatcher starts opts.Workers workers. Zero options get defaults.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	opts.MaxRetries = max(opts.MaxRetries, 0)
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{opts: opts, queues: make([]chan job, opts.Workers)}
	d.wg.Add(opts.Workers)
	for i := range d.queues {
		d.queues[i] = make(chan job, opts.QueueSize)
		go d.work(d.queues[i])
	}
	return d
}

// Enqueue schedules run on the worker owning key, the destination chat id.
// run may be called again after a retryable failure.
func (d *Dispatcher) Enqueue(ctx context.Context, key int64, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	j := job{
		to:       key,
		meta:     logger.MetaFrom(ctx),
		action:   action,
		endpoint: endpoint,
		run:      run,
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.queues[d.shard(key)] <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) shard(key int64) int {
	n := int64(len(d.queues))
	return int((key%n + n) % n)
}

// ErrorCount returns the number of jobs that finally failed.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits until the queued ones are delivered.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		for _, q := range d.queues {
			close(q)
		}
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) work(queue <-chan job) {
	defer d.wg.Done()
	for j := range queue {
		d.deliver(j)
	}
}

// deliver runs j until it succeeds, fails for good or runs out of retries
// or time. Jobs outlive their update, so only its log metadata is kept.
func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(logger.WithMeta(context.Background(), j.meta), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempt := 1
	err := j.run()
	for err != nil && attempt <= d.opts.MaxRetries && Retryable(err) {
		if !Sleep(ctx, retryDelay(err, d.opts.RetryBackoff, attempt)) {
			err = errors.Join(err, ctx.Err())
			break
		}
		attempt++
		err = j.run()
	}

	attrs := []slog.Attr{
		slog.String("action", j.action),
		slog.String("endpoint", j.endpoint),
		slog.Int64("to", j.to),
		slog.Int("attempts", attempt),
		slog.Duration("duration", time.Since(start)),
	}
	if err == nil {
		logger.TSend.LogAttrs(ctx, slog.LevelDebug, "reply sent", append(attrs, slog.String("event", "send.ok"))...)
		return
	}

	d.errs.Add(1)
	logger.TSend.LogAttrs(ctx, slog.LevelError, "reply failed", append(attrs,
		slog.String("event", "send.fail"),
		slog.String("err", RedactToken(err.Error())),
		slog.String("err_code", classifyError(err)),
	)...)
	if d.opts.OnFailure != nil {
		d.opts.OnFailure(ctx, j.action, err)
	}
}

// classifyError names the failure class of a delivery error for logs.
func classifyError(err error) string {
	var (
		apiErr *tele.Error
		dnsErr *net.DNSError
		opErr  *net.OpError
		netErr net.Error
		tlsErr tls.AlertError
		flood  tele.FloodError
		group  tele.GroupError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &flood):
		return "flood"
	case errors.As(err, &group):
		return "chat_migrated"
	case errors.As(err, &apiErr) && apiErr.Code >= 500:
		return "http_5xx"
	case errors.As(err, &apiErr) && apiErr.Code >= 400:
		return "http_4xx"
	case errors.As(err, &dnsErr) && !dnsErr.IsTimeout:
		return "dns"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &tlsErr):
		return "tls"
	}
	return "unknown"
}

// RedactToken masks Telegram bot tokens embedded in API URLs.
func RedactToken(msg string) string {
	return tokenRe.ReplaceAllString(msg, "bot<redacted>")
}

// RedactError returns err with any bot token in its text masked. The result
// keeps err in its chain.
func RedactError(err error) error {
	if err == nil {
		return nil
	}
	msg := RedactToken(err.Error())
	if msg == err.Error() {
		return err
	}
	return &redactedError{msg: msg, err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }
