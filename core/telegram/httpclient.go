package telegram

import (
	"net"
	"net/http"
	"time"

	tgsender "github.com/m3rciful/shopbot/core/telegram/sender"
)

// Bot API client limits. The client timeout exceeds the long-poll timeout
// so getUpdates is not cut short.
const (
	dialTimeout     = 5 * time.Second
	headerTimeout   = 5 * time.Second
	clientTimeout   = 30 * time.Second
	transportTries  = 3
	transportPause  = 2 * time.Second
	maxIdlePerHost  = 10
	idleConnTimeout = 30 * time.Second
)

// BuildHTTPClient returns the HTTP client used for Bot API calls. Requests
// that fail to connect or time out are repeated.
func BuildHTTPClient() *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: headerTimeout,
	}
	return &http.Client{
		Timeout:   clientTimeout,
		Transport: &retryTransport{base: base, tries: transportTries, pause: transportPause},
	}
}

type retryTransport struct {
	base  http.RoundTripper
	tries int
	pause time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for try := 1; err != nil && try < t.tries && tgsender.Retryable(err); try++ {
		// A body that cannot be rewound was consumed by the failed attempt.
		if req.Body != nil && req.GetBody == nil {
			break
		}
		if !tgsender.Sleep(req.Context(), t.pause*time.Duration(try)) {
			return nil, req.Context().Err()
		}
		next := req.Clone(req.Context())
		if req.GetBody != nil {
			if next.Body, err = req.GetBody(); err != nil {
				return nil, err
			}
		}
		resp, err = t.base.RoundTrip(next)
	}
	return resp, err
}
