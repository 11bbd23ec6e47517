// Package httputil holds shared plumbing for calls to upstream model
// services: a pooled transport, bounded response reads, and a concurrency
// limiter.
package httputil

import (
	"io"
	"net"
	"net/http"
	"time"
)

// MaxResponseSize bounds response body reads. Upstream services are not
// trusted to return reasonable payloads.
const MaxResponseSize = 4 * 1024 * 1024

// sharedTransport pools connections across all upstream clients.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// NewClient returns a client with the given timeout on the shared
// connection pool. Prefer this over ad hoc http.Client values so upstream
// calls reuse connections.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: sharedTransport,
	}
}

// ReadBody reads a response body up to maxSize bytes. A non-positive
// maxSize applies the package default.
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = MaxResponseSize
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// DrainAndClose empties and closes a response body so the underlying
// connection returns to the pool.
func DrainAndClose(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxResponseSize))
		_ = body.Close()
	}
}
