package aerc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Client defines a public type used by aerc APIs.
//
// A Client executes authenticated GET and POST operations against one App
// Engine backend. It may be reused for many requests; the session cookie is
// established once by its Authenticator and attached to every exchange.
// Construct through [Builder.Build].
type Client struct {
	auth    *Authenticator
	http    *http.Client
	cfg     Config
	metrics *Metrics
	sink    ProgressSink

	mu     sync.Mutex
	errMsg string
}

// reporter receives in-flight progress strings. The synchronous path runs
// with a nil reporter; the dispatcher supplies one per background request.
type reporter interface {
	report(message string)
}

// Get describes the get operation and its observable behavior.
//
// Get performs an HTTP GET inline and blocks until the full response body has
// been read, so it must not be called from a goroutine that cannot block on
// network I/O. headers may be nil. On failure the returned Response is nil
// and the diagnostic is retrievable via ErrorMessage; Get never panics over a
// transport fault.
func (c *Client) Get(ctx context.Context, uri string, headers http.Header) (*Response, error) {
	if c == nil {
		return nil, ErrClientNotReady
	}
	return c.do(ctx, http.MethodGet, uri, headers, nil, nil, "")
}

// Post describes the post operation and its observable behavior.
//
// Post performs an HTTP POST inline, declaring a fixed Content-Length equal
// to len(body) and writing the body in full before any response byte is
// read. The blocking and failure contracts match [Client.Get].
func (c *Client) Post(ctx context.Context, uri string, headers http.Header, body []byte) (*Response, error) {
	if c == nil {
		return nil, ErrClientNotReady
	}
	if body == nil {
		body = []byte{}
	}
	return c.do(ctx, http.MethodPost, uri, headers, body, nil, "")
}

// ErrorMessage returns the diagnostic recorded by the last failed Get or
// Post. Valid only after a nil-Response result.
func (c *Client) ErrorMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Authenticator exposes the client's session authenticator, e.g. to seed a
// non-interactive client via [Authenticator.Token].
func (c *Client) Authenticator() *Authenticator {
	return c.auth
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot returns a point-in-time deep copy of the client's counters
// and, when enabled, the request-latency histogram.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

func (c *Client) fail(msg string) {
	c.mu.Lock()
	c.errMsg = msg
	c.mu.Unlock()
}

// do runs one full exchange: authenticate, transmit, read the entire
// response. The transport connection is released on every exit path; errors
// come back as values carrying the attempted method and the IO diagnostic.
func (c *Client) do(ctx context.Context, method, uri string, headers http.Header, body []byte, rep reporter, requestID string) (*Response, error) {
	c.fail("")

	if c.cfg.Transport.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Transport.Timeout)
		defer cancel()
	}

	report(rep, msgSendingRequest)

	var bodyReader io.Reader
	if method == http.MethodPost {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, uri, bodyReader)
	if err != nil {
		c.fail(method + " failed: " + err.Error())
		c.metrics.Inc(MetricRequestFailure)
		return nil, fmt.Errorf("%w: %s failed: %v", ErrTransport, method, err)
	}
	if method == http.MethodPost {
		req.ContentLength = int64(len(body))
	}

	if err := c.auth.Authenticate(ctx, req); err != nil {
		c.fail(msgAuthFailed + ": " + c.auth.ErrorMessage())
		c.metrics.Inc(MetricRequestFailure)
		return nil, fmt.Errorf("%s: %w", msgAuthFailed, err)
	}

	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if c.cfg.Transport.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.Transport.UserAgent)
	}
	if c.cfg.Transport.RequestIDHeader != "" && requestID != "" {
		req.Header.Set(c.cfg.Transport.RequestIDHeader, requestID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.fail(method + " failed: " + err.Error())
		c.metrics.Inc(MetricRequestFailure)
		return nil, fmt.Errorf("%w: %s failed: %v", ErrTransport, method, err)
	}
	defer resp.Body.Close()

	if method == http.MethodPost {
		// The transport has written the body in full by the time Do
		// returns response headers.
		report(rep, fmt.Sprintf(msgSentBytes, len(body)))
		c.metrics.Add(MetricBytesSent, uint64(len(body)))
	}

	report(rep, msgReceivingResponse)
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.fail(method + " failed: " + err.Error())
		c.metrics.Inc(MetricRequestFailure)
		return nil, fmt.Errorf("%w: %s failed: %v", ErrTransport, method, err)
	}
	report(rep, fmt.Sprintf(msgReceivedBytes, len(data)))

	c.metrics.Add(MetricBytesReceived, uint64(len(data)))
	c.metrics.Inc(MetricRequestSuccess)
	c.metrics.Observe(MetricRequestLatency, time.Since(start))

	return &Response{
		Status:  resp.StatusCode,
		Headers: resp.Header.Clone(),
		Body:    data,
	}, nil
}

func report(rep reporter, message string) {
	if rep != nil {
		rep.report(message)
	}
}
