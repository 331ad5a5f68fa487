package aerc

import (
	"context"
	"io"
	"net/http"

	internalmetrics "github.com/feldspar-io/aerc/internal/metrics"
	internalprogress "github.com/feldspar-io/aerc/internal/progress"
)

// Identity names the platform account a token is requested for.
//
// Identity instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Identity struct {
	// Account is the platform account name, e.g. "someone@gmail.com".
	Account string
}

// TokenGrant is the single value resolved by [CredentialProvider.RequestToken].
// Exactly one of Token and Err is meaningful.
type TokenGrant struct {
	Token string
	Err   error
}

// CredentialProvider supplies opaque identity tokens for an account. The
// provider resolves asynchronously, possibly after human interaction on a
// goroutine of its own choosing; [Authenticator.Setup] adapts the resolution
// into a blocking call.
type CredentialProvider interface {
	// RequestToken begins acquisition of an identity token for identity.
	// The returned channel receives exactly one TokenGrant and is never
	// closed before that grant is delivered.
	RequestToken(ctx context.Context, identity Identity) <-chan TokenGrant

	// InvalidateToken tells the provider that token is stale for identity.
	// Fire-and-forget; implementations must not block on network I/O.
	InvalidateToken(identity Identity, token string)
}

// Response is the result of a completed GET or POST exchange. It is immutable
// once constructed.
type Response struct {
	// Status is the HTTP status code.
	Status int
	// Headers holds all response headers, preserving per-name value order.
	Headers http.Header
	// Body is the full response body, possibly empty.
	Body []byte
}

// Callback receives progress and terminal notifications for one background
// dispatch. ReportProgress fires zero or more times, strictly ordered;
// exactly one of ReportError or Done fires afterwards, and it fires last.
// All three are invoked from a single delivery goroutine, never concurrently.
type Callback interface {
	// ReportError reports a problem: authentication failure or a network IO
	// error. HTTP-level problems (500s, 404s) are reported through Done.
	ReportError(why string)

	// ReportProgress reports cheerful and encouraging news from the front.
	ReportProgress(message string)

	// Done reports completion. If ReportError fired, Done never does.
	Done(status int, headers http.Header, body []byte)
}

// StaticTokenProvider is a [CredentialProvider] wrapping a pre-obtained
// token. It resolves immediately, never prompts, and treats invalidation as
// a no-op, matching the non-interactive construction mode.
type StaticTokenProvider struct {
	Token string
}

// RequestToken describes the requesttoken operation and its observable behavior.
//
// RequestToken resolves immediately with the wrapped token, or with
// [ErrNoToken] when the wrapped token is empty.
func (p StaticTokenProvider) RequestToken(ctx context.Context, identity Identity) <-chan TokenGrant {
	ch := make(chan TokenGrant, 1)
	if p.Token == "" {
		ch <- TokenGrant{Err: ErrNoToken}
	} else {
		ch <- TokenGrant{Token: p.Token}
	}
	return ch
}

// InvalidateToken is a no-op; a static token has no backing cache to flush.
func (p StaticTokenProvider) InvalidateToken(identity Identity, token string) {}

// ProgressEvent is the out-of-band observation record emitted to a
// [ProgressSink] alongside per-request callbacks.
//
//	Kinds: "progress", "error", "done".
type ProgressEvent = internalprogress.Event

// ProgressSink receives [ProgressEvent] values from background dispatches.
type ProgressSink = internalprogress.Sink

// NoOpSink is a [ProgressSink] that silently discards all events.
type NoOpSink = internalprogress.NoOpSink

// ChannelSink is a buffered channel-based [ProgressSink].
type ChannelSink = internalprogress.ChannelSink

// JSONWriterSink is a [ProgressSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalprogress.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalprogress.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalprogress.NewJSONWriterSink(w)
}

// MetricID identifies a specific counter or histogram bucket in the
// in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricTokenRequest is an exported constant or variable used by the App Engine client.
	MetricTokenRequest = MetricID(internalmetrics.MetricTokenRequest)
	// MetricTokenFailure is an exported constant or variable used by the App Engine client.
	MetricTokenFailure = MetricID(internalmetrics.MetricTokenFailure)
	// MetricTokenInvalidated is an exported constant or variable used by the App Engine client.
	MetricTokenInvalidated = MetricID(internalmetrics.MetricTokenInvalidated)
	// MetricAuthSuccess is an exported constant or variable used by the App Engine client.
	MetricAuthSuccess = MetricID(internalmetrics.MetricAuthSuccess)
	// MetricAuthFailure is an exported constant or variable used by the App Engine client.
	MetricAuthFailure = MetricID(internalmetrics.MetricAuthFailure)
	// MetricTestModeBypass is an exported constant or variable used by the App Engine client.
	MetricTestModeBypass = MetricID(internalmetrics.MetricTestModeBypass)
	// MetricCookieCacheHit is an exported constant or variable used by the App Engine client.
	MetricCookieCacheHit = MetricID(internalmetrics.MetricCookieCacheHit)
	// MetricCookieCacheMiss is an exported constant or variable used by the App Engine client.
	MetricCookieCacheMiss = MetricID(internalmetrics.MetricCookieCacheMiss)
	// MetricRequestSuccess is an exported constant or variable used by the App Engine client.
	MetricRequestSuccess = MetricID(internalmetrics.MetricRequestSuccess)
	// MetricRequestFailure is an exported constant or variable used by the App Engine client.
	MetricRequestFailure = MetricID(internalmetrics.MetricRequestFailure)
	// MetricDispatchLaunched is an exported constant or variable used by the App Engine client.
	MetricDispatchLaunched = MetricID(internalmetrics.MetricDispatchLaunched)
	// MetricDispatchCompleted is an exported constant or variable used by the App Engine client.
	MetricDispatchCompleted = MetricID(internalmetrics.MetricDispatchCompleted)
	// MetricBytesSent is an exported constant or variable used by the App Engine client.
	MetricBytesSent = MetricID(internalmetrics.MetricBytesSent)
	// MetricBytesReceived is an exported constant or variable used by the App Engine client.
	MetricBytesReceived = MetricID(internalmetrics.MetricBytesReceived)
	// MetricRequestLatency is an exported constant or variable used by the App Engine client.
	MetricRequestLatency = MetricID(internalmetrics.MetricRequestLatency)
)

// Metrics holds atomic counters and an optional request-latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a new [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
