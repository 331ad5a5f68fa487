package aerc

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/feldspar-io/aerc/cookiecache"
)

// Builder defines a public type used by aerc APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config   Config
	appURI   string
	identity Identity
	provider CredentialProvider
	token    string
	redis    redis.UniversalClient
	http     *http.Client
	sink     ProgressSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New returns a Builder seeded with the default configuration. Construction
// is allocation-only; no I/O happens before the first Setup or request.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithAppURI sets the target backend origin, e.g. "https://your-app.appspot.com".
func (b *Builder) WithAppURI(uri string) *Builder {
	b.appURI = uri
	return b
}

// WithCredentialProvider selects interactive mode: tokens come from the
// provider, which may prompt a human on first use.
func (b *Builder) WithCredentialProvider(identity Identity, provider CredentialProvider) *Builder {
	b.identity = identity
	b.provider = provider
	return b
}

// WithToken selects non-interactive mode with a pre-obtained identity token;
// the client is then guaranteed never to prompt.
func (b *Builder) WithToken(token string) *Builder {
	b.token = token
	return b
}

// WithRedis supplies the Redis client backing the shared cookie cache.
// Required when Config.Cache.Enabled is true.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient overrides the transport used for data requests; the
// login-exchange client is derived from it with redirects disabled.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.http = client
	return b
}

// WithProgressSink attaches an out-of-band observer for background
// dispatches, in addition to per-request callbacks.
func (b *Builder) WithProgressSink(sink ProgressSink) *Builder {
	b.sink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the request round-trip histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration, wires the authenticator, cache,
// throttle, and metrics, and returns a ready Client. A Builder may be used
// once.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if err := validateConfig(&b.config); err != nil {
		return nil, err
	}

	if b.appURI == "" {
		return nil, errors.New("app URI is required")
	}
	appURI, err := url.Parse(b.appURI)
	if err != nil {
		return nil, errors.New("app URI is not a valid URL")
	}
	if (appURI.Scheme != "http" && appURI.Scheme != "https") || appURI.Host == "" {
		return nil, errors.New("app URI must be an absolute http(s) URL")
	}

	if b.token == "" && b.provider == nil {
		return nil, errors.New("configure either a token or a credential provider")
	}
	if b.token != "" && b.provider != nil {
		return nil, errors.New("token and credential provider are mutually exclusive")
	}

	httpClient := b.http
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	var cache *cookiecache.Store
	if b.config.Cache.Enabled {
		if b.redis == nil {
			return nil, errors.New("cookie cache requires a redis client")
		}
		cache = cookiecache.NewStore(b.redis, b.config.Cache.RedisPrefix, b.config.Cache.TTL)
	}

	var limiter *rate.Limiter
	if n := b.config.Auth.TokenRequestsPerMinute; n > 0 {
		// Burst 2 so a cold start's acquire-invalidate-reacquire cycle is
		// never throttled against itself.
		limiter = rate.NewLimiter(rate.Limit(float64(n)/60.0), 2)
	}

	metrics := NewMetrics(b.config.Metrics)
	auth := newAuthenticator(appURI, b.identity, b.provider, b.token,
		b.config.Auth, newExchangeClient(httpClient), cache, limiter, metrics)

	b.built = true
	return &Client{
		auth:    auth,
		http:    httpClient,
		cfg:     b.config,
		metrics: metrics,
		sink:    b.sink,
	}, nil
}
