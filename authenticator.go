package aerc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/feldspar-io/aerc/cookiecache"
)

// Authenticator defines a public type used by aerc APIs.
//
// An Authenticator turns a platform identity token into a session cookie for
// one target origin and caches that cookie for its own lifetime. App Engine
// cookies are observed to live about 24 hours from the first successful
// Setup, so a single instance is adequate for most REST dialogues.
//
// Setup, Authenticate, and Token serialize internally; the cached cookie is
// written at most once and read thereafter.
type Authenticator struct {
	appURI   *url.URL
	identity Identity
	provider CredentialProvider
	cfg      AuthConfig
	exchange *http.Client
	cache    *cookiecache.Store
	limiter  *rate.Limiter
	metrics  *Metrics

	mu     sync.Mutex
	cookie string
	token  string
	errMsg string
}

// NewAuthenticator creates an interactive-mode Authenticator with default
// configuration. The provider may prompt a human on first use, so Setup must
// not be called from a goroutine that cannot block for that long.
func NewAuthenticator(appURI *url.URL, identity Identity, provider CredentialProvider) *Authenticator {
	return newAuthenticator(appURI, identity, provider, "", defaultConfig().Auth, nil, nil, nil, nil)
}

// NewTokenAuthenticator creates a non-interactive Authenticator holding a
// pre-obtained identity token. It is guaranteed never to prompt and is
// usable from any goroutine, for example inside a service with no
// interaction surface.
func NewTokenAuthenticator(appURI *url.URL, token string) *Authenticator {
	return newAuthenticator(appURI, Identity{}, nil, token, defaultConfig().Auth, nil, nil, nil, nil)
}

func newAuthenticator(appURI *url.URL, identity Identity, provider CredentialProvider, token string,
	cfg AuthConfig, exchange *http.Client, cache *cookiecache.Store, limiter *rate.Limiter, metrics *Metrics) *Authenticator {
	if exchange == nil {
		exchange = newExchangeClient(nil)
	}
	if metrics == nil {
		metrics = NewMetrics(MetricsConfig{})
	}
	return &Authenticator{
		appURI:   appURI,
		identity: identity,
		provider: provider,
		cfg:      cfg,
		exchange: exchange,
		cache:    cache,
		limiter:  limiter,
		metrics:  metrics,
		token:    token,
	}
}

// newExchangeClient derives the login-exchange HTTP client from base. The
// exchange must see the raw Set-Cookie response, so redirects are disabled.
func newExchangeClient(base *http.Client) *http.Client {
	c := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	if base != nil {
		c.Transport = base.Transport
		c.Timeout = base.Timeout
	}
	return c
}

// Setup describes the setup operation and its observable behavior.
//
// Setup is idempotent: it returns nil immediately when a session cookie is
// already cached. Otherwise it acquires an identity token from the provider
// (blocking until the provider resolves, however long human interaction
// takes), performs the one-time cold-start invalidate-and-refresh, and
// exchanges the token for a session cookie at the target origin's login
// endpoint. A failure is terminal for this call but not for the instance; a
// later Setup re-attempts from the start.
//
// Setup performs network I/O and must not be called from a goroutine that
// cannot block.
func (a *Authenticator) Setup(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.setupLocked(ctx)
}

func (a *Authenticator) setupLocked(ctx context.Context) error {
	if a.cookie != "" {
		return nil
	}

	// Private-network development backends perform no real authentication;
	// synthesize a fixed placeholder session without any network or
	// credential call.
	if a.cfg.TestHostPrefix != "" && strings.HasPrefix(a.appURI.Hostname(), a.cfg.TestHostPrefix) {
		a.cookie = a.cfg.TestCookie
		a.token = a.cfg.TestToken
		a.metrics.Inc(MetricTestModeBypass)
		return nil
	}

	a.errMsg = ""

	if a.cache != nil {
		cookie, err := a.cache.Get(ctx, a.identity.Account, a.origin())
		if err == nil && cookie != "" {
			a.cookie = cookie
			a.metrics.Inc(MetricCookieCacheHit)
			a.metrics.Inc(MetricAuthSuccess)
			return nil
		}
		a.metrics.Inc(MetricCookieCacheMiss)
	}

	// A held token means the promise-not-to-prompt construction mode; go
	// straight to the cookie exchange. Otherwise acquire a token, then
	// invalidate it and acquire a fresh one: a cached provider token may
	// already be stale for this application, and the single forced refresh
	// maximizes the odds of a token the backend will accept.
	if a.token == "" {
		token, err := a.requestToken(ctx)
		if err != nil {
			a.errMsg = msgAuthFailed + ": " + err.Error()
			a.metrics.Inc(MetricAuthFailure)
			return fmt.Errorf("%w: %v", ErrCredential, err)
		}

		a.provider.InvalidateToken(a.identity, token)
		a.metrics.Inc(MetricTokenInvalidated)

		token, err = a.requestToken(ctx)
		if err != nil {
			a.errMsg = msgAuthFailed + ": " + err.Error()
			a.metrics.Inc(MetricAuthFailure)
			return fmt.Errorf("%w: %v", ErrCredential, err)
		}
		a.token = token
	}

	if err := a.exchangeCookie(ctx); err != nil {
		a.metrics.Inc(MetricAuthFailure)
		return err
	}
	a.metrics.Inc(MetricAuthSuccess)

	if a.cache != nil {
		// Best effort; a dead cache must not fail an established session.
		_ = a.cache.Put(ctx, a.identity.Account, a.origin(), a.cookie)
	}
	return nil
}

// Authenticate describes the authenticate operation and its observable behavior.
//
// Authenticate runs Setup and then attaches the session cookie to req as a
// Cookie header. On failure the request is left untouched and the diagnostic
// is retrievable via ErrorMessage.
func (a *Authenticator) Authenticate(ctx context.Context, req *http.Request) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.setupLocked(ctx); err != nil {
		return err
	}
	req.Header.Add("Cookie", a.cookie)
	return nil
}

// Token describes the token operation and its observable behavior.
//
// Token runs Setup and returns the identity token that is ready for use, so
// that a non-interactive Authenticator can be seeded from an interactive one.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.setupLocked(ctx); err != nil {
		return "", err
	}
	return a.token, nil
}

// ErrorMessage returns the diagnostic recorded by the last failed Setup or
// Authenticate. Valid only after a failure.
func (a *Authenticator) ErrorMessage() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errMsg
}

func (a *Authenticator) origin() string {
	return a.appURI.Scheme + "://" + a.appURI.Host
}

// requestToken adapts the provider's asynchronous resolution into a blocking
// call. The provider's callback may fire on an arbitrary goroutine; the
// channel receive is the only coordination point.
func (a *Authenticator) requestToken(ctx context.Context) (string, error) {
	if a.provider == nil {
		return "", ErrNoToken
	}
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", ErrTokenRateLimited, err)
		}
	}

	cancel := func() {}
	if a.cfg.TokenRequestTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, a.cfg.TokenRequestTimeout)
	}
	defer cancel()

	a.metrics.Inc(MetricTokenRequest)
	select {
	case grant := <-a.provider.RequestToken(ctx, a.identity):
		if grant.Err != nil {
			a.metrics.Inc(MetricTokenFailure)
			return "", grant.Err
		}
		if grant.Token == "" {
			a.metrics.Inc(MetricTokenFailure)
			return "", ErrNoToken
		}
		return grant.Token, nil
	case <-ctx.Done():
		a.metrics.Inc(MetricTokenFailure)
		return "", ctx.Err()
	}
}

func (a *Authenticator) exchangeCookie(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.loginURL(), nil)
	if err != nil {
		a.errMsg = msgAuthFailed + ": " + err.Error()
		return fmt.Errorf("%w: %v", ErrSessionExchange, err)
	}

	resp, err := a.exchange.Do(req)
	if err != nil {
		a.errMsg = msgAuthFailed + ": " + err.Error()
		return fmt.Errorf("%w: %v", ErrSessionExchange, err)
	}
	defer resp.Body.Close()
	// Some HTTP client stacks fail to reclaim the connection unless the
	// response body is read completely.
	_, _ = io.Copy(io.Discard, resp.Body)

	cookieName := a.cfg.PlainCookieName
	if a.appURI.Scheme == "https" {
		cookieName = a.cfg.SecureCookieName
	}

	for _, sc := range resp.Header.Values("Set-Cookie") {
		if strings.HasPrefix(sc, cookieName) {
			// Keep name=value, strip cookie attributes.
			value, _, _ := strings.Cut(sc, ";")
			a.cookie = value
			break
		}
	}
	if a.cookie == "" {
		a.errMsg = msgAuthFailed + ": " + ErrNoCookie.Error()
		return fmt.Errorf("%w: %v", ErrSessionExchange, ErrNoCookie)
	}
	return nil
}

// loginURL builds the cookie-exchange URL: the target origin forced to the
// secure scheme, the well-known login path, and the token as a query
// parameter.
func (a *Authenticator) loginURL() string {
	u := *a.appURI
	u.Scheme = "https"
	u.Path = strings.TrimSuffix(u.Path, "/") + a.cfg.LoginPath
	u.RawQuery = "continue=" + url.QueryEscape(a.cfg.ContinueURL) + "&auth=" + url.QueryEscape(a.token)
	return u.String()
}
