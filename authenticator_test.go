package aerc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// recordingProvider hands out a scripted sequence of grants and records
// every interaction, resolving on its own goroutine like a real provider.
type recordingProvider struct {
	mu          sync.Mutex
	grants      []TokenGrant
	requests    int
	invalidated []string
}

func (p *recordingProvider) RequestToken(ctx context.Context, identity Identity) <-chan TokenGrant {
	ch := make(chan TokenGrant, 1)
	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.requests++
		if len(p.grants) == 0 {
			ch <- TokenGrant{Err: errors.New("script exhausted")}
			return
		}
		grant := p.grants[0]
		p.grants = p.grants[1:]
		ch <- grant
	}()
	return ch
}

func (p *recordingProvider) InvalidateToken(identity Identity, token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidated = append(p.invalidated, token)
}

func (p *recordingProvider) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}

func (p *recordingProvider) invalidations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.invalidated...)
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// loginExchange is a fake App Engine login endpoint. It records hits and the
// auth query parameter and answers with the configured Set-Cookie headers.
type loginExchange struct {
	mu         sync.Mutex
	hits       int
	lastAuth   string
	setCookies []string
}

func (l *loginExchange) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l.mu.Lock()
		l.hits++
		l.lastAuth = r.URL.Query().Get("auth")
		cookies := append([]string(nil), l.setCookies...)
		l.mu.Unlock()

		for _, c := range cookies {
			w.Header().Add("Set-Cookie", c)
		}
		w.WriteHeader(http.StatusFound)
	}
}

func (l *loginExchange) hitCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hits
}

func (l *loginExchange) authParam() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastAuth
}

func newExchangeServer(t *testing.T, exchange *loginExchange) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/_ah/login", exchange.handler())
	server := httptest.NewTLSServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestAuthenticator(t *testing.T, appURI string, provider CredentialProvider, token string, server *httptest.Server) *Authenticator {
	t.Helper()
	u, err := url.Parse(appURI)
	if err != nil {
		t.Fatalf("parse app URI: %v", err)
	}
	var exchange *http.Client
	if server != nil {
		exchange = newExchangeClient(server.Client())
	}
	return newAuthenticator(u, Identity{Account: "alice@example.com"}, provider, token,
		defaultConfig().Auth, exchange, nil, nil, NewMetrics(MetricsConfig{Enabled: true}))
}

func TestSetupTestModeBypass(t *testing.T) {
	provider := &recordingProvider{}
	auth := newTestAuthenticator(t, "http://192.168.1.20/", provider, "", nil)
	auth.exchange = &http.Client{
		Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			t.Fatalf("test mode must not perform network I/O, got %s", r.URL)
			return nil, nil
		}),
	}

	if err := auth.Setup(context.Background()); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if provider.requestCount() != 0 {
		t.Fatalf("test mode must not call the provider, got %d calls", provider.requestCount())
	}

	req, _ := http.NewRequest(http.MethodGet, "http://192.168.1.20/data", nil)
	if err := auth.Authenticate(context.Background(), req); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if got := req.Header.Get("Cookie"); got != "Testing=TRUE" {
		t.Fatalf("cookie = %q, want Testing=TRUE", got)
	}
	token, err := auth.Token(context.Background())
	if err != nil || token != "whatever" {
		t.Fatalf("token = %q, %v; want whatever", token, err)
	}
}

func TestSetupIdempotent(t *testing.T) {
	exchange := &loginExchange{setCookies: []string{"SACSID=sess-1; Path=/; HttpOnly"}}
	server := newExchangeServer(t, exchange)
	provider := &recordingProvider{grants: []TokenGrant{{Token: "t1"}, {Token: "t2"}}}
	auth := newTestAuthenticator(t, server.URL, provider, "", server)

	if err := auth.Setup(context.Background()); err != nil {
		t.Fatalf("first Setup failed: %v", err)
	}
	if err := auth.Setup(context.Background()); err != nil {
		t.Fatalf("second Setup failed: %v", err)
	}

	if exchange.hitCount() != 1 {
		t.Fatalf("login exchange hit %d times, want 1", exchange.hitCount())
	}
	if provider.requestCount() != 2 {
		t.Fatalf("provider called %d times, want 2 (cold-start cycle only)", provider.requestCount())
	}
}

func TestColdStartInvalidateAndRefresh(t *testing.T) {
	exchange := &loginExchange{setCookies: []string{"SACSID=sess-1"}}
	server := newExchangeServer(t, exchange)
	provider := &recordingProvider{grants: []TokenGrant{{Token: "t1"}, {Token: "t2"}}}
	auth := newTestAuthenticator(t, server.URL, provider, "", server)

	if err := auth.Setup(context.Background()); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	inv := provider.invalidations()
	if len(inv) != 1 || inv[0] != "t1" {
		t.Fatalf("invalidations = %v, want [t1]", inv)
	}
	if got := exchange.authParam(); got != "t2" {
		t.Fatalf("exchange used token %q, want the refreshed t2", got)
	}
}

func TestCookieSelection(t *testing.T) {
	tests := []struct {
		name       string
		scheme     string
		setCookies []string
		want       string
	}{
		{
			name:       "plain scheme picks ACSID and strips attributes",
			scheme:     "http",
			setCookies: []string{"Set-Other=ignored", "ACSID=abc123; Path=/", "OTHER=xyz"},
			want:       "ACSID=abc123",
		},
		{
			name:       "secure scheme picks SACSID",
			scheme:     "https",
			setCookies: []string{"ACSID=plain-one", "SACSID=tls-one; Secure; HttpOnly"},
			want:       "SACSID=tls-one",
		},
		{
			name:       "first matching header wins",
			scheme:     "https",
			setCookies: []string{"SACSID=first", "SACSID=second"},
			want:       "SACSID=first",
		},
		{
			name:       "attribute-free cookie is kept whole",
			scheme:     "https",
			setCookies: []string{"SACSID=bare"},
			want:       "SACSID=bare",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exch := &loginExchange{setCookies: tt.setCookies}
			server := newExchangeServer(t, exch)
			appURI := tt.scheme + strings.TrimPrefix(server.URL, "https")
			auth := newTestAuthenticator(t, appURI, nil, "tok", server)

			if err := auth.Setup(context.Background()); err != nil {
				t.Fatalf("Setup failed: %v", err)
			}
			if auth.cookie != tt.want {
				t.Fatalf("cookie = %q, want %q", auth.cookie, tt.want)
			}
		})
	}
}

func TestSetupNoCookieFails(t *testing.T) {
	exchange := &loginExchange{} // answers without any Set-Cookie
	server := newExchangeServer(t, exchange)
	auth := newTestAuthenticator(t, server.URL, nil, "tok", server)

	err := auth.Setup(context.Background())
	if !errors.Is(err, ErrSessionExchange) {
		t.Fatalf("err = %v, want ErrSessionExchange", err)
	}
	if msg := auth.ErrorMessage(); !strings.Contains(msg, "no session cookie") {
		t.Fatalf("diagnostic %q does not name the missing cookie", msg)
	}

	// The failure is terminal for the call, not the instance.
	if err := auth.Setup(context.Background()); !errors.Is(err, ErrSessionExchange) {
		t.Fatalf("second Setup err = %v, want ErrSessionExchange", err)
	}
	if exchange.hitCount() != 2 {
		t.Fatalf("exchange hit %d times, want 2 (one per Setup)", exchange.hitCount())
	}
}

func TestProviderFailureNotRetried(t *testing.T) {
	exchange := &loginExchange{setCookies: []string{"SACSID=never-reached"}}
	server := newExchangeServer(t, exchange)
	provider := &recordingProvider{grants: []TokenGrant{{Err: errors.New("user declined")}}}
	auth := newTestAuthenticator(t, server.URL, provider, "", server)

	err := auth.Setup(context.Background())
	if !errors.Is(err, ErrCredential) {
		t.Fatalf("err = %v, want ErrCredential", err)
	}
	if provider.requestCount() != 1 {
		t.Fatalf("provider called %d times, want 1 (no retry within Setup)", provider.requestCount())
	}
	if exchange.hitCount() != 0 {
		t.Fatalf("cookie exchange attempted after credential failure")
	}
	if msg := auth.ErrorMessage(); !strings.Contains(msg, "user declined") {
		t.Fatalf("diagnostic %q does not carry the provider reason", msg)
	}
}

func TestTokenAuthenticatorNeverPrompts(t *testing.T) {
	exchange := &loginExchange{setCookies: []string{"SACSID=sess-1"}}
	server := newExchangeServer(t, exchange)
	auth := newTestAuthenticator(t, server.URL, nil, "pre-obtained", server)

	if err := auth.Setup(context.Background()); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if got := exchange.authParam(); got != "pre-obtained" {
		t.Fatalf("exchange used token %q, want the supplied one", got)
	}
}

func TestStaticTokenProvider(t *testing.T) {
	grant := <-StaticTokenProvider{Token: "tok"}.RequestToken(context.Background(), Identity{})
	if grant.Err != nil || grant.Token != "tok" {
		t.Fatalf("grant = %+v, want tok", grant)
	}
	grant = <-StaticTokenProvider{}.RequestToken(context.Background(), Identity{})
	if !errors.Is(grant.Err, ErrNoToken) {
		t.Fatalf("empty static token must resolve with ErrNoToken, got %+v", grant)
	}
}
