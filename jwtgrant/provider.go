package jwtgrant

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/feldspar-io/aerc"
)

// SigningMethod defines a public type used by jwtgrant APIs.
type SigningMethod string

const (
	// MethodHS256 signs assertions with an HMAC secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs assertions with an Ed25519 private key.
	MethodEd25519 SigningMethod = "ed25519"
)

const grantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

var (
	// ErrTokenEndpoint is returned when the token endpoint rejects the
	// assertion or responds with garbage.
	ErrTokenEndpoint = errors.New("token endpoint rejected assertion")
	// ErrNoGrant is returned when the endpoint response carries no token.
	ErrNoGrant = errors.New("token endpoint returned no token")
)

// Config defines a public type used by jwtgrant APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// TokenURL is the assertion-exchange endpoint.
	TokenURL string
	// Issuer and Audience are stamped on every assertion.
	Issuer   string
	Audience string
	// TTL bounds the assertion validity window. Defaults to 5 minutes.
	TTL time.Duration
	// SigningMethod selects hs256 (default) or ed25519.
	SigningMethod SigningMethod
	// PrivateKey is the HMAC secret, or the raw Ed25519 seed (32 bytes) or
	// private key (64 bytes).
	PrivateKey []byte
	// HTTPClient overrides the exchange transport.
	HTTPClient *http.Client
}

// Provider is a non-interactive [aerc.CredentialProvider]. It is safe for
// concurrent use.
type Provider struct {
	cfg    Config
	http   *http.Client
	method jwt.SigningMethod
	key    any

	mu     sync.Mutex
	cached map[string]string
}

// New describes the new operation and its observable behavior.
//
// New validates the key material against the signing method and returns a
// ready Provider. No I/O happens before the first RequestToken.
func New(cfg Config) (*Provider, error) {
	if cfg.TokenURL == "" {
		return nil, errors.New("token URL is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}

	p := &Provider{
		cfg:    cfg,
		http:   cfg.HTTPClient,
		cached: make(map[string]string),
	}
	if p.http == nil {
		p.http = &http.Client{Timeout: 30 * time.Second}
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires a private key")
		}
		p.method = jwt.SigningMethodHS256
		p.key = cfg.PrivateKey
	case MethodEd25519:
		key, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		p.method = jwt.SigningMethodEdDSA
		p.key = key
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}
	return p, nil
}

// RequestToken describes the requesttoken operation and its observable behavior.
//
// RequestToken resolves on a provider-owned goroutine: a cached token is
// returned immediately, otherwise a fresh assertion is signed and exchanged.
// The returned channel receives exactly one grant.
func (p *Provider) RequestToken(ctx context.Context, identity aerc.Identity) <-chan aerc.TokenGrant {
	ch := make(chan aerc.TokenGrant, 1)
	go func() {
		token, err := p.obtain(ctx, identity)
		if err != nil {
			ch <- aerc.TokenGrant{Err: err}
			return
		}
		ch <- aerc.TokenGrant{Token: token}
	}()
	return ch
}

// InvalidateToken drops the cached token for identity when it matches token.
// Fire-and-forget; no network I/O.
func (p *Provider) InvalidateToken(identity aerc.Identity, token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached[identity.Account] == token {
		delete(p.cached, identity.Account)
	}
}

func (p *Provider) obtain(ctx context.Context, identity aerc.Identity) (string, error) {
	p.mu.Lock()
	if token, ok := p.cached[identity.Account]; ok {
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	assertion, err := p.sign(identity)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", grantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenEndpoint, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenEndpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenEndpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrTokenEndpoint, resp.StatusCode)
	}

	var body struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenEndpoint, err)
	}
	token := body.Token
	if token == "" {
		token = body.AccessToken
	}
	if token == "" {
		return "", ErrNoGrant
	}

	p.mu.Lock()
	p.cached[identity.Account] = token
	p.mu.Unlock()
	return token, nil
}

func (p *Provider) sign(identity aerc.Identity) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    p.cfg.Issuer,
		Subject:   identity.Account,
		Audience:  jwt.ClaimStrings{p.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.cfg.TTL)),
	}
	signed, err := jwt.NewWithClaims(p.method, claims).SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}

func parseEdPrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, errors.New("ed25519 key must be a 32-byte seed or 64-byte private key")
	}
}
