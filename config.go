package aerc

import (
	"errors"
	"time"
)

// Config defines a public type used by aerc APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Auth      AuthConfig
	Transport TransportConfig
	Dispatch  DispatchConfig
	Cache     CacheConfig
	Metrics   MetricsConfig
}

/*
====================================
AUTH CONFIG
====================================
*/

// AuthConfig defines a public type used by aerc APIs.
//
// AuthConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuthConfig struct {
	// LoginPath is the well-known cookie-exchange path on the target origin.
	LoginPath string
	// ContinueURL is the post-login redirect the exchange endpoint requires.
	ContinueURL string
	// SecureCookieName is selected when the target origin scheme is https.
	SecureCookieName string
	// PlainCookieName is selected when the target origin scheme is http.
	PlainCookieName string
	// TestHostPrefix marks private-network development backends whose
	// authentication is bypassed with a synthesized session.
	TestHostPrefix string
	// TestCookie and TestToken form the synthesized test-mode session.
	TestCookie string
	TestToken  string
	// TokenRequestTimeout bounds one blocking wait on the credential
	// provider. Zero means wait indefinitely (interactive prompts may take
	// minutes).
	TokenRequestTimeout time.Duration
	// TokenRequestsPerMinute throttles credential-provider calls across the
	// Authenticator's lifetime. Zero disables the throttle.
	TokenRequestsPerMinute int
}

/*
====================================
TRANSPORT CONFIG
====================================
*/

// TransportConfig defines a public type used by aerc APIs.
//
// TransportConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TransportConfig struct {
	// Timeout bounds one full data exchange, including the response-body
	// read. Zero means no deadline.
	Timeout time.Duration
	// UserAgent is sent on every request when non-empty.
	UserAgent string
	// RequestIDHeader carries the per-dispatch ID; empty disables it.
	RequestIDHeader string
}

/*
====================================
DISPATCH CONFIG
====================================
*/

// DispatchConfig defines a public type used by aerc APIs.
//
// DispatchConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type DispatchConfig struct {
	// EventBuffer is the progress-channel capacity per dispatch. The worker
	// blocks when the buffer is full, preserving order rather than dropping.
	EventBuffer int
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig defines a public type used by aerc APIs.
//
// CacheConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CacheConfig struct {
	// Enabled turns on the shared session-cookie cache. Requires a Redis
	// client on the Builder.
	Enabled bool
	// RedisPrefix namespaces the cache keys.
	RedisPrefix string
	// TTL bounds how long an exchanged cookie is shared. App Engine cookies
	// are observed to live about 24 hours; the default stays safely under.
	TTL time.Duration
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by aerc APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration a fresh [Builder] starts from:
// the well-known App Engine login exchange, the standard cookie names, the
// 192.168 test-mode prefix, and metrics enabled without histograms.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Auth: AuthConfig{
			LoginPath:        "/_ah/login",
			ContinueURL:      "http://localhost/",
			SecureCookieName: "SACSID",
			PlainCookieName:  "ACSID",
			TestHostPrefix:   "192.168",
			TestCookie:       "Testing=TRUE",
			TestToken:        "whatever",
		},
		Dispatch: DispatchConfig{
			EventBuffer: 8,
		},
		Cache: CacheConfig{
			RedisPrefix: "aerc",
			TTL:         20 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Auth.LoginPath == "" {
		return errors.New("auth: login path must not be empty")
	}
	if cfg.Auth.SecureCookieName == "" || cfg.Auth.PlainCookieName == "" {
		return errors.New("auth: cookie names must not be empty")
	}
	if cfg.Auth.TokenRequestTimeout < 0 {
		return errors.New("auth: token request timeout must not be negative")
	}
	if cfg.Auth.TokenRequestsPerMinute < 0 {
		return errors.New("auth: token requests per minute must not be negative")
	}
	if cfg.Transport.Timeout < 0 {
		return errors.New("transport: timeout must not be negative")
	}
	if cfg.Dispatch.EventBuffer <= 0 {
		cfg.Dispatch.EventBuffer = 1
	}
	if cfg.Cache.Enabled && cfg.Cache.TTL <= 0 {
		return errors.New("cache: ttl must be positive when the cache is enabled")
	}
	return nil
}
