// Package aerc provides a REST client for Google App Engine backends that
// authenticate through the platform's cookie-based login exchange. It turns a
// platform identity token into a session cookie once per [Authenticator]
// lifetime and then executes plain HTTP GET/POST operations with that cookie
// attached, either synchronously or through a background dispatcher with
// ordered progress callbacks.
//
// The package is designed for concurrent client workloads: Client methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// aerc is the public surface. It exposes [Client], [Authenticator], [Builder],
// [Config], and value types (Response, TokenGrant, MetricsSnapshot, etc.).
// Internal coordination — metric counters and progress-event fan-out — lives
// under internal/ and is never exported. Optional collaborators live in their
// own sub-packages: cookiecache (shared session-cookie cache on Redis) and
// jwtgrant (a CredentialProvider for service identities).
//
// # What this package must NOT do
//
//   - Cache or replay response bodies.
//   - Retry a failed data request; the only built-in retry is the single
//     cold-start token invalidate-and-refresh inside [Authenticator.Setup].
//   - Hold more than one session per Authenticator instance.
//   - Speak any transport other than HTTP(S) request/response.
//
// # Blocking contract
//
// Get, Post, and Setup block the calling goroutine for the duration of token
// acquisition, cookie exchange, and the full response-body read. Callers on a
// latency-sensitive loop should use BackgroundGet/BackgroundPost, which run
// the exchange on a dedicated goroutine and deliver exactly one terminal
// callback.
package aerc
