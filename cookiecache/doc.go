// Package cookiecache provides an optional Redis-backed cache of exchanged
// session cookies, keyed by (account, origin).
//
// One Authenticator caches its cookie for its own lifetime; this package lets
// short-lived processes sharing one identity reuse a cookie instead of paying
// the token acquisition and login exchange on every start. Entries expire on
// a caller-supplied TTL kept under the backend's observed cookie lifetime.
//
// # What this package must NOT do
//
//   - Validate cookies against the backend; a stale hit surfaces as an
//     ordinary authentication failure on the data request.
//   - Store identity tokens. Only the exchanged cookie is shared.
package cookiecache
