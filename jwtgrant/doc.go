// Package jwtgrant implements a CredentialProvider for service identities
// that hold a signing key instead of an interactive account.
//
// The provider signs a short-lived JWT assertion and exchanges it at a token
// endpoint for an opaque identity token, which the aerc Authenticator then
// trades for a session cookie as usual. Tokens are cached per account until
// invalidated.
//
// # What this package must NOT do
//
//   - Prompt a human. This provider is strictly non-interactive.
//   - Persist key material or tokens anywhere outside process memory.
package jwtgrant
