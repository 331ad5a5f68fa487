package aerc

import "errors"

var (
	// ErrCredential is an exported constant or variable used by the App Engine client.
	ErrCredential = errors.New("credential provider could not supply a token")
	// ErrSessionExchange is an exported constant or variable used by the App Engine client.
	ErrSessionExchange = errors.New("session cookie exchange failed")
	// ErrTransport is an exported constant or variable used by the App Engine client.
	ErrTransport = errors.New("transport failure")
	// ErrProtocol is an exported constant or variable used by the App Engine client.
	ErrProtocol = errors.New("unexpected response from backend")
	// ErrNoCookie is an exported constant or variable used by the App Engine client.
	ErrNoCookie = errors.New("no session cookie in login response")
	// ErrNoToken is an exported constant or variable used by the App Engine client.
	ErrNoToken = errors.New("no auth token")
	// ErrClientNotReady is an exported constant or variable used by the App Engine client.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrCallbackRequired is an exported constant or variable used by the App Engine client.
	ErrCallbackRequired = errors.New("background dispatch requires a callback")
	// ErrTokenRateLimited is an exported constant or variable used by the App Engine client.
	ErrTokenRateLimited = errors.New("token request rate limited")
)

// diagnostic message templates delivered through Callback.ReportProgress.
const (
	msgSendingRequest    = "sending request"
	msgSentBytes         = "sent %d bytes"
	msgReceivingResponse = "receiving response"
	msgReceivedBytes     = "received %d bytes"
	msgAuthFailed        = "authentication failed"
)
