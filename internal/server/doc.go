// Package server provides the HTTP routing, middleware and OAuth callback handling behind `yomi auth login`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [Middleware] wraps handlers in reverse
// order (last added executes first). The [BasicRouter] implementation uses [http.ServeMux] internally with method
// filtering, and [RequestLogger] logs each request without its query string.
//
// # Login Flow
//
// [Login] prepares an authorization code flow with PKCE against the identity provider: a random state for CSRF
// protection and an S256 code challenge derived from a fresh verifier. The audience parameter selects the
// listening-history API so the returned access token is accepted there.
//
// [OAuthHandler] serves the redirect URI. It validates the state, exchanges the code together with the verifier
// and delivers exactly one [OAuthResult] on its result channel. Later callbacks are rejected.
//
// The CLI starts a temporary server on the configured host and port, opens the browser at [Login.AuthURL],
// waits for the result and shuts the server down.
package server
