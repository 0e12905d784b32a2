// Package shopauth is the authentication engine behind the storefront's
// cookie-based auth API: shopper and admin login, signup with referral
// rewards, access-token identity lookup, rotating refresh tokens, logout,
// and the wallet and referral endpoints that hang off an authenticated
// account.
//
// Engine methods are safe for concurrent use after [Builder.Build].
//
// # Architecture boundaries
//
// shopauth is the public surface. It exposes [Engine], [Builder], [Config]
// and the value types returned by Engine methods. Flow orchestration, rate
// limiting, audit dispatch and token encoding live under internal/. Session
// persistence is in [github.com/MrEthical07/shopauth/session], account
// storage in [github.com/MrEthical07/shopauth/userstore].
//
// # Tokens
//
// Access tokens are short-lived JWTs carrying the user id, the session id and
// the admin flag. Refresh tokens are opaque: a session id plus a 32-byte
// secret whose SHA-256 is stored in Redis and rotated on every refresh.
// Presenting a superseded refresh secret revokes the session.
package shopauth
