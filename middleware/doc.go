// Package middleware adapts a shopauth Engine to net/http.
//
//   - [Guard] resolves the access cookie (or a bearer header) into an
//     identity and answers 401 otherwise.
//   - [RequireAdmin] answers 403 for authenticated non-staff identities.
//   - [RequestMetadata] puts client IP and User-Agent on the context.
//
// Handlers read the caller with [IdentityFromContext].
package middleware
