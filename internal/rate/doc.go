// Package rate provides Redis-backed fixed-window limiters for the
// credential-bearing endpoints.
//
// # Window semantics
//
// Fixed-window counters: INCR, then EXPIRE on the first hit. Key prefixes:
//   - "al:" failed logins per identifier
//   - "ali:" failed logins per IP
//   - "ar:" refresh attempts per session
//   - "as:" signups per IP
//
// # What this package must NOT do
//
//   - Decide what happens after a limit trips; callers map ErrRateLimited.
//   - Be imported outside the shopauth module.
package rate
