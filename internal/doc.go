// Package internal contains helper utilities that are private to shopauth:
// session identifiers, opaque refresh-token encoding, and referral code generation.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: server process configuration from the environment
//   - flows: pure-function orchestrators for every Engine operation
//   - rate: Redis-backed fixed-window limiters
//   - telemetry: logger and trace provider setup
//
// # What this package must NOT do
//
//   - Export types that appear in the public shopauth API.
//   - Be imported by any package outside the shopauth module.
package internal
