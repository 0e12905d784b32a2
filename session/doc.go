// Package session persists server-side login sessions in Redis.
//
// Each session is a hash at "<prefix>:<sid>" with the fields uid, adm, rh
// (hex refresh hash), iat and exp. A set at "<prefix>u:<uid>" indexes the
// sessions of one user so they can be revoked together.
//
// Refresh rotation runs as a single Lua script: the stored hash is compared
// with the presented one and swapped for the next hash in one step. A
// mismatch means an old refresh token was replayed, and the session is
// deleted.
//
// This package does not parse JWTs or make authorization decisions.
package session
