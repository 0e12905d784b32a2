// Package httpapi serves the storefront auth API over HTTP.
//
// Tokens travel in the "access" and "refresh" cookies. Every endpoint lives
// under /api/ with a trailing slash, next to /healthz, /readyz and /metrics.
// Errors are JSON objects with a single "error" field.
package httpapi
