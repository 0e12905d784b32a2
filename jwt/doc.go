// Package jwt issues and verifies the short-lived access tokens carried in
// the "access" cookie.
package jwt
