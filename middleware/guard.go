package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrEthical07/shopauth"
)

// AccessCookie is the cookie carrying the access token.
const AccessCookie = "access"

// Authenticator resolves an access token into an identity. *shopauth.Engine
// satisfies it.
type Authenticator interface {
	Me(ctx context.Context, accessToken string) (*shopauth.Identity, error)
}

type identityContextKey struct{}

func IdentityFromContext(ctx context.Context) (*shopauth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*shopauth.Identity)
	return id, ok && id != nil
}

// WithIdentity stores id on ctx the way Guard does.
func WithIdentity(ctx context.Context, id *shopauth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Guard rejects requests without a valid access token with 401. The token is
// read from the access cookie, falling back to a bearer header.
func Guard(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			token, ok := AccessToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			id, err := auth.Me(r.Context(), token)
			if err != nil || id == nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// AccessToken extracts the access token from the request.
func AccessToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
