package middleware

import "net/http"

// RequireAdmin must run after Guard. Non-staff identities get 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if !id.IsAdmin {
			writeError(w, http.StatusForbidden, "Not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}
