package middleware

import (
	"net"
	"net/http"

	"github.com/MrEthical07/shopauth"
)

// RequestMetadata copies the client address and User-Agent into the request
// context for rate limiting and audit. Mount it after chi's RealIP.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shopauth.WithClientIP(r.Context(), remoteHost(r.RemoteAddr))
		ctx = shopauth.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
