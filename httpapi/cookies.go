package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/shopauth/middleware"
)

// RefreshCookie carries the opaque refresh token.
const RefreshCookie = "refresh"

type cookieConfig struct {
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func (c cookieConfig) set(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, c.cookie(middleware.AccessCookie, access, c.accessTTL))
	http.SetCookie(w, c.cookie(RefreshCookie, refresh, c.refreshTTL))
}

func (c cookieConfig) clear(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessCookie, RefreshCookie} {
		ck := c.cookie(name, "", 0)
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		http.SetCookie(w, ck)
	}
}

func (c cookieConfig) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
