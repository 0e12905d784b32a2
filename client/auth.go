package client

import (
	"context"
	"encoding/json"
	"net/http"
)

const (
	msgServerError      = "Server error"
	msgPasswordMismatch = "Passwords do not match"
)

// SignupRequest is the signup form. Phone doubles as the username.
type SignupRequest struct {
	Name            string
	Email           string
	Phone           string
	Password        string
	ConfirmPassword string
	ReferralCode    string
}

type signupBody struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	ReferralCode string `json:"referralCode,omitempty"`
}

type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Message string        `json:"message"`
	User    *wireIdentity `json:"user"`
}

// Bootstrap resolves the session at startup. A cached identity is exposed
// while the server is consulted; the server's answer then replaces it.
func (m *SessionManager) Bootstrap(ctx context.Context) {
	m.snapMu.Lock()
	cached := m.readSnapshot()
	m.mu.Lock()
	m.session.loading = true
	if cached != nil {
		m.session.user = cached
	}
	m.mu.Unlock()
	m.snapMu.Unlock()

	m.fetchIdentity(ctx)
	m.setLoading(false)
}

// Refresh re-validates the session against the server.
func (m *SessionManager) Refresh(ctx context.Context) {
	m.fetchIdentity(ctx)
}

func (m *SessionManager) fetchIdentity(ctx context.Context) {
	var wire wireIdentity
	if err := m.authed(ctx, http.MethodGet, pathMe, &wire); err != nil {
		m.log.Debug().Err(err).Msg("identity unavailable")
		m.setUser(nil)
		return
	}
	id := wire.resolve("")
	if id == nil {
		m.log.Debug().Msg("identity response without id")
	}
	m.setUser(id)
}

// Login authenticates a shopper by username (or phone) and password.
func (m *SessionManager) Login(ctx context.Context, identifier, secret string) Result {
	return m.login(ctx, pathLogin, identifier, secret, false, "Login successful", "Login failed")
}

// AdminLogin authenticates staff. The resulting identity is always marked
// as admin.
func (m *SessionManager) AdminLogin(ctx context.Context, identifier, secret string) Result {
	return m.login(ctx, pathAdminLogin, identifier, secret, true, "Admin login successful", "Admin login failed")
}

func (m *SessionManager) login(ctx context.Context, path, identifier, secret string, admin bool, okMsg, failMsg string) Result {
	resp, err := m.send(ctx, http.MethodPost, path, credentialsBody{Username: identifier, Password: secret})
	if err != nil {
		m.log.Debug().Err(err).Str("path", path).Msg("login request failed")
		return Result{Message: msgServerError}
	}
	if res, done := failure(resp, failMsg); done {
		return res
	}

	var body authResponse
	if err := json.Unmarshal(resp.body, &body); err != nil {
		m.log.Debug().Str("path", path).Msg("unreadable login response")
		return Result{Message: msgServerError}
	}
	user := body.User.resolve(identifier)
	if user == nil {
		m.log.Debug().Str("path", path).Msg("login response without user")
		return Result{Message: msgServerError}
	}
	if admin {
		user.IsAdmin = true
	}
	m.setUser(user)

	return Result{Success: true, Message: orDefault(body.Message, okMsg)}
}

// Signup registers an account. It does not log the user in.
func (m *SessionManager) Signup(ctx context.Context, req SignupRequest) Result {
	if req.Password != req.ConfirmPassword {
		return Result{Message: msgPasswordMismatch}
	}

	resp, err := m.send(ctx, http.MethodPost, pathSignup, signupBody{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Password:     req.Password,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		m.log.Debug().Err(err).Msg("signup request failed")
		return Result{Message: msgServerError}
	}
	if res, done := failure(resp, "Signup failed"); done {
		return res
	}

	var body authResponse
	if len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, &body); err != nil {
			return Result{Message: msgServerError}
		}
	}
	return Result{Success: true, Message: orDefault(body.Message, "Signup successful")}
}

// Logout tells the server to end the session, then forgets the user,
// credentials and snapshot regardless of the server's answer.
func (m *SessionManager) Logout(ctx context.Context) {
	resp, err := m.send(ctx, http.MethodPost, pathLogout, nil)
	switch {
	case err != nil:
		m.log.Debug().Err(err).Msg("logout request failed")
	case !resp.ok():
		m.log.Debug().Int("status", resp.status).Msg("logout rejected")
	}

	m.setUser(nil)
	m.creds.Clear()
}

// failure maps a non-2xx response to a Result. 4xx responses surface the
// server's text; anything else is a server error.
func failure(resp response, fallback string) (Result, bool) {
	switch {
	case resp.ok():
		return Result{}, false
	case resp.status >= 400 && resp.status < 500:
		return Result{Message: orDefault(resp.errorText(), fallback)}, true
	default:
		return Result{Message: msgServerError}, true
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
