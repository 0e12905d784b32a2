package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/shopauth"
	"github.com/MrEthical07/shopauth/middleware"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type signupRequest struct {
	Name         string `json:"name" validate:"max=150"`
	Email        string `json:"email" validate:"required"`
	Phone        string `json:"phone" validate:"max=150"`
	Username     string `json:"username" validate:"required_without=Phone,max=150"`
	Password     string `json:"password" validate:"required"`
	ReferralCode string `json:"referralCode" validate:"max=32"`
}

type userResponse struct {
	Message string            `json:"message"`
	User    shopauth.Identity `json:"user"`
}

func referralSignupMessage(coins int64) string {
	return fmt.Sprintf("Account created! You earned %d coins!", coins)
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	a.doLogin(w, r, false)
}

func (a *api) adminLogin(w http.ResponseWriter, r *http.Request) {
	a.doLogin(w, r, true)
}

func (a *api) doLogin(w http.ResponseWriter, r *http.Request, admin bool) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	login, msg := a.svc.Login, "Login successful"
	if admin {
		login, msg = a.svc.AdminLogin, "Admin login successful"
	}

	res, err := login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, shopauth.ErrAdminDenied):
		writeError(w, http.StatusForbidden, "Admin access denied")
		return
	case errors.Is(err, shopauth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case errors.Is(err, shopauth.ErrLoginRateLimited):
		writeError(w, http.StatusTooManyRequests, "Too many login attempts")
		return
	default:
		a.serverError(w, r, "login", err)
		return
	}

	a.cookies.set(w, res.AccessToken, res.RefreshToken)
	writeJSON(w, http.StatusOK, userResponse{Message: msg, User: res.Identity})
}

func (a *api) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Username, email, and password are required")
		return
	}

	username := req.Username
	if username == "" {
		username = req.Phone
	}

	res, err := a.svc.Signup(r.Context(), shopauth.SignupRequest{
		Name:         req.Name,
		Email:        req.Email,
		Username:     username,
		Password:     req.Password,
		ReferralCode: req.ReferralCode,
	})
	switch {
	case err == nil:
	case res != nil && errors.Is(err, shopauth.ErrSessionCreationFailed):
		a.log.Warn().Err(err).Int64("user_id", res.Identity.ID).Msg("signup session not opened")
	case errors.Is(err, shopauth.ErrAccountCreationInvalid):
		writeError(w, http.StatusBadRequest, "Username, email, and password are required")
		return
	case errors.Is(err, shopauth.ErrAccountExists):
		writeError(w, http.StatusBadRequest, "User already exists")
		return
	case errors.Is(err, shopauth.ErrPasswordPolicy):
		writeError(w, http.StatusBadRequest, "Password is too short")
		return
	case errors.Is(err, shopauth.ErrAccountCreationRateLimited):
		writeError(w, http.StatusTooManyRequests, "Too many signup attempts")
		return
	default:
		a.serverError(w, r, "signup", err)
		return
	}

	if res.AccessToken != "" {
		a.cookies.set(w, res.AccessToken, res.RefreshToken)
	}
	msg := "Signup successful"
	if res.ReferralApplied {
		msg = referralSignupMessage(res.CoinsEarned)
	}
	writeJSON(w, http.StatusCreated, userResponse{Message: msg, User: res.Identity})
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, RefreshCookie)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "No refresh token")
		return
	}

	access, refresh, err := a.svc.Refresh(r.Context(), token)
	switch {
	case err == nil:
	case errors.Is(err, shopauth.ErrRefreshRateLimited):
		writeError(w, http.StatusTooManyRequests, "Too many refresh attempts")
		return
	case errors.Is(err, shopauth.ErrRefreshInvalid), errors.Is(err, shopauth.ErrRefreshReuse):
		a.cookies.clear(w)
		writeError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	default:
		a.serverError(w, r, "refresh", err)
		return
	}

	a.cookies.set(w, access, refresh)
	writeMessage(w, http.StatusOK, "Token refreshed")
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	access, _ := middleware.AccessToken(r)
	if err := a.svc.Logout(r.Context(), access, cookieValue(r, RefreshCookie)); err != nil {
		a.log.Warn().Err(err).Msg("logout: session not removed")
	}
	a.cookies.clear(w)
	writeMessage(w, http.StatusOK, "Logout successful")
}

func (a *api) me(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, id)
}

func (a *api) wallet(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	wallet, err := a.svc.Wallet(r.Context(), id.ID)
	if err != nil {
		a.accountError(w, r, "wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (a *api) generateReferral(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	ref, err := a.svc.GenerateReferral(r.Context(), id.ID)
	if err != nil {
		a.accountError(w, r, "generate referral", err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (a *api) listUsers(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	users, err := a.svc.ListUsers(r.Context(), id.ID)
	if err != nil {
		a.accountError(w, r, "list users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *api) ready(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Ping(r.Context()); err != nil {
		a.log.Warn().Err(err).Msg("readiness check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (a *api) accountError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, shopauth.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "Not allowed")
	case errors.Is(err, shopauth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, shopauth.ErrReferralUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Could not generate referral code")
	default:
		a.serverError(w, r, op, err)
	}
}

func (a *api) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	a.log.Error().Err(err).Str("op", op).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
