package client

import (
	"context"
	"net/http"
)

// Wallet is the coin balance of the logged-in account.
type Wallet struct {
	Coins int64 `json:"coins"`
}

// Referral is a single-use referral code and its share link.
type Referral struct {
	Code        string `json:"code"`
	WhatsAppURL string `json:"whatsapp_url"`
}

// Wallet fetches the coin balance. Errors are *APIError for non-2xx
// responses.
func (m *SessionManager) Wallet(ctx context.Context) (Wallet, error) {
	var w Wallet
	if err := m.authed(ctx, http.MethodGet, pathWallet, &w); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// GenerateReferral issues a new referral code for the logged-in account.
func (m *SessionManager) GenerateReferral(ctx context.Context) (Referral, error) {
	var r Referral
	if err := m.authed(ctx, http.MethodPost, pathGenerateReferral, &r); err != nil {
		return Referral{}, err
	}
	return r, nil
}

// Users lists every account. Only staff may call it; others get an
// *APIError with IsForbidden set.
func (m *SessionManager) Users(ctx context.Context) ([]Identity, error) {
	var users []Identity
	if err := m.authed(ctx, http.MethodGet, pathAdminUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}
