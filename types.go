package shopauth

import (
	"strconv"

	"github.com/MrEthical07/shopauth/userstore"
)

// Identity is the public view of an account, as returned by /api/me/.
type Identity struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	IsAdmin      bool   `json:"isAdmin"`
	ReferralCode string `json:"referralCode"`
}

func identityFromUser(u *userstore.User) Identity {
	return Identity{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Name:         u.Name,
		IsAdmin:      u.IsStaff,
		ReferralCode: u.ReferralCode,
	}
}

// UserID returns the id in the string form used by sessions and tokens.
func (i Identity) UserID() string {
	return strconv.FormatInt(i.ID, 10)
}

// LoginResult is returned by Login and AdminLogin.
type LoginResult struct {
	Identity     Identity
	SessionID    string
	AccessToken  string
	RefreshToken string
}

// SignupRequest carries the signup form. Username may hold a phone number.
type SignupRequest struct {
	Name         string
	Email        string
	Username     string
	Password     string
	ReferralCode string
}

// SignupResult is returned by Signup. Tokens are empty unless
// Account.AutoLogin is set.
type SignupResult struct {
	Identity        Identity
	ReferralApplied bool
	CoinsEarned     int64
	SessionID       string
	AccessToken     string
	RefreshToken    string
}

// Wallet is the coin balance of an account.
type Wallet struct {
	Coins int64 `json:"coins"`
}

// Referral is a freshly issued referral code and its share link.
type Referral struct {
	Code        string `json:"code"`
	WhatsAppURL string `json:"whatsapp_url"`
}
