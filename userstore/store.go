package userstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("userstore: user not found")
	ErrDuplicate = errors.New("userstore: username or email already taken")

	// ErrReferralUnavailable covers unknown, already used and self-owned codes.
	ErrReferralUnavailable = errors.New("userstore: referral code unavailable")
)

// User is a stored account.
type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	IsStaff      bool      `db:"is_staff"`
	ReferralCode string    `db:"referral_code"`
	ReferredBy   *int64    `db:"referred_by"`
	Coins        int64     `db:"coins"`
	CreatedAt    time.Time `db:"created_at"`
}

// Reward is the coin grant applied when a referral code is redeemed.
type Reward struct {
	Referrer int64
	NewUser  int64
}

// Store is the account persistence used by the auth engine.
type Store interface {
	// Create inserts u and assigns u.ID and u.CreatedAt.
	Create(ctx context.Context, u *User) error
	ByUsername(ctx context.Context, username string) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	ByID(ctx context.Context, id int64) (*User, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error

	AddCoins(ctx context.Context, id int64, delta int64) error
	Coins(ctx context.Context, id int64) (int64, error)
	List(ctx context.Context) ([]User, error)

	CreateReferral(ctx context.Context, ownerID int64, code string) error
	// RedeemReferral consumes code for newUserID and grants reward to both
	// parties in one step. It returns the code owner's id.
	RedeemReferral(ctx context.Context, code string, newUserID int64, reward Reward) (int64, error)
}
