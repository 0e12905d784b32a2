package flows

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/MrEthical07/shopauth/userstore"
)

const referralCodeAttempts = 3

type ReferralUserStore interface {
	ByID(ctx context.Context, id int64) (*userstore.User, error)
	CreateReferral(ctx context.Context, ownerID int64, code string) error
}

type ReferralDeps struct {
	Users           ReferralUserStore
	NewReferralCode func(name string) (string, error)
	Duplicate       error

	// ShareURL builds the share link for a code.
	ShareURL func(code string) string

	MetricInc       func(int)
	EmitAudit       AuditFunc
	GeneratedMetric int
	GeneratedEvent  string
}

type ReferralResult struct {
	Code        string
	WhatsAppURL string
}

// WhatsAppShareURL returns a wa.me link whose prefilled text carries code.
func WhatsAppShareURL(code string) string {
	text := fmt.Sprintf("Use my referral code %s to get 50 coins on signup! Shop premium supplements at SS Supplement.", code)
	return "https://wa.me/?text=" + url.QueryEscape(text)
}

// RunGenerateReferral issues a new single-use referral code owned by userID.
// Code collisions are retried a few times before giving up.
func RunGenerateReferral(ctx context.Context, userID int64, deps ReferralDeps) (ReferralResult, error) {
	if deps.ShareURL == nil {
		deps.ShareURL = WhatsAppShareURL
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}

	user, err := deps.Users.ByID(ctx, userID)
	if err != nil {
		return ReferralResult{}, err
	}
	seed := user.Name
	if seed == "" {
		seed = user.Username
	}

	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		code, err := deps.NewReferralCode(seed)
		if err != nil {
			return ReferralResult{}, err
		}
		err = deps.Users.CreateReferral(ctx, userID, code)
		if deps.Duplicate != nil && errors.Is(err, deps.Duplicate) {
			continue
		}
		if err != nil {
			return ReferralResult{}, err
		}

		deps.MetricInc(deps.GeneratedMetric)
		deps.EmitAudit(ctx, deps.GeneratedEvent, true, strconv.FormatInt(userID, 10), "", nil, func() map[string]string {
			return map[string]string{"code": code}
		})
		return ReferralResult{Code: code, WhatsAppURL: deps.ShareURL(code)}, nil
	}

	return ReferralResult{}, fmt.Errorf("referral code: %w after %d attempts", deps.Duplicate, referralCodeAttempts)
}
