package flows

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/shopauth/internal"
	"github.com/MrEthical07/shopauth/userstore"
)

func loginAlice(t *testing.T, h *harness, staff bool) LoginResult {
	t.Helper()
	h.seedUser(t, "alice", "alice@example.com", "secret1", staff)
	res := RunLogin(context.Background(), "alice", "secret1", false, h.loginDeps())
	if res.Failure != LoginFailureNone {
		t.Fatalf("login: kind=%d err=%v", res.Failure, res.Err)
	}
	return res
}

func TestRunRefreshRotates(t *testing.T) {
	h := newHarness(t)
	login := loginAlice(t, h, true)
	ctx := context.Background()

	res := RunRefresh(ctx, login.Tokens.RefreshToken, h.refreshDeps())
	if res.Failure != RefreshFailureNone {
		t.Fatalf("refresh: kind=%d err=%v", res.Failure, res.Err)
	}
	if res.RefreshToken == login.Tokens.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if res.SessionID != login.Tokens.SessionID {
		t.Fatalf("session changed: %q -> %q", login.Tokens.SessionID, res.SessionID)
	}
	claims, err := h.jwt.ParseAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UID != res.UserID || !claims.Admin {
		t.Fatalf("unexpected claims %+v", claims)
	}

	again := RunRefresh(ctx, res.RefreshToken, h.refreshDeps())
	if again.Failure != RefreshFailureNone {
		t.Fatalf("second refresh: kind=%d err=%v", again.Failure, again.Err)
	}
}

func TestRunRefreshReuseRevokesSession(t *testing.T) {
	h := newHarness(t)
	login := loginAlice(t, h, false)
	ctx := context.Background()

	if res := RunRefresh(ctx, login.Tokens.RefreshToken, h.refreshDeps()); res.Failure != RefreshFailureNone {
		t.Fatalf("refresh: %d", res.Failure)
	}

	replay := RunRefresh(ctx, login.Tokens.RefreshToken, h.refreshDeps())
	if replay.Failure != RefreshFailureReuse {
		t.Fatalf("expected reuse, got kind=%d err=%v", replay.Failure, replay.Err)
	}
	if _, err := h.sessions.Get(ctx, login.Tokens.SessionID); !errors.Is(err, redis.Nil) {
		t.Fatalf("session should be gone, got %v", err)
	}
}

func TestRunRefreshFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if res := RunRefresh(ctx, "not-a-token", h.refreshDeps()); res.Failure != RefreshFailureDecode {
		t.Fatalf("expected decode failure, got %d", res.Failure)
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		t.Fatal(err)
	}
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		t.Fatal(err)
	}
	orphan, err := internal.EncodeRefreshToken(sid.String(), secret)
	if err != nil {
		t.Fatal(err)
	}
	if res := RunRefresh(ctx, orphan, h.refreshDeps()); res.Failure != RefreshFailureSessionNotFound {
		t.Fatalf("expected session not found, got kind=%d err=%v", res.Failure, res.Err)
	}
}

func TestRunLogoutByAccessToken(t *testing.T) {
	h := newHarness(t)
	login := loginAlice(t, h, false)
	ctx := context.Background()

	res := RunLogout(ctx, login.Tokens.AccessToken, "", h.logoutDeps())
	if res.Err != nil || res.SessionID != login.Tokens.SessionID {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := h.sessions.Get(ctx, login.Tokens.SessionID); !errors.Is(err, redis.Nil) {
		t.Fatalf("session should be gone, got %v", err)
	}
}

func TestRunLogoutByRefreshToken(t *testing.T) {
	h := newHarness(t)
	login := loginAlice(t, h, false)
	ctx := context.Background()

	res := RunLogout(ctx, "expired.or.garbage", login.Tokens.RefreshToken, h.logoutDeps())
	if res.Err != nil || res.UserID == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := h.sessions.Get(ctx, login.Tokens.SessionID); !errors.Is(err, redis.Nil) {
		t.Fatalf("session should be gone, got %v", err)
	}
}

func TestRunLogoutIgnoresForeignRefreshSecret(t *testing.T) {
	h := newHarness(t)
	login := loginAlice(t, h, false)
	ctx := context.Background()

	secret, err := internal.NewRefreshSecret()
	if err != nil {
		t.Fatal(err)
	}
	forged, err := internal.EncodeRefreshToken(login.Tokens.SessionID, secret)
	if err != nil {
		t.Fatal(err)
	}

	res := RunLogout(ctx, "", forged, h.logoutDeps())
	if res.Err != nil || res.UserID != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := h.sessions.Get(ctx, login.Tokens.SessionID); err != nil {
		t.Fatalf("session must survive a forged token: %v", err)
	}
}

func TestRunLogoutWithoutTokens(t *testing.T) {
	h := newHarness(t)
	if res := RunLogout(context.Background(), "", "", h.logoutDeps()); res != (LogoutResult{}) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunLogoutAll(t *testing.T) {
	h := newHarness(t)
	first := loginAlice(t, h, false)
	second := RunLogin(context.Background(), "alice", "secret1", false, h.loginDeps())
	if second.Failure != LoginFailureNone {
		t.Fatalf("second login: %d", second.Failure)
	}

	n, err := RunLogoutAll(context.Background(), strconv.FormatInt(first.User.ID, 10), h.logoutDeps())
	if err != nil {
		t.Fatalf("logout all: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 sessions removed, got %d", n)
	}
}

func TestRunIdentity(t *testing.T) {
	h := newHarness(t)
	login := loginAlice(t, h, false)
	ctx := context.Background()

	res := RunIdentity(ctx, login.Tokens.AccessToken, h.identityDeps())
	if res.Failure != IdentityFailureNone {
		t.Fatalf("identity: kind=%d err=%v", res.Failure, res.Err)
	}
	if res.User.Username != "alice" {
		t.Fatalf("unexpected user %+v", res.User)
	}

	if res := RunIdentity(ctx, "garbage", h.identityDeps()); res.Failure != IdentityFailureToken {
		t.Fatalf("expected token failure, got %d", res.Failure)
	}

	if err := h.sessions.Delete(ctx, login.Tokens.SessionID); err != nil {
		t.Fatal(err)
	}
	if res := RunIdentity(ctx, login.Tokens.AccessToken, h.identityDeps()); res.Failure != IdentityFailureSessionNotFound {
		t.Fatalf("logged out token must stop resolving, got %d", res.Failure)
	}
}

func TestRunIdentityRedisDown(t *testing.T) {
	h := newHarness(t)
	login := loginAlice(t, h, false)
	h.mr.Close()

	res := RunIdentity(context.Background(), login.Tokens.AccessToken, h.identityDeps())
	if res.Failure != IdentityFailureBackend {
		t.Fatalf("expected backend failure, got kind=%d err=%v", res.Failure, res.Err)
	}
}

func TestRunGenerateReferral(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser(t, "meera", "meera@example.com", "secret1", false)
	ctx := context.Background()

	res, err := RunGenerateReferral(ctx, u.ID, h.referralDeps())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(res.Code, "MEE") {
		t.Fatalf("unexpected code %q", res.Code)
	}

	link, err := url.Parse(res.WhatsAppURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if link.Host != "wa.me" {
		t.Fatalf("unexpected host %q", link.Host)
	}
	if text := link.Query().Get("text"); !strings.Contains(text, res.Code) {
		t.Fatalf("share text %q does not carry the code", text)
	}
	if !h.hasAudit("referral_generated") || h.metrics[mReferralGenerated] != 1 {
		t.Fatal("expected referral_generated audit and metric")
	}

	if _, err := h.users.RedeemReferral(ctx, res.Code, u.ID+100, userstore.Reward{}); !errors.Is(err, userstore.ErrNotFound) {
		t.Fatalf("code should be registered, got %v", err)
	}
}

func TestRunGenerateReferralRetriesCollisions(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser(t, "meera", "meera@example.com", "secret1", false)
	ctx := context.Background()
	if err := h.users.CreateReferral(ctx, u.ID, "MEE0000"); err != nil {
		t.Fatal(err)
	}

	calls := 0
	deps := h.referralDeps()
	deps.NewReferralCode = func(string) (string, error) {
		calls++
		if calls < 3 {
			return "MEE0000", nil
		}
		return "MEE1111", nil
	}

	res, err := RunGenerateReferral(ctx, u.ID, deps)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Code != "MEE1111" || calls != 3 {
		t.Fatalf("unexpected code %q after %d calls", res.Code, calls)
	}

	deps.NewReferralCode = func(string) (string, error) { return "MEE0000", nil }
	if _, err := RunGenerateReferral(ctx, u.ID, deps); !errors.Is(err, userstore.ErrDuplicate) {
		t.Fatalf("expected duplicate after retries, got %v", err)
	}
}
