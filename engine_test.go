package shopauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/shopauth/password"
	"github.com/MrEthical07/shopauth/userstore"
)

const testPassword = "correct-password-123"

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Account.EnableIPThrottle = false
	return cfg
}

func newTestRedis(tb testing.TB) (*miniredis.Miniredis, *redis.Client) {
	tb.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		tb.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tb.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

type testEnv struct {
	engine *Engine
	users  *userstore.Memory
	mr     *miniredis.Miniredis
	rdb    *redis.Client
}

func newTestEngine(tb testing.TB, cfg Config, sink AuditSink) *testEnv {
	tb.Helper()

	mr, rdb := newTestRedis(tb)
	users := userstore.NewMemory()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithAuditSink(sink).
		Build()
	if err != nil {
		tb.Fatalf("Build failed: %v", err)
	}
	tb.Cleanup(engine.Close)

	return &testEnv{engine: engine, users: users, mr: mr, rdb: rdb}
}

func (env *testEnv) addUser(tb testing.TB, username string, staff bool) *userstore.User {
	tb.Helper()

	hasher, err := password.NewArgon2(password.Config{
		Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32, MinLength: 6,
	})
	if err != nil {
		tb.Fatalf("argon2 init failed: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		tb.Fatalf("hash failed: %v", err)
	}

	u := &userstore.User{
		Username:     username,
		Email:        username + "@example.com",
		Name:         strings.ToUpper(username[:1]) + username[1:],
		PasswordHash: hash,
		IsStaff:      staff,
	}
	if err := env.users.Create(context.Background(), u); err != nil {
		tb.Fatalf("create user failed: %v", err)
	}
	return u
}

func TestBuilderRequiresDependencies(t *testing.T) {
	_, rdb := newTestRedis(t)

	if _, err := New().WithConfig(testConfig()).WithUserStore(userstore.NewMemory()).Build(); err == nil {
		t.Fatal("expected error without redis")
	}
	if _, err := New().WithConfig(testConfig()).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without user store")
	}

	b := New().WithConfig(testConfig()).WithRedis(rdb).WithUserStore(userstore.NewMemory())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestLoginMeLogout(t *testing.T) {
	env := newTestEngine(t, testConfig(), nil)
	u := env.addUser(t, "alice", false)
	ctx := context.Background()

	res, err := env.engine.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.Identity.ID != u.ID || res.Identity.IsAdmin {
		t.Fatalf("unexpected identity %+v", res.Identity)
	}

	me, err := env.engine.Me(ctx, res.AccessToken)
	if err != nil {
		t.Fatalf("me failed: %v", err)
	}
	if me.Username != "alice" || me.Email != "alice@example.com" {
		t.Fatalf("unexpected identity %+v", me)
	}

	if err := env.engine.Logout(ctx, res.AccessToken, res.RefreshToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := env.engine.Me(ctx, res.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after logout, got %v", err)
	}
	if _, _, err := env.engine.Refresh(ctx, res.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid after logout, got %v", err)
	}

	// idempotent
	if err := env.engine.Logout(ctx, res.AccessToken, res.RefreshToken); err != nil {
		t.Fatalf("second logout failed: %v", err)
	}
	if err := env.engine.Logout(ctx, "", ""); err != nil {
		t.Fatalf("anonymous logout failed: %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 || snap.Counters[MetricLogout] < 1 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEngine(t, testConfig(), nil)
	env.addUser(t, "alice", false)

	for _, tc := range []struct{ user, pass string }{
		{"alice", "wrong-password"},
		{"nobody", testPassword},
		{"alice", ""},
	} {
		if _, err := env.engine.Login(context.Background(), tc.user, tc.pass); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s/%s: expected ErrInvalidCredentials, got %v", tc.user, tc.pass, err)
		}
	}
}

func TestLoginRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Security.MaxLoginAttempts = 2
	env := newTestEngine(t, cfg, nil)
	env.addUser(t, "alice", false)
	ctx := WithClientIP(context.Background(), "203.0.113.7")

	for i := 0; i < 2; i++ {
		if _, err := env.engine.Login(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := env.engine.Login(ctx, "alice", testPassword); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}

	env.mr.FastForward(cfg.Security.LoginCooldownDuration + time.Second)
	if _, err := env.engine.Login(ctx, "alice", testPassword); err != nil {
		t.Fatalf("login after cooldown failed: %v", err)
	}
}

func TestAdminLogin(t *testing.T) {
	env := newTestEngine(t, testConfig(), nil)
	env.addUser(t, "shopper", false)
	env.addUser(t, "boss", true)
	ctx := context.Background()

	if _, err := env.engine.AdminLogin(ctx, "shopper", testPassword); !errors.Is(err, ErrAdminDenied) {
		t.Fatalf("expected ErrAdminDenied for non-staff, got %v", err)
	}
	if _, err := env.engine.AdminLogin(ctx, "boss", "wrong-password"); !errors.Is(err, ErrAdminDenied) {
		t.Fatalf("expected ErrAdminDenied for bad password, got %v", err)
	}

	res, err := env.engine.AdminLogin(ctx, "boss", testPassword)
	if err != nil {
		t.Fatalf("admin login failed: %v", err)
	}
	if !res.Identity.IsAdmin {
		t.Fatal("expected admin identity")
	}
	me, err := env.engine.Me(ctx, res.AccessToken)
	if err != nil || !me.IsAdmin {
		t.Fatalf("expected admin identity from Me, got %+v %v", me, err)
	}
}

func TestSignupWithReferral(t *testing.T) {
	env := newTestEngine(t, testConfig(), nil)
	ctx := context.Background()

	referrer, err := env.engine.Signup(ctx, SignupRequest{
		Name: "Arjun", Email: "arjun@example.com", Username: "9876543210", Password: "secret1",
	})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if referrer.ReferralApplied || referrer.AccessToken == "" {
		t.Fatalf("unexpected referrer result %+v", referrer)
	}
	if !strings.HasPrefix(referrer.Identity.ReferralCode, "ARJ") {
		t.Fatalf("unexpected referral code %q", referrer.Identity.ReferralCode)
	}

	invited, err := env.engine.Signup(ctx, SignupRequest{
		Name: "Bina", Email: "bina@example.com", Username: "bina", Password: "secret1",
		ReferralCode: referrer.Identity.ReferralCode,
	})
	if err != nil {
		t.Fatalf("invited signup failed: %v", err)
	}
	if !invited.ReferralApplied || invited.CoinsEarned != 50 {
		t.Fatalf("expected referral applied, got %+v", invited)
	}

	w, err := env.engine.Wallet(ctx, invited.Identity.ID)
	if err != nil || w.Coins != 50 {
		t.Fatalf("invited wallet = %+v, %v", w, err)
	}
	w, err = env.engine.Wallet(ctx, referrer.Identity.ID)
	if err != nil || w.Coins != 100 {
		t.Fatalf("referrer wallet = %+v, %v", w, err)
	}

	if _, err := env.engine.Signup(ctx, SignupRequest{
		Email: "BINA@example.com", Username: "other", Password: "secret1",
	}); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if _, err := env.engine.Signup(ctx, SignupRequest{Username: "x", Password: "secret1"}); !errors.Is(err, ErrAccountCreationInvalid) {
		t.Fatalf("expected ErrAccountCreationInvalid, got %v", err)
	}
	if _, err := env.engine.Signup(ctx, SignupRequest{Username: "x", Email: "x@example.com", Password: "abc"}); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}

func TestSignupWithoutAutoLogin(t *testing.T) {
	cfg := testConfig()
	cfg.Account.AutoLogin = false
	env := newTestEngine(t, cfg, nil)

	res, err := env.engine.Signup(context.Background(), SignupRequest{Email: "a@example.com", Username: "a", Password: "secret1"})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if res.AccessToken != "" || res.SessionID != "" {
		t.Fatalf("expected no session, got %+v", res)
	}
}

func TestSignupRateLimitedPerIP(t *testing.T) {
	cfg := testConfig()
	cfg.Account.EnableIPThrottle = true
	cfg.Account.AccountCreationMaxAttempts = 1
	env := newTestEngine(t, cfg, nil)
	ctx := WithClientIP(context.Background(), "198.51.100.4")

	if _, err := env.engine.Signup(ctx, SignupRequest{Email: "a@example.com", Username: "a", Password: "secret1"}); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}
	if _, err := env.engine.Signup(ctx, SignupRequest{Email: "b@example.com", Username: "b", Password: "secret1"}); !errors.Is(err, ErrAccountCreationRateLimited) {
		t.Fatalf("expected ErrAccountCreationRateLimited, got %v", err)
	}
}

func TestRefreshRotationAndReuse(t *testing.T) {
	env := newTestEngine(t, testConfig(), nil)
	env.addUser(t, "alice", false)
	ctx := context.Background()

	login, err := env.engine.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	access, refresh, err := env.engine.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if refresh == login.RefreshToken || access == "" {
		t.Fatal("expected rotated tokens")
	}
	if _, err := env.engine.Me(ctx, access); err != nil {
		t.Fatalf("me with refreshed token failed: %v", err)
	}

	if _, _, err := env.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected ErrRefreshReuse, got %v", err)
	}
	// reuse revokes the whole session, including the legitimate holder
	if _, _, err := env.engine.Refresh(ctx, refresh); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid after reuse, got %v", err)
	}
	if _, err := env.engine.Me(ctx, access); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after reuse, got %v", err)
	}

	if _, _, err := env.engine.Refresh(ctx, "garbage"); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricRefreshReuseDetected] != 1 {
		t.Fatalf("expected one reuse, got %d", snap.Counters[MetricRefreshReuseDetected])
	}
}

func TestConcurrentRefreshOnlyOneWins(t *testing.T) {
	env := newTestEngine(t, testConfig(), nil)
	env.addUser(t, "alice", false)

	login, err := env.engine.Login(context.Background(), "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, _, err := env.engine.Refresh(context.Background(), login.RefreshToken); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if success != 1 {
		t.Fatalf("expected exactly one successful refresh, got %d", success)
	}
}

func TestLogoutAll(t *testing.T) {
	env := newTestEngine(t, testConfig(), nil)
	u := env.addUser(t, "alice", false)
	ctx := context.Background()

	first, err := env.engine.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	second, err := env.engine.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if err := env.engine.LogoutAll(ctx, u.ID); err != nil {
		t.Fatalf("logout all failed: %v", err)
	}
	for _, tok := range []string{first.AccessToken, second.AccessToken} {
		if _, err := env.engine.Me(ctx, tok); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	}
}

func TestLogoutWithExpiredAccessUsesRefresh(t *testing.T) {
	env := newTestEngine(t, testConfig(), nil)
	env.addUser(t, "alice", false)
	ctx := context.Background()

	login, err := env.engine.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := env.engine.Logout(ctx, "", login.RefreshToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := env.engine.Me(ctx, login.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGenerateReferralAndListUsers(t *testing.T) {
	env := newTestEngine(t, testConfig(), nil)
	shopper := env.addUser(t, "chitra", false)
	admin := env.addUser(t, "boss", true)
	ctx := context.Background()

	ref, err := env.engine.GenerateReferral(ctx, shopper.ID)
	if err != nil {
		t.Fatalf("generate referral failed: %v", err)
	}
	if !strings.HasPrefix(ref.Code, "CHI") || !strings.HasPrefix(ref.WhatsAppURL, "https://wa.me/?text=") {
		t.Fatalf("unexpected referral %+v", ref)
	}

	if _, err := env.engine.ListUsers(ctx, shopper.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	users, err := env.engine.ListUsers(ctx, admin.ID)
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 2 || users[0].Username != "chitra" || !users[1].IsAdmin {
		t.Fatalf("unexpected users %+v", users)
	}

	if _, err := env.engine.Wallet(ctx, 9999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestMeRecordsLatency(t *testing.T) {
	env := newTestEngine(t, testConfig(), nil)
	env.addUser(t, "alice", false)

	login, err := env.engine.Login(context.Background(), "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := env.engine.Me(context.Background(), login.AccessToken); err != nil {
		t.Fatalf("me failed: %v", err)
	}

	var total uint64
	for _, v := range env.engine.MetricsSnapshot().Histograms[MetricMeLatency] {
		total += v
	}
	if total != 1 {
		t.Fatalf("expected one latency observation, got %d", total)
	}
}

func TestPingReportsRedisOutage(t *testing.T) {
	env := newTestEngine(t, testConfig(), nil)
	if err := env.engine.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	env.mr.Close()
	if err := env.engine.Ping(context.Background()); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestNilEngineIsSafe(t *testing.T) {
	var e *Engine
	e.Close()
	if e.AuditDropped() != 0 {
		t.Fatal("expected zero")
	}
	if _, err := e.Login(context.Background(), "a", "b"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.Me(context.Background(), "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	env := newTestEngine(t, testConfig(), nil)
	ctx := context.Background()

	created, err := env.engine.EnsureAdmin(ctx, "boss", "boss@example.com", testPassword)
	if err != nil || !created {
		t.Fatalf("EnsureAdmin = %v, %v", created, err)
	}
	created, err = env.engine.EnsureAdmin(ctx, "boss", "boss@example.com", "other-password-1")
	if err != nil || created {
		t.Fatalf("second EnsureAdmin = %v, %v", created, err)
	}

	res, err := env.engine.AdminLogin(ctx, "boss", testPassword)
	if err != nil {
		t.Fatalf("AdminLogin failed: %v", err)
	}
	if !res.Identity.IsAdmin || !strings.HasPrefix(res.Identity.ReferralCode, "BOS") {
		t.Fatalf("unexpected identity %+v", res.Identity)
	}

	if _, err := env.engine.EnsureAdmin(ctx, "", "x@example.com", testPassword); !errors.Is(err, ErrAccountCreationInvalid) {
		t.Fatalf("expected ErrAccountCreationInvalid, got %v", err)
	}
}
