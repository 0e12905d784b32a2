package shopauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/shopauth/userstore"
)

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func auditConfig(buffer int) Config {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = buffer
	cfg.Audit.DropIfFull = true
	return cfg
}

func nextEvent(t *testing.T, events <-chan AuditEvent) AuditEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
		return AuditEvent{}
	}
}

func TestAuditLoginEvents(t *testing.T) {
	sink := NewChannelSink(16)
	env := newTestEngine(t, auditConfig(16), sink)
	env.addUser(t, "alice", false)
	ctx := WithUserAgent(WithClientIP(context.Background(), "192.0.2.10"), "shopauth-test")

	if _, err := env.engine.Login(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	failure := nextEvent(t, sink.Events())
	if failure.EventType != auditEventLoginFailure || failure.Success {
		t.Fatalf("unexpected event %+v", failure)
	}
	if failure.IP != "192.0.2.10" || failure.Metadata["user_agent"] != "shopauth-test" {
		t.Fatalf("request context missing from event %+v", failure)
	}
	if failure.Metadata["reason"] != "bad_password" {
		t.Fatalf("unexpected reason %q", failure.Metadata["reason"])
	}

	res, err := env.engine.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	success := nextEvent(t, sink.Events())
	if success.EventType != auditEventLoginSuccess || success.SessionID != res.SessionID || success.ID == "" {
		t.Fatalf("unexpected event %+v", success)
	}
}

func TestAuditRefreshReuse(t *testing.T) {
	sink := NewChannelSink(16)
	env := newTestEngine(t, auditConfig(16), sink)
	env.addUser(t, "alice", false)
	ctx := context.Background()

	login, err := env.engine.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	_ = nextEvent(t, sink.Events())

	if _, _, err := env.engine.Refresh(ctx, login.RefreshToken); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if ev := nextEvent(t, sink.Events()); ev.EventType != auditEventRefreshSuccess {
		t.Fatalf("expected refresh_success, got %s", ev.EventType)
	}

	if _, _, err := env.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected ErrRefreshReuse, got %v", err)
	}
	ev := nextEvent(t, sink.Events())
	if ev.EventType != auditEventRefreshReuseDetected || ev.Error != string(auditErrRefreshReuse) {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestAuditSignupReferral(t *testing.T) {
	sink := NewChannelSink(32)
	env := newTestEngine(t, auditConfig(32), sink)
	ctx := context.Background()

	owner := env.addUser(t, "dev", false)
	if err := env.users.CreateReferral(ctx, owner.ID, "DEV1234"); err != nil {
		t.Fatalf("create referral: %v", err)
	}

	if _, err := env.engine.Signup(ctx, SignupRequest{
		Email: "new@example.com", Username: "newbie", Password: "secret1", ReferralCode: "DEV1234",
	}); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		seen[nextEvent(t, sink.Events()).EventType] = true
	}
	for _, want := range []string{auditEventReferralApplied, auditEventSignupSuccess, auditEventLoginSuccess} {
		if !seen[want] {
			t.Fatalf("missing %s in %v", want, seen)
		}
	}
}

func TestAuditDropIfFullCountsDrops(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	env := newTestEngine(t, auditConfig(1), sink)
	env.addUser(t, "alice", false)

	// first event blocks in the sink, second fills the buffer, rest drop
	for i := 0; i < 5; i++ {
		_, _ = env.engine.Login(context.Background(), "alice", "wrong-password")
	}
	close(sink.gate)

	if env.engine.AuditDropped() == 0 {
		t.Fatal("expected dropped audit events")
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	cases := map[error]AuditErrorCode{
		ErrInvalidCredentials:  auditErrInvalidCredentials,
		ErrLoginRateLimited:    auditErrRateLimited,
		ErrRefreshReuse:        auditErrRefreshReuse,
		ErrRefreshInvalid:      auditErrInvalidToken,
		userstore.ErrDuplicate: auditErrDuplicate,
		userstore.ErrNotFound:  auditErrUserNotFound,
		errors.New("boom"):     auditErrInternal,
	}
	for err, want := range cases {
		if got := auditErrorCode(err); got != want {
			t.Fatalf("%v: expected %s, got %s", err, want, got)
		}
	}
	if auditErrorCode(nil) != "" {
		t.Fatal("nil error must have no code")
	}
}
