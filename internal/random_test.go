package internal

import (
	"strings"
	"testing"
)

func TestRefreshTokenRoundTrip(t *testing.T) {
	sid, err := NewSessionID()
	if err != nil {
		t.Fatalf("NewSessionID: %v", err)
	}
	secret, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("NewRefreshSecret: %v", err)
	}

	token, err := EncodeRefreshToken(sid.String(), secret)
	if err != nil {
		t.Fatalf("EncodeRefreshToken: %v", err)
	}

	gotSID, gotSecret, err := DecodeRefreshToken(token)
	if err != nil {
		t.Fatalf("DecodeRefreshToken: %v", err)
	}
	if gotSID != sid.String() {
		t.Fatalf("session id mismatch: %q vs %q", gotSID, sid.String())
	}
	if gotSecret != secret {
		t.Fatal("secret mismatch")
	}
}

func TestDecodeRefreshTokenRejectsWrongSize(t *testing.T) {
	for _, in := range []string{"", "abc", "aGVsbG8", "!!!not-base64!!!"} {
		if _, _, err := DecodeRefreshToken(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestEncodeRefreshTokenRejectsBadSessionID(t *testing.T) {
	var secret [32]byte
	if _, err := EncodeRefreshToken("short", secret); err == nil {
		t.Fatal("expected error for malformed session id")
	}
}

func TestNewReferralCode(t *testing.T) {
	cases := []struct {
		name   string
		prefix string
	}{
		{name: "alice", prefix: "ALI"},
		{name: "  Bo", prefix: "BO"},
		{name: "J. R. R.", prefix: "JRR"},
		{name: "", prefix: ""},
	}

	for _, tc := range cases {
		code, err := NewReferralCode(tc.name)
		if err != nil {
			t.Fatalf("NewReferralCode(%q): %v", tc.name, err)
		}
		if !strings.HasPrefix(code, tc.prefix) {
			t.Fatalf("NewReferralCode(%q) = %q, want prefix %q", tc.name, code, tc.prefix)
		}
		if len(code) != len(tc.prefix)+referralSuffixSize {
			t.Fatalf("NewReferralCode(%q) = %q, unexpected length", tc.name, code)
		}
		for _, r := range code[len(tc.prefix):] {
			if !strings.ContainsRune(referralAlphabet, r) {
				t.Fatalf("unexpected rune %q in %q", r, code)
			}
		}
	}
}

// FuzzDecodeRefreshToken checks that arbitrary cookie values never panic and
// that anything accepted survives a re-encode.
func FuzzDecodeRefreshToken(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")

	f.Fuzz(func(t *testing.T, input string) {
		sessionID, secret, err := DecodeRefreshToken(input)
		if err != nil {
			return
		}

		reEncoded, err := EncodeRefreshToken(sessionID, secret)
		if err != nil {
			t.Fatalf("re-encode failed: %v", err)
		}
		sid2, secret2, err := DecodeRefreshToken(reEncoded)
		if err != nil {
			t.Fatalf("roundtrip decode failed: %v", err)
		}
		if sid2 != sessionID || secret2 != secret {
			t.Fatal("roundtrip mismatch")
		}
	})
}
