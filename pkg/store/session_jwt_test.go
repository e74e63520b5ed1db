package store

import (
	"testing"
	"time"
)

func newTestSessionStore(t *testing.T, revoker TokenRevoker, opts JWTOptions) *JWTSessionStore {
	t.Helper()
	s, err := NewJWTSessionStore("test-secret", 7*24*time.Hour, revoker, opts)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	return s
}

func TestJWTSessionStoreRoundTrip(t *testing.T) {
	s := newTestSessionStore(t, nil, JWTOptions{})
	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	userID, ok, err := s.GetUserIDByToken(token)
	if err != nil || !ok {
		t.Fatalf("get user id: ok=%v err=%v", ok, err)
	}
	if userID != "user-1" {
		t.Fatalf("unexpected user id: %q", userID)
	}
}

func TestJWTSessionStoreRejectsWrongSecret(t *testing.T) {
	signer := newTestSessionStore(t, nil, JWTOptions{})
	other, err := NewJWTSessionStore("different-secret", time.Hour, nil, JWTOptions{})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	token, err := signer.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, err := other.GetUserIDByToken(token); err == nil || ok {
		t.Fatalf("expected signature mismatch to fail, ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionStoreEnforcesAudience(t *testing.T) {
	signing := newTestSessionStore(t, nil, JWTOptions{Issuer: "issuer-a", Audience: "aud-a"})
	verify := newTestSessionStore(t, nil, JWTOptions{Issuer: "issuer-a", Audience: "aud-b"})
	token, err := signing.NewSession("user-claim")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, _, err := verify.GetUserIDByToken(token); err == nil {
		t.Fatalf("expected audience mismatch to fail")
	}
}

func TestJWTSessionStoreRevokesByJTI(t *testing.T) {
	revoker := NewMemoryTokenRevoker()
	s := newTestSessionStore(t, revoker, JWTOptions{})
	token, err := s.NewSession("user-revoke")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(token); err == nil || ok {
		t.Fatalf("expected revoked token to fail, ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionStoreRejectsExpiredToken(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret", time.Millisecond, nil, JWTOptions{Leeway: time.Millisecond})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	token, err := s.NewSession("user-expired")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, err := s.GetUserIDByToken(token); err == nil || ok {
		t.Fatalf("expected expired token to fail, ok=%v err=%v", ok, err)
	}
}
