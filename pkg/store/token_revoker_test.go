package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestMemoryTokenRevoker(t *testing.T) {
	r := NewMemoryTokenRevoker()
	if err := r.Revoke("jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := r.IsRevoked("jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected jti-1 revoked, got revoked=%v err=%v", revoked, err)
	}
	revoked, err = r.IsRevoked("jti-2")
	if err != nil || revoked {
		t.Fatalf("expected jti-2 not revoked, got revoked=%v err=%v", revoked, err)
	}
}

func TestMemoryTokenRevokerExpiry(t *testing.T) {
	r := NewMemoryTokenRevoker()
	if err := r.Revoke("jti-short", time.Millisecond); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	revoked, err := r.IsRevoked("jti-short")
	if err != nil || revoked {
		t.Fatalf("expected expiry to clear revocation, got revoked=%v err=%v", revoked, err)
	}
}

func TestRedisTokenRevoker(t *testing.T) {
	redis := miniredis.RunT(t)
	r := NewRedisTokenRevoker(redis.Addr(), "")
	if err := r.Revoke("jti-redis", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := r.IsRevoked("jti-redis")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got revoked=%v err=%v", revoked, err)
	}
	redis.FastForward(2 * time.Minute)
	revoked, err = r.IsRevoked("jti-redis")
	if err != nil || revoked {
		t.Fatalf("expected ttl expiry, got revoked=%v err=%v", revoked, err)
	}
}
