package domain

import (
	"testing"
	"time"
)

func TestIsPremium(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	cases := []struct {
		name string
		role UserRole
		end  *time.Time
		want bool
	}{
		{"premium with active window", RolePremium, &future, true},
		{"premium with expired window", RolePremium, &past, false},
		{"premium without window", RolePremium, nil, false},
		{"free with active window", RoleFree, &future, false},
		{"admin with active window", RoleAdmin, &future, false},
		{"free without window", RoleFree, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsPremium(tc.role, tc.end, now); got != tc.want {
				t.Fatalf("IsPremium(%s, %v) = %v, want %v", tc.role, tc.end, got, tc.want)
			}
		})
	}
}

func TestIsPremiumWindowBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// The window is [start, end): an end exactly at "now" is already expired.
	if IsPremium(RolePremium, &now, now) {
		t.Fatalf("subscription ending exactly now should not count as premium")
	}
}
