package model

import (
	"testing"
	"time"
)

func TestAuthTokenExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := AuthToken{ExpiresAt: now}
	if !tok.Expired(now) {
		t.Error("token expiring exactly now should be expired")
	}
	tok.ExpiresAt = now.Add(time.Second)
	if tok.Expired(now) {
		t.Error("token expiring in the future should be live")
	}
}
