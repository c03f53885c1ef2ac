package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOTP_Expired(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	assert.False(t, (&OTP{}).Expired(now), "no expiry never expires")
	assert.True(t, (&OTP{ExpiresAt: &past}).Expired(now))
	assert.True(t, (&OTP{ExpiresAt: &now}).Expired(now), "expiry instant is exclusive")
	assert.False(t, (&OTP{ExpiresAt: &future}).Expired(now))
}
