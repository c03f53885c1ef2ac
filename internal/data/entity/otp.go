package entity

import (
	"time"
)

// OTP is one issued challenge for a phone. Only the latest record per phone is
// ever checked; older ones are superseded.
type OTP struct {
	ID        int64      `db:"id" json:"id"`
	Phone     string     `db:"phone" json:"phone"`
	CodeHash  string     `db:"otp" json:"code_hash"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`
}

// Expired reports whether the record is past its expiry at now. Records without
// an expiry never expire.
func (o *OTP) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
}
