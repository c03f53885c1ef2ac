package response

import "time"

type VerifyOTPResponse struct {
	Token     string    `json:"-"`
	Phone     string    `json:"phone"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ConfirmEmailResponse struct {
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SessionResponse struct {
	Phone     string    `json:"phone"`
	ExpiresAt time.Time `json:"expires_at"`
}
