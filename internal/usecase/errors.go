package usecase

import (
	"errors"

	"otp-auth/pkg/utils"
)

var (
	// ErrValidation marks client input errors (400).
	ErrValidation = errors.New("validation failed")
	// ErrStorage marks OTP store read/write failures (500).
	ErrStorage = errors.New("storage error")
	// ErrInvalidOTP covers a missing, superseded, expired or wrong code (401).
	ErrInvalidOTP = errors.New("invalid or expired OTP")
	// ErrInvalidToken covers a bad signature, wrong purpose or expired token (401).
	ErrInvalidToken = errors.New("invalid or expired token")
)

// ValidationError carries per-field messages and unwraps to ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + utils.FormatValidationErrors(e.Fields)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
