package wire

import (
	"otp-auth/internal/adaptor"
	"otp-auth/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireOTP(
	r chi.Router,
	otpHandler *adaptor.OTPHandler,
	verifier middleware.SessionVerifier,
	log *zap.Logger,
) {
	// ==================== PUBLIC ROUTES ====================
	r.Post("/api/send-otp", otpHandler.SendOTP)
	r.Post("/api/verify-otp", otpHandler.VerifyOTP)
	r.Get("/api/confirm-email", otpHandler.ConfirmEmail)

	// ==================== PROTECTED ROUTES ====================
	r.With(middleware.AuthSession(verifier, log)).Get("/api/session", otpHandler.Session)
}
