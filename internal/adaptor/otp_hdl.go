package adaptor

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"otp-auth/internal/dto/request"
	"otp-auth/internal/dto/response"
	"otp-auth/internal/usecase"
	"otp-auth/pkg/utils"

	"go.uber.org/zap"
)

type OTPHandler struct {
	service usecase.OTPService
	log     *zap.Logger
}

func NewOTPHandler(service usecase.OTPService, log *zap.Logger) *OTPHandler {
	return &OTPHandler{
		service: service,
		log:     log,
	}
}

// SendOTP handles POST /api/send-otp
func (h *OTPHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req request.SendOTPRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := h.service.SendOTP(r.Context(), &req); err != nil {
		h.handleServiceError(w, err, "send OTP")
		return
	}

	utils.ResponseSuccess(w, "OTP sent", nil)
}

// VerifyOTP handles POST /api/verify-otp
func (h *OTPHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req request.VerifyOTPRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	resp, err := h.service.VerifyOTP(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, err, "verify OTP")
		return
	}

	utils.ResponseToken(w, "OTP verified", resp.Token, resp)
}

var confirmPage = template.Must(template.New("confirm").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{if .Email}}<p>The email address <strong>{{.Email}}</strong> is now confirmed for phone <strong>{{.Phone}}</strong>.</p>
{{else}}<p>{{.Message}}</p>
{{end}}</body>
</html>
`))

type confirmView struct {
	Title   string
	Message string
	Phone   string
	Email   string
}

// ConfirmEmail handles GET /api/confirm-email
func (h *OTPHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ConfirmEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		var vErr *usecase.ValidationError
		switch {
		case errors.As(err, &vErr):
			h.log.Warn("confirm email validation failed", zap.Error(err))
			utils.ResponseHTML(w, http.StatusBadRequest, confirmPage, confirmView{
				Title:   "Confirmation failed",
				Message: "The confirmation link is missing its token.",
			})
		case errors.Is(err, usecase.ErrInvalidToken):
			h.log.Warn("confirm email failed - invalid token", zap.Error(err))
			utils.ResponseHTML(w, http.StatusUnauthorized, confirmPage, confirmView{
				Title:   "Confirmation failed",
				Message: "The confirmation link is invalid or has expired.",
			})
		default:
			h.log.Error("Failed to confirm email", zap.Error(err))
			utils.ResponseHTML(w, http.StatusInternalServerError, confirmPage, confirmView{
				Title:   "Confirmation failed",
				Message: "Something went wrong. Please try again later.",
			})
		}
		return
	}

	utils.ResponseHTML(w, http.StatusOK, confirmPage, confirmView{
		Title: "Email confirmed",
		Phone: resp.Phone,
		Email: resp.Email,
	})
}

// Session handles GET /api/session
func (h *OTPHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := utils.GetSessionFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Unauthorized")
		return
	}

	resp := response.SessionResponse{Phone: claims.Phone}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}

	utils.ResponseSuccess(w, "Session active", resp)
}

// handleServiceError maps service errors to HTTP responses
func (h *OTPHandler) handleServiceError(w http.ResponseWriter, err error, operation string) {
	var vErr *usecase.ValidationError

	switch {
	case errors.As(err, &vErr):
		h.log.Warn(operation+" validation failed", zap.Error(err))
		utils.ResponseBadRequest(w, "Validation failed", vErr.Fields)

	case errors.Is(err, usecase.ErrInvalidOTP):
		h.log.Warn(operation+" failed - invalid OTP", zap.Error(err))
		utils.ResponseUnauthorized(w, "Invalid or expired OTP")

	case errors.Is(err, usecase.ErrInvalidToken):
		h.log.Warn(operation+" failed - invalid token", zap.Error(err))
		utils.ResponseUnauthorized(w, "Invalid or expired token")

	default:
		h.log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
