package usecase

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"otp-auth/internal/data/entity"
	"otp-auth/internal/data/repository"
	"otp-auth/internal/dto/request"
	"otp-auth/internal/dto/response"
	"otp-auth/pkg/background"
	"otp-auth/pkg/mail"
	"otp-auth/pkg/metrics"
	"otp-auth/pkg/token"
	"otp-auth/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	TaskTelegram = "telegram"
	TaskEmail    = "email"
)

type OTPService interface {
	SendOTP(ctx context.Context, req *request.SendOTPRequest) error
	VerifyOTP(ctx context.Context, req *request.VerifyOTPRequest) (*response.VerifyOTPResponse, error)
	ConfirmEmail(ctx context.Context, tokenStr string) (*response.ConfirmEmailResponse, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

// ChatSender delivers a text message to the operator chat.
type ChatSender interface {
	SendMessage(ctx context.Context, text string) error
}

// TokenSigner mints and checks signed tokens.
type TokenSigner interface {
	Sign(payload token.Payload, purpose token.Purpose) (string, time.Time, error)
	Verify(tokenStr string, purpose token.Purpose) (token.Claims, error)
}

// Dispatcher runs notification sends off the request path.
type Dispatcher interface {
	Go(name string, task background.Task) bool
}

// Collaborators groups the outbound dependencies of the OTP service. Chat and
// Mail may be nil when the channel is not configured.
type Collaborators struct {
	Signer     TokenSigner
	Chat       ChatSender
	Mail       mail.Mail
	Dispatcher Dispatcher
	Metrics    *metrics.Metrics
	Codes      utils.CodeGenerator
	Clock      token.Clock
}

type otpService struct {
	repo   *repository.Repository
	config *utils.Config
	deps   Collaborators
	log    *zap.Logger
}

func NewOTPService(
	repo *repository.Repository,
	config *utils.Config,
	deps Collaborators,
	log *zap.Logger,
) OTPService {
	if deps.Codes == nil {
		deps.Codes = utils.NewCodeGenerator()
	}
	if deps.Clock == nil {
		deps.Clock = token.SystemClock()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	return &otpService{
		repo:   repo,
		config: config,
		deps:   deps,
		log:    log.With(zap.String("service", "otp")),
	}
}

func (s *otpService) SendOTP(ctx context.Context, req *request.SendOTPRequest) error {
	// 1. Normalise and validate
	in := request.SendOTPRequest{
		Phone: utils.NormalizePhone(req.Phone, s.config.App.PhoneRegion),
		Email: strings.TrimSpace(req.Email),
	}

	fields := utils.ValidateStruct(in)
	if s.config.OTP.RequireEmail && in.Email == "" {
		if fields == nil {
			fields = make(map[string]string)
		}
		fields["email"] = "This field is required"
	}
	if len(fields) > 0 {
		s.log.Warn("Send OTP validation failed", zap.Any("errors", fields))
		s.deps.Metrics.OTPIssued.WithLabelValues(metrics.ResultInvalid).Inc()
		return &ValidationError{Fields: fields}
	}

	// 2. Generate and hash the code
	code, err := s.deps.Codes.Generate()
	if err != nil {
		s.log.Error("Failed to generate OTP", zap.Error(err))
		s.deps.Metrics.OTPIssued.WithLabelValues(metrics.ResultError).Inc()
		return fmt.Errorf("generate OTP: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.config.OTP.HashCost)
	if err != nil {
		s.log.Error("Failed to hash OTP", zap.Error(err))
		s.deps.Metrics.OTPIssued.WithLabelValues(metrics.ResultError).Inc()
		return fmt.Errorf("hash OTP: %w", err)
	}

	// 3. Persist; nothing is sent unless the record is stored
	now := s.deps.Clock.Now()
	otp := &entity.OTP{
		Phone:     in.Phone,
		CodeHash:  string(hash),
		CreatedAt: now,
	}
	if s.config.OTP.Expiry > 0 {
		expiresAt := now.Add(s.config.OTP.Expiry)
		otp.ExpiresAt = &expiresAt
	}

	if err := s.repo.OTP.Create(ctx, otp); err != nil {
		s.log.Error("Failed to save OTP", zap.Error(err), zap.String("phone", in.Phone))
		s.deps.Metrics.OTPIssued.WithLabelValues(metrics.ResultError).Inc()
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.deps.Metrics.OTPIssued.WithLabelValues(metrics.ResultSuccess).Inc()
	s.log.Info("OTP issued", zap.String("phone", in.Phone), zap.Int64("otp_id", otp.ID))
	if s.config.App.Debug {
		s.log.Debug("OTP code", zap.String("phone", in.Phone), zap.String("otp_code", code))
	}

	// 4. Best-effort delivery
	s.sendToChat(in.Phone, code)
	if in.Email != "" {
		s.sendConfirmation(in.Phone, in.Email)
	}

	return nil
}

func (s *otpService) VerifyOTP(ctx context.Context, req *request.VerifyOTPRequest) (*response.VerifyOTPResponse, error) {
	// 1. Validate; the code itself is compared as given
	in := request.VerifyOTPRequest{
		Phone: utils.NormalizePhone(req.Phone, s.config.App.PhoneRegion),
		OTP:   req.OTP,
	}
	if fields := utils.ValidateStruct(in); len(fields) > 0 {
		s.log.Warn("Verify OTP validation failed", zap.Any("errors", fields))
		s.deps.Metrics.OTPVerified.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, &ValidationError{Fields: fields}
	}

	// 2. Match and consume in one step so a code is single-use
	now := s.deps.Clock.Now()
	otp, err := s.repo.OTP.ConsumeLatest(ctx, in.Phone, func(o *entity.OTP) bool {
		if o.Expired(now) {
			return false
		}
		return bcrypt.CompareHashAndPassword([]byte(o.CodeHash), []byte(in.OTP)) == nil
	})
	if err != nil {
		s.log.Error("Failed to consume OTP", zap.Error(err), zap.String("phone", in.Phone))
		s.deps.Metrics.OTPVerified.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if otp == nil {
		s.log.Warn("OTP rejected", zap.String("phone", in.Phone))
		s.deps.Metrics.OTPVerified.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, ErrInvalidOTP
	}

	// 3. Mint the session token
	tok, expiresAt, err := s.deps.Signer.Sign(token.Payload{Phone: in.Phone}, token.PurposeSession)
	if err != nil {
		s.log.Error("Failed to sign session token", zap.Error(err), zap.String("phone", in.Phone))
		s.deps.Metrics.OTPVerified.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	s.deps.Metrics.OTPVerified.WithLabelValues(metrics.ResultSuccess).Inc()
	s.log.Info("OTP verified", zap.String("phone", in.Phone), zap.Int64("otp_id", otp.ID))

	return &response.VerifyOTPResponse{
		Token:     tok,
		Phone:     in.Phone,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *otpService) ConfirmEmail(ctx context.Context, tokenStr string) (*response.ConfirmEmailResponse, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, &ValidationError{Fields: map[string]string{"token": "This field is required"}}
	}

	claims, err := s.deps.Signer.Verify(tokenStr, token.PurposeEmailConfirmation)
	if err != nil {
		s.log.Warn("Confirmation token rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Email == "" {
		s.log.Warn("Confirmation token without email", zap.String("phone", claims.Phone))
		return nil, ErrInvalidToken
	}

	s.log.Info("Email confirmed", zap.String("phone", claims.Phone), zap.String("email", claims.Email))

	resp := &response.ConfirmEmailResponse{
		Phone: claims.Phone,
		Email: claims.Email,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	return resp, nil
}

func (s *otpService) PurgeExpired(ctx context.Context) (int64, error) {
	if s.config.OTP.Expiry <= 0 {
		return 0, nil
	}

	purged, err := s.repo.OTP.PurgeExpired(ctx, s.deps.Clock.Now())
	if err != nil {
		s.log.Error("Failed to purge expired OTPs", zap.Error(err))
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if purged > 0 {
		s.deps.Metrics.OTPPurged.Add(float64(purged))
		s.log.Info("Expired OTPs purged", zap.Int64("count", purged))
	}
	return purged, nil
}

// ==================== HELPER METHODS ====================

func (s *otpService) sendToChat(phone, code string) {
	if s.deps.Chat == nil {
		s.log.Warn("Telegram not configured, OTP not delivered", zap.String("phone", phone))
		return
	}

	text := fmt.Sprintf("New OTP code: %s\nPhone: %s", code, phone)
	s.deps.Dispatcher.Go(TaskTelegram, func(ctx context.Context) error {
		return s.deps.Chat.SendMessage(ctx, text)
	})
}

func (s *otpService) sendConfirmation(phone, email string) {
	if s.deps.Mail == nil {
		s.log.Warn("Mail not configured, confirmation not sent", zap.String("email", email))
		return
	}

	tok, _, err := s.deps.Signer.Sign(token.Payload{Phone: phone, Email: email}, token.PurposeEmailConfirmation)
	if err != nil {
		s.log.Error("Failed to sign confirmation token", zap.Error(err), zap.String("email", email))
		return
	}

	msg, err := confirmationMessage(email, s.confirmationLink(tok))
	if err != nil {
		s.log.Error("Failed to render confirmation email", zap.Error(err), zap.String("email", email))
		return
	}

	s.deps.Dispatcher.Go(TaskEmail, func(ctx context.Context) error {
		return s.deps.Mail.Send(ctx, msg)
	})
}

func (s *otpService) confirmationLink(tok string) string {
	return s.config.App.BaseURL + "/api/confirm-email?token=" + url.QueryEscape(tok)
}

var confirmationHTML = template.Must(template.New("confirmation").Parse(
	`<p>Please confirm your email address by opening the link below.</p>` +
		`<p><a href="{{.}}">Confirm email</a></p>`,
))

func confirmationMessage(email, link string) (mail.Message, error) {
	var html bytes.Buffer
	if err := confirmationHTML.Execute(&html, link); err != nil {
		return mail.Message{}, err
	}

	return mail.Message{
		To:       []string{email},
		Subject:  "Confirm your email",
		TextBody: "Please confirm your email address by opening this link:\n" + link,
		HTMLBody: html.String(),
	}, nil
}
