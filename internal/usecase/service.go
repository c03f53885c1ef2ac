package usecase

import (
	"otp-auth/internal/data/repository"
	"otp-auth/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	OTP OTPService
}

func NewService(repo *repository.Repository, config *utils.Config, deps Collaborators, log *zap.Logger) *Service {
	return &Service{
		OTP: NewOTPService(repo, config, deps, log),
	}
}
