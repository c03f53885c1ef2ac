package repository

import (
	"context"
	"time"

	"otp-auth/internal/data/entity"
	"otp-auth/pkg/database"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OTPMatcher decides whether the latest record for a phone may be consumed.
type OTPMatcher func(otp *entity.OTP) bool

type OTPRepository interface {
	// Create stores otp and fills in its ID.
	Create(ctx context.Context, otp *entity.OTP) error
	// ConsumeLatest atomically checks the latest record for phone with match
	// and, when it matches, deletes every record for phone. It returns the
	// consumed record, or nil when there was nothing to consume.
	ConsumeLatest(ctx context.Context, phone string, match OTPMatcher) (*entity.OTP, error)
	// PurgeExpired removes records whose expiry is at or before now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type Repository struct {
	OTP OTPRepository
}

// NewRepository returns the postgres-backed repositories.
func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		OTP: NewOTPRepository(db, log),
	}
}

// NewRedisRepository returns the redis-backed repositories.
func NewRedisRepository(client redis.UniversalClient, log *zap.Logger) *Repository {
	return &Repository{
		OTP: NewRedisOTPRepository(client, log),
	}
}

// NewMemoryRepository returns process-local repositories, for tests and single-node development.
func NewMemoryRepository(log *zap.Logger) *Repository {
	return &Repository{
		OTP: NewMemoryOTPRepository(log),
	}
}
