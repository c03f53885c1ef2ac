package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"otp-auth/internal/data/entity"
	"otp-auth/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type otpRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewOTPRepository(db database.PgxIface, log *zap.Logger) OTPRepository {
	return &otpRepository{
		db:  db,
		log: log.With(zap.String("repository", "otp")),
	}
}

func (r *otpRepository) Create(ctx context.Context, otp *entity.OTP) error {
	query := `
		INSERT INTO otps (phone, otp, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		otp.Phone,
		otp.CodeHash,
		otp.CreatedAt,
		otp.ExpiresAt,
	).Scan(&otp.ID)

	if err != nil {
		r.log.Error("Failed to create OTP",
			zap.Error(err),
			zap.String("phone", otp.Phone),
		)
		return fmt.Errorf("create OTP for %s: %w", otp.Phone, err)
	}

	return nil
}

const selectLatestOTP = `
	SELECT id, phone, otp, created_at, expires_at
	FROM otps
	WHERE phone = $1
	ORDER BY created_at DESC, id DESC
	LIMIT 1
`

func scanOTP(row pgx.Row) (*entity.OTP, error) {
	var otp entity.OTP
	err := row.Scan(
		&otp.ID,
		&otp.Phone,
		&otp.CodeHash,
		&otp.CreatedAt,
		&otp.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &otp, nil
}

func (r *otpRepository) ConsumeLatest(ctx context.Context, phone string, match OTPMatcher) (*entity.OTP, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin consume transaction", zap.Error(err), zap.String("phone", phone))
		return nil, fmt.Errorf("begin consume OTP for %s: %w", phone, err)
	}
	defer tx.Rollback(ctx)

	// the row lock makes a concurrent consumer wait and then see no row
	otp, err := scanOTP(tx.QueryRow(ctx, selectLatestOTP+" FOR UPDATE", phone))
	if err != nil {
		r.log.Error("Failed to lock latest OTP", zap.Error(err), zap.String("phone", phone))
		return nil, fmt.Errorf("lock latest OTP for %s: %w", phone, err)
	}
	if otp == nil || !match(otp) {
		return nil, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM otps WHERE phone = $1`, phone); err != nil {
		r.log.Error("Failed to delete consumed OTPs", zap.Error(err), zap.String("phone", phone))
		return nil, fmt.Errorf("delete OTPs for %s: %w", phone, err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("Failed to commit consume transaction", zap.Error(err), zap.String("phone", phone))
		return nil, fmt.Errorf("commit consume OTP for %s: %w", phone, err)
	}

	return otp, nil
}

func (r *otpRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM otps WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		r.log.Error("Failed to purge expired OTPs", zap.Error(err))
		return 0, fmt.Errorf("purge expired OTPs: %w", err)
	}
	return result.RowsAffected(), nil
}
