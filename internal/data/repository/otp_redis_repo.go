package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"otp-auth/internal/data/entity"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisOTPKeyPrefix = "otp:phone:"
	redisOTPSeqKey    = "otp:seq"
)

// redisOTPRepository keeps one list per phone, newest record at the head. The
// key expires together with its newest record, so there is nothing to purge.
type redisOTPRepository struct {
	client redis.UniversalClient
	log    *zap.Logger
}

func NewRedisOTPRepository(client redis.UniversalClient, log *zap.Logger) OTPRepository {
	return &redisOTPRepository{
		client: client,
		log:    log.With(zap.String("repository", "otp_redis")),
	}
}

func redisOTPKey(phone string) string {
	return redisOTPKeyPrefix + phone
}

func (r *redisOTPRepository) Create(ctx context.Context, otp *entity.OTP) error {
	id, err := r.client.Incr(ctx, redisOTPSeqKey).Result()
	if err != nil {
		r.log.Error("Failed to allocate OTP id", zap.Error(err), zap.String("phone", otp.Phone))
		return fmt.Errorf("create OTP for %s: %w", otp.Phone, err)
	}

	record := *otp
	record.ID = id
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode OTP for %s: %w", otp.Phone, err)
	}

	key := redisOTPKey(otp.Phone)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, raw)
		if otp.ExpiresAt != nil {
			pipe.ExpireAt(ctx, key, *otp.ExpiresAt)
		} else {
			pipe.Persist(ctx, key)
		}
		return nil
	})
	if err != nil {
		r.log.Error("Failed to create OTP", zap.Error(err), zap.String("phone", otp.Phone))
		return fmt.Errorf("create OTP for %s: %w", otp.Phone, err)
	}

	otp.ID = id
	return nil
}

func decodeRedisOTP(raw string) (*entity.OTP, error) {
	var otp entity.OTP
	if err := json.Unmarshal([]byte(raw), &otp); err != nil {
		return nil, err
	}
	return &otp, nil
}

type listIndexer interface {
	LIndex(ctx context.Context, key string, index int64) *redis.StringCmd
}

func latestFrom(ctx context.Context, cmd listIndexer, phone string) (*entity.OTP, error) {
	raw, err := cmd.LIndex(ctx, redisOTPKey(phone), 0).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeRedisOTP(raw)
}

func (r *redisOTPRepository) ConsumeLatest(ctx context.Context, phone string, match OTPMatcher) (*entity.OTP, error) {
	key := redisOTPKey(phone)
	var consumed *entity.OTP

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		otp, err := latestFrom(ctx, tx, phone)
		if err != nil || otp == nil || !match(otp) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err == nil {
			consumed = otp
		}
		return err
	}, key)

	// someone else touched the key between WATCH and EXEC: either a concurrent
	// consume won or a newer code superseded this one
	if errors.Is(err, redis.TxFailedErr) {
		r.log.Warn("OTP changed during consume", zap.String("phone", phone))
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to consume OTP", zap.Error(err), zap.String("phone", phone))
		return nil, fmt.Errorf("consume OTP for %s: %w", phone, err)
	}

	return consumed, nil
}

func (r *redisOTPRepository) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
