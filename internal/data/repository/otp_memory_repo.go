package repository

import (
	"context"
	"sync"
	"time"

	"otp-auth/internal/data/entity"

	"go.uber.org/zap"
)

type memoryOTPRepository struct {
	mu      sync.Mutex
	seq     int64
	byPhone map[string][]entity.OTP // oldest first
	log     *zap.Logger
}

func NewMemoryOTPRepository(log *zap.Logger) OTPRepository {
	return &memoryOTPRepository{
		byPhone: make(map[string][]entity.OTP),
		log:     log.With(zap.String("repository", "otp_memory")),
	}
}

func (r *memoryOTPRepository) Create(_ context.Context, otp *entity.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	otp.ID = r.seq
	r.byPhone[otp.Phone] = append(r.byPhone[otp.Phone], *otp)
	return nil
}

// latest must be called with mu held.
func (r *memoryOTPRepository) latest(phone string) *entity.OTP {
	records := r.byPhone[phone]
	if len(records) == 0 {
		return nil
	}

	best := records[0]
	for _, rec := range records[1:] {
		if rec.CreatedAt.After(best.CreatedAt) ||
			(rec.CreatedAt.Equal(best.CreatedAt) && rec.ID > best.ID) {
			best = rec
		}
	}
	return &best
}

func (r *memoryOTPRepository) ConsumeLatest(_ context.Context, phone string, match OTPMatcher) (*entity.OTP, error) {
	r.mu.Lock()
	otp := r.latest(phone)
	r.mu.Unlock()

	// match may be slow (bcrypt), so it runs unlocked against a snapshot
	if otp == nil || !match(otp) {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// a concurrent consume or a newer code got there first
	if cur := r.latest(phone); cur == nil || cur.ID != otp.ID {
		return nil, nil
	}

	delete(r.byPhone, phone)
	return otp, nil
}

func (r *memoryOTPRepository) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var purged int64
	for phone, records := range r.byPhone {
		kept := records[:0]
		for _, rec := range records {
			if rec.Expired(now) {
				purged++
				continue
			}
			kept = append(kept, rec)
		}
		if len(kept) == 0 {
			delete(r.byPhone, phone)
			continue
		}
		r.byPhone[phone] = kept
	}

	return purged, nil
}
