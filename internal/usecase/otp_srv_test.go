package usecase

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"otp-auth/internal/data/entity"
	"otp-auth/internal/data/repository"
	"otp-auth/internal/dto/request"
	"otp-auth/pkg/background"
	"otp-auth/pkg/mail"
	"otp-auth/pkg/metrics"
	"otp-auth/pkg/token"
	"otp-auth/pkg/utils"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sequenceCodes struct {
	mu    sync.Mutex
	codes []string
}

func (g *sequenceCodes) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.codes) == 0 {
		return "", errors.New("no more codes")
	}
	code := g.codes[0]
	g.codes = g.codes[1:]
	return code, nil
}

type fakeChat struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeChat) SendMessage(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return f.err
}

func (f *fakeChat) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

type fakeMail struct {
	mu   sync.Mutex
	msgs []mail.Message
	err  error
}

func (f *fakeMail) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakeMail) Close() error { return nil }

func (f *fakeMail) sent() []mail.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mail.Message(nil), f.msgs...)
}

type failingRepo struct {
	repository.OTPRepository
	err error
}

func (r *failingRepo) Create(context.Context, *entity.OTP) error { return r.err }

func (r *failingRepo) ConsumeLatest(context.Context, string, repository.OTPMatcher) (*entity.OTP, error) {
	return nil, r.err
}

type harness struct {
	svc        OTPService
	repo       *repository.Repository
	config     *utils.Config
	clock      *fakeClock
	codes      *sequenceCodes
	chat       *fakeChat
	mail       *fakeMail
	signer     *token.Signer
	dispatcher *background.Dispatcher
	metrics    *metrics.Metrics
}

func testConfig() *utils.Config {
	return &utils.Config{
		App: utils.AppConfig{
			Name:    "otp-auth",
			BaseURL: "http://localhost:3000",
		},
		JWT: utils.JWTConfig{
			Secret: "test-secret",
			Issuer: "otp-auth",
			TTL:    24 * time.Hour,
		},
		OTP: utils.OTPConfig{
			Expiry:   5 * time.Minute,
			HashCost: bcrypt.MinCost,
		},
	}
}

func newHarness(t *testing.T, mutate func(cfg *utils.Config), codes ...string) *harness {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	log := zap.NewNop()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}

	signer, err := token.NewSigner(token.Config{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.JWT.TTL,
		Clock:  clock,
	})
	require.NoError(t, err)

	h := &harness{
		repo:       repository.NewMemoryRepository(log),
		config:     cfg,
		clock:      clock,
		codes:      &sequenceCodes{codes: codes},
		chat:       &fakeChat{},
		mail:       &fakeMail{},
		signer:     signer,
		dispatcher: background.NewDispatcher(log, 10, time.Second),
		metrics:    metrics.New(),
	}
	h.svc = h.build()

	return h
}

func (h *harness) build() OTPService {
	return NewOTPService(h.repo, h.config, Collaborators{
		Signer:     h.signer,
		Chat:       h.chat,
		Mail:       h.mail,
		Dispatcher: h.dispatcher,
		Metrics:    h.metrics,
		Codes:      h.codes,
		Clock:      h.clock,
	}, zap.NewNop())
}

func (h *harness) send(t *testing.T, phone, email string) error {
	t.Helper()
	err := h.svc.SendOTP(context.Background(), &request.SendOTPRequest{Phone: phone, Email: email})
	h.dispatcher.Wait()
	return err
}

func (h *harness) verify(phone, code string) (string, error) {
	resp, err := h.svc.VerifyOTP(context.Background(), &request.VerifyOTPRequest{Phone: phone, OTP: code})
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

func TestVerifyOTP_SucceedsExactlyOnce(t *testing.T) {
	h := newHarness(t, nil, "4821")

	require.NoError(t, h.send(t, "998901234567", ""))

	tok, err := h.verify("998901234567", "4821")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	claims, err := h.signer.Verify(tok, token.PurposeSession)
	require.NoError(t, err)
	assert.Contains(t, claims.Phone, "998901234567")
	assert.Empty(t, claims.Email)

	_, err = h.verify("998901234567", "4821")
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestVerifyOTP_LatestCodeSupersedesOlder(t *testing.T) {
	h := newHarness(t, nil, "1111", "2222")

	require.NoError(t, h.send(t, "998901234567", ""))
	h.clock.Advance(time.Second)
	require.NoError(t, h.send(t, "998901234567", ""))

	_, err := h.verify("998901234567", "1111")
	assert.ErrorIs(t, err, ErrInvalidOTP)

	tok, err := h.verify("998901234567", "2222")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
}

func TestVerifyOTP_WrongCodeKeepsChallenge(t *testing.T) {
	h := newHarness(t, nil, "4821")
	require.NoError(t, h.send(t, "998901234567", ""))

	_, err := h.verify("998901234567", "0000")
	assert.ErrorIs(t, err, ErrInvalidOTP)

	_, err = h.verify("998901234567", "4821")
	assert.NoError(t, err)
}

func TestVerifyOTP_NoPriorIssue(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.verify("998901234567", "1234")
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestVerifyOTP_CodeIsNotNormalised(t *testing.T) {
	h := newHarness(t, nil, "4821")
	require.NoError(t, h.send(t, "998901234567", ""))

	_, err := h.verify("998901234567", " 4821")
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestVerifyOTP_Validation(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name  string
		phone string
		code  string
		field string
	}{
		{"missing phone", "", "1234", "phone"},
		{"blank phone", "   ", "1234", "phone"},
		{"missing otp", "998901234567", "", "otp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.verify(tt.phone, tt.code)
			require.ErrorIs(t, err, ErrValidation)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.Fields, tt.field)
		})
	}
}

func TestVerifyOTP_ExpiredCode(t *testing.T) {
	h := newHarness(t, nil, "4821")
	require.NoError(t, h.send(t, "998901234567", ""))

	h.clock.Advance(5 * time.Minute)

	_, err := h.verify("998901234567", "4821")
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestVerifyOTP_NoExpiryWhenDisabled(t *testing.T) {
	h := newHarness(t, func(cfg *utils.Config) { cfg.OTP.Expiry = 0 }, "4821")
	require.NoError(t, h.send(t, "998901234567", ""))

	h.clock.Advance(30 * 24 * time.Hour)

	_, err := h.verify("998901234567", "4821")
	assert.NoError(t, err)
}

func TestVerifyOTP_StorageError(t *testing.T) {
	h := newHarness(t, nil)
	h.repo.OTP = &failingRepo{OTPRepository: h.repo.OTP, err: errors.New("disk full")}
	h.svc = h.build()

	_, err := h.verify("998901234567", "4821")
	assert.ErrorIs(t, err, ErrStorage)
	assert.NotErrorIs(t, err, ErrInvalidOTP)
}

func TestVerifyOTP_ConcurrentSingleUse(t *testing.T) {
	h := newHarness(t, nil, "4821")
	require.NoError(t, h.send(t, "998901234567", ""))

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.verify("998901234567", "4821")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, invalid int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInvalidOTP):
			invalid++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 9, invalid)
}

func TestSendOTP_StoresHashAndNotifiesChat(t *testing.T) {
	h := newHarness(t, nil, "4821")

	require.NoError(t, h.send(t, "998901234567", ""))

	var latest *entity.OTP
	_, err := h.repo.OTP.ConsumeLatest(context.Background(), utils.NormalizePhone("998901234567", ""), func(o *entity.OTP) bool {
		latest = o
		return false
	})
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.NotEqual(t, "4821", latest.CodeHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(latest.CodeHash), []byte("4821")))
	require.NotNil(t, latest.ExpiresAt)
	assert.Equal(t, h.clock.Now().Add(5*time.Minute), *latest.ExpiresAt)

	sent := h.chat.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "4821")
	assert.Empty(t, h.mail.sent(), "no email without an address")

	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.OTPIssued.WithLabelValues(metrics.ResultSuccess)))
}

func TestSendOTP_Validation(t *testing.T) {
	tests := []struct {
		name         string
		requireEmail bool
		phone        string
		email        string
		field        string
	}{
		{"missing phone", false, "", "", "phone"},
		{"missing phone with email", false, "", "a@example.com", "phone"},
		{"invalid email", false, "998901234567", "not-an-email", "email"},
		{"email variant missing email", true, "998901234567", "", "email"},
		{"email variant missing phone", true, "", "a@example.com", "phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(cfg *utils.Config) { cfg.OTP.RequireEmail = tt.requireEmail }, "4821")

			err := h.send(t, tt.phone, tt.email)
			require.ErrorIs(t, err, ErrValidation)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.Fields, tt.field)
			assert.Empty(t, h.chat.sent())
		})
	}
}

func TestSendOTP_StorageErrorStopsDelivery(t *testing.T) {
	h := newHarness(t, nil, "4821")
	h.repo.OTP = &failingRepo{OTPRepository: h.repo.OTP, err: errors.New("db down")}
	h.svc = h.build()

	err := h.send(t, "998901234567", "a@example.com")
	assert.ErrorIs(t, err, ErrStorage)
	assert.Empty(t, h.chat.sent())
	assert.Empty(t, h.mail.sent())
}

func TestSendOTP_DeliveryFailureIsSwallowed(t *testing.T) {
	h := newHarness(t, nil, "4821")
	h.chat.err = errors.New("telegram down")
	h.mail.err = errors.New("smtp down")

	require.NoError(t, h.send(t, "998901234567", "a@example.com"))
	assert.Len(t, h.chat.sent(), 1)
	assert.Len(t, h.mail.sent(), 1)

	_, err := h.verify("998901234567", "4821")
	assert.NoError(t, err)
}

func TestSendOTP_UnconfiguredChannels(t *testing.T) {
	h := newHarness(t, nil, "4821")
	h.chat, h.mail = nil, nil
	svc := NewOTPService(h.repo, h.config, Collaborators{
		Signer:     h.signer,
		Dispatcher: h.dispatcher,
		Codes:      h.codes,
		Clock:      h.clock,
	}, zap.NewNop())

	err := svc.SendOTP(context.Background(), &request.SendOTPRequest{Phone: "998901234567", Email: "a@example.com"})
	require.NoError(t, err)
}

func TestSendOTP_GeneratorFailure(t *testing.T) {
	h := newHarness(t, nil)

	err := h.send(t, "998901234567", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrStorage)
}

func confirmationToken(t *testing.T, msg mail.Message) string {
	t.Helper()
	idx := strings.Index(msg.TextBody, "http")
	require.GreaterOrEqual(t, idx, 0)

	link, err := url.Parse(strings.TrimSpace(msg.TextBody[idx:]))
	require.NoError(t, err)
	assert.Equal(t, "/api/confirm-email", link.Path)

	tok := link.Query().Get("token")
	require.NotEmpty(t, tok)
	return tok
}

func TestConfirmEmail_RoundTrip(t *testing.T) {
	h := newHarness(t, func(cfg *utils.Config) { cfg.OTP.RequireEmail = true }, "4821")

	require.NoError(t, h.send(t, "998901234567", "  user@example.com "))

	sent := h.mail.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"user@example.com"}, sent[0].To)
	assert.True(t, strings.HasPrefix(sent[0].TextBody[strings.Index(sent[0].TextBody, "http"):], "http://localhost:3000/api/confirm-email?token="))

	resp, err := h.svc.ConfirmEmail(context.Background(), confirmationToken(t, sent[0]))
	require.NoError(t, err)
	assert.Equal(t, utils.NormalizePhone("998901234567", ""), resp.Phone)
	assert.Equal(t, "user@example.com", resp.Email)
	assert.Equal(t, h.clock.Now().Add(24*time.Hour).Unix(), resp.ExpiresAt.Unix())
}

func TestConfirmEmail_Rejections(t *testing.T) {
	h := newHarness(t, nil, "4821", "5555")
	require.NoError(t, h.send(t, "998901234567", "user@example.com"))
	confirmTok := confirmationToken(t, h.mail.sent()[0])

	t.Run("missing token", func(t *testing.T) {
		_, err := h.svc.ConfirmEmail(context.Background(), "")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("tampered token", func(t *testing.T) {
		b := []byte(confirmTok)
		i := len(b) - 10
		if b[i] == 'x' {
			b[i] = 'y'
		} else {
			b[i] = 'x'
		}
		_, err := h.svc.ConfirmEmail(context.Background(), string(b))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("session token", func(t *testing.T) {
		sessionTok, err := h.verify("998901234567", "4821")
		require.NoError(t, err)

		_, err = h.svc.ConfirmEmail(context.Background(), sessionTok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		h.clock.Advance(25 * time.Hour)
		_, err := h.svc.ConfirmEmail(context.Background(), confirmTok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPurgeExpired(t *testing.T) {
	h := newHarness(t, nil, "1111", "2222")
	require.NoError(t, h.send(t, "998901234567", ""))
	h.clock.Advance(10 * time.Minute)
	require.NoError(t, h.send(t, "998901111111", ""))

	purged, err := h.svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.OTPPurged))

	_, err = h.verify("998901111111", "2222")
	assert.NoError(t, err)
}

func TestPurgeExpired_DisabledWithoutExpiry(t *testing.T) {
	h := newHarness(t, func(cfg *utils.Config) { cfg.OTP.Expiry = 0 }, "1111")
	require.NoError(t, h.send(t, "998901234567", ""))
	h.clock.Advance(time.Hour)

	purged, err := h.svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, purged)
}
