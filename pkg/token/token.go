package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenExpired is returned when the token is past its exp claim.
	ErrTokenExpired = errors.New("token has expired")

	// ErrInvalidToken is returned for malformed, tampered or wrong-purpose tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrEmptySecret is returned when the signer has no key.
	ErrEmptySecret = errors.New("token secret is required")
)

// Purpose distinguishes session tokens from confirmation tokens.
type Purpose string

const (
	PurposeSession           Purpose = "session"
	PurposeEmailConfirmation Purpose = "email_confirmation"
)

// Claims is the payload carried by every token.
type Claims struct {
	jwt.RegisteredClaims
	Phone   string  `json:"phone"`
	Email   string  `json:"email,omitempty"`
	Purpose Purpose `json:"purpose"`
}

// Payload is what callers put into a token.
type Payload struct {
	Phone string
	Email string
}

// Clock abstracts time so tests can move past expiry and stale records.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
func SystemClock() Clock { return systemClock{} }

// Config defines the inputs for building a Signer.
type Config struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Clock  Clock
}

// Signer mints and verifies HS256 tokens with a shared secret.
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  Clock
}

func NewSigner(cfg Config) (*Signer, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrEmptySecret
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}

	return &Signer{
		secret: cfg.Secret,
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		clock:  cfg.Clock,
	}, nil
}

// TTL reports the lifetime given to newly signed tokens.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign returns a signed token for payload and its expiry time.
func (s *Signer) Sign(payload Payload, purpose Purpose) (string, time.Time, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   payload.Phone,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Phone:   payload.Phone,
		Email:   payload.Email,
		Purpose: purpose,
	}).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// Verify checks signature, issuer, expiry and purpose and returns the claims.
func (s *Signer) Verify(tokenStr string, purpose Purpose) (Claims, error) {
	var claims Claims

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.clock.Now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}

	if !token.Valid || claims.Purpose != purpose || claims.Phone == "" {
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}
