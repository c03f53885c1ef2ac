package utils

import (
	"strconv"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"1d", 24 * time.Hour},
		{"12h", 12 * time.Hour},
		{"90m", 90 * time.Minute},
		{"2w", 14 * 24 * time.Hour},
		{"30s", 30 * time.Second},
		{"1h30m", 90 * time.Minute},
		{"3600", time.Hour},
		{" 1D ", 24 * time.Hour},
	}
	for _, tt := range tests {
		got, err := ParseTTL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "abc", "0", "-5", "0d", "1y"} {
		_, err := ParseTTL(bad)
		assert.Error(t, err, bad)
	}
}

func TestCodeGenerator_Range(t *testing.T) {
	gen := NewCodeGenerator()
	for i := 0; i < 500; i++ {
		code, err := gen.Generate()
		require.NoError(t, err)
		require.Len(t, code, 4)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1000)
		assert.LessOrEqual(t, n, 9999)
	}
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+16502530000", NormalizePhone("+1 650-253-0000", ""))
	assert.Equal(t, "+16502530000", NormalizePhone("16502530000", ""))
	assert.Equal(t, "+16502530000", NormalizePhone("(650) 253-0000", "US"))
	assert.Equal(t, "not-a-phone", NormalizePhone("  not-a-phone ", ""))
	assert.Equal(t, "", NormalizePhone("   ", "US"))
}

type sample struct {
	Phone string `json:"phone" validate:"required"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

func TestValidateStruct_UsesJSONNames(t *testing.T) {
	errs := ValidateStruct(sample{Email: "nope"})
	assert.Equal(t, map[string]string{
		"phone": "This field is required",
		"email": "Invalid email format",
	}, errs)

	assert.Nil(t, ValidateStruct(sample{Phone: "1"}))
	assert.Equal(t, "email: Invalid email format; phone: This field is required", FormatValidationErrors(errs))
}

func TestBuildConfig(t *testing.T) {
	newViper := func() *viper.Viper {
		v := viper.New()
		setDefaults(v)
		v.Set("JWT_SECRET", "s3cret")
		return v
	}

	t.Run("defaults", func(t *testing.T) {
		cfg, err := buildConfig(newViper())
		require.NoError(t, err)

		assert.Equal(t, "3000", cfg.App.Port)
		assert.Equal(t, "http://localhost:3000", cfg.App.BaseURL)
		assert.Equal(t, StoreDriverPostgres, cfg.App.StoreDriver)
		assert.Equal(t, []string{"*"}, cfg.App.CORSOrigins)
		assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
		assert.Equal(t, 5*time.Minute, cfg.OTP.Expiry)
		assert.False(t, cfg.OTP.RequireEmail)
		assert.Equal(t, 10*time.Second, cfg.Notify.Timeout)
	})

	t.Run("overrides", func(t *testing.T) {
		v := newViper()
		v.Set("BASE_URL", "https://otp.example.com/")
		v.Set("TOKEN_EXPIRES_IN", "12h")
		v.Set("OTP_EXPIRY_MINUTES", 0)
		v.Set("OTP_REQUIRE_EMAIL", true)
		v.Set("STORE_DRIVER", "Redis")
		v.Set("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

		cfg, err := buildConfig(v)
		require.NoError(t, err)

		assert.Equal(t, "https://otp.example.com", cfg.App.BaseURL)
		assert.Equal(t, 12*time.Hour, cfg.JWT.TTL)
		assert.Zero(t, cfg.OTP.Expiry)
		assert.True(t, cfg.OTP.RequireEmail)
		assert.Equal(t, StoreDriverRedis, cfg.App.StoreDriver)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.App.CORSOrigins)
	})

	t.Run("errors", func(t *testing.T) {
		v := viper.New()
		setDefaults(v)
		_, err := buildConfig(v)
		assert.ErrorContains(t, err, "JWT_SECRET")

		v = newViper()
		v.Set("TOKEN_EXPIRES_IN", "forever")
		_, err = buildConfig(v)
		assert.ErrorContains(t, err, "TOKEN_EXPIRES_IN")

		v = newViper()
		v.Set("OTP_HASH_COST", 99)
		_, err = buildConfig(v)
		assert.ErrorContains(t, err, "OTP_HASH_COST")

		v = newViper()
		v.Set("STORE_DRIVER", "mongo")
		_, err = buildConfig(v)
		assert.ErrorContains(t, err, "STORE_DRIVER")
	})
}
