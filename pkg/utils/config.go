package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Email    EmailConfig
	Telegram TelegramConfig
	OTP      OTPConfig
	Notify   NotifyConfig
}

type AppConfig struct {
	Name          string
	Port          string
	Debug         bool
	LogPath       string
	BaseURL       string
	StoreDriver   string
	CORSOrigins   []string
	PhoneRegion   string
	ShutdownGrace time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type TelegramConfig struct {
	BotToken string
	ChatID   string
	APIURL   string
}

type OTPConfig struct {
	// Expiry of zero keeps an issued code usable until it is consumed or superseded.
	Expiry        time.Duration
	HashCost      int
	RequireEmail  bool
	PurgeSchedule string
}

type NotifyConfig struct {
	Timeout     time.Duration
	MaxInFlight int
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
	StoreDriverMemory   = "memory"
)

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read .env: %w", err)
		}
	}

	v.AutomaticEnv()

	return buildConfig(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "otp-auth")
	v.SetDefault("PORT", "3000")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("SHUTDOWN_GRACE_SECONDS", 15)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ISSUER", "otp-auth")
	v.SetDefault("TOKEN_EXPIRES_IN", "1d")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("TELEGRAM_API_URL", "https://api.telegram.org")
	v.SetDefault("OTP_EXPIRY_MINUTES", 5)
	v.SetDefault("OTP_HASH_COST", bcrypt.DefaultCost)
	v.SetDefault("OTP_REQUIRE_EMAIL", false)
	v.SetDefault("OTP_PURGE_SCHEDULE", "@every 10m")
	v.SetDefault("NOTIFY_TIMEOUT_SECONDS", 10)
	v.SetDefault("NOTIFY_MAX_INFLIGHT", 100)
}

func buildConfig(v *viper.Viper) (*Config, error) {
	secret := v.GetString("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	ttl, err := ParseTTL(v.GetString("TOKEN_EXPIRES_IN"))
	if err != nil {
		return nil, fmt.Errorf("TOKEN_EXPIRES_IN: %w", err)
	}

	hashCost := v.GetInt("OTP_HASH_COST")
	if hashCost < bcrypt.MinCost || hashCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("OTP_HASH_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	driver := strings.ToLower(v.GetString("STORE_DRIVER"))
	switch driver {
	case StoreDriverPostgres, StoreDriverRedis, StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", driver)
	}

	port := v.GetString("PORT")
	baseURL := strings.TrimRight(v.GetString("BASE_URL"), "/")
	if baseURL == "" {
		baseURL = "http://localhost:" + port
	}

	config := &Config{
		App: AppConfig{
			Name:          v.GetString("APP_NAME"),
			Port:          port,
			Debug:         v.GetBool("DEBUG"),
			LogPath:       v.GetString("LOG_PATH"),
			BaseURL:       baseURL,
			StoreDriver:   driver,
			CORSOrigins:   splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			PhoneRegion:   strings.ToUpper(v.GetString("PHONE_DEFAULT_REGION")),
			ShutdownGrace: time.Duration(v.GetInt("SHUTDOWN_GRACE_SECONDS")) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASS"),
			MaxConns: v.GetInt32("DB_MAX_CONNS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: secret,
			Issuer: v.GetString("JWT_ISSUER"),
			TTL:    ttl,
		},
		Email: EmailConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			User:     v.GetString("SMTP_USER"),
			Password: v.GetString("SMTP_PASS"),
			From:     v.GetString("EMAIL_FROM"),
		},
		Telegram: TelegramConfig{
			BotToken: v.GetString("TELEGRAM_BOT_TOKEN"),
			ChatID:   v.GetString("TELEGRAM_CHAT_ID"),
			APIURL:   v.GetString("TELEGRAM_API_URL"),
		},
		OTP: OTPConfig{
			Expiry:        time.Duration(v.GetInt("OTP_EXPIRY_MINUTES")) * time.Minute,
			HashCost:      hashCost,
			RequireEmail:  v.GetBool("OTP_REQUIRE_EMAIL"),
			PurgeSchedule: v.GetString("OTP_PURGE_SCHEDULE"),
		},
		Notify: NotifyConfig{
			Timeout:     time.Duration(v.GetInt("NOTIFY_TIMEOUT_SECONDS")) * time.Second,
			MaxInFlight: v.GetInt("NOTIFY_MAX_INFLIGHT"),
		},
	}

	return config, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
