package main

import (
	"context"
	"io"
	"log"

	"otp-auth/cmd"
	"otp-auth/internal/data/repository"
	"otp-auth/internal/usecase"
	"otp-auth/internal/wire"
	"otp-auth/pkg/background"
	"otp-auth/pkg/database"
	"otp-auth/pkg/mail"
	"otp-auth/pkg/metrics"
	"otp-auth/pkg/telegram"
	"otp-auth/pkg/token"
	"otp-auth/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.Name, config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.String("store", config.App.StoreDriver),
		zap.Bool("debug", config.App.Debug),
		zap.Bool("require_email", config.OTP.RequireEmail),
	)

	// Open the OTP store
	repos, closeStore, err := openStore(config, logger)
	if err != nil {
		logger.Fatal("Failed to open OTP store", zap.Error(err), zap.String("driver", config.App.StoreDriver))
	}
	defer closeStore.Close()

	// Outbound collaborators
	signer, err := token.NewSigner(token.Config{
		Secret: []byte(config.JWT.Secret),
		Issuer: config.JWT.Issuer,
		TTL:    config.JWT.TTL,
	})
	if err != nil {
		logger.Fatal("Failed to init token signer", zap.Error(err))
	}

	m := metrics.New()

	dispatcher := background.NewDispatcher(logger, config.Notify.MaxInFlight, config.Notify.Timeout)
	dispatcher.OnResult = m.ObserveNotification

	deps := usecase.Collaborators{
		Signer:     signer,
		Dispatcher: dispatcher,
		Metrics:    m,
	}

	if config.Telegram.BotToken != "" && config.Telegram.ChatID != "" {
		deps.Chat = telegram.NewClient(config.Telegram.BotToken, config.Telegram.ChatID, config.Telegram.APIURL)
	} else {
		logger.Warn("Telegram not configured, OTP codes will not be delivered")
	}

	if config.Email.Host != "" {
		smtpMail, err := mail.NewSMTP(mail.SMTPConfig{
			Host:     config.Email.Host,
			Port:     config.Email.Port,
			Username: config.Email.User,
			Password: config.Email.Password,
			From:     config.Email.From,
		})
		if err != nil {
			logger.Warn("SMTP disabled", zap.Error(err))
		} else {
			deps.Mail = smtpMail
			defer smtpMail.Close()
		}
	} else if config.OTP.RequireEmail {
		logger.Warn("SMTP not configured, confirmation emails will not be sent")
	}

	// Wire all dependencies
	app := wire.Wiring(repos, config, deps, logger)

	// Purge expired records in the background
	purger, err := cmd.StartPurgeJob(config.OTP.PurgeSchedule, app.Service.OTP, logger)
	if err != nil {
		logger.Fatal("Failed to schedule OTP purge", zap.Error(err))
	}
	defer func() { <-purger.Stop().Done() }()

	cmd.APIServer(app.Router, config.App.Port, config.App.ShutdownGrace, dispatcher, logger)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func openStore(config *utils.Config, logger *zap.Logger) (*repository.Repository, io.Closer, error) {
	switch config.App.StoreDriver {
	case utils.StoreDriverRedis:
		client, err := database.InitRedis(config.Redis)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Redis connected successfully", zap.String("addr", config.Redis.Addr))
		return repository.NewRedisRepository(client, logger), client, nil

	case utils.StoreDriverMemory:
		logger.Warn("Using in-memory OTP store, records are lost on restart")
		return repository.NewMemoryRepository(logger), closerFunc(func() error { return nil }), nil

	default:
		db, err := database.InitDB(config.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := database.EnsureSchema(context.Background(), db); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("Database connected successfully")
		return repository.NewRepository(db, logger), closerFunc(func() error { db.Close(); return nil }), nil
	}
}
