package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/daghondi/ghondiclaude.tech/internal/config"
	"github.com/daghondi/ghondiclaude.tech/internal/db"
	"github.com/daghondi/ghondiclaude.tech/internal/email"
	"github.com/daghondi/ghondiclaude.tech/internal/events"
	"github.com/daghondi/ghondiclaude.tech/internal/middleware"
	"github.com/daghondi/ghondiclaude.tech/internal/repository"
	"github.com/daghondi/ghondiclaude.tech/internal/service"
	"github.com/daghondi/ghondiclaude.tech/internal/storage"
	"github.com/daghondi/ghondiclaude.tech/internal/token"
)

type App struct {
	Cfg               *config.Config
	DB                *sqlx.DB
	Redis             *redis.Client
	Events            events.Publisher
	Limiter           middleware.Limiter
	SubscriberService *service.SubscriberService
	ContactService    *service.ContactService
	ContentService    *service.ContentService
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{Cfg: cfg, DB: database}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Repositories
	subscriberRepository := repository.NewSubscriberRepository(database)
	contactStore, err := newContactStore(ctx, cfg, database)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize contact store: %w", err)
	}

	// Email
	sender, err := email.NewSender(ctx, email.Options{
		Provider:       cfg.EmailProvider,
		From:           email.From{Email: cfg.EmailFrom, Name: cfg.EmailFromName},
		ResendAPIKey:   cfg.ResendAPIKey,
		SendGridAPIKey: cfg.SendGridAPIKey,
		SESRegion:      cfg.SESRegion,
		SESAccessKey:   cfg.SESAccessKey,
		SESSecretKey:   cfg.SESSecretKey,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize email provider: %w", err)
	}

	templates, err := email.NewTemplates()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load email templates: %w", err)
	}

	var audience email.Audience = email.NoopAudience{}
	if !cfg.IsDevelopment() {
		audience = email.NewAudience(cfg.ResendAPIKey, cfg.ResendAudienceID)
	}

	// Events
	if cfg.KafkaEnabled() {
		slog.Info("publishing events to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		a.Events = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaUsername, cfg.KafkaPassword)
	} else {
		a.Events = events.NewLogPublisher()
	}

	// Rate limiting
	if cfg.RedisEnabled() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		err = a.Redis.Ping(ctx).Err()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.Limiter = middleware.NewRedisLimiter(a.Redis, "portfolio:ratelimit", cfg.RateLimitCount, cfg.RateLimitWindow)
	} else {
		a.Limiter = middleware.NewMemoryLimiter(cfg.RateLimitCount, cfg.RateLimitWindow)
	}

	// Services
	signer := token.NewSigner(cfg.UnsubscribeSecret, 0)
	emailService := service.NewEmailService(
		sender,
		templates,
		audience,
		signer,
		cfg.AppURL,
		cfg.AppName,
		cfg.OwnerEmail,
		cfg.TokenExpiry,
	)
	a.SubscriberService = service.NewSubscriberService(
		subscriberRepository,
		emailService,
		signer,
		a.Events,
		cfg.TokenExpiry,
		cfg.NotifyTimeout,
	)
	a.ContactService = service.NewContactService(contactStore, emailService, a.Events, cfg.NotifyTimeout)
	a.ContentService = service.NewContentService(cfg.ContentPath)

	counts, err := a.SubscriberService.Stats(ctx)
	if err == nil {
		slog.Info("subscriber store ready",
			"pending", counts["pending"],
			"verified", counts["verified"],
			"unsubscribed", counts["unsubscribed"],
		)
	}

	return a, nil
}

func newContactStore(ctx context.Context, cfg *config.Config, database *sqlx.DB) (repository.ContactStore, error) {
	slog.Info("initializing contact store", "store", cfg.ContactStore)

	switch cfg.ContactStore {
	case "none":
		return repository.NoopContactStore{}, nil
	case "db", "":
		return repository.NewContactRepository(database), nil
	case "s3":
		return storage.New(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown contact store: %s (supported: none, db, s3)", cfg.ContactStore)
	}
}

func (a *App) Close() error {
	var errs []error
	if a.Events != nil {
		errs = append(errs, a.Events.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
