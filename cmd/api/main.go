package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/config"
	"github.com/noah-isme/gema-grading-api/internal/database"
	"github.com/noah-isme/gema-grading-api/internal/handler"
	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/observability"
	"github.com/noah-isme/gema-grading-api/internal/repository"
	"github.com/noah-isme/gema-grading-api/internal/router"
	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, stats cache and redis events disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, nats events disabled")
			natsConn = nil
		} else {
			defer natsConn.Drain()
		}
	}

	var scorer ai.Scorer
	if cfg.AIEnabled() {
		openAIScorer, err := ai.NewOpenAIScorer(ai.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			BaseURL:     cfg.OpenAIBaseURL,
			MaxTokens:   cfg.AIMaxTokens,
			Temperature: cfg.AITemperature,
			Logger:      logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create ai scorer")
		}
		scorer = openAIScorer
	} else {
		logger.Info().Str("provider", cfg.AIProvider).Msg("ai scorer disabled, only supplied ai scores are accepted")
	}

	observability.RegisterMetrics()
	validate := validator.New(validator.WithRequiredStructEnabled())

	sessionRepo := repository.NewGradingSessionRepository(db)
	recordRepo := repository.NewGradingRecordRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	seedRepo := repository.NewSeedRepository(db)

	activityService := service.NewActivityService(activityRepo, validate, logger)
	events := service.NewGradingEventPublisher(redisClient, cfg.EventsChannel, natsConn, logger)
	autoGrader := service.NewAutoGrader()

	sessionService := service.NewGradingSessionService(service.GradingSessionDependencies{
		Sessions:    sessionRepo,
		Submissions: submissionRepo,
		Questions:   questionRepo,
		Aggregator:  service.NewScoreAggregator(recordRepo),
		AutoGrader:  autoGrader,
		Validator:   validate,
		Activity:    activityService,
		Events:      events,
	}, logger)
	regradeService := service.NewRegradeService(sessionRepo, questionRepo, autoGrader, activityService, events, logger)
	manualService := service.NewManualGradingService(recordRepo, validate, activityService, logger)
	aiService := service.NewAIGradingService(recordRepo, sessionRepo, questionRepo, scorer, validate, activityService, service.AIGradingConfig{
		Timeout:     cfg.AITimeout,
		Concurrency: cfg.AIConcurrency,
	}, logger)
	reportService := service.NewGradingReportService(recordRepo, questionRepo, redisClient, validate, service.GradingReportConfig{
		StatsTTL:               cfg.StatsTTL,
		LowConfidenceThreshold: cfg.LowConfidence,
	}, logger)
	seedService := service.NewSeedService(seedRepo, validate, cfg.SeedEnabled, cfg.SeedToken, logger)

	pingers := map[string]handler.Pinger{}
	if redisClient != nil {
		pingers["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if natsConn != nil {
		pingers["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		GradingSessionHandler: handler.NewGradingSessionHandler(sessionService, regradeService, aiService, logger),
		GradingRecordHandler:  handler.NewGradingRecordHandler(manualService, aiService, logger),
		GradingReportHandler:  handler.NewGradingReportHandler(reportService, logger),
		ActivityHandler:       handler.NewActivityHandler(activityService, logger),
		SeedHandler:           handler.NewSeedHandler(seedService, logger),
		HealthHandler:         handler.HealthCheck(cfg, db, pingers),
		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret),
		AIRateLimit:           middleware.RateLimit("ai-score", cfg.AIRateLimit, cfg.AIRateWindow),
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress()).Msg("grading api listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, cfg.ShutdownTimeout, logger)
}

func waitForShutdown(app *fiber.App, timeout time.Duration, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
