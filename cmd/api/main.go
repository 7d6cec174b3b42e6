package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tabayyan/internal/config"
	"tabayyan/internal/db"
	"tabayyan/internal/email"
	apihttp "tabayyan/internal/http"
	"tabayyan/internal/llm"
	"tabayyan/internal/metrics"
	"tabayyan/internal/repository"
	"tabayyan/internal/service"
	"tabayyan/internal/voice"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if cfg.RunMigrations {
		version, err := db.RunMigrations(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		logger.Info("migrations applied", zap.Uint("version", version))
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.Ping(ctx, pool); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	userRepo := repository.NewPgUserRepository(pool)
	ratingRepo := repository.NewPgRatingRepository(pool)
	staffRepo := repository.NewPgStaffQuestionRepository(pool)
	faqRepo := repository.NewPgFAQRepository(pool)
	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMEmbeddingModel, zap.NewStdLog(logger))

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	historyTTL := 30 * 24 * time.Hour
	history := service.NewMemoryHistoryStore(cfg.HistoryMaxEntries, historyTTL)
	flashes := service.NewMemoryFlashStore()
	tokenStore := service.NewMemoryRefreshTokenStore()
	window := time.Minute
	apiLimiter := service.NewRateLimiter(window, cfg.RateLimitPerMinute)
	resetLimiter := service.NewRateLimiter(15*time.Minute, 3)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory stores", zap.Error(err))
		} else {
			history = service.NewRedisHistoryStore(redisClient, cfg.HistoryMaxEntries, historyTTL)
			flashes = service.NewRedisFlashStore(redisClient)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
			apiLimiter = service.NewRedisRateLimiter(redisClient, "ratelimit:api:", window, cfg.RateLimitPerMinute)
			resetLimiter = service.NewRedisRateLimiter(redisClient, "ratelimit:reset:", 15*time.Minute, 3)
		}
		cancel()
	}

	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured, sessions will not survive restarts")
		cfg.JWTSecret = service.RandomSecret()
	}
	jwtSvc := service.NewJWTServiceWithStore(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL(), tokenStore)

	userSvc := service.NewUserService(logger, userRepo, emailSender, jwtSvc, resetLimiter, cfg.PublicBaseURL)
	assistant := service.NewAssistantService(llmClient, history, logger, m, cfg.HistoryContextTurns)
	ratingSvc := service.NewRatingService(ratingRepo, logger)
	staffSvc := service.NewStaffService(staffRepo, emailSender, cfg.StaffEmail, logger)
	faqSvc := service.NewFAQService(faqRepo, llmClient, logger)

	voiceSvc, err := voice.NewServiceFromConfig(cfg, m, logger)
	if err != nil {
		logger.Fatal("voice pipeline", zap.Error(err))
	}

	go func() {
		ctxIndex, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		n, err := faqSvc.IndexMissing(ctxIndex)
		if err != nil {
			logger.Warn("faq indexing failed", zap.Error(err))
			return
		}
		logger.Info("faq indexing done", zap.Int("indexed", n))
	}()

	sessions := apihttp.NewSessionManager(logger, jwtSvc, flashes, cfg.CookieSecure)
	router, err := apihttp.NewRouter(apihttp.RouterDeps{
		Logger:   logger,
		Metrics:  m,
		Sessions: sessions,
		JWT:      jwtSvc,
		Limiter:  apiLimiter,
		Pages:    apihttp.NewPageHandler(logger, userSvc, sessions),
		Auth:     apihttp.NewAuthHandler(logger, userSvc, jwtSvc, sessions),
		Chat:     apihttp.NewChatHandler(logger, assistant, history, sessions),
		Voice:    apihttp.NewVoiceHandler(logger, voiceSvc, assistant, cfg.SpeedFactor),
		Feedback: apihttp.NewFeedbackHandler(logger, ratingSvc, staffSvc, userSvc, sessions),
		FAQ:      apihttp.NewFAQHandler(logger, faqSvc, sessions),
		Ops:      apihttp.NewOpsHandler(logger, pool, prometheus.DefaultGatherer),

		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		logger.Fatal("router", zap.Error(err))
	}

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctxShutdown, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
