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

	"github.com/redis/go-redis/v9"

	"github.com/johnlen7/teacher-sarah/internal/ai"
	"github.com/johnlen7/teacher-sarah/internal/bot"
	"github.com/johnlen7/teacher-sarah/internal/cache"
	"github.com/johnlen7/teacher-sarah/internal/config"
	"github.com/johnlen7/teacher-sarah/internal/dispatch"
	httpserver "github.com/johnlen7/teacher-sarah/internal/http"
	"github.com/johnlen7/teacher-sarah/internal/http/handlers"
	"github.com/johnlen7/teacher-sarah/internal/http/middleware"
	"github.com/johnlen7/teacher-sarah/internal/metrics"
	"github.com/johnlen7/teacher-sarah/internal/policy"
	"github.com/johnlen7/teacher-sarah/internal/repository"
	"github.com/johnlen7/teacher-sarah/internal/speech"
	"github.com/johnlen7/teacher-sarah/internal/tutor"
)

func main() {
	logger := log.New(os.Stdout, "[sarah-api] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	students, repoCloser := setupRepository(ctx, cfg, logger)
	defer repoCloser()

	replyStore, cacheCloser := setupReplyCache(ctx, cfg, logger)
	defer cacheCloser()

	chatClient := ai.NewOpenRouterClient(ai.OpenRouterClientConfig{
		APIKey:     cfg.OpenRouterAPIKey,
		BaseURL:    cfg.OpenRouterBaseURL,
		Timeout:    time.Duration(cfg.OpenRouterTimeoutMS) * time.Millisecond,
		MaxRetries: cfg.OpenRouterMaxRetries,
		SiteURL:    cfg.OpenRouterReferer,
		AppName:    cfg.OpenRouterTitle,
	})
	if !chatClient.Available() {
		logger.Printf("OPENROUTER_API_KEY not configured, replies fall back to keyword responses")
	}
	modelRouter := ai.NewModelRouter(ai.ModelRouterConfig{
		ChatPrimary:  cfg.ChatModelPrimary,
		ChatFallback: cfg.ChatModelFallback,
	})
	tutorService := tutor.NewService(chatClient, modelRouter, replyStore, tutor.Config{
		HistoryWindow: cfg.HistoryWindow,
		Logger:        logger,
	})

	transcriber := speech.NewWhisperClient(speech.WhisperClientConfig{
		BaseURL: cfg.WhisperBaseURL,
		Timeout: time.Duration(cfg.WhisperTimeoutMS) * time.Millisecond,
	})
	if !transcriber.Available() {
		logger.Printf("WHISPER_BASE_URL not configured, voice events will be rejected")
	}
	synthesizer := speech.NewTTSClient(speech.TTSClientConfig{
		BaseURL: cfg.TTSBaseURL,
		Voice:   cfg.TTSVoice,
		Timeout: time.Duration(cfg.TTSTimeoutMS) * time.Millisecond,
	})

	validator := policy.NewValidator(policy.ValidatorConfig{
		MaxTextLength: cfg.MaxMessageLength,
		MaxAudioBytes: cfg.MaxAudioBytes,
	})
	collector := metrics.NewCollector()

	botHandler := bot.NewHandler(students, tutorService, transcriber, synthesizer, validator, collector, bot.HandlerConfig{
		MaxAudioBytes: cfg.MaxAudioBytes,
		HistoryWindow: cfg.HistoryWindow,
		Logger:        logger,
	})

	dispatcher := dispatch.New(botHandler.DispatchHandler(), dispatch.Config{
		Capacity:            cfg.DispatchCapacity,
		HandlerTimeout:      time.Duration(cfg.DispatchHandlerTimeoutMS) * time.Millisecond,
		IdleRetirementGrace: time.Duration(cfg.DispatchIdleRetirementMS) * time.Millisecond,
		Logger:              logger,
	})
	logger.Printf("dispatcher started capacity=%d", cfg.DispatchCapacity)

	chatLimiter := middleware.NewChatLimiter(cfg.ChatRateLimitRPS, cfg.ChatRateLimitBurst)
	api := handlers.NewAPI(dispatcher, students, collector, chatLimiter)

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      cfg.AuthToken,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Printf("dispatcher close failed: %v", err)
	}
}

func setupRepository(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (repository.StudentsRepository, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory repository")
		return repository.NewMemoryStudentsRepository(), func() {}
	}

	pgRepo, err := repository.NewPostgresStudentsRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres repository, fallback to memory: %v", err)
		return repository.NewMemoryStudentsRepository(), func() {}
	}
	logger.Printf("postgres repository initialized")
	return pgRepo, func() {
		pgRepo.Close()
	}
}

func setupReplyCache(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (cache.ReplyStore, func()) {
	ttl := time.Duration(cfg.ResponseCacheTTLSeconds) * time.Second
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using in-memory reply cache")
		return cache.NewMemoryStore(cache.MemoryConfig{
			TTL:        ttl,
			MaxEntries: cfg.ResponseCacheMaxEntries,
		}), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Printf("failed to reach redis, fallback to in-memory reply cache: %v", err)
		_ = client.Close()
		return cache.NewMemoryStore(cache.MemoryConfig{
			TTL:        ttl,
			MaxEntries: cfg.ResponseCacheMaxEntries,
		}), func() {}
	}

	logger.Printf("redis reply cache initialized")
	return cache.NewRedisStore(client, ttl), func() {
		_ = client.Close()
	}
}
