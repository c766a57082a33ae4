package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/taha00000/book-for-me/cmd/mainconfig"
	"github.com/taha00000/book-for-me/internal/api/router"
	"github.com/taha00000/book-for-me/internal/booking"
	"github.com/taha00000/book-for-me/internal/channel"
	appconfig "github.com/taha00000/book-for-me/internal/config"
	"github.com/taha00000/book-for-me/internal/dispatch"
	"github.com/taha00000/book-for-me/internal/http/handlers"
	"github.com/taha00000/book-for-me/internal/inventory"
	"github.com/taha00000/book-for-me/internal/nlu"
	"github.com/taha00000/book-for-me/internal/observability/metrics"
	"github.com/taha00000/book-for-me/internal/session"
	"github.com/taha00000/book-for-me/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("startup misconfiguration", "error", err.Error())
		os.Exit(1)
	}

	logger.Info("starting book-for-me API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err.Error())
		os.Exit(1)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err.Error())
		os.Exit(1)
	}
	dynamoClient := dynamodb.NewFromConfig(awsCfg)

	primary, err := nlu.NewGeminiClient(ctx, cfg.LanguageModelAPIKey, cfg.LanguageModelName)
	if err != nil {
		logger.Error("failed to initialize language model client", "error", err.Error())
		os.Exit(1)
	}
	defer primary.Close()

	var llm nlu.LLMClient = primary
	if cfg.LanguageModelFallbackName != "" && cfg.LanguageModelFallbackName != cfg.LanguageModelName {
		secondary, err := nlu.NewGeminiClient(ctx, cfg.LanguageModelAPIKey, cfg.LanguageModelFallbackName)
		if err != nil {
			logger.Error("failed to initialize fallback model client", "error", err.Error())
			os.Exit(1)
		}
		defer secondary.Close()
		llm = nlu.NewFallbackClient(primary, secondary, logger)
	}

	tz, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		logger.Warn("unknown timezone, using UTC", "timezone", cfg.DefaultTimezone)
		tz = time.UTC
	}

	sessionStore := session.NewStore(redisClient, cfg.SessionIdleTimeout)
	archiver := session.NewArchiver(dynamoClient, cfg.TableName("conversation_states"), logger)
	invStore := inventory.NewStore(dynamoClient, inventory.Tables{
		Vendors: cfg.TableName("vendors"),
		Slots:   cfg.TableName("slots"),
	}, logger)
	ledger := inventory.NewLedger(dynamoClient, inventory.LedgerTables{
		Payments: cfg.TableName("payments"),
		Users:    cfg.TableName("users"),
	}, logger)

	turnMetrics := metrics.NewTurnMetrics(nil)

	orchestrator := booking.New(
		sessionStore,
		nlu.NewExtractor(llm, cfg.LanguageModelName, logger),
		nlu.NewGenerator(llm, cfg.LanguageModelName, logger),
		invStore,
		session.NewLockTable(),
		booking.Config{
			HoldTTL:         cfg.HoldTTL,
			DiscountPercent: cfg.DiscountPercent,
			HistoryLimit:    cfg.HistoryLimit,
			NLUTimeout:      cfg.NLUTimeout,
			DBTimeout:       cfg.DBTimeout,
			Timezone:        tz,
		},
		logger,
	).WithArchiver(archiver).WithLedger(ledger).WithMetrics(turnMetrics)

	dispatchOpts := []dispatch.Option{dispatch.WithWorkerCount(cfg.WorkerCount)}
	if cfg.AsyncWebhook {
		sender := channel.NewChatSender(cfg.ChatAccessToken, cfg.ChatPhoneNumberID)
		if cfg.ChatAPIBase != "" {
			sender.SetAPIBase(cfg.ChatAPIBase)
		}
		dispatchOpts = append(dispatchOpts, dispatch.WithReplySender(sender))
	}

	var dispatcher *dispatch.Dispatcher
	if cfg.UseMemoryQueue {
		dispatcher = dispatch.NewDispatcher(orchestrator, dispatch.NewMemoryQueue(128), logger, dispatchOpts...)
	} else {
		dispatcher = dispatch.NewDispatcher(orchestrator, dispatch.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.TurnQueueURL), logger, dispatchOpts...)
	}

	webhook := channel.NewWebhookHandler(channel.WebhookConfig{
		Turns:       dispatcher,
		Publisher:   dispatcher,
		Dedup:       channel.NewDedupTracker(redisClient, cfg.DedupWindow),
		VerifyToken: cfg.ChatVerifyToken,
		Async:       cfg.AsyncWebhook,
		Logger:      logger,
		Metrics:     turnMetrics,
	})

	r := router.New(&router.Config{
		Logger:         logger,
		Webhook:        webhook,
		AdminInventory: handlers.NewAdminInventoryHandler(invStore, logger),
		AdminToken:     cfg.AdminToken,
		MetricsHandler: promhttp.Handler(),
	})

	// Background sweeper: expired holds back to available, idle sessions out.
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	go runSweeper(sweepCtx, invStore, sessionStore, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	stopSweeper()
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown failed", "error", err.Error())
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err.Error())
	}
	if err := redisClient.Close(); err != nil {
		logger.Error("redis close failed", "error", err.Error())
	}
	logger.Info("stopped")
}

func runSweeper(ctx context.Context, inv *inventory.Store, sessions *session.Store, logger *logging.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			released, err := inv.SweepExpiredHolds(sweepCtx, now)
			if err != nil {
				logger.Warn("hold sweep failed", "error", err.Error())
			} else if released > 0 {
				logger.Info("released expired holds", "count", released)
			}
			expired, err := sessions.ExpireIdle(sweepCtx, now)
			if err != nil {
				logger.Warn("session sweep failed", "error", err.Error())
			} else if expired > 0 {
				logger.Info("expired idle sessions", "count", expired)
			}
			cancel()
		}
	}
}
