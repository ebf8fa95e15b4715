package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ckeiituk/iplist-bot/common/id"
	"github.com/ckeiituk/iplist-bot/common/logger"
	"github.com/ckeiituk/iplist-bot/common/otel"
	"github.com/ckeiituk/iplist-bot/core/config"
	"github.com/ckeiituk/iplist-bot/internal/build"
	"github.com/ckeiituk/iplist-bot/internal/classify"
	"github.com/ckeiituk/iplist-bot/internal/dnscheck"
	"github.com/ckeiituk/iplist-bot/internal/http/handler"
	"github.com/ckeiituk/iplist-bot/internal/http/handler/webhook"
	"github.com/ckeiituk/iplist-bot/internal/http/middleware"
	httprouter "github.com/ckeiituk/iplist-bot/internal/http/router"
	"github.com/ckeiituk/iplist-bot/internal/llm"
	"github.com/ckeiituk/iplist-bot/internal/notify"
	"github.com/ckeiituk/iplist-bot/internal/repo"
	"github.com/ckeiituk/iplist-bot/internal/search"
	"github.com/ckeiituk/iplist-bot/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "iplist-bot starting", "env", cfg.Env, "repo", cfg.GitHub.Repo)
	if !cfg.Webhook.Verified() {
		slog.WarnContext(ctx, "no webhook secret configured, signature verification disabled")
	}

	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	sink, err := notify.NewTelegramSink(cfg.Telegram.BotToken)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create telegram sink", "error", err)
		os.Exit(1)
	}

	ledger := build.NewMemoryLedger()
	resolver := build.NewResolver(ledger, sink)

	generative := llm.New(llm.Config{
		APIKeys: cfg.Gemini.APIKeys,
		Model:   cfg.Gemini.Model,
		BaseURL: cfg.Gemini.BaseURL,
	})

	gatherer := classify.NewGatherer(
		search.NewDuckDuckGo(10*time.Second),
		search.NewPageFetcher(10*time.Second),
	)

	dnsTimeout := time.Duration(cfg.DNS.TimeoutSecs) * time.Second
	dnsLifetime := time.Duration(cfg.DNS.LifetimeSecs) * time.Second
	dnsEngine := dnscheck.NewEngine(
		dnscheck.NewSystemResolver(dnsTimeout, dnsLifetime),
		dnscheck.NewResolver(cfg.DNS.Servers, dnsTimeout, dnsLifetime),
	)

	onboarding := service.NewOnboardingService(service.OnboardingConfig{
		Keywords:   classify.NewKeywordResolver(generative),
		Classifier: classify.NewClassifier(generative, gatherer),
		DNS:        dnsEngine,
		Publisher:  repo.NewGitHubPublisher(ctx, cfg.GitHub),
		Ledger:     ledger,
		Reporter: notify.NewReporter(sink, notify.Target{
			ChatID:   cfg.Telegram.LogChannelID,
			ThreadID: cfg.Telegram.LogTopicID,
		}),
		DNSServers: cfg.DNS.Servers,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, resolver, onboarding)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, resolver *build.Resolver, onboarding *service.OnboardingService) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	webhookHandler := webhook.NewGitHubWebhookHandler(resolver, cfg.Webhook.Secret)
	onboardingHandler := handler.NewOnboardingHandler(onboarding)

	httprouter.SetupRoutes(router, webhookHandler, onboardingHandler, httprouter.RouterConfig{
		AdminAPIKey: cfg.AdminAPIKey,
	})

	return router
}
