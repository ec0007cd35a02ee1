package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talentflow/internal/bootstrap"
	"talentflow/internal/config"
	apphttp "talentflow/internal/http"
	"talentflow/internal/http/handlers"
	httpmw "talentflow/internal/http/middleware"
	"talentflow/internal/http/response"
	"talentflow/internal/observability"
	"talentflow/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer container.Close(logger)

	var limiter httpmw.Limiter = httpmw.NewRateLimiter()
	if container.Redis != nil {
		limiter = httpmw.NewRedisLimiter(container.Redis, "ratelimit")
	}
	response.SetErrorCollector(container.Metrics)
	response.SetLogger(logger)

	router := apphttp.NewRouter(apphttp.RouterDependencies{
		ApplicationHandler: handlers.NewApplicationHandler(container.Applications, container.Pipeline, container.Interviews, limiter, cfg.BulkMaxItems),
		JobHandler:         handlers.NewJobHandler(container.Jobs),
		FunnelHandler:      handlers.NewFunnelHandler(container.Funnels, container.Jobs),
		AuthMiddleware:     httpmw.NewAuthMiddleware(security.NewJWTProvider(cfg.JWTSecret)),
		Metrics:            container.Metrics,
		Limiter:            limiter,
		RateLimitPerMin:    cfg.RateLimitPerMin,
		MaxBodyBytes:       cfg.MaxBodyBytes,
		RequestTimeout:     cfg.RequestTimeout,
	})
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening", slog.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server error", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", slog.String("error", err.Error()))
	}
}
