package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"thredvault/backend/internal/bootstrap"
	"thredvault/backend/internal/cache"
	"thredvault/backend/internal/config"
	"thredvault/backend/internal/httpapi"
	"thredvault/backend/internal/lock"
	"thredvault/backend/internal/logging"
	"thredvault/backend/internal/metrics"
	"thredvault/backend/internal/service"
	"thredvault/backend/internal/store/memory"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	if err := validateSecurityConfig(cfg); err != nil {
		logger.WithError(err).Fatal("invalid security configuration")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	records, closeStore, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		logger.WithError(err).WithField("backend", cfg.StoreBackend).Fatal("record store unavailable")
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}
	logger.WithField("backend", cfg.StoreBackend).Info("record store ready")

	cat, err := bootstrap.LoadCatalog(cfg)
	if err != nil {
		logger.WithError(err).WithField("file", cfg.CatalogFile).Fatal("catalog unreadable")
	}

	reg := metrics.New()
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(reg),
		service.WithRecomputeOnReturn(cfg.RecomputeOnReturn),
		service.WithStrictCatalog(cfg.StrictCatalog),
	}

	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.WithError(err).Warn("redis unavailable, using noop cache and in-process lock")
		} else {
			ttl := time.Duration(cfg.LockTTLSeconds) * time.Second
			opts = append(opts,
				service.WithReportCache(redisCache, time.Duration(cfg.ReportCacheTTLSeconds)*time.Second),
				service.WithLocker(lock.NewRedis(redisCache.Client(), ttl, ttl, logger)),
			)
			closers = append(closers, redisCache.Close)
			logger.Info("cache and write lock: redis")
		}
	} else {
		logger.Info("cache: noop, write lock: in-process")
	}

	svc := service.New(records, cat, opts...)

	users, err := memory.NewUsers(
		memory.Account{Username: cfg.AdminUsername, Password: cfg.AdminPassword, Role: httpapi.RoleAdmin},
		memory.Account{Username: cfg.ViewerUsername, Password: cfg.ViewerPassword, Role: httpapi.RoleViewer},
	)
	if err != nil {
		logger.WithError(err).Fatal("could not register accounts")
	}
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, users)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, httpapi.WithLogger(logger), httpapi.WithMetrics(reg))

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.Address()).Info("thredvault backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.WithError(err).Warn("close error")
		}
	}

	logger.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if err := validatePasswordStrength("ADMIN_PASSWORD", cfg.AdminPassword); err != nil {
		return err
	}
	if cfg.ViewerPassword != "" {
		if err := validatePasswordStrength("VIEWER_PASSWORD", cfg.ViewerPassword); err != nil {
			return err
		}
	}
	return nil
}

// validatePasswordStrength rejects short passwords, a single repeated
// character and a short list of well-known choices.
func validatePasswordStrength(name string, password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%s must be set and at least 8 characters", name)
	}
	known := map[string]bool{
		"password": true, "12345678": true, "123456789": true, "qwertyui": true,
		"admin123": true, "changeme": true, "iloveyou": true, "11111111": true,
	}
	if known[strings.ToLower(password)] {
		return fmt.Errorf("%s is too weak: common password not allowed", name)
	}
	if strings.Count(password, password[:1]) == len(password) {
		return fmt.Errorf("%s is too weak: single repeated character not allowed", name)
	}
	return nil
}
