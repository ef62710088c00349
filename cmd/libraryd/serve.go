package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"library-service/auth"
	"library-service/borrow"
	"library-service/cache"
	"library-service/config"
	"library-service/httpapi"
	"library-service/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	var blacklist *auth.Blacklist
	var provider cache.Provider
	if cfg.CacheBackend == config.CacheBackendRedis {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		blacklist = auth.NewBlacklist(rdb)
		if provider, err = cache.NewRedisProvider(rdb, true); err != nil {
			return err
		}
	} else {
		// memory mode: no shared Redis, so no cross-process blacklist either
		if provider, err = cache.NewMemoryProvider(); err != nil {
			return err
		}
	}

	queryCache := cache.New(provider, cfg.CacheTTL, log)
	defer func() { _ = queryCache.Close() }()

	tokens, err := auth.NewTokenManager([]byte(cfg.JWTSecret), cfg.AccessTTL)
	if err != nil {
		return err
	}

	authSvc := auth.NewService(st, tokens, blacklist, log)
	borrowSvc := borrow.NewService(st, log)
	api := httpapi.New(authSvc, borrowSvc, st, queryCache, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
