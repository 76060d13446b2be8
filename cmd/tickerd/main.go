package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alim08/coin_ticker/pkg/config"
	"github.com/alim08/coin_ticker/pkg/logger"
	"github.com/alim08/coin_ticker/pkg/marketdata"
	"github.com/alim08/coin_ticker/pkg/metrics"
	"github.com/alim08/coin_ticker/pkg/provider"
	"github.com/alim08/coin_ticker/pkg/redisclient"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		panic("config error: " + err.Error())
	}

	// 2. Init logger
	if err := logger.Init(); err != nil {
		panic("logger init: " + err.Error())
	}
	defer logger.Log.Sync()
	log := logger.Log

	log.Info("starting coin ticker daemon",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("convert", cfg.Convert),
		zap.Int("limit", cfg.Limit),
		zap.Duration("cache_ttl", cfg.CacheTTL))

	// 3. Build the shared provider
	client := marketdata.New(cfg.Endpoint, cfg.Convert, cfg.Limit, cfg.HTTPTimeout)
	opts := []provider.Option{provider.WithTTL(cfg.CacheTTL)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Optional Redis shared cache
	var pinger Pinger
	if cfg.RedisURL != "" {
		rdb, err := redisclient.New(cfg.RedisURL)
		if err != nil {
			log.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer rdb.Close()
		pinger = rdb
		opts = append(opts, provider.WithSharedStore(rdb, provider.DefaultPeerWait))
		log.Info("shared cache enabled")
	}

	p := provider.New(client, opts...)
	defer p.Close()

	if rdb, ok := pinger.(*redisclient.Client); ok {
		go relayBroadcasts(ctx, rdb, p, client.Key())
	}

	// 5. Background refresh and configured widgets
	go refreshLoop(ctx, p, cfg.CacheTTL)
	if cfg.WidgetsFile != "" {
		specs, err := config.LoadWidgets(cfg.WidgetsFile)
		if err != nil {
			log.Fatal("failed to load widgets", zap.Error(err))
		}
		detach := prewarm(ctx, p, specs)
		defer detach()
	}

	// 6. Metrics endpoint
	go startMetricsServer(cfg.MetricsPort)

	// 7. API server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      NewServer(p, pinger).Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		log.Info("starting HTTP server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// 8. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}

func startMetricsServer(port int) {
	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Log.Info("metrics server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Log.Error("metrics server stopped", zap.Error(err))
	}
}
