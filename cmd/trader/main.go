package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/alim08/cryptotrader/pkg/catalog"
	"github.com/alim08/cryptotrader/pkg/chart"
	"github.com/alim08/cryptotrader/pkg/config"
	"github.com/alim08/cryptotrader/pkg/engine"
	"github.com/alim08/cryptotrader/pkg/feed"
	"github.com/alim08/cryptotrader/pkg/ledger"
	"github.com/alim08/cryptotrader/pkg/logger"
	"github.com/alim08/cryptotrader/pkg/metrics"
	"github.com/alim08/cryptotrader/pkg/redisclient"
	"github.com/alim08/cryptotrader/pkg/scheduler"
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
	defer logger.Sync()
	log := logger.Log

	// 3. Allowlist
	cat := catalog.Default()
	if len(cfg.AllowedSymbols) > 0 {
		if cat, err = catalog.New(cfg.AllowedSymbols...); err != nil {
			log.Fatal("invalid allowlist", zap.Error(err))
		}
	}

	opts := []engine.Option{
		engine.WithCatalog(cat),
		engine.WithMounter(chart.NewSurface(chart.WithLoadCheck(chart.RejectSymbols(cfg.ChartUnsupported...)))),
		engine.WithScheduler(scheduler.Real{}),
		engine.WithDebounce(cfg.SearchDebounce),
		engine.WithPollInterval(cfg.Feed.PollInterval),
		engine.WithLedger(ledger.New(
			ledger.WithStartingBalance(decimal.NewFromFloat(cfg.StartingBalance)),
			ledger.WithHistoryLimit(cfg.HistoryLimit),
		)),
	}

	// 4. Feed source
	switch cfg.Feed.Source {
	case config.SourceBinance:
		opts = append(opts, engine.WithFetcher(feed.NewBinanceFetcher("")))
	case config.SourceHTTP:
		opts = append(opts, engine.WithFetcher(feed.NewHTTPFetcher(cfg.Feed.URL)))
	}

	// 5. Optional Redis mirror
	var rdb *redisclient.Client
	if cfg.RedisURL != "" {
		if rdb, err = redisclient.New(cfg.RedisURL); err != nil {
			log.Fatal("failed to configure Redis", zap.Error(err))
		}
		defer rdb.Close()
		opts = append(opts, engine.WithPublisher(redisclient.NewPublisher(rdb)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := engine.New(opts...)
	if err := ctrl.Start(ctx); err != nil {
		log.Fatal("failed to start engine", zap.Error(err))
	}
	if cfg.Feed.Source == config.SourceWebsocket {
		go feed.NewStreamReader(cfg.Feed.URL, ctrl).Run(ctx)
	}

	// 6. Metrics endpoint
	go startMetricsServer(cfg.MetricsPort)

	// 7. API server
	var pinger Pinger
	if rdb != nil {
		pinger = rdb
	}
	srv, err := NewServer(ctrl, pinger)
	if err != nil {
		log.Fatal("failed to build server", zap.Error(err))
	}
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		log.Info("starting HTTP server", zap.String("addr", server.Addr), zap.String("feed", cfg.Feed.Source))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// 8. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	cancel()
	ctrl.Close()
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
