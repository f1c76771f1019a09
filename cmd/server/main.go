// mediadrive server
//
// A thin backend that proxies the Microsoft Graph drive API to a browser
// media-player frontend: OAuth2 login, folder browsing and search,
// range-aware byte streaming, and a playback history log in PostgreSQL.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hul1hu/mediadrive/internal/api"
	"github.com/hul1hu/mediadrive/internal/auth"
	"github.com/hul1hu/mediadrive/internal/config"
	"github.com/hul1hu/mediadrive/internal/graph"
	"github.com/hul1hu/mediadrive/internal/history"
	"github.com/hul1hu/mediadrive/internal/logging"
	"github.com/hul1hu/mediadrive/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("mediadrive server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logging.Info("connecting to PostgreSQL...")
	store, err := history.Open(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal("database connection failed", zap.Error(err))
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logging.Fatal("migration failed", zap.Error(err))
	}

	graphClient := graph.New(graph.Config{
		BaseURL:   cfg.GraphBaseURL,
		CacheSize: cfg.ItemCacheSize,
		CacheTTL:  cfg.ItemCacheTTL,
	})

	gateway := auth.New(auth.Config{
		ClientID:     cfg.AzureClientID,
		ClientSecret: cfg.AzureClientSecret,
		TenantID:     cfg.AzureTenantID,
		RedirectURI:  cfg.RedirectURI,
		StateSecret:  cfg.StateSecret,
	})

	srv := api.NewServer(graphClient, gateway, store, cfg.FrontendURL)

	// Metrics server on its own listener
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		httpServer.Close()
		metricsServer.Close()
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}
