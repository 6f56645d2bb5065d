package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orbiodesigns/themestore/internal/api"
	"github.com/orbiodesigns/themestore/internal/config"
	"github.com/orbiodesigns/themestore/internal/model"
	"github.com/orbiodesigns/themestore/internal/obs"
	"github.com/orbiodesigns/themestore/internal/payment"
	"github.com/orbiodesigns/themestore/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional; THEME_* env always applies)")
	flag.Parse()

	// Cancel context on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := storage.Open(ctx, storage.Config{
		Path:         cfg.DBPath,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 20,
		MaxIdleConns: 20,
	})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer db.Close()

	logger := obs.NewLogger()
	metrics := obs.NewMetrics()

	gateway := payment.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.BaseURL, nil)
	jwtSecret := []byte(cfg.JWTSecret)

	svc := api.Services{
		Auth:      model.NewAuthService(db.DB, logger, jwtSecret),
		Catalog:   model.NewCatalogService(db.DB, logger),
		Purchases: model.NewPurchaseService(db.DB, logger),
		Coupons:   model.NewCouponService(db.DB, logger),
		Payments:  model.NewPaymentService(db.DB, logger, metrics, gateway),
		Admin:     model.NewAdminService(db.DB, logger),
		Support:   model.NewSupportService(db.DB, logger),
		Public:    model.NewPublicViewService(db.DB, logger, metrics),
	}

	window := cfg.RateLimit.Window.Std()
	apiServer := api.NewServer(svc, api.Options{
		ClientURL:  cfg.ClientURL,
		RatePerSec: float64(cfg.RateLimit.Requests) / window.Seconds(),
		RateBurst:  cfg.RateLimit.Burst,
	}, logger)

	sweeper := model.NewSessionSweeper(db.DB, logger, metrics, cfg.SweepInterval.Std())

	mux := http.NewServeMux()
	mux.Handle("/", apiServer.Handler())
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx) // exits when ctx is cancelled
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("themestore up addr=%s db=%s", cfg.Addr, cfg.DBPath)
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}

	wg.Wait()
	log.Printf("themestore stopped")
}
