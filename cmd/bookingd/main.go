package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"computer-booking-backend/config"
	"computer-booking-backend/internal/account"
	"computer-booking-backend/internal/api"
	"computer-booking-backend/internal/booking"
	"computer-booking-backend/internal/db"
	"computer-booking-backend/internal/notification"
	"computer-booking-backend/internal/session"
	"computer-booking-backend/internal/store"
	"computer-booking-backend/internal/validate"
)

func main() {
	logger := log.New(os.Stdout, "booking-backend ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	loc, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		logger.Fatalf("invalid booking timezone %q: %v", cfg.Booking.Timezone, err)
	}

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Println("VAPID keys are not configured; push notifications disabled")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	rules := validate.NewRules(cfg.Registration.EmailDomain)

	accounts := account.NewService(appStore, rules)
	if err := accounts.EnsureAdmin(ctx, cfg.Admin); err != nil {
		logger.Fatalf("failed to create admin account: %v", err)
	}

	sessions, err := session.New(&cfg.Session)
	if err != nil {
		logger.Fatalf("failed to initialize %s session store: %v", cfg.Session.Backend, err)
	}

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, notification.NewMailSender(cfg.Mail), webpushOptions)
	pool.Start(ctx)
	logger.Printf("notification workers started (%d)", cfg.WorkerPool.Size)

	bookings := booking.NewService(appStore, rules, pool, loc, cfg.Booking.MaxDaysAhead)

	router, limiter := api.NewRouter(api.Deps{
		Store:    appStore,
		Accounts: accounts,
		Bookings: bookings,
		Sessions: sessions,
		Rules:    rules,
		Session:  cfg.Session,
		Server:   cfg.Server,
		WebPush:  webpushOptions,
	})
	go limiter.Run(ctx, time.Minute)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}
	cancel()

	logger.Println("Server gracefully stopped")
}
