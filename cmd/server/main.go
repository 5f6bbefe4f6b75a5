// Package main is the entry point for the calendar sync server.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AhmadHamada1/cal.com/internal/api"
	"github.com/AhmadHamada1/cal.com/internal/calendar"
	"github.com/AhmadHamada1/cal.com/internal/config"
	"github.com/AhmadHamada1/cal.com/internal/provider"
	"github.com/AhmadHamada1/cal.com/internal/storage"
	"github.com/AhmadHamada1/cal.com/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	// Parse command-line flags
	addr := flag.String("addr", ":8099", "HTTP server address")
	dataDir := flag.String("data", "/data", "Data directory for SQLite database")
	configPath := flag.String("config", "calsync.toml", "Path to TOML configuration file")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(*addr); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		os.Exit(0)
	}

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	log.Printf("Starting calendar sync server (version: %s)...", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory %q: %v", *dataDir, err)
	}
	dbPath := *dataDir + "/calsync.db"
	db, err := storage.NewDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := storage.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations complete")

	// Initialize WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()
	broadcaster := websocket.NewEventBroadcaster(hub)

	// Initialize repositories
	subscriptionRepo := storage.NewSubscriptionRepository(db)
	selectedCalendarRepo := storage.NewSelectedCalendarRepository(db)
	credentialRepo := storage.NewCredentialRepository(db)
	events := storage.NewTrackedEventStore(storage.NewEventRepository(db), nil)

	// Initialize provider collaborators
	googleFactory := provider.NewGoogleClientFactory(
		provider.OAuthApp{ClientID: cfg.ClientID, ClientSecret: cfg.ClientSecret},
		provider.WatchConfig{
			CallbackURL:  cfg.WebhookCallbackURL,
			ChannelToken: cfg.WebhookChannelToken,
			EventWindow:  cfg.EventWindow(),
		},
	)
	clientFactory := calendar.NewProviderClientFactory(googleFactory)
	credentialResolver := calendar.NewStoredCredentialResolver(credentialRepo)

	// Initialize services
	subscriptionService := calendar.NewSubscriptionService(subscriptionRepo, selectedCalendarRepo)
	webhookService := calendar.NewWebhookService(
		subscriptionRepo,
		selectedCalendarRepo,
		events,
		credentialResolver,
		clientFactory,
		calendar.LogDownstreamSyncer{},
		broadcaster,
		cfg.WebhookChannelToken,
		calendar.AppInfo{Type: "google_calendar", Name: "Google Calendar"},
	)

	// Initialize the renewal scheduler
	renewalScheduler := calendar.NewRenewalScheduler(
		subscriptionService,
		subscriptionRepo,
		selectedCalendarRepo,
		events,
		credentialResolver,
		clientFactory,
		broadcaster,
		cfg.RenewalInterval(),
		cfg.RenewalWindow(),
		cfg.RenewalBatchSize,
	)
	if err := renewalScheduler.Start(); err != nil {
		log.Printf("Warning: Failed to start renewal scheduler: %v", err)
	}

	// Initialize HTTP router
	router := api.NewRouter(db, hub, subscriptionRepo, events, subscriptionService, webhookService)

	// Create HTTP server
	server := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Printf("Server listening on %s", *addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	renewalScheduler.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return http.ErrAbortHandler
	}
	return nil
}
