package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ow-stat-tracker/internal/api"
	"github.com/ow-stat-tracker/internal/config"
	"github.com/ow-stat-tracker/internal/dashboard"
	"github.com/ow-stat-tracker/internal/kafka"
	"github.com/ow-stat-tracker/internal/overfast"
	"github.com/ow-stat-tracker/internal/stats"
	"github.com/ow-stat-tracker/internal/storage"
	"github.com/ow-stat-tracker/internal/websocket"
	"github.com/ow-stat-tracker/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	// Snapshot file is created with its header up front
	csvStore := storage.NewCSVStore(cfg.SnapshotFile)
	if err := csvStore.Ensure(); err != nil {
		log.Fatalf("Snapshot store unavailable: %v", err)
	}
	log.Printf("Snapshots stored in %s", csvStore.Path())

	// Upstream client with a short-lived cache in front
	client := overfast.NewClient(overfast.WithBaseURL(cfg.BaseURL))
	source := overfast.NewCachedClient(client, cfg.CacheTTL)

	// Initialize WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	opts := []dashboard.Option{
		dashboard.WithCooldown(cfg.Cooldown),
		dashboard.WithNotifier(hub),
	}

	// Initialize PostgreSQL history mirror (optional)
	var history *storage.PostgresStore
	if cfg.DatabaseURL != "" {
		history, err = storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Database not available: %v", err)
			log.Println("Running without history database (snapshots go to the CSV file only)")
		} else {
			defer history.Close()
			opts = append(opts, dashboard.WithMirror(history))
		}
	}

	// Initialize Kafka producer
	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		log.Printf("Warning: Kafka producer not available: %v", err)
	}
	defer producer.Close()
	if producer.IsEnabled() {
		opts = append(opts, dashboard.WithEvents(producer))
	}

	// Initialize Kafka consumer (optional)
	var consumer *kafka.Consumer
	if producer.IsEnabled() {
		consumer, err = kafka.NewConsumer(cfg.KafkaBrokers)
		if err != nil {
			log.Printf("Warning: Kafka consumer not available: %v", err)
		} else {
			consumer.Start()
			defer consumer.Stop()
		}
	}

	sessions := dashboard.NewSessions(cfg.SessionTTL)
	service := dashboard.NewService(source, csvStore, opts...)
	apiHandlers := api.NewHandlers(service, sessions, hub, producer, consumer)
	handler := websocket.NewHandler(sessions)

	// Set up HTTP router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API routes
	r.Route("/api", apiHandlers.RegisterRoutes)

	// WebSocket endpoint
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(hub, handler, w, r, apiHandlers.SessionID(w, r))
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Get("/", web.Index(web.PageData{
		UpstreamURL:    cfg.BaseURL,
		SnapshotFile:   csvStore.Path(),
		Heroes:         stats.Heroes,
		Gamemodes:      dashboard.Gamemodes,
		Platforms:      dashboard.Platforms,
		HistoryEnabled: history != nil,
	}))

	// Create server. WriteTimeout leaves room for a fully backed-off fetch
	// (two calls, five attempts each).
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		log.Printf("Dashboard: http://localhost:%s/", cfg.Port)
		log.Printf("Upstream API: %s", cfg.BaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited properly")
}
