// Package main is the entry point for the MiruSuite bridge server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/bbernstein/mirusuite-bridge/internal/config"
	"github.com/bbernstein/mirusuite-bridge/internal/database"
	"github.com/bbernstein/mirusuite-bridge/internal/database/repositories"
	"github.com/bbernstein/mirusuite-bridge/internal/host"
	"github.com/bbernstein/mirusuite-bridge/internal/host/httpapi"
	"github.com/bbernstein/mirusuite-bridge/internal/services/pubsub"
	"github.com/bbernstein/mirusuite-bridge/internal/services/status"
	"github.com/bbernstein/mirusuite-bridge/internal/surface/midi"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	printBanner(cfg)

	db, err := database.Connect(database.Config{
		URL:         cfg.DatabaseURL,
		MaxIdleConn: 5,
		MaxOpenConn: 10,
		Debug:       cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close() }()

	log.Println("Running database migrations...")
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migrations complete")

	deps := host.Deps{
		Banks:      repositories.NewBankRepository(db),
		Variables:  repositories.NewVariableRepository(db),
		Tracker:    status.NewTracker(),
		PubSub:     pubsub.New(),
		NewBackend: host.NewMiruBackend(cfg.MiruRequestTimeout),
		LogoPath:   cfg.LogoPath,
	}
	if cfg.EventsEnabled {
		deps.Events = &host.EventsConfig{
			Path:           cfg.EventsPath,
			ReconnectDelay: cfg.EventsReconnectDelay,
		}
	}
	inst := host.NewInstance(deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A failed first connection leaves the instance offline; POST /config retries.
	if err := inst.Init(ctx, hostConfig(cfg)); err != nil {
		log.Printf("Warning: invalid MiruSuite configuration: %v", err)
	}

	if cfg.MIDIInputPort != "" {
		startMIDI(ctx, inst, cfg)
	}

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     newRouter(cfg, inst),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on http://localhost:%s\n", cfg.Port)
		log.Printf("Host API: http://localhost:%s/api\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancel()
	inst.Destroy()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// hostConfig builds the instance configuration from the environment.
func hostConfig(cfg *config.Config) host.Config {
	return host.Config{
		Host:     cfg.MiruHost,
		Port:     cfg.MiruPort,
		Username: cfg.MiruUsername,
		Password: cfg.MiruPassword,
	}
}

// newRouter mounts the health check and the host API.
func newRouter(cfg *config.Config, inst *host.Instance) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin, "http://localhost:3000", "http://localhost:4000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		Debug:            cfg.IsDevelopment(),
	})
	router.Use(corsMiddleware.Handler)

	router.Get("/health", healthCheckHandler)
	router.Mount("/api", httpapi.NewHandler(inst).Routes())

	return router
}

// startMIDI attaches the pad controller. A missing port is logged, not fatal.
func startMIDI(ctx context.Context, inst *host.Instance, cfg *config.Config) {
	bridge := midi.NewBridge(inst, cfg.MIDIChannel)
	stop, err := bridge.Listen(cfg.MIDIInputPort)
	if err != nil {
		log.Printf("Warning: MIDI surface disabled: %v (available ports: %v)", err, midi.InPorts())
		return
	}
	go bridge.Run(ctx)
	go func() {
		<-ctx.Done()
		stop()
		midi.Close()
	}()
}

// healthCheckHandler returns the server health status.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := fmt.Sprintf(`{
  "status": "ok",
  "timestamp": "%s",
  "version": "%s",
  "uptime": "N/A"
}`, time.Now().UTC().Format(time.RFC3339), Version)

	_, _ = w.Write([]byte(response))
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println("============================================")
	fmt.Println("  MiruSuite Bridge")
	fmt.Printf("  Version: %s\n", Version)
	fmt.Printf("  Build:   %s\n", BuildTime)
	fmt.Printf("  Commit:  %s\n", GitCommit)
	fmt.Println("============================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Port:        %s\n", cfg.Port)
	fmt.Printf("  Database:    %s\n", cfg.DatabaseURL)
	fmt.Printf("  MiruSuite:   %s\n", cfg.MiruAddress())
	fmt.Printf("  Events:      %v\n", cfg.EventsEnabled)
	if cfg.MIDIInputPort != "" {
		fmt.Printf("  MIDI:        %s (channel %d)\n", cfg.MIDIInputPort, cfg.MIDIChannel)
	}
	fmt.Println("============================================")
}
