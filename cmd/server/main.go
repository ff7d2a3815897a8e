/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the vacation desk server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize SQLite store
  3. Create identity provider, controller and API handler
  4. Optionally load a demo scenario (-dev -seed)
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: vacation.db)
           Use ":memory:" for in-memory database
  -dev     Enable demo scenarios and the fallback JWT secret
  -seed    Scenario to load at startup (requires -dev)

ENVIRONMENT:
  VACATION_PORT, VACATION_DB, VACATION_DEV, VACATION_JWT_SECRET,
  VACATION_SESSION_TTL, VACATION_ALLOWED_ORIGINS,
  VACATION_DEFAULT_ANNUAL_DAYS, VACATION_DEFAULT_RATE
  Flags win over environment. A .env file in the working directory is read.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Local demo
  ./server -dev -db=":memory:" -seed=mid-year

  # Production
  VACATION_JWT_SECRET=... ./server -db="./data/vacation.db"

SEE ALSO:
  - config/config.go: Settings
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
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

	"github.com/warp/vacation-desk/api"
	"github.com/warp/vacation-desk/auth"
	"github.com/warp/vacation-desk/config"
	"github.com/warp/vacation-desk/store/sqlite"
	"github.com/warp/vacation-desk/vacation"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	provider := auth.NewProvider(store, []byte(cfg.JWTSecret), cfg.SessionTTL)

	controller := vacation.NewController(store)
	controller.Defaults = vacation.ProfileDefaults{
		AnnualVacationDays:     cfg.DefaultAnnualDays,
		CompensationRatePerDay: cfg.DefaultRate,
	}

	// Initialize handler
	handler := api.NewHandler(provider, store, controller)
	handler.DevMode = cfg.DevMode
	defer handler.Gate.Close()

	if cfg.Seed != "" {
		if _, err := handler.Seed(context.Background(), cfg.Seed); err != nil {
			log.Fatalf("Failed to load scenario %s: %v", cfg.Seed, err)
		}
		log.Printf("🌱 Loaded scenario %s (password %q)", cfg.Seed, api.DemoPassword)
	}

	// Create router
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", cfg.Port)
		log.Printf("📊 API available at http://localhost:%d/api", cfg.Port)
		if cfg.DevMode {
			log.Printf("🧪 Dev mode: scenarios at http://localhost:%d/api/scenarios", cfg.Port)
		}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
