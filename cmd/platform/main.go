package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/telegis/platform/internal/access"
	"github.com/telegis/platform/internal/analytics"
	"github.com/telegis/platform/internal/audit"
	"github.com/telegis/platform/internal/grant"
	"github.com/telegis/platform/internal/identity"
	"github.com/telegis/platform/internal/request"
	"github.com/telegis/platform/internal/shared/auth"
	"github.com/telegis/platform/internal/shared/config"
	"github.com/telegis/platform/internal/shared/database"
	"github.com/telegis/platform/internal/shared/events"
	"github.com/telegis/platform/internal/shared/metrics"
	secmiddleware "github.com/telegis/platform/internal/shared/middleware"
	"github.com/telegis/platform/internal/sweeper"
	"github.com/telegis/platform/internal/zone"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    events.EventBus
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	// Initialize database (optional - fall back to in-memory stores)
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Printf("Warning: Database not available: %v\n", err)
		fmt.Println("Running with in-memory stores...")
	} else {
		app.DB = db
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool); err != nil {
			fmt.Printf("Warning: Migration failed: %v\n", err)
		}
	}

	// Initialize event bus (optional - fall back to the in-process bus)
	if cfg.EventStore.Enabled {
		bus, err := events.NewBus(ctx, cfg.EventStore)
		if err != nil {
			fmt.Printf("Warning: EventStoreDB not available: %v\n", err)
			app.Bus = events.NewMemoryBus()
		} else {
			app.Bus = bus
			defer bus.Close()
			fmt.Println("EventStoreDB event bus initialized")
		}
	} else {
		app.Bus = events.NewMemoryBus()
	}

	// Staff directory (optional - fall back to an empty static directory)
	var directory identity.Directory
	if cfg.Directory.Enabled {
		dir, err := identity.NewSQLServerDirectory(ctx, cfg.Directory.DSN)
		if err != nil {
			fmt.Printf("Warning: Staff directory not available: %v\n", err)
			directory = identity.NewStaticDirectory()
		} else {
			directory = dir
			defer dir.Close()
			fmt.Println("Staff directory connected")
		}
	} else {
		directory = identity.NewStaticDirectory()
	}

	// Audit trail backs every other component; pick the store by
	// database availability.
	var auditStore audit.Store
	if app.DB != nil {
		auditStore = audit.NewRepository(app.DB.Pool)
	} else {
		auditStore = audit.NewMemoryStore()
	}
	trail := audit.NewTrail(auditStore, audit.WithMaxEntries(cfg.Authz.AuditMaxEntries))

	var zoneStore zone.Store = zone.NewMemoryStore()
	var grantStore grant.Store = grant.NewMemoryStore()
	var requestStore request.Store = request.NewMemoryStore()
	if app.DB != nil {
		zoneStore = zone.NewRepository(app.DB)
		grantStore = grant.NewRepository(app.DB)
		requestStore = request.NewRepository(app.DB)
	}

	zones := zone.NewRegistry(zoneStore, trail, zone.WithBus(app.Bus))
	grants := grant.NewService(grantStore, trail, grant.WithBus(app.Bus))
	requests := request.NewWorkflow(requestStore, trail, request.WithBus(app.Bus))
	resolver := access.NewResolver(directory, zones, grants, trail,
		access.WithRegionUniverse(cfg.Authz.Regions))
	aggregator := analytics.NewAggregator(trail)

	// Background grant-expiry sweep with session notification
	sweep := sweeper.New(grants, resolver,
		sweeper.WithInterval(cfg.Authz.SweepInterval),
		sweeper.WithBus(app.Bus))
	sweep.Start(ctx)
	defer sweep.Stop()

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.RateLimiter(50, 100))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth))

		r.Mount("/zones", zone.NewHandler(zones).Routes())
		r.Mount("/grants", grant.NewHandler(grants).Routes())
		r.Mount("/requests", request.NewHandler(requests).Routes())
		r.Mount("/access", access.NewHandler(resolver).Routes())
		r.Mount("/audit", audit.NewHandler(trail).Routes())
		r.Mount("/analytics", analytics.NewHandler(aggregator).Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("TeleGIS Authorization Engine")
	fmt.Println("============================================")
	fmt.Printf("Environment:    %s\n", cfg.Server.Env)
	fmt.Printf("Server:         http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:            http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:         http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("Audit cap:      %d entries\n", cfg.Authz.AuditMaxEntries)
	fmt.Printf("Sweep interval: %s\n", cfg.Authz.SweepInterval)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "TeleGIS Authorization Engine",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["events"] = "not ready: " + err.Error()
			} else {
				checks["events"] = "ready"
			}
		} else {
			checks["events"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
