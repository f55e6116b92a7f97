package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"roomsync/internal/config"
	"roomsync/internal/database"
	"roomsync/internal/realtime"
	"roomsync/internal/repositories"
	"roomsync/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Publish/store client plus a dedicated subscriber connection; a Redis
	// connection in subscribe mode cannot issue regular commands.
	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create redis client: %v", err)
	}
	defer redisClient.Close()

	subClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create redis subscriber client: %v", err)
	}
	defer subClient.Close()

	var store repositories.PresenceStore
	switch cfg.PresenceBackend {
	case config.BackendMemory:
		store = repositories.NewMemoryPresenceStore()
	default:
		store = repositories.NewRedisPresenceStore(redisClient)
	}

	hub := realtime.NewHub()
	fanout := realtime.NewClusterFanout(redisClient, subClient, hub)
	if err := fanout.HealthCheck(ctx); err != nil {
		log.Fatalf("Fanout health check failed: %v", err)
	}

	presence := realtime.NewPresenceCoordinator(store, fanout)
	messaging := realtime.NewMessagingRouter(store, fanout, hub)
	verifier := services.NewTokenService(cfg.JWTSecret)
	rt := realtime.NewServer(hub, presence, messaging, verifier, cfg.CORSOrigin)

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	router.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := rt.PresenceStats(r.Context())
		if err != nil {
			http.Error(w, "presence store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})
	router.Get("/ws", rt.ServeWS)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return fanout.Run(gctx)
	})

	// Liveness janitor: the store never schedules its own cleanup.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.PurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := presence.PurgeInactive(gctx, cfg.PresenceMaxIdle); err != nil {
					log.Printf("Presence purge failed: %v", err)
				}
			}
		}
	})

	g.Go(func() error {
		log.Printf("Starting server on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		rt.CloseAll()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
