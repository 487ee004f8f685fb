package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"lidacacau/feed-service/internal/config"
	"lidacacau/feed-service/internal/db"
	"lidacacau/feed-service/internal/dismissal"
	"lidacacau/feed-service/internal/feed"
	"lidacacau/feed-service/internal/source"
)

const healthService = "lidacacau.feed"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the feed HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[feed-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.PostgresMaxConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	log.Println("[feed-service] PostgreSQL connected ✓")

	// ── Redis (events, and dismissals when backend=redis) ────────────────────
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		log.Println("[feed-service] Connecting to Redis…")
		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		log.Println("[feed-service] Redis connected ✓")
	}

	// ── Dismissal store ──────────────────────────────────────────────────────
	var store dismissal.Store
	switch cfg.DismissalBackend {
	case config.BackendSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		defer sqlDB.Close()
		s := dismissal.NewSQLiteStore(sqlDB)
		if err := s.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		store = s
	default:
		store = dismissal.NewRedisStore(rdb)
	}
	log.Printf("[feed-service] Dismissals persisted in %s", cfg.DismissalBackend)

	var events feed.Publisher = feed.NopPublisher{}
	if rdb != nil {
		events = feed.NewRedisPublisher(rdb)
	}

	// ── Candidate snapshot ───────────────────────────────────────────────────
	snapshot := source.NewSnapshot(source.NewPostgresSource(pool), cfg.SnapshotInterval)
	if err := snapshot.Start(ctx); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	defer snapshot.Stop()

	svc := feed.NewService(snapshot, dismissal.NewSessions(store), events, cfg.FallbackLocation, cfg.UpstreamTimeout)

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	feed.NewHandler(svc).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[feed-service] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[feed-service] HTTP server error: %v", err)
		}
	}()

	// ── gRPC health ──────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	grpcSrv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, hs)
	hs.SetServingStatus(healthService, healthpb.HealthCheckResponse_SERVING)

	go func() {
		log.Printf("[feed-service] gRPC health listening on :%s", cfg.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			log.Printf("[feed-service] gRPC server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[feed-service] Shutting down…")
	hs.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[feed-service] Shutdown error: %v", err)
	}
	grpcSrv.GracefulStop()
	log.Println("[feed-service] Stopped.")
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "feed-service",
		"version": version,
	})
}
