package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"google.golang.org/grpc"

	"claimiq.io/internal/audit"
	"claimiq.io/internal/auth"
	"claimiq.io/internal/claims"
	"claimiq.io/internal/config"
	"claimiq.io/internal/httpapi"
	"claimiq.io/internal/obs"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var db *sql.DB
	if cfg.PGDSN != "" {
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	keys := auth.NewKeyCache(cfg.JWKSURL(), auth.WithKeyTTL(cfg.KeyCacheTTL))
	validator := auth.NewValidator(keys, cfg.ClientID, cfg.Issuer())

	// Audit goes to Postgres when a database is configured, otherwise to the
	// structured log stream.
	var sink audit.Sink = audit.LogSink{}
	var store claims.Store
	if db != nil {
		sink = audit.NewPGSink(db)
		store = claims.NewPGStore(db)
	}

	probe := httpapi.ReadyProbe{DB: db}
	api := httpapi.New(probe, version, validator, sink, store)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// gRPC health endpoint for gateway-side checks.
	grpcSrv := grpc.NewServer()
	health := httpapi.NewGRPCServer(probe)
	health.Register(grpcSrv)
	go health.Watch(ctx, 10*time.Second)
	go func() {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		if err := grpcSrv.Serve(lis); err != nil {
			log.Fatalf("grpc serve: %v", err)
		}
	}()

	log.Printf("Starting claimiq-api %s on %s (grpc %s)", version, srv.Addr, cfg.GRPCAddr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
