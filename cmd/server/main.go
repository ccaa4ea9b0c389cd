package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/codeprep-io/codeprep/internal/api"
	"github.com/codeprep-io/codeprep/internal/collab"
	"github.com/codeprep-io/codeprep/internal/config"
	"github.com/codeprep-io/codeprep/internal/database"
	"github.com/codeprep-io/codeprep/internal/stats"
	_ "github.com/lib/pq"
)

const defaultSigningKey = "Cq4hf1VO3nZIyDhM2bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	migrationsURL  string
	idleTimeout    time.Duration
	sweepInterval  time.Duration
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.StringVar(&migrationsURL, "migrations-url", "file://migrations", "migration source URL")
	flag.DurationVar(&idleTimeout, "idle-timeout", collab.DefaultIdleTimeout, "disconnect sockets idle longer than this")
	flag.DurationVar(&sweepInterval, "sweep-interval", collab.DefaultSweepInterval, "how often to sweep for idle sockets")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[codeprep] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins, idleTimeout, sweepInterval)
	if err != nil {
		logger.Fatal("config:", err)
	}
	cfg.MigrationsURL = migrationsURL

	dbConn, err := database.NewPgCodePrepRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(cfg.MigrationsURL); err != nil {
		logger.Fatal("migrate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	verifier := api.NewTokenVerifier(cfg.SigningKey, dbConn)
	collabServer := collab.NewCollabServer(logger, verifier, statsUpdater, cfg.IdleTimeout, cfg.SweepInterval)

	// No sandboxed runner is configured here; submissions fall back to
	// client-reported results.
	srv := api.NewCodePrepApp(mux, logger, collabServer, dbConn, nil, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go collabServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down collab server...")
	if err := collabServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("collab server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
