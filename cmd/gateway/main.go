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

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"marketchat/internal/api"
	"marketchat/internal/backbone"
	"marketchat/internal/broadcast"
	"marketchat/internal/config"
	"marketchat/internal/gateway"
	"marketchat/internal/stats"
	"marketchat/internal/store"
)

const defaultSigningKey = "c2Vzc2lvbi1zaWduaW5nLWtleS1mb3ItbG9jYWwtZGV2Cg=="

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
	redisURL       string
	signingKey     string
	allowedOrigins stringSliceFlag
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// .env is optional, flags still win
	godotenv.Load()

	flag.StringVar(&addr, "addr", envOr("MARKETCHAT_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", envOr("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=marketchat sslmode=disable"), "database connection string")
	flag.StringVar(&redisURL, "redis-url", os.Getenv("REDIS_URL"), "redis backbone url, empty for single-process mode")
	flag.StringVar(&signingKey, "signing-key", envOr("MARKETCHAT_SIGNING_KEY", defaultSigningKey), "base64 encoded session signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[marketchat] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, redisURL, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := store.NewPgChatRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	// a missing or unreachable backbone degrades to single-process
	// delivery, it never stops the gateway
	var bb backbone.Backbone = backbone.NewNoop()
	if cfg.RedisURL != "" {
		redisBackbone, err := backbone.NewRedisBackbone(logger, cfg.RedisURL)
		if err != nil {
			logger.Println("backbone unavailable, continuing in single-process mode:", err)
		} else {
			bb = redisBackbone
		}
	}
	defer bb.Close()

	rooms := gateway.NewRoomManager()
	coordinator := broadcast.NewCoordinator(logger, rooms, bb, statsUpdater)

	gw, err := gateway.NewGateway(logger, dbConn, rooms, coordinator, statsUpdater)
	if err != nil {
		logger.Fatal("new gateway:", err)
	}

	srv := api.NewChatApp(mux, logger, gw, coordinator, dbConn, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	consumeCtx, stopConsuming := context.WithCancel(context.Background())
	defer stopConsuming()
	bb.Start(consumeCtx, coordinator.HandleRemote)

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

	logger.Println("shutting down gateway...")
	gw.Shutdown()

	logger.Println("shutdown complete")
}
