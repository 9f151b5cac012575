package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/svcgateway/backend/internal/api"
	"github.com/svcgateway/backend/internal/config"
	"github.com/svcgateway/backend/internal/dispatch"
	"github.com/svcgateway/backend/internal/metrics"
	"github.com/svcgateway/backend/internal/ratelimit"
	"github.com/svcgateway/backend/internal/store"
)

const serviceName = "service-gateway"

var (
	version     = "dev"
	buildTime   = "unknown"
	showVersion = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s, build %s\n", serviceName, version, buildTime)
		return
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()

	mgr := store.NewManager(store.ManagerConfig{
		DatabaseURL:   cfg.DatabaseURL,
		RedisEndpoint: cfg.RedisEndpoint,
		Dynamo: store.DynamoConfig{
			TableName:       cfg.DynamoTable,
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.AWSEndpoint,
			AccessKeyID:     cfg.AWSAccessKey,
			SecretAccessKey: cfg.AWSSecretKey,
		},
	})

	// Backend failures are absorbed: the gateway always reaches a
	// running state and serves in degraded mode.
	mgr.Initialize(ctx)
	defer mgr.Close()

	agg := metrics.NewAggregator()
	limiter := ratelimit.NewLimiter(cfg.RateLimit, ratelimit.DefaultWindow)

	targets := make([]dispatch.Target, len(cfg.Services))
	for i, s := range cfg.Services {
		targets[i] = dispatch.Target{
			Name:    s.Name,
			Host:    s.Host,
			Port:    s.Port,
			Timeout: time.Duration(s.TimeoutSeconds) * time.Second,
		}
	}
	dispatcher := dispatch.NewDispatcher(targets, agg.RecordServiceCall)

	handlers := api.NewHandlers(mgr, dispatcher, agg, serviceName, version)
	handler := limiter.Middleware(handlers.Instrument(handlers.Routes()))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("gateway listening on :%s (%d downstream services)", cfg.Port, len(cfg.Services))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
