package main

import (
	"context"
	"log"
	"time"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/config"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/httpapi"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/metrics"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/store"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	sentryFlushTimeout    = 2 * time.Second
	environmentProduction = "production"
)

// releaseVersion is set via ldflags during build.
var releaseVersion = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			Release:          "composerd@" + releaseVersion,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
			EnableLogs:       true,
			Debug:            cfg.Environment != environmentProduction,
			BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
				if event.Request != nil {
					event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
				}
				return event
			},
		}); err != nil {
			log.Printf("Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("Sentry initialized (environment: %s, release: %s)", cfg.Environment, releaseVersion)
			defer sentry.Flush(sentryFlushTimeout)
		}
	} else {
		log.Println("Sentry not configured (SENTRY_DSN not set)")
	}

	log.Printf("Auth mode: %s", cfg.AuthMode)

	if cfg.Environment == environmentProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open composition store: %v", err)
	}

	var cw *metrics.Client
	if cfg.CloudWatchEnabled {
		cw, err = metrics.NewClient(context.Background(), cfg.Environment, cfg.CloudWatchEnabled)
		if err != nil {
			log.Printf("CloudWatch metrics disabled: %v", err)
			cw = nil
		}
	}

	router := httpapi.NewRouter(cfg, db, cw)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting composerd on port %s", port)
	if err := router.Run(":" + port); err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to start server:", err)
	}
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string)
	sensitiveKeys := map[string]bool{
		"authorization": true,
		"cookie":        true,
		"x-api-key":     true,
	}
	for k, v := range headers {
		if sensitiveKeys[k] {
			filtered[k] = "[REDACTED]"
		} else {
			filtered[k] = v
		}
	}
	return filtered
}
