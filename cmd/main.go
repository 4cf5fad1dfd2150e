package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-co-op/gocron"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.38.0"
	"gorm.io/plugin/opentelemetry/tracing"

	portfolio "github.com/lumenfolio/portfolio-api"
	routing "github.com/lumenfolio/portfolio-api/pkg/api"
	"github.com/lumenfolio/portfolio-api/pkg/config"
	"github.com/lumenfolio/portfolio-api/pkg/database"
	"github.com/lumenfolio/portfolio-api/pkg/sync"
	"github.com/lumenfolio/portfolio-api/pkg/unsplash"
)

func getLogLevelFromEnv() slog.Level {
	levelStr := os.Getenv("LOG_LEVEL")

	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func remoteConfig(cfg *config.Config) unsplash.Config {
	return unsplash.Config{
		AccessKey: cfg.AccessKey,
		Username:  cfg.Username,
		Timeout:   cfg.RemoteTimeout,
	}
}

func syncOptions(cfg *config.Config) sync.Options {
	return sync.Options{
		Budget:           cfg.CallBudget,
		PerPage:          cfg.PerPage,
		EnrichCount:      cfg.EnrichCount,
		FeaturedIDs:      cfg.FeaturedIDs,
		MaxPhotos:        cfg.MaxPhotos,
		MaxPerCollection: cfg.MaxPerCollection,
		RetryAttempts:    int(cfg.RetryAttempts),
		RetryDelay:       cfg.RetryDelay,
	}
}

func setupTracing(ctx context.Context, store *database.Store) error {
	exp, err := otlptracegrpc.New(ctx)
	if err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(
			resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceName("portfolio-api"),
			),
		),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return store.DB().Use(tracing.NewPlugin())
}

func serve(c *cli.Context) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: getLogLevelFromEnv()})))

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}

	if os.Getenv("TRACING_ENABLED") == "true" {
		if err := setupTracing(c.Context, store); err != nil {
			return err
		}
	}

	remote := remoteConfig(cfg)
	runner := sync.NewRunner(store, remote, syncOptions(cfg), slog.Default())

	router := chi.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "HEAD", "PUT", "PATCH", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Server"},
		AllowCredentials: false,
	}))

	addr := ":" + cfg.Port
	host := cfg.PublicURL
	if host == "" {
		host = "http://localhost" + addr
	}

	humaCfg := huma.DefaultConfig("Portfolio API", "1.0.0")
	humaCfg.OpenAPI.Info.Description = portfolio.Readme
	humaCfg.OpenAPI.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	humaCfg.DocsPath = "/"
	humaCfg.Servers = []*huma.Server{
		{URL: host},
	}
	api := humachi.New(router, humaCfg)

	routing.Setup(api, routing.Deps{
		Store:  store,
		Runner: runner,
		Remote: unsplash.New(remote),
	})

	if err := cfg.ValidateRemote(); err != nil {
		// The read API still works from whatever the store already holds.
		slog.Warn("synchronization disabled", "error", err)
	} else {
		scheduler := gocron.NewScheduler(time.UTC)
		scheduler.SetMaxConcurrentJobs(1, gocron.WaitMode)
		if _, err := scheduler.Cron(cfg.SyncCron).Do(func() {
			if _, err := runner.RunOnce(context.Background()); err != nil {
				slog.Error("scheduled synchronization rejected", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("invalid SYNC_CRON %q: %w", cfg.SyncCron, err)
		}
		scheduler.StartAsync()

		// Catch up right away when the last run is stale or missing.
		go func() {
			last, err := store.LastSyncRun(context.Background())
			if err != nil {
				slog.Error("failed to read sync history", "error", err)
				return
			}
			if last == nil || time.Since(last.StartedAt) > 24*time.Hour {
				if _, err := runner.RunOnce(context.Background()); err != nil {
					slog.Error("catch-up synchronization rejected", "error", err)
				}
			}
		}()
	}

	go store.ComputeAndCacheStats(false)

	server := &http.Server{
		Addr:    addr,
		Handler: otelhttp.NewHandler(router, "api"),
	}

	slog.Info("starting server", "addr", addr)
	return server.ListenAndServe()
}

func syncOnce(c *cli.Context) error {
	// Logs go to stderr so the summary on stdout stays pipeable.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: getLogLevelFromEnv()})))

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.Bool("test") {
		cfg.ApplyTestMode()
	}
	if b := c.Int("budget"); b > 0 {
		cfg.CallBudget = b
	}
	if m := c.Int("max-photos"); m > 0 {
		cfg.MaxPhotos = m
	}
	if err := cfg.ValidateRemote(); err != nil {
		return err
	}

	store, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	runner := sync.NewRunner(store, remoteConfig(cfg), syncOptions(cfg), slog.Default())
	summary, err := runner.RunOnce(c.Context)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if summary.Aborted {
		return cli.Exit("synchronization aborted before completing", 1)
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "portfolio-api",
		Usage: "photography portfolio backend mirroring an Unsplash account",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the sync scheduler",
				Action: serve,
			},
			{
				Name:  "sync",
				Usage: "run a single synchronization pass and print its summary",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "test",
						Usage: "cap the run volume for a cheap smoke pass",
					},
					&cli.IntFlag{
						Name:  "budget",
						Usage: "override the API call budget for this run",
					},
					&cli.IntFlag{
						Name:  "max-photos",
						Usage: "stop the bulk phase after this many photos",
					},
				},
				Action: syncOnce,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
