// Command server runs the book store with contracts, its OpenAPI document and Swagger UI.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/AntonStoeckl/endpoint-contracts-go/contracts"
	"github.com/AntonStoeckl/endpoint-contracts-go/contracts/oteladapters"
	"github.com/AntonStoeckl/endpoint-contracts-go/example/bookstore"
	"github.com/AntonStoeckl/endpoint-contracts-go/example/bookstore/config"
	"github.com/AntonStoeckl/endpoint-contracts-go/openapi"
	"github.com/AntonStoeckl/endpoint-contracts-go/routing"
	"github.com/AntonStoeckl/endpoint-contracts-go/swaggerui"
)

const (
	serviceName       = "bookstore"
	serviceVersion    = "1.0.0"
	schemaPath        = "/openapi.json"
	schemaCachePrefix = "bookstore:openapi"
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checkerOptions := []contracts.CheckerOption{
		contracts.WithMode(cfg.ContractsMode),
		contracts.WithLogger(logger),
	}

	if cfg.OTLPEndpoint != "" {
		providers, err := config.NewObservability(ctx, cfg.OTLPEndpoint, serviceName, serviceVersion)
		if err != nil {
			return err
		}
		defer func() {
			if err := providers.Shutdown(); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err)
			}
		}()

		checkerOptions = append(checkerOptions,
			contracts.WithContextualLogger(oteladapters.NewSlogBridgeLogger(serviceName)),
			contracts.WithMetrics(oteladapters.NewMetricsCollector(otel.Meter(serviceName))),
			contracts.WithTracing(oteladapters.NewTracingCollector(otel.Tracer(serviceName))),
		)
	}

	checker, err := contracts.NewChecker(checkerOptions...)
	if err != nil {
		return err
	}

	store, closeStore, err := config.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	service, err := bookstore.NewService(store, checker)
	if err != nil {
		return err
	}

	router, err := routing.NewRouter(
		routing.WithLogger(logger),
		routing.WithViolationDetails(cfg.ExposeViolations),
	)
	if err != nil {
		return err
	}

	if err := service.Register(router); err != nil {
		return err
	}

	annotatorOptions := []openapi.Option{openapi.WithExtensionValidation(), openapi.WithLogger(logger)}
	if cfg.RedisAddr != "" {
		cache, err := openapi.NewRedisCacheFromAddr(cfg.RedisAddr, "", 0, schemaCachePrefix)
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()

		annotatorOptions = append(annotatorOptions, openapi.WithCache(cache))
	}

	annotator, err := openapi.NewAnnotator(router, openapi.Info{
		Title:       "Book Store",
		Description: "Books by author and category, with contracts on every endpoint.",
		Version:     serviceVersion,
	}, annotatorOptions...)
	if err != nil {
		return err
	}

	if err := router.ServeSchema(schemaPath, annotator); err != nil {
		return err
	}

	docsOptions := []swaggerui.RouteOption{
		swaggerui.Title("Book Store - Swagger UI"),
		swaggerui.OAuth2Redirect(cfg.DocsPath + "/oauth2-redirect"),
	}
	if cfg.DocsPluginURL != "" {
		docsOptions = append(docsOptions, swaggerui.Assets(func(c *swaggerui.Config) {
			c.ContractsPluginURL = cfg.DocsPluginURL
		}))
	}

	if err := swaggerui.SetUpRoute(router, cfg.DocsPath, docsOptions...); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", server.Addr,
			"store_driver", cfg.StoreDriver,
			"contracts_mode", checker.Mode().String(),
			"docs", cfg.DocsPath)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
