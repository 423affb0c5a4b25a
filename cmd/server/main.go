package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/janisto/account-lifecycle/internal/http/health"
	"github.com/janisto/account-lifecycle/internal/http/v1/routes"
	"github.com/janisto/account-lifecycle/internal/platform/auth"
	"github.com/janisto/account-lifecycle/internal/platform/config"
	"github.com/janisto/account-lifecycle/internal/platform/firebase"
	applog "github.com/janisto/account-lifecycle/internal/platform/logging"
	"github.com/janisto/account-lifecycle/internal/platform/metrics"
	appmiddleware "github.com/janisto/account-lifecycle/internal/platform/middleware"
	"github.com/janisto/account-lifecycle/internal/platform/respond"
	"github.com/janisto/account-lifecycle/internal/platform/tracing"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

func main() {
	defer func() {
		if err := applog.Sync(); err != nil {
			applog.LogError(context.Background(), "logger sync error", err)
		}
	}()
	if err := applog.Err(); err != nil {
		applog.LogError(context.Background(), "logger init error", err)
	}
	if err := run(); err != nil {
		applog.LogError(context.Background(), "server failed", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applog.SetLevel(cfg.LogLevel); err != nil {
		applog.LogWarn(ctx, "invalid log level, keeping default", zap.String("level", cfg.LogLevel))
	}

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			applog.LogError(context.Background(), "tracer shutdown error", err)
		}
	}()

	clients, err := firebase.InitializeClients(ctx, cfg.Firebase)
	if err != nil {
		return err
	}
	defer func() { _ = clients.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewCollector(reg)

	svcs, err := buildServices(ctx, cfg, clients, rec)
	if err != nil {
		return err
	}
	defer svcs.Close()

	limiter := appmiddleware.NewRateLimiter(
		appmiddleware.PerMinute(cfg.Account.DeleteRatePerMinute, cfg.Account.DeleteRateBurst), rec)
	defer limiter.Stop()

	router := newRouter(auth.NewFirebaseVerifier(clients.Auth), limiter, svcs, reg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(router, "http.server"),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    64 << 10, // 64 KB
	}

	listenErr := make(chan error, 1)
	go func() {
		applog.LogInfo(ctx, "server listening", zap.String("addr", srv.Addr), zap.String("version", Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-listenErr:
		return err
	case <-stop:
		applog.LogInfo(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		applog.LogError(shutdownCtx, "server shutdown error", err)
	}
	applog.LogInfo(ctx, "server exited")
	return nil
}

// newRouter builds the HTTP handler: base middleware, problem responses for
// unrouted requests, health and metrics endpoints, and the versioned API.
func newRouter(
	verifier auth.Verifier,
	limiter *appmiddleware.RateLimiter,
	svcs *services,
	gatherer prometheus.Gatherer,
) chi.Router {
	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	// Base middleware stack
	router.Use(
		appmiddleware.Security("/v1/api-docs"),
		appmiddleware.Vary(),
		appmiddleware.CORS(),
		appmiddleware.RequestID(),
		// RealIP extracts client IP from X-Real-IP or X-Forwarded-For headers.
		// SECURITY: Only use behind a trusted reverse proxy (e.g., Cloud Run, nginx).
		chimiddleware.RealIP,
		chimiddleware.RequestSize(1<<20), // 1 MB limit
		applog.RequestLogger(),
		applog.AccessLogger(),
		respond.Recoverer(),
	)

	router.Get("/health", health.Handler(map[string]health.Checker{
		"account": svcs.Account,
		"profile": svcs.Profile,
	}))
	router.Handle("/metrics", metrics.Handler(gatherer))

	router.Route("/v1", func(r chi.Router) {
		cfg := huma.DefaultConfig("Account Lifecycle API", Version)
		cfg.DocsPath = "/api-docs"
		cfg.Servers = []*huma.Server{{URL: "/v1"}}
		cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
			"bearerAuth": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
		}
		api := humachi.New(r, cfg)
		addCBORContent(api)
		routes.Register(api, verifier, limiter, routes.Services{
			Account: svcs.Account,
			Profile: svcs.Profile,
		})
	})

	return router
}

// addCBORContent documents CBOR alongside JSON for every request and response body.
func addCBORContent(api huma.API) {
	api.OpenAPI().OnAddOperation = append(api.OpenAPI().OnAddOperation,
		func(_ *huma.OpenAPI, op *huma.Operation) {
			if op.RequestBody != nil && op.RequestBody.Content != nil {
				if jsonContent, ok := op.RequestBody.Content["application/json"]; ok {
					op.RequestBody.Content["application/cbor"] = jsonContent
				}
			}
			for _, resp := range op.Responses {
				if resp.Content == nil {
					continue
				}
				if jsonContent, ok := resp.Content["application/json"]; ok {
					resp.Content["application/cbor"] = jsonContent
				}
			}
		},
	)
}
