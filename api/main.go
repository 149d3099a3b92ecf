package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/glancehq/pulse/api/config"
	"github.com/glancehq/pulse/api/handlers"
	"github.com/glancehq/pulse/api/metrics"
	"github.com/glancehq/pulse/store/postgres"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// shuttingDown is set when a shutdown signal is received so the
	// readiness probe immediately returns 503.
	shuttingDown atomic.Bool
)

const (
	defaultListenAddr  = "0.0.0.0:8080"
	defaultMetricsAddr = "0.0.0.0:0"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "HTTP server listen address")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")
	migrationsEnableFlag := flag.Bool("migrations-enable", false, "run postgres migrations on startup")
	flag.Parse()

	// Load .env file. godotenv does not override existing env vars, so
	// process env and explicit exports take precedence.
	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if *verboseFlag {
		logLevel = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: logLevel}))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Sentry for crash reporting, enabled when a DSN is configured
	sentryDSN := os.Getenv("SENTRY_DSN")
	if sentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              sentryDSN,
			Environment:      os.Getenv("SENTRY_ENVIRONMENT"),
			Release:          version,
			TracesSampleRate: 0.1,
		}); err != nil {
			log.Warn("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx := context.Background()

	if *migrationsEnableFlag {
		if err := postgres.RunMigrations(ctx, log, cfg.PostgresDSN); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	pool, err := config.OpenPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open store pool: %w", err)
	}
	defer pool.Close()
	log.Info("connected to postgres store")

	pgStore := postgres.New(pool)
	handlers.SetVersion(version, commit, date)
	server, err := handlers.NewServer(handlers.ServerConfig{
		Logger:          log,
		Clock:           clockwork.NewRealClock(),
		Snapshots:       pgStore,
		Roster:          pgStore,
		Policy:          cfg.Policy,
		HistoryDays:     cfg.HistoryDays,
		OverviewRefresh: cfg.OverviewRefresh,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	// Prometheus metrics on a separate listener
	var metricsServer *http.Server
	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		listener, err := net.Listen("tcp", *metricsAddrFlag)
		if err != nil {
			log.Error("failed to start prometheus metrics listener", "error", err)
		} else {
			log.Info("prometheus metrics server listening", "addr", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			metricsServer = &http.Server{Handler: mux}
			go func() {
				if err := metricsServer.Serve(listener); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server error", "error", err)
				}
			}()
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)

	// Sentry middleware before Recoverer so panics are captured
	if sentryDSN != "" {
		sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
		r.Use(sentryHandler.Handle)
	}

	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// CORS configuration - origins from env or allow all
	corsOrigins := []string{"*"}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		corsOrigins = strings.Split(origins, ",")
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if shuttingDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("shutting down"))
			return
		}

		pingCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database connection failed"))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/api/version", handlers.GetVersion)
	r.Get("/api/presence", server.GetOverview)
	r.Get("/api/users", server.GetSubjects)
	r.Get("/api/users/{id}", server.GetSubject)
	r.Get("/api/users/{id}/history", server.GetSubjectHistory)

	httpServer := &http.Server{
		Addr:         *listenAddrFlag,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Cancellable base context so in-flight aggregation is abandoned
	// when the server shuts down
	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	httpServer.BaseContext = func(_ net.Listener) context.Context {
		return serverCtx
	}

	server.StartOverviewCache(serverCtx)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("API server starting", "addr", *listenAddrFlag)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sig := <-shutdown
	log.Info("received signal, shutting down gracefully", "signal", sig.String())

	shuttingDown.Store(true)
	serverCancel()
	server.StopOverviewCache()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown error", "error", err)
	} else {
		log.Info("server stopped gracefully")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics server shutdown error", "error", err)
		}
	}

	return nil
}
