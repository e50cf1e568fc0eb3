package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"lexdesk/docs"
	"lexdesk/internal/auth"
	"lexdesk/internal/config"
	"lexdesk/internal/database"
	"lexdesk/internal/guard"
	handlers "lexdesk/internal/http/handler"
	"lexdesk/internal/http/middleware"
	"lexdesk/internal/logging"
	"lexdesk/internal/metrics"
	lexotel "lexdesk/internal/otel"
	"lexdesk/internal/repository"
	"lexdesk/internal/repository/file"
	"lexdesk/internal/repository/postgres"
	"lexdesk/internal/resilience"
	"lexdesk/internal/session"
	"lexdesk/internal/storage"
	"lexdesk/internal/upload"
)

const (
	shutdownTimeout = 10 * time.Second
	apiTimeout      = 30 * time.Second
	// a multipart request may carry several files at the size ceiling
	uploadBodyFactor = 8
)

// @title lexdesk
// @version 1.0
// @description Local client shell: session gate and document upload queue.
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default("info").Fatal("config_load_failed", "error", err)
	}
	logger := logging.Default(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("lexdesk_stopped", "error", err)
	}
}

func run(cfg *config.AppConfig, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := lexotel.Init(ctx, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error("tracing_shutdown_failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	clientStorage, db, err := openClientStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	breakerCfg := resilience.Config{
		ConsecutiveFailures: uint32(cfg.Auth.BreakerFailures),
		OpenTimeout:         time.Duration(cfg.Auth.BreakerOpenSec) * time.Second,
	}
	authTimeout := time.Duration(cfg.Auth.TimeoutSec) * time.Second
	submitter := auth.NewSubmitter(cfg.Auth.BaseURL, authTimeout,
		auth.WithMetrics(m),
		auth.WithHTTPClient(&http.Client{
			Timeout:   authTimeout,
			Transport: resilience.NewBreakerTransport("auth", otelhttp.NewTransport(http.DefaultTransport), breakerCfg, logger),
		}),
	)
	store := session.NewStore(clientStorage, submitter,
		session.WithLogger(logger),
		session.WithNavigator(func(path string) { logger.Info("navigate", "to", path) }),
	)
	if err := store.Initialize(ctx); err != nil {
		// the session stays signed out; the user can log in again
		logger.Warn("session_initialize_failed", "error", err)
	}
	defer store.Teardown()

	transport, err := newTransport(ctx, cfg)
	if err != nil {
		return err
	}
	queue := upload.NewQueue(upload.NewValidator(cfg.Upload), transport,
		upload.WithMetrics(m),
		upload.WithLogger(logger),
	)
	defer queue.Close()

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             bodyLimit(queue.MaxBytes()),
		DisableStartupMessage: true,
	})

	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	app.Use(promMiddleware.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	app.Get("/swagger/*", swaggerHandler)

	deps := handlers.Deps{
		Store:        store,
		Guard:        guard.New(store),
		LoginForm:    session.NewForm(store),
		RegisterForm: session.NewForm(store),
		Queue:        queue,
		APIClient: &http.Client{
			Timeout: apiTimeout,
			Transport: &session.Transport{
				Store: store,
				Base:  resilience.NewBreakerTransport("api", otelhttp.NewTransport(http.DefaultTransport), breakerCfg, logger),
			},
		},
		APIBaseURL:    cfg.Auth.APIBaseURL,
		LoginThrottle: middleware.Throttle(cfg.Auth.LoginRPS, cfg.Auth.LoginBurst),
		Logger:        logger,
	}
	if db != nil {
		deps.DB = db
	}
	handlers.RegisterRoutes(app, deps)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(":" + cfg.Port)
	}()
	logger.Info("server_started",
		"port", cfg.Port,
		"storage_driver", cfg.Storage.Driver,
		"upload_transport", cfg.Upload.Transport,
		"authenticated", store.IsAuthenticated(),
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("server_stopping")
	return app.ShutdownWithTimeout(shutdownTimeout)
}

// openClientStorage returns the durable slot store and, for the postgres
// driver, the database handle the caller must close.
func openClientStorage(ctx context.Context, cfg *config.AppConfig, logger *log.Logger) (repository.ClientStorage, *sql.DB, error) {
	switch cfg.Storage.Driver {
	case "", "file":
		s, err := file.NewClientStorageFile(cfg.Storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open client storage: %w", err)
		}
		return s, nil, nil
	case "postgres":
		db, err := database.OpenClientStore(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		return postgres.NewClientStoragePostgres(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
}

func newTransport(ctx context.Context, cfg *config.AppConfig) (upload.Transport, error) {
	switch cfg.Upload.Transport {
	case "", "simulated":
		return upload.Simulator{
			Interval: time.Duration(cfg.Upload.TickMillis) * time.Millisecond,
			Step:     cfg.Upload.Step,
		}, nil
	case "s3":
		objStore, err := storage.NewMinIO(ctx, cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("initialize object storage: %w", err)
		}
		return upload.NewObjectTransport(objStore), nil
	default:
		return nil, fmt.Errorf("unsupported upload transport: %s", cfg.Upload.Transport)
	}
}

// bodyLimit sizes the request body limit for a multipart upload of several
// files at the validator's ceiling.
func bodyLimit(maxFileBytes int64) int {
	return int(maxFileBytes) * uploadBodyFactor
}

// swaggerHandler serves Swagger UI with the host and scheme of the request.
func swaggerHandler(c *fiber.Ctx) error {
	scheme := c.Protocol()
	if proto := c.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.Split(proto, ",")[0]
	}

	docs.SwaggerInfo.Host = c.Get("Host")
	docs.SwaggerInfo.Schemes = []string{scheme}

	return swagger.HandlerDefault(c)
}
