package server

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"timeledger/internal/domain/accountrequests"
	"timeledger/internal/domain/audit"
	"timeledger/internal/domain/auth"
	"timeledger/internal/domain/notifications"
	"timeledger/internal/domain/payroll"
	"timeledger/internal/domain/reports"
	"timeledger/internal/domain/timeentries"
	"timeledger/internal/domain/users"
	"timeledger/internal/platform/config"
	cryptoutil "timeledger/internal/platform/crypto"
	"timeledger/internal/platform/db"
	"timeledger/internal/platform/email"
	"timeledger/internal/platform/jobs"
	"timeledger/internal/platform/metrics"
	"timeledger/internal/platform/realtime"
	"timeledger/internal/platform/telemetry"
	accountrequestshandler "timeledger/internal/transport/http/handlers/accountrequests"
	audithandler "timeledger/internal/transport/http/handlers/audit"
	authhandler "timeledger/internal/transport/http/handlers/auth"
	notificationshandler "timeledger/internal/transport/http/handlers/notifications"
	payrollhandler "timeledger/internal/transport/http/handlers/payroll"
	reportshandler "timeledger/internal/transport/http/handlers/reports"
	timeentrieshandler "timeledger/internal/transport/http/handlers/timeentries"
	usershandler "timeledger/internal/transport/http/handlers/users"
	"timeledger/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	DB      *db.Pool
	Router  http.Handler
	Jobs    *jobs.Service
	Hub     *realtime.Hub
	Metrics *metrics.Collector

	cancel context.CancelFunc
}

// Close stops background work and releases the pool.
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// New connects to Postgres, prepares the schema and wires every service and
// handler into a router. Background jobs start immediately.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	fail := func(err error) (*App, error) {
		pool.Close()
		return nil, err
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			return fail(fmt.Errorf("migrations: %w", err))
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			return fail(fmt.Errorf("seed: %w", err))
		}
	}

	crypto, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		return fail(fmt.Errorf("encryption key: %w", err))
	}
	if !crypto.Configured() {
		slog.Warn("DATA_ENCRYPTION_KEY not set; payslips are stored unencrypted")
	}

	collector := metrics.New()
	collector.Publish("timeledger")
	hub := realtime.NewHub()
	auditor := audit.New(pool)
	idem := middleware.NewIdempotencyStore(pool)

	authService := auth.NewService(auth.NewStore(pool), cfg.JWTSecret, cfg.JWTTTL)
	notifier := notifications.New(notifications.NewStore(pool), email.New(cfg))

	jobService := jobs.New(pool, cfg.MaintenanceInterval,
		jobs.Task{Name: "idempotency_keys", Run: func(ctx context.Context) (int64, error) {
			return idem.Purge(ctx, cfg.IdempotencyTTL)
		}},
		jobs.Task{Name: "sessions", Run: authService.PurgeExpiredSessions},
	)

	payrollService := payroll.NewService(payroll.NewStore(pool), payroll.Options{
		Policy: payroll.Policy{
			WeeklyOvertimeHours: decimal.NewFromFloat(cfg.WeeklyOvertimeHours),
			WorkdayHours:        decimal.NewFromFloat(cfg.WorkdayHours),
		},
		Workers:  cfg.PayrollWorkers,
		Events:   hub,
		Notifier: notifier,
		Jobs:     jobService,
		Metrics:  collector,
		Payslips: payroll.NewFilePayslips(cfg.PayslipDir, crypto),
	})
	userService := users.NewService(users.NewStore(pool))
	timeService := timeentries.NewService(timeentries.NewStore(pool), hub)
	reportService := reports.NewService(reports.NewStore(pool))
	requestService := accountrequests.NewService(accountrequests.NewStore(pool), notifier, hub)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Metrics(collector))
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	router.Handle("/metrics", expvar.Handler())
	router.Handle(realtime.Prefix+"/*", realtime.Handler(hub, authService))

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
		r.Use(middleware.Auth(authService))
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		authhandler.NewHandler(authService, auditor).RegisterRoutes(r)
		usershandler.NewHandler(userService, auditor, authService).RegisterRoutes(r)
		timeentrieshandler.NewHandler(timeService, auditor, authService).RegisterRoutes(r)
		payrollhandler.NewHandler(payrollService, auditor, idem, authService).RegisterRoutes(r)
		reportshandler.NewHandler(reportService, auditor, authService).RegisterRoutes(r)
		accountrequestshandler.NewHandler(requestService, auditor, authService, cfg.AccountRequestLimitPerHour).RegisterRoutes(r)
		audithandler.NewHandler(auditor, authService).RegisterRoutes(r)
		notificationshandler.NewHandler(notifier).RegisterRoutes(r)
	})

	jobCtx, cancel := context.WithCancel(context.Background())
	jobService.Start(jobCtx)

	return &App{
		Config:  cfg,
		DB:      pool,
		Router:  router,
		Jobs:    jobService,
		Hub:     hub,
		Metrics: collector,
		cancel:  cancel,
	}, nil
}

func logLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Run loads configuration from the environment and serves until SIGINT or
// SIGTERM.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.OTelServiceName,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
	})
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("tracer shutdown failed", "err", err)
		}
	}()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           otelhttp.NewHandler(app.Router, cfg.OTelServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("timeledger listening", "addr", cfg.Addr, "env", cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
