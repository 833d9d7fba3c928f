package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wardcare/wardcare/internal/config"
	"github.com/wardcare/wardcare/internal/domain/alerting"
	"github.com/wardcare/wardcare/internal/domain/assessment"
	"github.com/wardcare/wardcare/internal/domain/medication"
	"github.com/wardcare/wardcare/internal/domain/nursing"
	"github.com/wardcare/wardcare/internal/domain/order"
	"github.com/wardcare/wardcare/internal/domain/priority"
	"github.com/wardcare/wardcare/internal/domain/task"
	"github.com/wardcare/wardcare/internal/engine"
	"github.com/wardcare/wardcare/internal/legacy"
	"github.com/wardcare/wardcare/internal/platform/auth"
	"github.com/wardcare/wardcare/internal/platform/db"
	"github.com/wardcare/wardcare/internal/platform/lock"
	"github.com/wardcare/wardcare/internal/platform/metrics"
	"github.com/wardcare/wardcare/internal/platform/middleware"
	"github.com/wardcare/wardcare/internal/platform/notify"
	"github.com/wardcare/wardcare/migrations"
)

const tokenIssuer = "ward-server"

func main() {
	rootCmd := &cobra.Command{
		Use:   "ward-server",
		Short: "Ward care rule engine and task scheduler",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(recomputeCmd())
	rootCmd.AddCommand(baselineCmd())
	rootCmd.AddCommand(importLegacyCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the ward API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBSchema)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Running migrations on schema: %s\n", cfg.DBSchema)
			count, err := db.NewMigrator(pool, migrations.FS, cfg.DBSchema).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBSchema)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS, cfg.DBSchema).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("Migration status for schema: %s\n", cfg.DBSchema)
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "APPLIED", "APPLIED AT")
	for _, s := range statuses {
		appliedAt := "-"
		if s.AppliedAt != nil {
			appliedAt = s.AppliedAt.Format(time.RFC3339)
		}
		applied := "no"
		if s.Applied {
			applied = "yes"
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, applied, appliedAt)
	}
}

func recomputeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute problems, tasks and alerts for one patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("patient")
			patientID, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("--patient must be a patient id: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				snap, err := a.engine.Recompute(ctx, patientID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Problems (%d):\n", len(snap.Problems))
				for _, p := range snap.Problems {
					fmt.Fprintf(out, "  %d. %s\n", p.Rank, p.Label)
				}
				fmt.Fprintf(out, "Alerts (%d):\n", len(snap.Alerts))
				for _, al := range snap.Alerts {
					fmt.Fprintf(out, "  [%s] %s\n", al.Severity, al.Message)
				}
				fmt.Fprintf(out, "Tasks planned: %d, baseline added: %d\n", snap.TasksPlanned, snap.BaselineAdded)
				return nil
			})
		},
	}
	cmd.Flags().String("patient", "", "Patient id")
	_ = cmd.MarkFlagRequired("patient")
	return cmd
}

func baselineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "baseline",
		Short: "Open missing baseline tasks for every patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				n, err := a.engine.EnsureBaselineAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %d baseline task(s).\n", n)
				return nil
			})
		},
	}
}

func importLegacyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-legacy",
		Short: "Import the legacy SQLite ward database",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("sqlite")
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				sum, err := a.importer.Import(ctx, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"Imported %d nurses, %d patients, %d assessments, %d notes, %d doses, %d tasks, %d orders, %d problems (%d rows skipped).\n",
					sum.Nurses, sum.Patients, sum.Assessments, sum.Notes, sum.Doses, sum.Tasks, sum.Orders, sum.Problems, sum.Skipped)
				return nil
			})
		},
	}
	cmd.Flags().String("sqlite", "", "Path to the legacy SQLite file")
	_ = cmd.MarkFlagRequired("sqlite")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a nurse",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("nurse")
			name, _ := cmd.Flags().GetString("name")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			nurseID, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("--nurse must be a nurse id: %w", err)
			}
			key, err := hex.DecodeString(os.Getenv("AUTH_SIGNING_KEY"))
			if err != nil || len(key) == 0 {
				return fmt.Errorf("AUTH_SIGNING_KEY must be a non-empty hex value")
			}
			tok, err := auth.IssueToken(auth.JWTConfig{Issuer: tokenIssuer, SigningKey: key}, nurseID, name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("nurse", "", "Nurse id")
	cmd.Flags().String("name", "", "Nurse display name")
	cmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("nurse")
	return cmd
}

// app is the wired object graph shared by serve and the batch commands.
type app struct {
	pool     *pgxpool.Pool
	engine   *engine.Engine
	nursing  *nursing.Service
	doses    *medication.Service
	orders   *order.Service
	importer *legacy.Importer
	registry *prometheus.Registry
	health   []db.Dependency
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBSchema)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a := &app{pool: pool, closers: []func(){pool.Close}}

	locker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if r, ok := locker.(*lock.Redis); ok {
		a.health = append(a.health, db.Dependency{Name: "redis", Ping: r.Ping})
	}

	var publisher notify.Publisher = notify.Nop{}
	if cfg.MQTTBroker != "" {
		p, err := notify.NewMQTTPublisher(ctx, notify.MQTTConfig{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to mqtt: %w", err)
		}
		publisher = p
		a.closers = append(a.closers, p.Close)
		a.health = append(a.health, db.Dependency{Name: "mqtt", Ping: p.Ping})
		logger.Info().Str("broker", cfg.MQTTBroker).Msg("alert publishing enabled")
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.NewEngineMetrics(a.registry)
	if err != nil {
		a.Close()
		return nil, err
	}

	nurseRepo := nursing.NewNurseRepoPG(pool)
	patientRepo := nursing.NewPatientRepoPG(pool)
	noteRepo := nursing.NewNoteRepoPG(pool)
	assessmentRepo := assessment.NewRepoPG(pool)
	doseRepo := medication.NewRepoPG(pool)
	problemRepo := priority.NewRepoPG(pool)
	taskRepo := task.NewRepoPG(pool)
	orderRepo := order.NewRepoPG(pool)
	tx := db.NewTxRunner(pool)

	a.nursing = nursing.NewService(nurseRepo, patientRepo, noteRepo)
	a.doses = medication.NewService(doseRepo)
	a.orders = order.NewService(orderRepo)
	alerts := alerting.NewService(assessmentRepo, a.doses, alerting.NewRepoPG(pool))
	tasks := task.NewScheduler(taskRepo)
	priorities := priority.NewService(problemRepo, assessmentRepo, noteRepo, tasks, tasks, alerts)

	a.engine = engine.New(engine.Deps{
		Tx:          tx,
		Locker:      locker,
		Publisher:   publisher,
		Metrics:     m,
		Logger:      logger,
		Nursing:     a.nursing,
		Patients:    patientRepo,
		Scorer:      nursing.NewScorer(patientRepo, noteRepo, assessmentRepo, doseRepo),
		Assessments: assessmentRepo,
		Doses:       a.doses,
		Alerts:      alerts,
		Ward:        alerting.NewWardView(patientRepo, assessmentRepo, a.doses, noteRepo, cfg.AlertCacheTTL),
		Priorities:  priorities,
		Tasks:       tasks,
	})

	a.importer = legacy.NewImporter(legacy.Targets{
		Tx:          tx,
		Nurses:      nurseRepo,
		Patients:    patientRepo,
		Notes:       noteRepo,
		Assessments: assessmentRepo,
		Doses:       doseRepo,
		Tasks:       taskRepo,
		Orders:      orderRepo,
		Problems:    problemRepo,
	}, logger)
	return a, nil
}

// newLocker uses Redis when REDIS_URL is set so several server replicas
// share patient locks; otherwise locks are process-local.
func newLocker(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (lock.Locker, error) {
	if cfg.RedisURL == "" {
		return lock.NewLocal(), nil
	}
	client, err := lock.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	r := lock.NewRedis(client, cfg.LockTTL, logger)
	if err := r.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Msg("using redis patient locks")
	return r, nil
}

// resolveSigningKey decodes the hex AUTH_SIGNING_KEY. In development a
// random key is generated when none is configured; the bool reports that.
func resolveSigningKey(cfg *config.Config) ([]byte, bool, error) {
	if cfg.AuthSigningKey != "" {
		key, err := hex.DecodeString(cfg.AuthSigningKey)
		if err != nil {
			return nil, false, fmt.Errorf("invalid AUTH_SIGNING_KEY hex value: %w", err)
		}
		return key, false, nil
	}
	if !cfg.IsDev() {
		return nil, false, fmt.Errorf("AUTH_SIGNING_KEY is required")
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return key, true, nil
}

func newServer(cfg *config.Config, a *app, logger zerolog.Logger, key []byte) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", auth.DevNurseHeader},
	}))

	e.GET("/health", db.HealthHandler(a.pool, a.health...))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{Issuer: tokenIssuer, SigningKey: key}))
	}

	nursing.NewHandler(a.nursing, a.engine.Ward).RegisterRoutes(apiV1)
	medication.NewHandler(a.doses, a.engine.Ward).RegisterRoutes(apiV1)
	order.NewHandler(a.orders).RegisterRoutes(apiV1)
	engine.NewHandler(a.engine).RegisterRoutes(apiV1)
	return e
}

func runServer() error {
	cfg, err := loadConfig()
	logger := newLogger(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	key, generated, err := resolveSigningKey(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid signing key")
	}
	if generated {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set, development auth via " + auth.DevNurseHeader)
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()
	logger.Info().Msg("connected to database")

	e := newServer(cfg, a, logger, key)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
