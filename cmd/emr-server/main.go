package main

import (
	"context"
	crypto_rand "crypto/rand"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/hospital/internal/config"
	"github.com/ehr/hospital/internal/domain/emr"
	"github.com/ehr/hospital/internal/domain/identity"
	"github.com/ehr/hospital/internal/domain/registry"
	"github.com/ehr/hospital/internal/platform/apperr"
	"github.com/ehr/hospital/internal/platform/auth"
	"github.com/ehr/hospital/internal/platform/blobstore"
	"github.com/ehr/hospital/internal/platform/codec"
	"github.com/ehr/hospital/internal/platform/db"
	"github.com/ehr/hospital/internal/platform/metrics"
	"github.com/ehr/hospital/internal/platform/middleware"
	"github.com/ehr/hospital/internal/platform/openapi"
	"github.com/ehr/hospital/internal/platform/sandbox"
	"github.com/ehr/hospital/internal/platform/validate"
	"github.com/ehr/hospital/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "emr-server",
		Short: "Hospital registry and medical record API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolOptions{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
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
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
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
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(os.Stdout, statuses)
			return nil
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			confirmed, _ := cmd.Flags().GetBool("yes")
			if !confirmed {
				return fmt.Errorf("migrate down drops tables; rerun with --yes to roll back %d migration(s)", steps)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Down(ctx, steps)
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			fmt.Printf("Rolled back %d migration(s).\n", count)
			return nil
		},
	}
	down.Flags().Int("steps", 1, "number of migrations to roll back")
	down.Flags().Bool("yes", false, "confirm the rollback")
	cmd.AddCommand(down)

	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator account and profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := adminRequestFromFlags(cmd)
			if err != nil {
				return err
			}
			if err := validate.New().Validate(req); err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			svcs := newServices(pool, auth.NewPasswordHasher(cfg.BcryptCost), nil)
			var admin *registry.Admin
			err = db.RunInTx(ctx, pool, func(ctx context.Context) error {
				var err error
				admin, err = svcs.registry.CreateAdmin(ctx, req)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created admin %s (user %s)\n", admin.ID, admin.UserID)
			return nil
		},
	}
	createCmd.Flags().String("email", "", "Login email (required)")
	createCmd.Flags().String("password", "", "Login password (required)")
	createCmd.Flags().String("name", "", "Full name (required)")
	createCmd.Flags().String("dob", "", "Date of birth, YYYY-MM-DD (required)")
	createCmd.Flags().String("national-id", "", "National id number (required)")
	createCmd.Flags().String("tax-number", "", "Tax number")
	createCmd.Flags().String("sex", "", "Sex (required)")
	createCmd.Flags().String("phone", "", "Phone number (required)")
	createCmd.Flags().String("address", "", "Postal address (required)")

	cmd.AddCommand(createCmd)
	return cmd
}

func adminRequestFromFlags(cmd *cobra.Command) (*registry.CreateAdminRequest, error) {
	flag := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}

	req := &registry.CreateAdminRequest{
		Account: registry.Account{
			Email:    flag("email"),
			Password: flag("password"),
		},
		Name:       flag("name"),
		NationalID: flag("national-id"),
		TaxNumber:  flag("tax-number"),
		Sex:        flag("sex"),
		PhoneNum:   flag("phone"),
		Address:    flag("address"),
	}
	if raw := flag("dob"); raw != "" {
		dob, err := codec.ParseDate(raw)
		if err != nil {
			return nil, apperr.Validation("dob: %v", err)
		}
		req.DOB = dob
	}
	return req, nil
}

func seedCmd() *cobra.Command {
	defaults := sandbox.DefaultSeedConfig()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with synthetic demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to seed synthetic data when ENV=production")
			}

			seedCfg := defaults
			flags := cmd.Flags()
			seedCfg.Insurances, _ = flags.GetInt("insurances")
			seedCfg.Polyclinics, _ = flags.GetInt("polyclinics")
			seedCfg.Laboratories, _ = flags.GetInt("laboratories")
			seedCfg.Doctors, _ = flags.GetInt("doctors")
			seedCfg.Staff, _ = flags.GetInt("staff")
			seedCfg.Patients, _ = flags.GetInt("patients")
			seedCfg.EntriesPerPatient, _ = flags.GetInt("entries")
			seedCfg.Password, _ = flags.GetString("password")
			seedCfg.Seed, _ = flags.GetInt64("seed")

			logger := newLogger(os.Stdout, cfg.Env, cfg.LogLevel)
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			svcs := newServices(pool, auth.NewPasswordHasher(cfg.BcryptCost), nil)
			seeder := sandbox.NewSeeder(svcs.registry, svcs.emr, seedCfg, logger)

			var result *sandbox.SeedResult
			err = db.RunInTx(ctx, pool, func(ctx context.Context) error {
				var err error
				result, err = seeder.Generate(ctx)
				return err
			})
			if err != nil {
				return err
			}

			fmt.Printf("Seeded %d patients, %d doctors, %d staff in %s.\n",
				result.Patients, result.Doctors, result.Staff, result.Duration.Round(time.Millisecond))
			fmt.Printf("All accounts use password %q, e.g. %s\n", seedCfg.Password, firstOr(result.Accounts, "-"))
			return nil
		},
	}
	cmd.Flags().Int("insurances", defaults.Insurances, "Number of insurances")
	cmd.Flags().Int("polyclinics", defaults.Polyclinics, "Number of polyclinics")
	cmd.Flags().Int("laboratories", defaults.Laboratories, "Number of laboratories")
	cmd.Flags().Int("doctors", defaults.Doctors, "Number of doctors")
	cmd.Flags().Int("staff", defaults.Staff, "Number of medical staff")
	cmd.Flags().Int("patients", defaults.Patients, "Number of patients")
	cmd.Flags().Int("entries", defaults.EntriesPerPatient, "Clinical entries per patient")
	cmd.Flags().String("password", defaults.Password, "Password for every generated account")
	cmd.Flags().Int64("seed", 0, "Random seed (0 picks one from the clock)")
	return cmd
}

func firstOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return items[0]
}

type services struct {
	identity *identity.Service
	registry *registry.Service
	emr      *emr.Service
}

func newServices(pool *pgxpool.Pool, hasher *auth.PasswordHasher, tokens identity.TokenIssuer) services {
	identitySvc := identity.NewService(identity.NewUserRepo(pool), hasher, tokens)

	registrySvc := registry.NewService(identitySvc, registry.Repos{
		Patients:     registry.NewPatientRepo(pool),
		Admins:       registry.NewAdminRepo(pool),
		Doctors:      registry.NewDoctorRepo(pool),
		Staff:        registry.NewStaffRepo(pool),
		Insurances:   registry.NewInsuranceRepo(pool),
		Polyclinics:  registry.NewPolyclinicRepo(pool),
		Laboratories: registry.NewLaboratoryRepo(pool),
		PolyDoctors:  registry.NewPolyclinicDoctorRepo(pool),
		LabStaff:     registry.NewLaboratoryStaffRepo(pool),
		Interests:    registry.NewInterestRepo(pool),
	})

	emrSvc := emr.NewService(
		emr.NewRecordRepo(pool),
		emr.NewClinicalEntryRepo(pool),
		emr.NewMedicalNoteRepo(pool),
		emr.NewLabReportRepo(pool),
		registrySvc,
	).WithSnapshot(func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.RunReadOnly(ctx, pool, fn)
	})

	return services{identity: identitySvc, registry: registrySvc, emr: emrSvc}
}

// newLogger writes JSON to out, or a console format in development.
func newLogger(out io.Writer, env, level string) zerolog.Logger {
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: out}
	}
	logger := zerolog.New(out).With().Timestamp().Logger()
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

// resolveTokenSecret returns the configured signing secret or, when none is
// set, a random 32-byte one. The second return value is true when a random
// secret was generated; tokens signed with it do not survive a restart.
func resolveTokenSecret(configured string) ([]byte, bool, error) {
	if configured != "" {
		return []byte(configured), false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random token secret: %w", err)
	}
	return key, true, nil
}

func newRevocationStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (auth.RevocationStore, func(), error) {
	if cfg.RedisURL == "" {
		store := auth.NewMemoryRevocationStore(time.Minute)
		return store, store.Close, nil
	}
	client, err := auth.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Msg("token revocation backed by redis")
	return auth.NewRedisRevocationStore(client), func() { client.Close() }, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	if cfg.StorageDriver != "minio" {
		return blobstore.NewMemoryStore(), nil
	}
	return blobstore.NewMinioStore(ctx, blobstore.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Logger
	logger := newLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	secret, generated, err := resolveTokenSecret(cfg.JWTSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve token secret")
	}
	if generated {
		logger.Warn().Msg("JWT_SECRET not set; using a random secret, tokens will not survive a restart")
	}

	// Database
	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Token revocation
	revoked, closeRevoked, err := newRevocationStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer closeRevoked()

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: secret,
		Issuer: cfg.TokenIssuer,
		TTL:    cfg.TokenTTL,
	}, revoked)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token service")
	}

	// Attachments
	store, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open attachment storage")
	}
	logger.Info().Str("driver", cfg.StorageDriver).Msg("attachment storage ready")

	collector := metrics.NewCollector("hospital")

	// Services
	svcs := newServices(pool, auth.NewPasswordHasher(cfg.BcryptCost), tokens)
	svcs.identity.WithRecorder(collector)
	svcs.emr.WithRecorder(collector)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)
	e.JSONSerializer = codec.Serializer{}
	e.Validator = validate.New()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.UploadLimit))
	e.Use(collector.Middleware())
	e.Use(middleware.Audit(logger))

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", collector.Handler())
	docs := openapi.NewGenerator(e, "Hospital API", version,
		"/health", "/health/db", "/metrics", "/openapi.json", "/oauth/client/token")
	e.GET("/openapi.json", docs.Handler())

	rateLimit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	})
	uow := db.UnitOfWork(pool, logger)

	// The groups share the root prefix. The last group registered handles
	// unmatched paths, so the public group goes last.
	api := e.Group("", auth.Authenticate(tokens, svcs.identity), rateLimit, uow)
	open := e.Group("", auth.AuthenticateOptional(tokens, svcs.identity), rateLimit, uow)
	public := e.Group("", rateLimit, uow)

	identity.NewHandler(svcs.identity, svcs.registry).RegisterRoutes(public, api)
	registry.NewHandler(svcs.registry).RegisterRoutes(api, open)
	emr.NewHandler(svcs.emr, store, logger).RegisterRoutes(api)
	blobstore.NewHandler(store).RegisterRoutes(api)

	// Graceful shutdown
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
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
