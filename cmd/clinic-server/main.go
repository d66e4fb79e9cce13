package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hssvet/clinic-api/internal/config"
	"github.com/hssvet/clinic-api/internal/domain/billing"
	"github.com/hssvet/clinic-api/internal/domain/hospitalization"
	"github.com/hssvet/clinic-api/internal/domain/inventory"
	"github.com/hssvet/clinic-api/internal/domain/surgery"
	"github.com/hssvet/clinic-api/internal/platform/auth"
	"github.com/hssvet/clinic-api/internal/platform/db"
	"github.com/hssvet/clinic-api/internal/platform/middleware"
	"github.com/hssvet/clinic-api/internal/platform/notify"
)

// Default prices used when a billable item carries no catalog entry.
// Procedure fees and boarding rates live here until a price-list table
// is added.
const (
	procedureFeeCents     int64 = 25000
	dailyBoardingFeeCents int64 = 4500
)

// caseBillingReader adapts the surgery and inventory services to the
// billing.SourceReader interface, avoiding a circular import between
// the billing and surgery packages.
type caseBillingReader struct {
	cases *surgery.Service
	items *inventory.Service
}

func (r *caseBillingReader) BillingInfo(ctx context.Context, sourceID uuid.UUID) (*billing.SourceInfo, error) {
	sc, err := r.cases.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	info := &billing.SourceInfo{AnimalID: sc.AnimalID}
	info.Lines = append(info.Lines, billing.LineInput{
		Description:    sc.Procedure,
		Quantity:       1,
		UnitPriceCents: procedureFeeCents,
	})
	for _, m := range sc.Medications {
		item, err := r.items.Get(ctx, m.ItemID)
		if err != nil {
			return nil, fmt.Errorf("price medication %s: %w", m.ItemID, err)
		}
		info.Lines = append(info.Lines, billing.LineInput{
			Description:    item.Name,
			Quantity:       m.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return info, nil
}

// stayBillingReader adapts the hospitalization service to
// billing.SourceReader. The stay is billed per started day of boarding.
type stayBillingReader struct {
	stays *hospitalization.Service
}

func (r *stayBillingReader) BillingInfo(ctx context.Context, sourceID uuid.UUID) (*billing.SourceInfo, error) {
	st, err := r.stays.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	days := 1
	if st.DischargedAt != nil {
		elapsed := st.DischargedAt.Sub(st.AdmittedAt)
		days = int(elapsed/(24*time.Hour)) + 1
	}
	return &billing.SourceInfo{
		AnimalID: st.AnimalID,
		Lines: []billing.LineInput{
			{
				Description:    fmt.Sprintf("hospitalization: %s", st.Reason),
				Quantity:       days,
				UnitPriceCents: dailyBoardingFeeCents,
			},
		},
	}, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Veterinary clinic surgical workflow API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevMiddleware())
	} else {
		e.Use(auth.Middleware(auth.Config{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: cfg.AuthSigningKey,
		}))
	}

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// API group
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RequestTimeout(30 * time.Second))

	// Webhook notifier. Disabled (events dropped) when WEBHOOK_URL is
	// unset.
	notifier := notify.New(cfg.WebhookURL, cfg.WebhookSecret, logger)
	if notifier.Enabled() {
		logger.Info().Str("url", cfg.WebhookURL).Msg("webhook notifications enabled")
	}

	// -- Domain wiring --

	billingRepo := billing.NewRepoPG(pool)
	billingSvc := billing.NewService(billingRepo)
	billingSvc.SetTxRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	})

	inventoryRepo := inventory.NewRepoPG(pool)
	inventorySvc := inventory.NewService(inventoryRepo)

	surgeryRepo := surgery.NewRepoPG(pool)
	surgerySvc := surgery.NewService(surgeryRepo, billingSvc, inventorySvc, notifier)

	stayRepo := hospitalization.NewRepoPG(pool)
	staySvc := hospitalization.NewService(stayRepo, billingSvc, notifier)

	// The billing readers close the loop back to the workflow services.
	// Registration happens after construction so neither side imports the
	// other.
	billingSvc.RegisterReader(billing.SourceSurgicalCase, &caseBillingReader{cases: surgerySvc, items: inventorySvc})
	billingSvc.RegisterReader(billing.SourceStay, &stayBillingReader{stays: staySvc})

	surgery.NewHandler(surgerySvc).RegisterRoutes(apiV1)
	hospitalization.NewHandler(staySvc).RegisterRoutes(apiV1)
	billing.NewHandler(billingSvc).RegisterRoutes(apiV1)
	inventory.NewHandler(inventorySvc).RegisterRoutes(apiV1)

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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
