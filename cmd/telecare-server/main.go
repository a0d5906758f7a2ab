package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
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

	"github.com/telecare/telecare/internal/config"
	"github.com/telecare/telecare/internal/domain/appointment"
	"github.com/telecare/telecare/internal/domain/audit"
	"github.com/telecare/telecare/internal/domain/connection"
	"github.com/telecare/telecare/internal/domain/encounter"
	"github.com/telecare/telecare/internal/domain/identity"
	"github.com/telecare/telecare/internal/domain/message"
	"github.com/telecare/telecare/internal/domain/note"
	"github.com/telecare/telecare/internal/domain/payment"
	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/internal/platform/db"
	"github.com/telecare/telecare/internal/platform/events"
	"github.com/telecare/telecare/internal/platform/middleware"
	"github.com/telecare/telecare/internal/platform/notification"
	"github.com/telecare/telecare/internal/platform/respond"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "telecare-server",
		Short: "Telehealth platform API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(auditCmd())

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

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit log maintenance",
	}

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete audit entries older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("days")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if days <= 0 {
				days = cfg.AuditRetentionDays
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
			svc := audit.NewService(audit.NewRepo(pool), logger)
			deleted, err := svc.Prune(ctx, days)
			if err != nil {
				return fmt.Errorf("prune failed: %w", err)
			}

			fmt.Printf("Deleted %d audit entr(ies) older than %d days.\n", deleted, days)
			return nil
		},
	}
	pruneCmd.Flags().Int("days", 0, "Retention window in days (defaults to AUDIT_RETENTION_DAYS)")
	cmd.AddCommand(pruneCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		// Dev only: Validate rejects an empty secret in production.
		buf := make([]byte, 32)
		if _, err := crypto_rand.Read(buf); err != nil {
			logger.Fatal().Err(err).Msg("failed to generate dev signing key")
		}
		jwtSecret = hex.EncodeToString(buf)
		logger.Warn().Msg("JWT_SECRET not set; generated an ephemeral dev signing key")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: []byte(jwtSecret),
		TokenTTL:   time.Duration(cfg.TokenTTLMinutes) * time.Minute,
	}

	// Event bus and notifications
	bus := events.NewBus(logger)
	logSender := notification.NewLogSender(logger)
	notifier := notification.NewManager(logSender, logSender, logSender, notification.NewTemplateEngine())

	// Domain wiring
	auditRepo := audit.NewRepo(pool)
	auditor := audit.NewRecorder(auditRepo, logger)
	auditSvc := audit.NewService(auditRepo, logger)

	identitySvc := identity.NewService(identity.NewRepo(pool), jwtCfg, auditor, logger)
	connectionRepo := connection.NewRepo(pool)
	connectionSvc := connection.NewService(connectionRepo, identitySvc, bus, auditor, logger)
	encounterRepo := encounter.NewRepo(pool)
	encounterSvc := encounter.NewService(encounterRepo, connectionSvc, auditor, logger)
	noteSvc := note.NewService(note.NewRepo(pool), connectionSvc, encounterRepo, bus, auditor, logger)
	appointmentSvc := appointment.NewService(appointment.NewRepo(pool), connectionSvc, bus, auditor, logger)
	messageSvc := message.NewService(message.NewRepo(pool), connectionSvc, bus, auditor, logger)
	paymentSvc := payment.NewService(payment.NewRepo(pool), connectionRepo, auditor, logger)

	subscribeNotifications(bus, notifier, identitySvc, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = respond.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	// Handlers
	identityHandler := identity.NewHandler(identitySvc)

	public := e.Group("/api/v1")
	public.Use(middleware.RateLimit(rateLimitCfg))
	identityHandler.RegisterPublicRoutes(public)

	// Session resolution runs first so the limiter buckets authenticated
	// traffic per account rather than per address.
	apiV1 := e.Group("/api/v1")
	apiV1.Use(auth.Middleware(jwtCfg))
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	identityHandler.RegisterRoutes(apiV1)
	connection.NewHandler(connectionSvc).RegisterRoutes(apiV1)
	encounter.NewHandler(encounterSvc).RegisterRoutes(apiV1)
	note.NewHandler(noteSvc).RegisterRoutes(apiV1)
	appointment.NewHandler(appointmentSvc).RegisterRoutes(apiV1)
	message.NewHandler(messageSvc).RegisterRoutes(apiV1)
	payment.NewHandler(paymentSvc).RegisterRoutes(apiV1)
	audit.NewHandler(auditSvc, cfg.AuditRetentionDays).RegisterRoutes(apiV1)

	// Serve
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	bus.Wait()
	return nil
}

// subscribeNotifications wires the domain events to outbound notifications.
// Handlers run off the request path; failures are logged by the manager and
// never propagate.
func subscribeNotifications(bus *events.Bus, notifier *notification.Manager, users *identity.Service, logger zerolog.Logger) {
	emailOf := func(ctx context.Context, id uuid.UUID) string {
		u, err := users.Get(ctx, id)
		if err != nil {
			logger.Error().Err(err).Str("user_id", id.String()).Msg("notification recipient lookup failed")
			return ""
		}
		return u.Email
	}

	bus.Subscribe(events.TopicAppointmentDecline, func(ctx context.Context, evt events.Event) {
		payload, ok := evt.Payload.(appointment.Declined)
		if !ok {
			return
		}
		recipient := emailOf(ctx, payload.PatientID)
		if recipient == "" {
			return
		}
		_, _ = notifier.SendFromTemplate(ctx, "appointment-declined",
			map[string]string{"reason": payload.Reason}, recipient)
	})

	bus.Subscribe(events.TopicLinkApproved, func(ctx context.Context, evt events.Event) {
		payload, ok := evt.Payload.(connection.LinkApproved)
		if !ok {
			return
		}
		recipient := emailOf(ctx, payload.PatientID)
		if recipient == "" {
			return
		}
		_, _ = notifier.SendFromTemplate(ctx, "connection-approved", nil, recipient)
	})

	bus.Subscribe(events.TopicNoteFinalized, func(ctx context.Context, evt events.Event) {
		payload, ok := evt.Payload.(note.Finalized)
		if !ok {
			return
		}
		recipient := emailOf(ctx, payload.PatientID)
		if recipient == "" {
			return
		}
		_, _ = notifier.SendFromTemplate(ctx, "note-finalized", nil, recipient)
	})

	bus.Subscribe(events.TopicMessageSent, func(ctx context.Context, evt events.Event) {
		payload, ok := evt.Payload.(message.Sent)
		if !ok {
			return
		}
		recipient := emailOf(ctx, payload.RecipientID)
		if recipient == "" {
			return
		}
		_, _ = notifier.SendFromTemplate(ctx, "new-message", nil, recipient)
	})
}
