package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/patientportal/portal/internal/config"
	"github.com/patientportal/portal/internal/domain/identity"
	"github.com/patientportal/portal/internal/domain/notification"
	"github.com/patientportal/portal/internal/platform/authz"
	"github.com/patientportal/portal/internal/platform/db"
	"github.com/patientportal/portal/migrations"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "portal-server",
		Short:        "Patient portal API server",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(providerCmd())
	root.AddCommand(notifyCmd())
	return root
}

// newLogger writes JSON to stdout, or human-readable output in development.
func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the patient portal API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(os.Getenv("ENV"))
			log.Logger = logger
			return runServer(logger)
		},
	}
}

// withPool loads and validates the configuration, connects to the database
// and runs fn.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	log.Logger = newLogger(os.Getenv("ENV"))
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

// migrationSource returns the embedded migrations unless dir names a
// directory on disk.
func migrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
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
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				migrator := db.NewMigrator(pool, migrationSource(dir))
				fmt.Printf("Running migrations on schema: %s\n", schema)

				count, err := migrator.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Migrations directory (defaults to the embedded set)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				statuses, err := db.NewMigrator(pool, migrationSource(dir)).Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}

				fmt.Printf("Migration status for schema: %s\n", schema)
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status, appliedAt := "pending", ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	}
	statusCmd.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
	statusCmd.Flags().String("dir", "", "Migrations directory (defaults to the embedded set)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func providerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage the healthcare provider directory",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Add a provider patients can message",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := providerFromFlags(cmd)
			if err != nil {
				return err
			}
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				svc := identity.NewService(identity.NewPatientRepo(pool), identity.NewProviderRepo(pool), nil, nil)
				if err := svc.CreateProvider(ctx, p); err != nil {
					return err
				}
				fmt.Printf("Provider created: %s (%s)\n", p.FullName(), p.ID)
				return nil
			})
		},
	}
	createCmd.Flags().String("first-name", "", "Provider first name (required)")
	createCmd.Flags().String("last-name", "", "Provider last name (required)")
	createCmd.Flags().String("email", "", "Provider email (required)")
	createCmd.Flags().String("specialty", "", "Specialty, e.g. Cardiology")
	createCmd.Flags().String("department", "", "Department")
	createCmd.Flags().String("phone", "", "Phone number")
	cmd.AddCommand(createCmd)

	return cmd
}

func providerFromFlags(cmd *cobra.Command) (*identity.Provider, error) {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return strings.TrimSpace(v)
	}
	p := &identity.Provider{
		FirstName: get("first-name"),
		LastName:  get("last-name"),
		Email:     get("email"),
		IsActive:  true,
	}
	if p.FirstName == "" || p.LastName == "" || p.Email == "" {
		return nil, fmt.Errorf("--first-name, --last-name and --email are required")
	}
	if v := get("specialty"); v != "" {
		p.Specialty = &v
	}
	if v := get("department"); v != "" {
		p.Department = &v
	}
	if v := get("phone"); v != "" {
		p.PhoneNumber = &v
	}
	return p, nil
}

func notifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Raise a notification for a patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := publishRequestFromFlags(cmd)
			if err != nil {
				return err
			}
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				svc := notification.NewService(notification.NewRepo(pool), authz.NewGuard())
				n, err := svc.Publish(ctx, req)
				if err != nil {
					return err
				}
				fmt.Printf("Notification %s created for patient %s\n", n.ID, n.PatientID)
				return nil
			})
		},
	}
	cmd.Flags().String("patient", "", "Patient ID (required)")
	cmd.Flags().String("title", "", "Notification title (required)")
	cmd.Flags().String("message", "", "Notification body (required)")
	cmd.Flags().String("type", notification.TypeNewMessage, "NewMessage, Appointment or Reminder")
	cmd.Flags().String("related-message", "", "Related message ID")
	return cmd
}

func publishRequestFromFlags(cmd *cobra.Command) (notification.PublishRequest, error) {
	var req notification.PublishRequest
	patient, _ := cmd.Flags().GetString("patient")
	id, err := uuid.Parse(strings.TrimSpace(patient))
	if err != nil {
		return req, fmt.Errorf("--patient must be a UUID: %w", err)
	}
	req.PatientID = id
	req.Title, _ = cmd.Flags().GetString("title")
	req.Message, _ = cmd.Flags().GetString("message")
	req.Type, _ = cmd.Flags().GetString("type")

	if related, _ := cmd.Flags().GetString("related-message"); strings.TrimSpace(related) != "" {
		mid, err := uuid.Parse(strings.TrimSpace(related))
		if err != nil {
			return req, fmt.Errorf("--related-message must be a UUID: %w", err)
		}
		req.RelatedMessageID = &mid
	}
	return req, nil
}
