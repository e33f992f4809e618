package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"resourcehive/internal/config"
	"resourcehive/internal/container"
	"resourcehive/internal/database"
	"resourcehive/internal/database/migration"
	"resourcehive/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations manually.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		migrationDir, _ := cmd.Flags().GetString("dir")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		log := logger.NewLogger()
		defer log.Sync()

		if err := migration.Migrate(cfg.DatabaseURL, fmt.Sprintf("file://%s", migrationDir), log); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}

		return nil
	},
}

var checkOverdueCmd = &cobra.Command{
	Use:   "check-overdue",
	Short: "Mark past-due borrow items overdue and notify borrowers by SMS.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, log, cleanup, err := bootstrap()
		if err != nil {
			return err
		}
		defer cleanup()

		now, err := localNow()
		if err != nil {
			return err
		}

		result, err := app.BorrowRequests.SweepOverdue(cmd.Context(), now)
		if err != nil {
			log.Error("overdue sweep failed", zap.Error(err))
			return err
		}

		fmt.Printf("marked=%d notified=%d failures=%d\n",
			result.ItemsMarked, result.UsersNotified, result.SendFailures)
		return nil
	},
}

var sendRemindersCmd = &cobra.Command{
	Use:   "send-reminders",
	Short: "Email borrowers whose return date is approaching.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, log, cleanup, err := bootstrap()
		if err != nil {
			return err
		}
		defer cleanup()

		now, err := localNow()
		if err != nil {
			return err
		}

		result, err := app.BorrowRequests.SendDueReminders(cmd.Context(), now)
		if err != nil {
			log.Error("reminder pass failed", zap.Error(err))
			return err
		}

		fmt.Printf("sent=%d skipped=%d failures=%d\n", result.Sent, result.Skipped, result.Failures)
		return nil
	},
}

var updateReservationsCmd = &cobra.Command{
	Use:   "update-reservations",
	Short: "Open due reservation windows and expire closed ones.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, log, cleanup, err := bootstrap()
		if err != nil {
			return err
		}
		defer cleanup()

		now, err := localNow()
		if err != nil {
			return err
		}

		activated, err := app.Reservations.ActivateDue(now)
		if err != nil {
			log.Error("reservation activation failed", zap.Error(err))
			return err
		}

		expired, err := app.Reservations.ExpireClosed(now)
		if err != nil {
			log.Error("reservation expiry failed", zap.Error(err))
			return err
		}

		fmt.Printf("activated=%d expired=%d\n", activated.ItemsActivated, expired.ItemsExpired)
		return nil
	},
}

func bootstrap() (*container.Container, *zap.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	log := logger.NewLogger()

	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Sync()
		return nil, nil, nil, err
	}

	app, err := container.NewAppContainer(db, cfg, log)
	if err != nil {
		db.Close()
		log.Sync()
		return nil, nil, nil, err
	}

	cleanup := func() {
		db.Close()
		log.Sync()
	}

	return app, log, cleanup, nil
}

func localNow() (t time.Time, err error) {
	cfg, err := config.Load()
	if err != nil {
		return time.Time{}, err
	}
	location, err := cfg.Location()
	if err != nil {
		return time.Time{}, err
	}
	return time.Now().In(location), nil
}

// Execute dispatches a CLI subcommand. The process exits non-zero on any
// command error so cron jobs can detect failures.
func Execute(ctx context.Context) {
	rootCmd := &cobra.Command{
		Use:   "resourcehive",
		Short: "ResourceHive inventory and requisition service",
	}
	migrateCmd.Flags().String("dir", "migrations", "Directory containing the migration files")
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(checkOverdueCmd)
	rootCmd.AddCommand(sendRemindersCmd)
	rootCmd.AddCommand(updateReservationsCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
