package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nosht/nosht/migrations"
	"github.com/nosht/nosht/pkg/database"
)

var steps int

// NewMigrateCommand returns the database migration commands
func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Apply, roll back and inspect the embedded schema migrations.`,
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE:  withMigrator(func(ctx context.Context, m *database.Migrator) error { return m.Down(ctx, steps) }),
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			RunE:  withMigrator(func(ctx context.Context, m *database.Migrator) error { return m.Up(ctx) }),
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE:  withMigrator(status),
		},
	)
	return cmd
}

func withMigrator(fn func(ctx context.Context, m *database.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		rt, err := bootstrap(ctx, "migrate", false)
		if err != nil {
			return err
		}
		defer rt.close(context.Background())

		m, err := database.NewMigrator(rt.db.StdDB(), migrations.FS)
		if err != nil {
			return err
		}
		if err := fn(ctx, m); err != nil {
			rt.log.Error("migration failed", zap.Error(err))
			return fmt.Errorf("migration failed: %w", err)
		}
		return nil
	}
}

func status(ctx context.Context, m *database.Migrator) error {
	if err := m.Status(ctx); err != nil {
		return err
	}
	v, err := m.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("current version: %d\n", v)
	return nil
}
