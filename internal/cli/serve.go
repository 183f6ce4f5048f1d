package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nosht/nosht/internal/di"
	"github.com/nosht/nosht/migrations"
	"github.com/nosht/nosht/pkg/database"
)

const shutdownTimeout = 30 * time.Second

var autoMigrate bool

// NewServeCommand returns the command running the HTTP API
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Start the booking API. Jobs run in-process unless Kafka brokers are configured.`,
		RunE:  runServe,
	}
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Apply pending migrations before serving")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	rt, err := bootstrap(ctx, "api", true)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	if autoMigrate {
		m, err := database.NewMigrator(rt.db.StdDB(), migrations.FS)
		if err != nil {
			return err
		}
		if err := m.Up(ctx); err != nil {
			return err
		}
	}

	container, err := di.NewContainer(ctx, &di.ContainerConfig{Config: rt.cfg, DB: rt.db, Logger: rt.log})
	if err != nil {
		return err
	}
	defer container.Close()

	if rt.cfg.Booking.SweepEnabled {
		sweeper := container.ExpiryWorker()
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	if rt.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:         rt.cfg.Server.Addr(),
		Handler:      container.Router(),
		ReadTimeout:  rt.cfg.Server.ReadTimeout,
		WriteTimeout: rt.cfg.Server.WriteTimeout,
		IdleTimeout:  rt.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	rt.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		rt.log.Error("server forced to shutdown", zap.Error(err))
		return err
	}
	rt.log.Info("server exited")
	return nil
}
