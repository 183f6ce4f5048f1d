package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nosht/nosht/internal/di"
	"github.com/nosht/nosht/internal/jobs"
)

var sweep bool

// NewWorkerCommand returns the command consuming jobs from Kafka
func NewWorkerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the background job consumer",
		Long:  `Consume email and CRM jobs from Kafka. With --sweep it also expires stale reservations.`,
		RunE:  runWorker,
	}
	cmd.Flags().BoolVar(&sweep, "sweep", false, "Also run the expired reservation sweep")
	return cmd
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	rt, err := bootstrap(ctx, "worker", true)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	if len(rt.cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required to run the worker")
	}

	container, err := di.NewContainer(ctx, &di.ContainerConfig{Config: rt.cfg, DB: rt.db, Logger: rt.log})
	if err != nil {
		return err
	}
	defer container.Close()

	if sweep || rt.cfg.Booking.SweepEnabled {
		sweeper := container.ExpiryWorker()
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	consumer, err := jobs.NewKafkaConsumer(jobs.KafkaConfigFrom(rt.cfg.Kafka), container.Dispatcher, rt.log)
	if err != nil {
		return err
	}
	defer consumer.Close()

	return consumer.Run(ctx)
}
