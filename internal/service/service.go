// Package service implements the booking flow on top of the repositories, the payment gateway and
// the job queue.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nosht/nosht/internal/jobs"
	"github.com/nosht/nosht/pkg/logger"
	"github.com/nosht/nosht/pkg/telemetry"
)

// Caller is the authenticated user a request acts for
type Caller struct {
	UserID    int64
	CompanyID int64
	Role      string
	Email     string
}

// Options are the booking settings shared by the services
type Options struct {
	ReservationTTL time.Duration
	MaxTickets     int
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		ReservationTTL: 300 * time.Second,
		MaxTickets:     30,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ReservationTTL <= 0 {
		o.ReservationTTL = d.ReservationTTL
	}
	if o.MaxTickets <= 0 {
		o.MaxTickets = d.MaxTickets
	}
	return o
}

func metricsOrNop(m *telemetry.BookingMetrics) *telemetry.BookingMetrics {
	if m != nil {
		return m
	}
	m, err := telemetry.NewBookingMetrics(nil)
	if err != nil {
		panic(err)
	}
	return m
}

func loggerOrGlobal(l *logger.Logger) *logger.Logger {
	if l != nil {
		return l
	}
	return logger.Get()
}

// enqueuer hands jobs to the queue after a transaction has committed. Failures are logged and
// never returned: the booking already stands.
type enqueuer struct {
	queue   jobs.Enqueuer
	metrics *telemetry.BookingMetrics
	log     *logger.Logger
}

func (e *enqueuer) enqueue(ctx context.Context, js ...jobs.Job) {
	if e.queue == nil || len(js) == 0 {
		return
	}
	err := e.queue.Enqueue(ctx, js...)
	result := "ok"
	if err != nil {
		result = "error"
	}
	for _, j := range js {
		e.metrics.JobsEnqueued.Inc(ctx, telemetry.JobNameAttr(string(j.Type)), telemetry.ResultAttr(result))
	}
	if err != nil {
		e.log.WithContext(ctx).Error("failed to enqueue jobs",
			zap.Int("count", len(js)),
			zap.String("first_type", string(js[0].Type)),
			zap.Error(err),
		)
	}
}
