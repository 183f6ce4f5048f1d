package jobs

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nosht/nosht/pkg/logger"
)

// Dispatcher routes jobs to the handler registered for their type
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Type]Handler
	log      *logger.Logger
}

// NewDispatcher creates an empty Dispatcher
func NewDispatcher(log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Get()
	}
	return &Dispatcher{
		handlers: make(map[Type]Handler),
		log:      log,
	}
}

// Register sets the handler for t, replacing any previous one
func (d *Dispatcher) Register(t Type, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = h
}

// Dispatch runs the handler for job.Type. Every failure, an unregistered type included, is logged
// here, so queue workers may drop the returned error.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) error {
	d.mu.RLock()
	h, ok := d.handlers[job.Type]
	d.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type)
		d.log.WithContext(ctx).Error("job dropped",
			zap.String("job_id", job.ID),
			zap.String("job_type", string(job.Type)),
			zap.Int64("company_id", job.CompanyID),
			zap.Error(err),
		)
		return err
	}

	if err := h.Handle(ctx, job); err != nil {
		d.log.WithContext(ctx).Error("job failed",
			zap.String("job_id", job.ID),
			zap.String("job_type", string(job.Type)),
			zap.Int64("company_id", job.CompanyID),
			zap.Int64("event_id", job.EventID),
			zap.Error(err),
		)
		return err
	}

	d.log.WithContext(ctx).Debug("job done",
		zap.String("job_id", job.ID),
		zap.String("job_type", string(job.Type)),
	)
	return nil
}
