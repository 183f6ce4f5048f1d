package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/internal/jobs"
	"github.com/nosht/nosht/internal/repository"
	"github.com/nosht/nosht/pkg/logger"
	"github.com/nosht/nosht/pkg/telemetry"
)

// UnsubscribeVerifier checks waiting list removal tokens
type UnsubscribeVerifier interface {
	Verify(token string, eventID int64) (int64, error)
}

// promoter is the part of WaitingListService other services call after freeing capacity
type promoter interface {
	Promote(ctx context.Context, companyID, eventID int64) (int, error)
}

// waitingListService implements the WaitingListService interface
type waitingListService struct {
	eventRepo   repository.EventRepository
	waitingRepo repository.WaitingListRepository
	verifier    UnsubscribeVerifier
	jobs        *enqueuer
	ttl         time.Duration
	log         *logger.Logger
}

// NewWaitingListService creates a new WaitingListService
func NewWaitingListService(
	eventRepo repository.EventRepository,
	waitingRepo repository.WaitingListRepository,
	verifier UnsubscribeVerifier,
	queue jobs.Enqueuer,
	opts Options,
	metrics *telemetry.BookingMetrics,
	log *logger.Logger,
) WaitingListService {
	opts = opts.withDefaults()
	log = loggerOrGlobal(log)
	return &waitingListService{
		eventRepo:   eventRepo,
		waitingRepo: waitingRepo,
		verifier:    verifier,
		jobs:        &enqueuer{queue: queue, metrics: metricsOrNop(metrics), log: log},
		ttl:         opts.ReservationTTL,
		log:         log,
	}
}

func (s *waitingListService) event(ctx context.Context, companyID, eventID int64) (*domain.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, companyID, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrEventNotFound
	}
	return event, nil
}

// Add puts the caller on the waiting list
func (s *waitingListService) Add(ctx context.Context, caller Caller, eventID int64) (bool, error) {
	event, err := s.event(ctx, caller.CompanyID, eventID)
	if err != nil {
		return false, err
	}
	return s.waitingRepo.Add(ctx, event.ID, caller.UserID)
}

// RemoveWithToken removes the user an unsubscribe link was issued to. Removing twice is not an error.
func (s *waitingListService) RemoveWithToken(ctx context.Context, companyID, eventID int64, token string) error {
	event, err := s.event(ctx, companyID, eventID)
	if err != nil {
		return err
	}
	userID, err := s.verifier.Verify(token, event.ID)
	if err != nil {
		return domain.ErrInvalidToken
	}
	_, err = s.waitingRepo.Remove(ctx, event.ID, userID)
	return err
}

// Promote runs the capacity recount and, when tickets are free, queues one email per waiting user.
// Entries stay on the list until the user books or unsubscribes.
func (s *waitingListService) Promote(ctx context.Context, companyID, eventID int64) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.waiting_list.promote")
	defer span.End()

	remaining, err := s.eventRepo.CheckTicketsRemaining(ctx, eventID, s.ttl)
	if err != nil {
		return 0, err
	}
	if remaining != nil && *remaining <= 0 {
		return 0, nil
	}

	entries, err := s.waitingRepo.ListForEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	batch := make([]jobs.Job, 0, len(entries))
	for _, e := range entries {
		j := jobs.Job{
			Type:      jobs.TypeWaitingListAvailable,
			CompanyID: companyID,
			EventID:   eventID,
			UserID:    e.UserID,
			Email:     e.Email,
		}
		if e.FirstName != nil {
			j.FirstName = *e.FirstName
		}
		batch = append(batch, j)
	}
	s.jobs.enqueue(ctx, batch...)

	s.log.WithContext(ctx).Info("waiting list notified",
		zap.Int64("event_id", eventID),
		zap.Int("users", len(batch)),
	)
	return len(batch), nil
}

// promoteAfter runs Promote for capacity freed by a committed change, logging failures
func promoteAfter(ctx context.Context, p promoter, log *logger.Logger, companyID, eventID int64) {
	if p == nil {
		return
	}
	if _, err := p.Promote(ctx, companyID, eventID); err != nil {
		log.WithContext(ctx).Warn("waiting list promotion failed",
			zap.Int64("event_id", eventID),
			zap.Error(err),
		)
	}
}
