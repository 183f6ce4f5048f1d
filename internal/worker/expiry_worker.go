package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nosht/nosht/internal/repository"
	"github.com/nosht/nosht/pkg/logger"
	"github.com/nosht/nosht/pkg/telemetry"
)

// StaleEventFinder lists events holding expired reservations
type StaleEventFinder interface {
	EventsWithStaleReservations(ctx context.Context, ttl time.Duration, limit int) ([]repository.StaleEvent, error)
}

// Promoter recounts an event's capacity and notifies its waiting list
type Promoter interface {
	Promote(ctx context.Context, companyID, eventID int64) (int, error)
}

// ExpiryWorkerConfig holds configuration for the expiry worker
type ExpiryWorkerConfig struct {
	ScanInterval   time.Duration
	BatchSize      int
	ReservationTTL time.Duration
}

// DefaultExpiryWorkerConfig returns default configuration
func DefaultExpiryWorkerConfig() *ExpiryWorkerConfig {
	return &ExpiryWorkerConfig{
		ScanInterval:   time.Minute,
		BatchSize:      100,
		ReservationTTL: 300 * time.Second,
	}
}

// ExpiryWorkerStats reports what the worker has done since it started
type ExpiryWorkerStats struct {
	IsRunning       bool      `json:"is_running"`
	TotalEvents     int64     `json:"total_events"`
	TotalNotified   int64     `json:"total_notified"`
	TotalFailed     int64     `json:"total_failed"`
	LastScanTime    time.Time `json:"last_scan_time"`
	LastEventsCount int       `json:"last_events_count"`
}

// ExpiryWorker sweeps expired reservations in the background. Expiry is lazy, so an event
// nobody reads keeps its stale holds and its waiting list never hears about the freed
// tickets. The sweep runs the same recount a read would and promotes the waiting list.
type ExpiryWorker struct {
	events   StaleEventFinder
	promoter Promoter
	log      *logger.Logger
	config   *ExpiryWorkerConfig

	mu            sync.RWMutex
	running       bool
	stopCh        chan struct{}
	doneCh        chan struct{}
	totalEvents   int64
	totalNotified int64
	totalFailed   int64
	lastScanTime  time.Time
	lastCount     int
}

// NewExpiryWorker creates a new ExpiryWorker. A nil config uses DefaultExpiryWorkerConfig.
func NewExpiryWorker(events StaleEventFinder, promoter Promoter, log *logger.Logger, config *ExpiryWorkerConfig) *ExpiryWorker {
	if config == nil {
		config = DefaultExpiryWorkerConfig()
	}
	if log == nil {
		log = logger.Get()
	}
	return &ExpiryWorker{
		events:   events,
		promoter: promoter,
		log:      log,
		config:   config,
	}
}

// Start runs the scan loop until ctx is cancelled or Stop is called
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	w.log.Info("expiry worker started",
		zap.Duration("scan_interval", w.config.ScanInterval),
		zap.Int("batch_size", w.config.BatchSize),
	)

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(w.config.ScanInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				w.setStopped()
				return
			case <-stopCh:
				w.setStopped()
				return
			case <-ticker.C:
				w.Scan(ctx)
			}
		}
	}()
}

// Stop signals the loop to exit and waits for the current scan to finish. It is safe to call
// from several goroutines.
func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	// running stays true until the loop exits; a nil stopCh marks it as already signalled
	first := w.stopCh != nil
	if first {
		close(w.stopCh)
		w.stopCh = nil
	}
	doneCh := w.doneCh
	w.mu.Unlock()

	<-doneCh
	if first {
		w.log.Info("expiry worker stopped")
	}
}

func (w *ExpiryWorker) setStopped() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// Scan sweeps one batch of events and returns how many were processed
func (w *ExpiryWorker) Scan(ctx context.Context) int {
	ctx, span := telemetry.StartSpan(ctx, "worker.expiry.scan")
	defer span.End()

	stale, err := w.events.EventsWithStaleReservations(ctx, w.config.ReservationTTL, w.config.BatchSize)
	if err != nil {
		w.log.Error("failed to list events with stale reservations", zap.Error(err))
		return 0
	}

	var notified, failed int64
	for _, se := range stale {
		if ctx.Err() != nil {
			break
		}
		n, err := w.promoter.Promote(ctx, se.CompanyID, se.EventID)
		if err != nil {
			failed++
			w.log.Warn("failed to sweep event",
				zap.Int64("company_id", se.CompanyID),
				zap.Int64("event_id", se.EventID),
				zap.Error(err),
			)
			continue
		}
		notified += int64(n)
	}

	w.mu.Lock()
	w.totalEvents += int64(len(stale))
	w.totalNotified += notified
	w.totalFailed += failed
	w.lastScanTime = time.Now()
	w.lastCount = len(stale)
	w.mu.Unlock()

	if len(stale) > 0 {
		w.log.Info("expired reservations swept",
			zap.Int("events", len(stale)),
			zap.Int64("notified", notified),
			zap.Int64("failed", failed),
		)
	}
	return len(stale)
}

// GetStats returns worker statistics
func (w *ExpiryWorker) GetStats() *ExpiryWorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return &ExpiryWorkerStats{
		IsRunning:       w.running,
		TotalEvents:     w.totalEvents,
		TotalNotified:   w.totalNotified,
		TotalFailed:     w.totalFailed,
		LastScanTime:    w.lastScanTime,
		LastEventsCount: w.lastCount,
	}
}
