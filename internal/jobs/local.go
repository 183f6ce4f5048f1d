package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nosht/nosht/pkg/logger"
)

// ErrQueueClosed is returned by Enqueue after Close
var ErrQueueClosed = errors.New("job queue is closed")

// ErrQueueFull is returned when the buffer has no room
var ErrQueueFull = errors.New("job queue is full")

// LocalQueue runs jobs in-process on a fixed worker pool. It is used when no Kafka brokers are
// configured.
type LocalQueue struct {
	dispatcher *Dispatcher
	log        *logger.Logger
	ch         chan Job
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewLocalQueue starts workers goroutines reading from a buffer of the given size
func NewLocalQueue(dispatcher *Dispatcher, workers, buffer int, log *logger.Logger) *LocalQueue {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	if log == nil {
		log = logger.Get()
	}
	q := &LocalQueue{
		dispatcher: dispatcher,
		log:        log,
		ch:         make(chan Job, buffer),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

func (q *LocalQueue) work() {
	defer q.wg.Done()
	for job := range q.ch {
		_ = q.dispatcher.Dispatch(context.Background(), job)
	}
}

// Enqueue hands jobs to the workers without blocking
func (q *LocalQueue) Enqueue(ctx context.Context, jobs ...Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	for _, j := range jobs {
		j = stamp(j, time.Now)
		select {
		case q.ch <- j:
		case <-ctx.Done():
			return ctx.Err()
		default:
			q.log.Warn("local job queue full", zap.String("job_type", string(j.Type)))
			return ErrQueueFull
		}
	}
	return nil
}

// Close stops accepting jobs and waits for queued ones to finish
func (q *LocalQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	q.wg.Wait()
}
