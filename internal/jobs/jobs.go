// Package jobs carries post-commit side effects (emails, CRM sync) through a Kafka topic. Jobs are
// best effort: a failed enqueue or handler is logged and never undoes the booking that caused it.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTopic is the Kafka topic jobs are produced to when none is configured
const DefaultTopic = "nosht.jobs"

// Type names a job handler
type Type string

const (
	TypeSendEventConf        Type = "send_event_conf"
	TypeSendDonationThanks   Type = "send_donation_thanks"
	TypeWaitingListAvailable Type = "waiting_list_available"
	TypeCRMTicketsBooked     Type = "crm_tickets_booked"
	TypeCRMDonation          Type = "crm_donation"
)

// ErrUnknownJobType is returned when no handler is registered for a job
var ErrUnknownJobType = errors.New("unknown job type")

// Job is one unit of deferred work
type Job struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	CompanyID   int64     `json:"company_id"`
	EventID     int64     `json:"event_id,omitempty"`
	UserID      int64     `json:"user_id,omitempty"`
	ActionID    int64     `json:"action_id,omitempty"`
	TicketCount int       `json:"ticket_count,omitempty"`
	Amount      string    `json:"amount,omitempty"`
	Email       string    `json:"email,omitempty"`
	FirstName   string    `json:"first_name,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// Key returns the Kafka message key for partitioning. Jobs for one event stay ordered.
func (j *Job) Key() string {
	return fmt.Sprintf("%d:%d", j.CompanyID, j.EventID)
}

// Enqueuer accepts jobs for asynchronous processing
type Enqueuer interface {
	Enqueue(ctx context.Context, jobs ...Job) error
}

// Handler processes one job
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, job Job) error

// Handle calls f(ctx, job)
func (f HandlerFunc) Handle(ctx context.Context, job Job) error {
	return f(ctx, job)
}
