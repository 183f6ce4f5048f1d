package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys used on booking metrics and spans
const (
	AttrEventID       = "event.id"
	AttrCompanyID     = "company.id"
	AttrResult        = "result"
	AttrPurpose       = "payment.purpose"
	AttrJobName       = "job.name"
	AttrWebhookResult = "webhook.result"
)

func EventIDAttr(id int64) attribute.KeyValue   { return attribute.Int64(AttrEventID, id) }
func CompanyIDAttr(id int64) attribute.KeyValue { return attribute.Int64(AttrCompanyID, id) }
func ResultAttr(r string) attribute.KeyValue    { return attribute.String(AttrResult, r) }
func PurposeAttr(p string) attribute.KeyValue   { return attribute.String(AttrPurpose, p) }
func JobNameAttr(n string) attribute.KeyValue   { return attribute.String(AttrJobName, n) }

// Counter wraps an OTel counter
type Counter struct {
	counter metric.Int64Counter
}

// Inc increments the counter by 1
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// Add increments the counter by value
func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Histogram wraps an OTel histogram
type Histogram struct {
	histogram metric.Float64Histogram
}

// Record records a value in the histogram
func (h *Histogram) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	h.histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// BookingMetrics are the instruments the booking flow reports
type BookingMetrics struct {
	Reservations       *Counter   // result=ok|invalid|soft_conflict|hard_conflict|error
	TicketsReserved    *Counter
	ReservationsFreed  *Counter   // cancelled by the client
	Webhooks           *Counter   // webhook.result=processed|ignored|duplicate|invalid|error
	JobsEnqueued       *Counter   // job.name, result=ok|error
	ReserveDurationSec *Histogram
}

// NewBookingMetrics registers the booking instruments on meter. A nil meter uses GetMeter().
func NewBookingMetrics(meter metric.Meter) (*BookingMetrics, error) {
	if meter == nil {
		meter = GetMeter()
	}

	counter := func(name, desc string) (*Counter, error) {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("1"))
		if err != nil {
			return nil, err
		}
		return &Counter{counter: c}, nil
	}

	m := &BookingMetrics{}
	var err error
	if m.Reservations, err = counter("nosht.reservations", "Reservation attempts by outcome"); err != nil {
		return nil, err
	}
	if m.TicketsReserved, err = counter("nosht.tickets.reserved", "Tickets placed on hold"); err != nil {
		return nil, err
	}
	if m.ReservationsFreed, err = counter("nosht.reservations.cancelled", "Reservations released by the client"); err != nil {
		return nil, err
	}
	if m.Webhooks, err = counter("nosht.webhooks", "Payment webhooks by outcome"); err != nil {
		return nil, err
	}
	if m.JobsEnqueued, err = counter("nosht.jobs.enqueued", "Background jobs published"); err != nil {
		return nil, err
	}

	h, err := meter.Float64Histogram(
		"nosht.reserve.duration",
		metric.WithDescription("Time spent creating a reservation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5),
	)
	if err != nil {
		return nil, err
	}
	m.ReserveDurationSec = &Histogram{histogram: h}

	return m, nil
}

// WebhookResultAttr tags a webhook outcome
func WebhookResultAttr(r string) attribute.KeyValue { return attribute.String(AttrWebhookResult, r) }
