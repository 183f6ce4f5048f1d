package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/nosht/nosht/pkg/config"
	"github.com/nosht/nosht/pkg/logger"
)

// KafkaConfig holds broker settings shared by the producer and the consumer
type KafkaConfig struct {
	Brokers       []string
	ClientID      string
	ConsumerGroup string
	Topic         string
}

// KafkaConfigFrom builds a KafkaConfig from the application settings
func KafkaConfigFrom(c config.KafkaConfig) KafkaConfig {
	topic := c.JobsTopic
	if topic == "" {
		topic = DefaultTopic
	}
	return KafkaConfig{
		Brokers:       c.Brokers,
		ClientID:      c.ClientID,
		ConsumerGroup: c.ConsumerGroup,
		Topic:         topic,
	}
}

// KafkaProducer publishes jobs to Kafka
type KafkaProducer struct {
	client *kgo.Client
	topic  string
	now    func() time.Time
}

// NewKafkaProducer connects a producer client
func NewKafkaProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &KafkaProducer{client: client, topic: cfg.Topic, now: time.Now}, nil
}

// Ping checks broker connectivity
func (p *KafkaProducer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Enqueue publishes jobs and waits for the broker to acknowledge them
func (p *KafkaProducer) Enqueue(ctx context.Context, jobs ...Job) error {
	records, err := p.records(jobs)
	if err != nil {
		return err
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce %d jobs: %w", len(records), err)
	}
	return nil
}

func (p *KafkaProducer) records(jobs []Job) ([]*kgo.Record, error) {
	records := make([]*kgo.Record, 0, len(jobs))
	for i := range jobs {
		j := stamp(jobs[i], p.now)
		value, err := json.Marshal(j)
		if err != nil {
			return nil, fmt.Errorf("failed to encode job %s: %w", j.Type, err)
		}
		records = append(records, &kgo.Record{
			Topic: p.topic,
			Key:   []byte(j.Key()),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "job_type", Value: []byte(j.Type)},
			},
		})
	}
	return records, nil
}

// Close flushes and closes the client
func (p *KafkaProducer) Close() {
	p.client.Close()
}

// KafkaConsumer reads jobs from Kafka and hands them to a Dispatcher. Offsets are committed after
// each polled batch is processed, so a crash replays at most one batch.
type KafkaConsumer struct {
	client     *kgo.Client
	dispatcher *Dispatcher
	log        *logger.Logger
}

// NewKafkaConsumer joins the consumer group for cfg.Topic
func NewKafkaConsumer(cfg KafkaConfig, dispatcher *Dispatcher, log *logger.Logger) (*KafkaConsumer, error) {
	if log == nil {
		log = logger.Get()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	return &KafkaConsumer{client: client, dispatcher: dispatcher, log: log}, nil
}

// Run polls until ctx is cancelled or the client is closed
func (c *KafkaConsumer) Run(ctx context.Context) error {
	c.log.Info("job consumer started")
	defer c.log.Info("job consumer stopped")

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}

		for _, fe := range fetches.Errors() {
			if errors.Is(fe.Err, context.Canceled) {
				return nil
			}
			c.log.Error("fetch failed",
				zap.String("topic", fe.Topic),
				zap.Int32("partition", fe.Partition),
				zap.Error(fe.Err),
			)
		}

		fetches.EachRecord(func(r *kgo.Record) {
			c.handleRecord(ctx, r)
		})

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
			c.log.Error("offset commit failed", zap.Error(err))
		}
	}
}

// handleRecord decodes and dispatches one record. Failures are logged and the record is skipped.
func (c *KafkaConsumer) handleRecord(ctx context.Context, r *kgo.Record) {
	job, err := decodeRecord(r)
	if err != nil {
		c.log.Error("dropping undecodable job",
			zap.String("topic", r.Topic),
			zap.Int64("offset", r.Offset),
			zap.Error(err),
		)
		return
	}
	_ = c.dispatcher.Dispatch(ctx, job)
}

// Close leaves the group and closes the client
func (c *KafkaConsumer) Close() {
	c.client.Close()
}

func decodeRecord(r *kgo.Record) (Job, error) {
	var job Job
	if err := json.Unmarshal(r.Value, &job); err != nil {
		return Job{}, err
	}
	if job.Type == "" {
		return Job{}, errors.New("job has no type")
	}
	return job, nil
}

// stamp fills the id and enqueue time of a job
func stamp(j Job, now func() time.Time) Job {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.EnqueuedAt.IsZero() {
		j.EnqueuedAt = now().UTC()
	}
	return j
}
