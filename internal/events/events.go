package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/pkg/config"
	"github.com/wonny/optionrank/pkg/logger"
)

// Event types
const (
	TypeRankingCompleted = "ranking.completed"
	TypeRankingFailed    = "ranking.failed"
)

// Event is a ranking job notification
type Event struct {
	Type        string              `json:"type"`
	JobID       string              `json:"job_id"`
	Symbol      string              `json:"symbol"`
	Status      contracts.JobStatus `json:"status"`
	RetryCount  int                 `json:"retry_count"`
	Ranked      int                 `json:"ranked,omitempty"`
	TopContract string              `json:"top_contract,omitempty"`
	ConfigHash  string              `json:"config_hash,omitempty"`
	Error       string              `json:"error,omitempty"`
	ErrorKind   contracts.ErrorKind `json:"error_kind,omitempty"`
	OccurredAt  time.Time           `json:"occurred_at"`
}

// Completed builds the event for a committed run
func Completed(job *contracts.RankingJob, set *contracts.RankSet, at time.Time) Event {
	ev := Event{
		Type:       TypeRankingCompleted,
		JobID:      job.ID.String(),
		Symbol:     job.Symbol,
		Status:     contracts.JobCompleted,
		RetryCount: job.RetryCount,
		Ranked:     len(set.Ranks),
		ConfigHash: set.ConfigHash,
		OccurredAt: at,
	}
	if len(set.Ranks) > 0 {
		ev.TopContract = set.Ranks[0].ContractID
	}
	return ev
}

// Failed builds the event for a job that exhausted its retries
func Failed(job *contracts.RankingJob, at time.Time) Event {
	return Event{
		Type:       TypeRankingFailed,
		JobID:      job.ID.String(),
		Symbol:     job.Symbol,
		Status:     job.Status,
		RetryCount: job.RetryCount,
		Error:      job.LastError,
		ErrorKind:  job.ErrorKind,
		OccurredAt: at,
	}
}

// Publisher delivers ranking events
// ⭐ SSOT: 외부 알림 발행 인터페이스
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// New returns a Kafka publisher, or a no-op publisher when no brokers are configured
func New(cfg config.KafkaConfig, log *logger.Logger) Publisher {
	if len(cfg.Brokers) == 0 {
		log.Debug("Kafka brokers not configured, events disabled")
		return NopPublisher{}
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}

	log.WithFields(map[string]interface{}{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Info("Kafka publisher initialized")

	return NewKafkaPublisher(w, log)
}

// messageWriter is the subset of *kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per event keyed by symbol,
// so a symbol's events stay ordered within its partition
type KafkaPublisher struct {
	writer messageWriter
	logger *logger.Logger
}

// NewKafkaPublisher wraps a writer
func NewKafkaPublisher(w messageWriter, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: log}
}

// Publish implements Publisher
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.Symbol),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
		Time: ev.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event for %s: %w", ev.Type, ev.Symbol, err)
	}

	p.logger.WithFields(map[string]interface{}{
		"type":   ev.Type,
		"symbol": ev.Symbol,
		"job_id": ev.JobID,
	}).Debug("Event published")

	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher
func (NopPublisher) Close() error { return nil }
