// Package kafka forwards audit events to per-category Kafka topics.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "skillcred/pkg/platform/audit"
)

// Producer is the subset of *kgo.Client used to publish.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Store implements audit.Store by producing one record per event. Records
// are keyed by subject so a subject's events stay ordered in one partition.
type Store struct {
	producer    Producer
	topicPrefix string
}

func New(producer Producer, topicPrefix string) *Store {
	return &Store{producer: producer, topicPrefix: topicPrefix}
}

// NewClient builds a franz-go client for brokers.
func NewClient(brokers []string) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// Topic returns the topic events of category are written to.
func (s *Store) Topic(category audit.EventCategory) string {
	return s.topicPrefix + ".audit." + string(category)
}

// Topics lists every topic the store may write to.
func (s *Store) Topics() []string {
	return []string{
		s.Topic(audit.CategoryCompliance),
		s.Topic(audit.CategorySecurity),
		s.Topic(audit.CategoryOperations),
		s.Topic(audit.CategoryFairness),
	}
}

// payload is the JSON record value.
type payload struct {
	ID         string            `json:"id"`
	Category   string            `json:"category"`
	Timestamp  string            `json:"timestamp"`
	SubjectID  string            `json:"subject_id"`
	Action     string            `json:"action"`
	Decision   string            `json:"decision,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Severity   string            `json:"severity,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	ActorID    string            `json:"actor_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}
	body, err := json.Marshal(payload{
		ID:         uuid.NewString(),
		Category:   string(category),
		Timestamp:  event.Timestamp.UTC().Format(time.RFC3339Nano),
		SubjectID:  event.SubjectID.String(),
		Action:     event.Action,
		Decision:   event.Decision,
		Reason:     event.Reason,
		Severity:   event.Severity,
		RequestID:  event.RequestID,
		ActorID:    event.ActorID,
		Attributes: event.Attributes,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	rec := &kgo.Record{
		Topic: s.Topic(category),
		Key:   []byte(event.SubjectID),
		Value: body,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
		},
	}
	if err := s.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// EnsureTopics creates the audit topics, ignoring ones that already exist.
func EnsureTopics(ctx context.Context, admin *kadm.Client, topics []string, partitions int32, replication int16) error {
	resp, err := admin.CreateTopics(ctx, partitions, replication, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	var errs []error
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			errs = append(errs, fmt.Errorf("topic %s: %w", r.Topic, r.Err))
		}
	}
	return errors.Join(errs...)
}
