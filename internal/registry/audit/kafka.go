package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	id "presentia/pkg/domain"
)

// KafkaSink mirrors audit events onto a Kafka topic for downstream consumers
// (SIEM, fraud analytics). It wraps an inner store: the append to the durable
// store is authoritative, the produce is best-effort fan-out.
type KafkaSink struct {
	inner  Store
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects a producer-only client to the given brokers.
func NewKafkaSink(inner Store, brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaSink{inner: inner, client: client, topic: topic}, nil
}

func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	if err := s.inner.Append(ctx, event); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.RegistrationID.String()),
		Value: payload,
	}
	// Fire-and-forget: audit fan-out must never block or fail the primary
	// registration path. Delivery errors surface via the client's hooks.
	s.client.Produce(ctx, record, nil)
	return nil
}

func (s *KafkaSink) ListByRegistration(ctx context.Context, regID id.RegistrationID) ([]Event, error) {
	return s.inner.ListByRegistration(ctx, regID)
}

func (s *KafkaSink) Close() {
	s.client.Close()
}
