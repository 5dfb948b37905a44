package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/twmb/franz-go/pkg/kgo"
)

var (
	kafkaPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emissions_audit_kafka_published_total",
		Help: "Audit events acknowledged by the event stream",
	})
	kafkaDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emissions_audit_kafka_dropped_total",
		Help: "Audit events not delivered to the event stream, by reason",
	}, []string{"reason"})
)

// ErrCircuitOpen is returned while the event stream is considered down.
var ErrCircuitOpen = errors.New("audit stream circuit open")

// Producer is the subset of *kgo.Client used by KafkaSink.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaSink publishes events as JSON records keyed by subject, so every
// event for one vehicle lands on the same partition in order.
type KafkaSink struct {
	producer Producer
	topic    string
	breaker  *CircuitBreaker
	timeout  time.Duration
}

func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		topic:    topic,
		breaker:  NewCircuitBreaker(5, 30*time.Second),
		timeout:  5 * time.Second,
	}
}

func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	if !s.breaker.Allow() {
		kafkaDropped.WithLabelValues("circuit_open").Inc()
		return ErrCircuitOpen
	}
	payload, err := json.Marshal(event)
	if err != nil {
		kafkaDropped.WithLabelValues("encode").Inc()
		return fmt.Errorf("encode audit event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Subject),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
		},
		Timestamp: event.Timestamp,
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		s.breaker.RecordFailure()
		kafkaDropped.WithLabelValues("produce").Inc()
		return fmt.Errorf("produce audit event: %w", err)
	}
	s.breaker.RecordSuccess()
	kafkaPublished.Inc()
	return nil
}
