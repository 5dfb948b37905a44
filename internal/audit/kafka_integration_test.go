//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"emissions/internal/audit"
	"emissions/internal/platform/config"
	"emissions/internal/platform/kafka"
	"emissions/pkg/testutil/containers"
)

type KafkaSinkSuite struct {
	suite.Suite
	broker   string
	producer *kgo.Client
}

func TestKafkaSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T()).Broker

	var err error
	s.producer, err = kafka.New(config.KafkaConfig{
		Brokers:    []string{s.broker},
		AuditTopic: "emissions.audit.test",
		ClientID:   "emissions-test",
	})
	s.Require().NoError(err)
	s.Require().NotNil(s.producer)
	s.Require().NoError(kafka.Health(context.Background(), s.producer))
}

func (s *KafkaSinkSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *KafkaSinkSuite) consume(topic string, want int) []*kgo.Record {
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var records []*kgo.Record
	for len(records) < want {
		fetches := consumer.PollFetches(ctx)
		if ctx.Err() != nil {
			break
		}
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	return records
}

func (s *KafkaSinkSuite) TestPublishesEventsKeyedBySubject() {
	ctx := context.Background()
	topic := "emissions.audit.keyed"
	s.Require().NoError(kafka.EnsureTopic(ctx, s.producer, topic, 1))
	// A second call must tolerate the existing topic.
	s.Require().NoError(kafka.EnsureTopic(ctx, s.producer, topic, 1))

	publisher := audit.NewPublisher(audit.NewKafkaSink(s.producer, topic))
	s.Require().NoError(publisher.Emit(ctx, audit.Event{
		Action:   audit.EventInspectionRecorded.String(),
		Subject:  "B 1234 XYZ",
		Decision: "pass",
	}))
	s.Require().NoError(publisher.Emit(ctx, audit.Event{
		Action:  audit.EventVehicleDeleted.String(),
		Subject: "B 1234 XYZ",
	}))

	records := s.consume(topic, 2)
	s.Require().Len(records, 2)
	s.Equal("B 1234 XYZ", string(records[0].Key))

	var first audit.Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &first))
	s.Equal(audit.EventInspectionRecorded.String(), first.Action)
	s.Equal("pass", first.Decision)
	s.False(first.Timestamp.IsZero())

	s.Require().NotEmpty(records[1].Headers)
	s.Equal("action", records[1].Headers[0].Key)
	s.Equal(audit.EventVehicleDeleted.String(), string(records[1].Headers[0].Value))
}
