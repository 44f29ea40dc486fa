package repository

import (
	"context"

	"TokenLens/internal/domain/models"
	domrepo "TokenLens/internal/domain/repository"
	pkgkafka "TokenLens/pkg/kafka"
	"TokenLens/pkg/logger"
)

// KafkaEventPublisher writes fetch events to a topic keyed by token, so one
// token's events stay ordered on one partition.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

var _ domrepo.Publisher = (*KafkaEventPublisher)(nil)

func (p *KafkaEventPublisher) PublishBatch(ctx context.Context, events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(events))
	for _, e := range events {
		if e != nil {
			msgs = append(msgs, eventMessage(e))
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func eventMessage(e *models.Event) pkgkafka.Message {
	m := pkgkafka.Message{Key: []byte(e.TokenKey), Value: e}
	if e.ReportID != "" {
		m.Headers = map[string]string{pkgkafka.HeaderReportID: e.ReportID}
	}
	return m
}

// KafkaLogPublisher ships aggregated error logs from the log collector.
type KafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func NewKafkaLogPublisher(producer *pkgkafka.Producer) *KafkaLogPublisher {
	return &KafkaLogPublisher{producer: producer}
}

var _ logger.Publisher = (*KafkaLogPublisher)(nil)

func (p *KafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}
