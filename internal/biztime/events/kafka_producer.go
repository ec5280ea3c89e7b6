// Package events publishes entity lifecycle events to Kafka. Publishing
// is fire-and-forget: a failed or dropped event never fails the request
// that caused it.
package events

import (
	"context"
	"encoding/json"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var jsonMarshal = json.Marshal

type EventType string

const (
	CompanyCreated     EventType = "company_created"
	CompanyUpdated     EventType = "company_updated"
	CompanyDeleted     EventType = "company_deleted"
	InvoiceCreated     EventType = "invoice_created"
	InvoiceUpdated     EventType = "invoice_updated"
	InvoiceDeleted     EventType = "invoice_deleted"
	IndustryCreated    EventType = "industry_created"
	IndustryAssociated EventType = "industry_associated"
)

// Event is the envelope written to the topic. Key is the entity's
// primary key (company/industry code or invoice id) and doubles as the
// kafka message key.
type Event struct {
	ID     uuid.UUID   `json:"id"`
	Type   EventType   `json:"type"`
	Key    string      `json:"key"`
	Entity interface{} `json:"entity"`
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer    KafkaWriter
	events    chan Event
	logger    *zap.Logger
	closeChan chan struct{}
}

const maxSendRetries = 5

func NewProducer(brokers []string, logger *zap.Logger, topic string) (*Producer, error) {
	// Create topic if it doesn't exist
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	topicConfigs := []kafka.TopicConfig{
		{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		},
	}
	if err := conn.CreateTopics(topicConfigs...); err != nil {
		logger.Warn("failed to create topic (may already exist)", zap.Error(err))
	}

	p := &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
			Topic:    topic,
		},
		events:    make(chan Event, 1000),
		logger:    logger.Named("kafka_producer"),
		closeChan: make(chan struct{}),
	}

	go p.eventLoop()
	return p, nil
}

// Produce enqueues an event. If the queue is full the event is dropped
// with a warning rather than blocking the request path.
func (p *Producer) Produce(eventType EventType, key string, entity interface{}) {
	event := Event{
		ID:     uuid.New(),
		Type:   eventType,
		Key:    key,
		Entity: entity,
	}
	select {
	case p.events <- event:
	default:
		p.logger.Warn("producer queue full, dropping event",
			zap.String("event_type", string(eventType)),
			zap.String("key", key),
		)
	}
}

func (p *Producer) eventLoop() {
	for {
		select {
		case event := <-p.events:
			p.sendEvent(context.Background(), event)
		case <-p.closeChan:
			return
		}
	}
}

func (p *Producer) sendEvent(ctx context.Context, event Event) {
	value, err := jsonMarshal(event)
	if err != nil {
		p.logger.Error("failed to serialize event",
			zap.Error(err),
			zap.String("key", event.Key),
		)
		return
	}

	send := func() error {
		return p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(event.Key),
			Value: value,
		})
	}
	if err := backoff.Retry(send, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxSendRetries)); err != nil {
		p.logger.Error("failed to produce event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.String("key", event.Key),
		)
	}
}

func (p *Producer) Close() {
	close(p.closeChan)
	if err := p.writer.Close(); err != nil {
		p.logger.Error("failed to close kafka writer", zap.Error(err))
	}
}
