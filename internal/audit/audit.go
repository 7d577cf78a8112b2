// Package audit publishes operation events to Kafka so device changes can
// be traced after the fact. Publishing is asynchronous and best-effort: a
// broker outage never blocks or fails the operation being audited.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Event describes one completed admin operation.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Source    string    `json:"source"`
	Count     int       `json:"count"`
	Errors    int       `json:"errors"`
	Detail    string    `json:"detail,omitempty"`
}

// Publisher writes events to an audit topic. A nil Publisher is valid and
// discards everything, so callers never need a broker to run.
type Publisher struct {
	logger *slog.Logger
	writer *kafka.Writer
	topic  string
}

// NewPublisher builds a Kafka-backed publisher. With no brokers it
// returns nil, which disables auditing.
func NewPublisher(logger *slog.Logger, brokers []string, topic string) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	logger = logger.WithGroup("kafka").With("topic", topic)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		Async:                  true,
		Logger:                 &infoLogger{l: logger},
		ErrorLogger:            &errorLogger{l: logger},
		AllowAutoTopicCreation: true,
	}

	return &Publisher{
		logger: logger,
		writer: writer,
		topic:  topic,
	}
}

// Publish records the event. Write failures are logged, never returned.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	event.ID = uuid.NewString()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(fmt.Sprintf("marshal audit event: %s", err))
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Source),
		Value: payload,
		Topic: p.topic,
	})
	if err != nil {
		p.logger.Error(fmt.Sprintf("write audit event: %s", err))
	}
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.writer.Close(); err != nil {
		p.logger.Error(fmt.Sprintf("close kafka writer: %s", err))
	}
}

type infoLogger struct {
	l *slog.Logger
}

func (l *infoLogger) Printf(format string, v ...any) {
	l.l.Info(fmt.Sprintf(format, v...))
}

type errorLogger struct {
	l *slog.Logger
}

func (l *errorLogger) Printf(format string, v ...any) {
	l.l.Error(fmt.Sprintf(format, v...))
}
