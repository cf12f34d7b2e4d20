package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const DefaultTopic = "ledger.transaction.events"

// TransactionEvent is emitted for every committed money movement and every
// pending-request resolution.
type TransactionEvent struct {
	// EventID is a fresh ULID per publish so consumers can deduplicate
	// redeliveries of the same transaction.
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"` // transaction.completed, transaction.declined, deposit.completed, withdrawal.completed, request.created
	TransID    int64     `json:"trans_id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Amount     int64     `json:"amount"` // minor units
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// TransactionEventPublisher writes events to Kafka. A nil publisher is valid
// and drops everything, so event delivery never gates a ledger commit.
type TransactionEventPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewTransactionEventPublisher(brokers []string, topic string, log *zap.Logger) *TransactionEventPublisher {
	if len(brokers) == 0 {
		return nil
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &TransactionEventPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
		log: log,
	}
}

func (p *TransactionEventPublisher) Publish(ctx context.Context, event *TransactionEvent) error {
	if p == nil || p.writer == nil {
		return nil
	}
	event.EventID = ulid.Make().String()
	event.Timestamp = time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(event.TransID, 10)),
		Value: payload,
	})
	if err != nil {
		p.log.Warn("failed to publish transaction event",
			zap.String("event_type", event.EventType),
			zap.Int64("trans_id", event.TransID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *TransactionEventPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
