// Package events publishes order lifecycle events to Kafka. Publishing
// is asynchronous and best-effort: a slow or unreachable broker must
// never stall an order operation.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/agrikart/internal/domain/order"
)

// Envelope is the wire format for every published event.
type Envelope struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	ActorID    string          `json:"actor_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// OrderPayload is the order slice carried inside the envelope. Full
// order bodies stay in the database; consumers re-fetch if they need
// more.
type OrderPayload struct {
	OrderID       string              `json:"order_id"`
	Number        string              `json:"number"`
	BuyerID       string              `json:"buyer_id"`
	Status        order.Status        `json:"status"`
	PaymentStatus order.PaymentStatus `json:"payment_status"`
	GrandTotal    decimal.Decimal     `json:"grand_total"`
}

// Publisher writes order events to a single Kafka topic, keyed by order
// ID so one order's events stay in partition order.
type Publisher struct {
	w       *kafka.Writer
	log     *zap.Logger
	inbox   chan kafka.Message
	stop    chan struct{}
	stopped sync.Once
	closeCh chan struct{}
}

// NewPublisher creates a Publisher. buf bounds the in-flight queue;
// events beyond it are dropped rather than blocking callers.
func NewPublisher(brokers []string, topic string, buf int, log *zap.Logger) *Publisher {
	return &Publisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		log:     log,
		inbox:   make(chan kafka.Message, buf),
		stop:    make(chan struct{}),
		closeCh: make(chan struct{}),
	}
}

// Start launches the delivery goroutine. It runs until Close is called,
// then flushes what is left in the inbox and closes the writer.
func (p *Publisher) Start() {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-p.stop:
				for {
					select {
					case m := <-p.inbox:
						p.write(m)
					default:
						if err := p.w.Close(); err != nil {
							p.log.Warn("close kafka writer", zap.Error(err))
						}
						return
					}
				}
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Publisher) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Error("publish event",
			zap.String("key", string(m.Key)), zap.Error(err))
	}
}

// Close stops accepting events, flushes the inbox, and waits for the
// delivery goroutine to exit. The inbox channel itself is never closed:
// an OrderEvent racing Close drops its event instead of panicking. Call
// only after the callers producing events have stopped.
func (p *Publisher) Close() {
	p.stopped.Do(func() { close(p.stop) })
	<-p.closeCh
}

// OrderEvent implements order.EventSink.
func (p *Publisher) OrderEvent(_ context.Context, eventType string, o *order.Order, actorID string) {
	payload, err := json.Marshal(OrderPayload{
		OrderID:       o.ID,
		Number:        o.Number,
		BuyerID:       o.BuyerID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		GrandTotal:    o.GrandTotal,
	})
	if err != nil {
		p.log.Error("marshal event payload", zap.String("order_id", o.ID), zap.Error(err))
		return
	}
	value, err := json.Marshal(Envelope{
		EventID:    uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		ActorID:    actorID,
		Payload:    payload,
	})
	if err != nil {
		p.log.Error("marshal event envelope", zap.String("order_id", o.ID), zap.Error(err))
		return
	}

	select {
	case <-p.stop:
		p.log.Warn("publisher closed, dropping event",
			zap.String("order_id", o.ID), zap.String("type", eventType))
		return
	default:
	}

	msg := kafka.Message{Key: []byte(o.ID), Value: value, Time: time.Now()}
	select {
	case p.inbox <- msg:
	default:
		p.log.Warn("event queue full, dropping event",
			zap.String("order_id", o.ID), zap.String("type", eventType))
	}
}
