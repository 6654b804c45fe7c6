// Package queue carries product-created events over RabbitMQ: the publisher
// runs inside product creation, the consumer drives the notification fan-out.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"onsalenow/internal/domain"
	applog "onsalenow/internal/log"
)

// ProductCreatedEvent is the message body on the product-created queue.
type ProductCreatedEvent struct {
	ProductID string `json:"productId"`
	SellerID  string `json:"sellerId"`
	CreatedAt string `json:"createdAt"`
}

// Publisher keeps one connection and channel and re-dials after a failure.
type Publisher struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url, queue string) *Publisher {
	return &Publisher{url: url, queue: queue}
}

// ProductCreated publishes a persistent event for p.
func (p *Publisher) ProductCreated(ctx context.Context, prod domain.Product) error {
	return p.Publish(ctx, ProductCreatedEvent{ProductID: prod.ID, SellerID: prod.SellerID, CreatedAt: prod.CreatedAt})
}

func (p *Publisher) Publish(ctx context.Context, ev ProductCreatedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.ProductID,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.reset()
		applog.L().Warn("queue.publish.fail", zap.String("product_id", ev.ProductID), zap.Error(err))
		return fmt.Errorf("publish %s: %w", p.queue, err)
	}
	return nil
}

// channel returns the open channel, dialing if needed. Callers hold mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
