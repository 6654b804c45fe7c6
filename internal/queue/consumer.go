package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	applog "onsalenow/internal/log"
)

// Handler processes one product-created event. An error asks for one redelivery.
type Handler func(ctx context.Context, ev ProductCreatedEvent) error

const maxBackoff = 30 * time.Second

// Consume connects to the broker and processes the queue until ctx is
// cancelled, reconnecting with exponential backoff.
func Consume(ctx context.Context, url, queue string, h Handler) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			applog.L().Warn("queue.consumer.dial.fail", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, queue, h)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		applog.L().Warn("queue.consumer.loop.end", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, h Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(16, 0, false); err != nil {
		applog.L().Warn("queue.consumer.qos.fail", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	applog.L().Info("queue.consumer.started", zap.String("queue", queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			handleDelivery(ctx, d, h)
		}
	}
}

// handleDelivery acks processed messages, drops malformed ones, and requeues
// a failed one once.
func handleDelivery(ctx context.Context, d amqp.Delivery, h Handler) {
	var ev ProductCreatedEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil || ev.ProductID == "" {
		applog.L().Warn("queue.message.malformed", zap.ByteString("body", d.Body), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if err := h(ctx, ev); err != nil {
		applog.L().Warn("queue.message.fail",
			zap.String("product_id", ev.ProductID), zap.Bool("redelivered", d.Redelivered), zap.Error(err))
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
