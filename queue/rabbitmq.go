package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type RabbitMQBroker struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	url        string
	maxRetries int
	retryDelay time.Duration
	logger     *zap.SugaredLogger
	mu         sync.RWMutex

	// republish sends retries and dead letters; it is b.publish outside tests.
	republish func(ctx context.Context, queueName string, msg amqp.Publishing) error
}

type Config struct {
	URL           string
	MaxRetries    int
	RetryDelay    time.Duration
	PrefetchCount int
	Logger        *zap.SugaredLogger
}

func NewRabbitMQBroker(cfg Config) (*RabbitMQBroker, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.Qos(cfg.PrefetchCount, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}

	broker := &RabbitMQBroker{
		conn:       conn,
		channel:    channel,
		url:        cfg.URL,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
	}
	broker.republish = broker.publish

	for _, queueName := range []string{QueueBillEvents, QueueBillEventsDLQ} {
		if err := broker.declareQueue(queueName); err != nil {
			broker.Close()
			return nil, err
		}
	}

	return broker, nil
}

func (b *RabbitMQBroker) declareQueue(queueName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	return nil
}

func (b *RabbitMQBroker) Publish(ctx context.Context, queueName string, message []byte) error {
	return b.publish(ctx, queueName, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         message,
		Timestamp:    time.Now(),
	})
}

func (b *RabbitMQBroker) publish(ctx context.Context, queueName string, msg amqp.Publishing) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	err := b.channel.PublishWithContext(
		ctx,
		"",        // exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return nil
}

func (b *RabbitMQBroker) Subscribe(ctx context.Context, queueName string, handler MessageHandler) error {
	b.mu.RLock()
	msgs, err := b.channel.Consume(
		queueName, // queue
		"",        // consumer
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	b.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				b.handleMessage(ctx, msg, handler, queueName)
			}
		}
	}()

	return nil
}

// handleMessage settles one delivery. A failed delivery is republished with
// an incremented x-retry-count after RetryDelay·2^n, or moved to the DLQ
// once MaxRetries is reached, and only then acked. When the republish fails
// or the consumer stops during the backoff, the delivery is requeued.
func (b *RabbitMQBroker) handleMessage(ctx context.Context, msg amqp.Delivery, handler MessageHandler, queueName string) {
	err := handler(ctx, msg.Body)
	if err == nil {
		b.ack(msg, queueName)
		return
	}

	retryCount := retryCountOf(msg.Headers)
	target := queueName + "-dlq"
	out := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers: amqp.Table{
			"x-original-queue": queueName,
			"x-retry-count":    int32(retryCount),
			"x-error":          err.Error(),
		},
		Timestamp: time.Now(),
	}
	if retryCount < b.maxRetries {
		select {
		case <-ctx.Done():
			b.requeue(msg, queueName, retryCount)
			return
		case <-time.After(BackoffDelay(b.retryDelay, retryCount)):
		}
		target = queueName
		out.Headers = amqp.Table{"x-retry-count": int32(retryCount + 1)}
	}

	if perr := b.republish(ctx, target, out); perr != nil {
		b.logger.Errorw("failed to republish message", "queue", queueName, "target", target, "retry_count", retryCount, "handler_error", err, "error", perr)
		b.requeue(msg, queueName, retryCount)
		return
	}
	b.ack(msg, queueName)
}

func (b *RabbitMQBroker) ack(msg amqp.Delivery, queueName string) {
	if err := msg.Ack(false); err != nil {
		b.logger.Errorw("failed to ack message", "queue", queueName, "error", err)
	}
}

func (b *RabbitMQBroker) requeue(msg amqp.Delivery, queueName string, retryCount int) {
	if err := msg.Nack(false, true); err != nil {
		b.logger.Errorw("failed to requeue message", "queue", queueName, "retry_count", retryCount, "error", err)
	}
}

func retryCountOf(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers["x-retry-count"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// BackoffDelay is base·2^retry.
func BackoffDelay(base time.Duration, retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	return base * time.Duration(1<<uint(retry))
}

func (b *RabbitMQBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.channel != nil {
		b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
