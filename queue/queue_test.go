package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{-1, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
	}
	for _, tt := range tests {
		if got := BackoffDelay(time.Second, tt.retry); got != tt.want {
			t.Errorf("BackoffDelay(1s, %d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestRetryCountOf(t *testing.T) {
	tests := []struct {
		headers amqp.Table
		want    int
	}{
		{nil, 0},
		{amqp.Table{}, 0},
		{amqp.Table{"x-retry-count": int32(2)}, 2},
		{amqp.Table{"x-retry-count": int64(3)}, 3},
		{amqp.Table{"x-retry-count": "bad"}, 0},
	}
	for _, tt := range tests {
		if got := retryCountOf(tt.headers); got != tt.want {
			t.Errorf("retryCountOf(%v) = %d, want %d", tt.headers, got, tt.want)
		}
	}
}

func TestMemoryBroker(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()

	var got []string
	_ = b.Subscribe(ctx, QueueBillEvents, func(_ context.Context, msg []byte) error {
		got = append(got, string(msg))
		return errors.New("handler errors are swallowed")
	})

	if err := b.Publish(ctx, QueueBillEvents, []byte("a")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := b.Publish(ctx, QueueBillEvents, []byte("b")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := b.Publish(ctx, "other", []byte("ignored")); err != nil {
		t.Fatalf("Publish other: %v", err)
	}
	b.Flush()
	_ = b.Close()
	if err := b.Publish(ctx, QueueBillEvents, []byte("after close")); err != nil {
		t.Fatalf("Publish after close: %v", err)
	}
	b.Flush()

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("delivered %v, want [a b]", got)
	}
}

func TestMemoryBroker_PublishDoesNotWaitForHandler(t *testing.T) {
	b := NewMemory()
	release := make(chan struct{})
	handled := make(chan string, 1)
	_ = b.Subscribe(context.Background(), QueueBillEvents, func(_ context.Context, msg []byte) error {
		<-release
		handled <- string(msg)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.Publish(ctx, QueueBillEvents, []byte("slow")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	close(release)
	b.Flush()
	if got := <-handled; got != "slow" {
		t.Errorf("handled %q", got)
	}
}

func TestMemoryBroker_StoppedSubscriberGetsNothing(t *testing.T) {
	b := NewMemory()
	subCtx, stop := context.WithCancel(context.Background())
	calls := 0
	_ = b.Subscribe(subCtx, QueueBillEvents, func(context.Context, []byte) error {
		calls++
		return nil
	})
	stop()

	for i := 0; i < 3; i++ {
		if err := b.Publish(context.Background(), QueueBillEvents, []byte("x")); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	b.Flush()
	if calls != 0 {
		t.Errorf("stopped subscriber handled %d messages", calls)
	}
}

type fakeAcknowledger struct {
	acks, nacks, requeues int
}

func (a *fakeAcknowledger) Ack(uint64, bool) error { a.acks++; return nil }

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	if requeue {
		a.requeues++
	}
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error { return a.Nack(0, false, requeue) }

type republished struct {
	queue   string
	retries int
}

func TestRabbitMQBroker_HandleMessage(t *testing.T) {
	failing := func(context.Context, []byte) error { return errors.New("telegram down") }
	tests := []struct {
		name         string
		handler      MessageHandler
		headers      amqp.Table
		publishErr   error
		wantAcks     int
		wantRequeues int
		wantTarget   string
	}{
		{"handled", func(context.Context, []byte) error { return nil }, nil, nil, 1, 0, ""},
		{"retried", failing, nil, nil, 1, 0, QueueBillEvents},
		{"dead lettered", failing, amqp.Table{"x-retry-count": int32(2)}, nil, 1, 0, QueueBillEventsDLQ},
		{"retry publish fails", failing, nil, errors.New("channel closed"), 0, 1, QueueBillEvents},
		{"dlq publish fails", failing, amqp.Table{"x-retry-count": int32(2)}, errors.New("channel closed"), 0, 1, QueueBillEventsDLQ},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent []republished
			b := &RabbitMQBroker{
				maxRetries: 2,
				retryDelay: time.Millisecond,
				logger:     zap.NewNop().Sugar(),
				republish: func(_ context.Context, queueName string, msg amqp.Publishing) error {
					sent = append(sent, republished{queue: queueName, retries: retryCountOf(msg.Headers)})
					return tt.publishErr
				},
			}
			ack := &fakeAcknowledger{}
			msg := amqp.Delivery{Acknowledger: ack, Headers: tt.headers, Body: []byte("{}")}

			b.handleMessage(context.Background(), msg, tt.handler, QueueBillEvents)

			if ack.acks != tt.wantAcks || ack.requeues != tt.wantRequeues {
				t.Errorf("acks=%d requeues=%d, want %d %d", ack.acks, ack.requeues, tt.wantAcks, tt.wantRequeues)
			}
			if tt.wantTarget == "" {
				if len(sent) != 0 {
					t.Errorf("republished %v", sent)
				}
				return
			}
			if len(sent) != 1 || sent[0].queue != tt.wantTarget {
				t.Fatalf("republished %v, want one to %s", sent, tt.wantTarget)
			}
			if tt.wantTarget == QueueBillEvents && sent[0].retries != 1 {
				t.Errorf("retry count = %d, want 1", sent[0].retries)
			}
		})
	}
}

func TestRabbitMQBroker_StopDuringBackoffRequeues(t *testing.T) {
	b := &RabbitMQBroker{
		maxRetries: 3,
		retryDelay: time.Hour,
		logger:     zap.NewNop().Sugar(),
		republish: func(context.Context, string, amqp.Publishing) error {
			t.Error("republished after stop")
			return nil
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ack := &fakeAcknowledger{}
	b.handleMessage(ctx, amqp.Delivery{Acknowledger: ack}, func(context.Context, []byte) error {
		return errors.New("fail")
	}, QueueBillEvents)
	if ack.acks != 0 || ack.requeues != 1 {
		t.Errorf("acks=%d requeues=%d, want 0 1", ack.acks, ack.requeues)
	}
}
