package queue

import (
	"context"
	"sync"
)

// Memory delivers messages to in-process subscribers. It stands in for
// RabbitMQ when none is configured, and in tests. Each subscriber consumes
// on its own goroutine until the context it subscribed with is done, so a
// publish never waits on a handler. Handler errors are not retried.
type Memory struct {
	mu      sync.RWMutex
	subs    map[string][]*memorySub
	closed  bool
	done    chan struct{}
	pending sync.WaitGroup
}

type memorySub struct {
	ctx     context.Context
	handler MessageHandler
	msgs    chan []byte

	mu      sync.Mutex // guards enqueue against the final drain
	stopped bool
}

const memoryBuffer = 256

func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]*memorySub), done: make(chan struct{})}
}

// Publish queues message for every live subscriber of queueName. It blocks
// only while a subscriber's buffer is full, and gives up when ctx is done.
func (m *Memory) Publish(ctx context.Context, queueName string, message []byte) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil
	}
	subs := append([]*memorySub(nil), m.subs[queueName]...)
	m.mu.RUnlock()

	for _, sub := range subs {
		if err := m.enqueue(ctx, sub, message); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) enqueue(ctx context.Context, sub *memorySub, message []byte) error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.stopped || sub.ctx.Err() != nil {
		return nil
	}
	body := make([]byte, len(message))
	copy(body, message)
	m.pending.Add(1)
	select {
	case sub.msgs <- body:
		return nil
	case <-sub.ctx.Done():
	case <-m.done:
	case <-ctx.Done():
		m.pending.Done()
		return ctx.Err()
	}
	m.pending.Done()
	return nil
}

// Subscribe starts consuming queueName. Delivery stops when ctx is done or
// the broker is closed.
func (m *Memory) Subscribe(ctx context.Context, queueName string, handler MessageHandler) error {
	sub := &memorySub{ctx: ctx, handler: handler, msgs: make(chan []byte, memoryBuffer)}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.subs[queueName] = append(m.subs[queueName], sub)
	m.mu.Unlock()

	go m.consume(queueName, sub)
	return nil
}

func (m *Memory) consume(queueName string, sub *memorySub) {
	defer m.unsubscribe(queueName, sub)
	for {
		select {
		case <-sub.ctx.Done():
			return
		case <-m.done:
			return
		case body := <-sub.msgs:
			if sub.ctx.Err() == nil {
				_ = sub.handler(sub.ctx, body)
			}
			m.pending.Done()
		}
	}
}

// unsubscribe removes sub and discards what it had not consumed yet.
func (m *Memory) unsubscribe(queueName string, sub *memorySub) {
	m.mu.Lock()
	subs := m.subs[queueName]
	for i, s := range subs {
		if s == sub {
			m.subs[queueName] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.stopped = true
	for {
		select {
		case <-sub.msgs:
			m.pending.Done()
		default:
			return
		}
	}
}

// Flush waits until every message published so far has been handled or
// discarded.
func (m *Memory) Flush() {
	m.pending.Wait()
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}
