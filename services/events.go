package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hotel-billing/models"
	"hotel-billing/queue"

	"go.uber.org/zap"
)

// billEvents publishes ledger changes. A failed publish is logged and never
// fails the ledger operation that caused it.
type billEvents struct {
	broker queue.Broker
	logger *zap.SugaredLogger
}

func (e billEvents) publish(ctx context.Context, eventType string, sess Session, bill models.BillRecord) {
	if e.broker == nil {
		return
	}
	event := models.BillEvent{
		Type:       eventType,
		TenantID:   sess.TenantID,
		TenantName: sess.DisplayName,
		Bill:       bill,
		Timestamp:  time.Now(),
	}
	if err := e.send(ctx, event); err != nil {
		e.logger.Errorw("failed to publish bill event", "type", eventType, "bill_id", bill.ID, "error", err)
	}
}

func (e billEvents) send(ctx context.Context, event models.BillEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return e.broker.Publish(ctx, queue.QueueBillEvents, body)
}
