package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"hotel-billing/models"
	"hotel-billing/queue"
	"hotel-billing/receipt"

	"go.uber.org/zap"
)

// Sender delivers a document to a chat.
type Sender interface {
	SendDocument(ctx context.Context, chatID int64, fileName string, data []byte, caption string) error
}

// TenantLookup resolves the print settings of a tenant.
type TenantLookup interface {
	Tenant(id string) (models.Tenant, bool)
}

// ReceiptWorker prints every saved bill to its tenant's print chat.
type ReceiptWorker struct {
	tenants TenantLookup
	sender  Sender
	broker  queue.Broker
	logger  *zap.SugaredLogger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewReceiptWorker(
	tenants TenantLookup,
	sender Sender,
	broker queue.Broker,
	logger *zap.SugaredLogger,
) *ReceiptWorker {
	ctx, cancel := context.WithCancel(context.Background())

	return &ReceiptWorker{
		tenants: tenants,
		sender:  sender,
		broker:  broker,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (w *ReceiptWorker) Start() error {
	w.logger.Info("starting receipt worker")

	return w.broker.Subscribe(w.ctx, queue.QueueBillEvents, w.handleMessage)
}

func (w *ReceiptWorker) Stop() {
	w.logger.Info("stopping receipt worker")
	w.cancel()
}

func (w *ReceiptWorker) handleMessage(ctx context.Context, message []byte) error {
	var event models.BillEvent
	if err := json.Unmarshal(message, &event); err != nil {
		w.logger.Errorw("failed to unmarshal bill event", "error", err)
		return fmt.Errorf("failed to unmarshal bill event: %w", err)
	}
	if event.Type != models.EventBillSaved {
		return nil
	}

	tenant, ok := w.tenants.Tenant(event.TenantID)
	if !ok {
		w.logger.Warnw("bill event for unknown tenant", "tenant", event.TenantID, "bill_id", event.Bill.ID)
		return nil
	}
	if tenant.PrintChatID == 0 {
		return nil
	}

	data, err := receipt.PDF(tenant, event.Bill)
	if err != nil {
		w.logger.Errorw("failed to render receipt", "tenant", tenant.ID, "bill_id", event.Bill.ID, "error", err)
		return err
	}
	caption := fmt.Sprintf("Bill %s · %s · Total %s", event.Bill.BillNumber, event.Bill.Date, receipt.Money(event.Bill.Total))
	if err := w.sender.SendDocument(ctx, tenant.PrintChatID, receipt.FileName(event.Bill), data, caption); err != nil {
		w.logger.Errorw("failed to send receipt", "tenant", tenant.ID, "bill_id", event.Bill.ID, "error", err)
		return err
	}

	w.logger.Infow("receipt printed", "tenant", tenant.ID, "bill_number", event.Bill.BillNumber)
	return nil
}
