package service

import (
	"context"
	"fmt"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// EventDeduplicator remembers which consumed events were already applied
type EventDeduplicator interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) error
}

// SaleEventHandler applies completed point-of-sale events to the ledger
type SaleEventHandler struct {
	ledger *Ledger
	dedup  EventDeduplicator
	ttl    time.Duration
	logger *zap.Logger
}

// NewSaleEventHandler creates a new sale event handler
func NewSaleEventHandler(ledger *Ledger, dedup EventDeduplicator, ttl time.Duration) *SaleEventHandler {
	return &SaleEventHandler{
		ledger: ledger,
		dedup:  dedup,
		ttl:    ttl,
		logger: util.GetLogger(),
	}
}

// HandleSaleCompleted records every line of the sale. Lines are marked one by
// one so a redelivered event skips what was already applied. Lines the ledger
// rejects are logged and dropped; any other failure is returned so the
// message is redelivered.
func (h *SaleEventHandler) HandleSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) (err error) {
	ctx, span := util.StartSpan(ctx, "SaleEventHandler.HandleSaleCompleted")
	defer func() { util.EndSpan(span, err) }()

	h.logger.Info("Handling sale completed",
		zap.String("event_id", event.EventID),
		zap.String("sale_id", event.SaleID),
		zap.Int("items", len(event.Items)))

	for i, item := range event.Items {
		key := fmt.Sprintf("%s:%d", event.EventID, i)

		processed, err := h.dedup.IsEventProcessed(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to check event processed: %w", err)
		}
		if processed {
			h.logger.Info("Sale line already processed", zap.String("key", key))
			continue
		}

		_, err = h.ledger.RecordSale(ctx, SaleInput{
			ProductID: item.ProductID,
			StoreID:   event.StoreID,
			Quantity:  item.Quantity,
			DeviceIDs: item.DeviceIDs,
			Actor:     event.Cashier,
			Reference: event.SaleID,
		})
		if err != nil && !IsValidation(err) {
			return fmt.Errorf("failed to record sale of product %d: %w", item.ProductID, err)
		}
		if err != nil {
			h.logger.Warn("Sale line rejected",
				zap.String("sale_id", event.SaleID),
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
		}

		if err := h.dedup.MarkEventProcessed(ctx, key, h.ttl); err != nil {
			h.logger.Error("Failed to mark event processed", zap.String("key", key), zap.Error(err))
		}
	}

	return nil
}
