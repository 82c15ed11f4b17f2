package service

import (
	"context"
	"time"

	"inventory-service/internal/models"
)

// Locker hands out expiring exclusive locks. ReleaseLock only releases a lock
// still held under the token returned by AcquireLock.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// EventPublisher publishes inventory domain events
type EventPublisher interface {
	PublishProductSaved(ctx context.Context, event *models.ProductSavedEvent) error
	PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error
	PublishStockTransferred(ctx context.Context, event *models.StockTransferredEvent) error
	PublishSaleRecorded(ctx context.Context, event *models.SaleRecordedEvent) error
}
