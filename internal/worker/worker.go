package worker

import (
	"context"

	"inventory-service/internal/broker"
	"inventory-service/internal/service"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// SalesWorker applies point-of-sale events to the inventory ledger
type SalesWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewSalesWorker creates a new sales worker
func NewSalesWorker(consumer *broker.Consumer, sales *service.SaleEventHandler) *SalesWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnSaleCompleted(sales.HandleSaleCompleted)

	return &SalesWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts the worker
func (w *SalesWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting sales worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SalesWorker) Stop() error {
	w.logger.Info("Stopping sales worker")
	return w.consumer.Close()
}
