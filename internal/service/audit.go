package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// AuditLog appends and reads the immutable adjustment history
type AuditLog struct {
	repo   store.Repository
	logger *zap.Logger
}

func NewAuditLog(repo store.Repository) *AuditLog {
	return &AuditLog{
		repo:   repo,
		logger: util.GetLogger(),
	}
}

// LogEntryInput describes one committed quantity change
type LogEntryInput struct {
	InventoryRecordID int64
	ProductID         int64
	StoreID           int64
	ProductName       string
	OldQuantity       int
	NewQuantity       int
	Reason            string
	Actor             string
	Source            string
}

// LogAdjustment resolves the acting user and appends the entry. An actor that
// matches no user is still logged, by email with no performed_by.
func (a *AuditLog) LogAdjustment(ctx context.Context, in LogEntryInput) (err error) {
	ctx, span := util.StartSpan(ctx, "AuditLog.LogAdjustment")
	defer func() { util.EndSpan(span, err) }()

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return reject("missing_reason", "a reason is required")
	}

	actor := strings.TrimSpace(in.Actor)
	var performedBy *int64
	user, err := a.repo.GetUserByEmail(ctx, actor)
	switch {
	case err == nil:
		performedBy = &user.ID
	case errors.Is(err, store.ErrNotFound):
		a.logger.Warn("Adjustment actor is not a known user",
			zap.String("actor", actor),
			zap.Int64("inventory_record_id", in.InventoryRecordID))
	default:
		return fmt.Errorf("failed to resolve actor %q: %w", actor, err)
	}

	entry := &models.AdjustmentLogEntry{
		InventoryRecordID: in.InventoryRecordID,
		ProductID:         in.ProductID,
		StoreID:           in.StoreID,
		OldQuantity:       in.OldQuantity,
		NewQuantity:       in.NewQuantity,
		Reason:            reason,
		PerformedBy:       performedBy,
		ActorEmail:        actor,
		Source:            in.Source,
		ProductName:       in.ProductName,
	}
	if err := a.repo.InsertAdjustment(ctx, entry); err != nil {
		return writeFailure("insert adjustment log", err)
	}

	a.logger.Debug("Adjustment logged",
		zap.Int64("inventory_record_id", in.InventoryRecordID),
		zap.Int("old_quantity", in.OldQuantity),
		zap.Int("new_quantity", in.NewQuantity),
		zap.String("source", in.Source))
	return nil
}

// History lists a store's adjustments newest first, optionally for one product
func (a *AuditLog) History(ctx context.Context, storeID, productID int64) ([]models.AdjustmentLogEntry, error) {
	if _, err := a.repo.GetStore(ctx, storeID); err != nil {
		return nil, err
	}
	return a.repo.ListAdjustments(ctx, storeID, productID)
}

// ClearHistory deletes the store's adjustment log. Only the owner may do this.
func (a *AuditLog) ClearHistory(ctx context.Context, storeID int64, actor string) (removed int64, err error) {
	ctx, span := util.StartSpan(ctx, "AuditLog.ClearHistory")
	defer func() { util.EndSpan(span, err) }()

	if err := requireOwner(ctx, a.repo, storeID, actor); err != nil {
		return 0, err
	}

	removed, err = a.repo.DeleteAdjustments(ctx, storeID)
	if err != nil {
		return 0, writeFailure("clear adjustment history", err)
	}

	a.logger.Info("Adjustment history cleared",
		zap.Int64("store_id", storeID),
		zap.Int64("entries", removed),
		zap.String("actor", actor))
	return removed, nil
}

func requireOwner(ctx context.Context, repo store.Repository, storeID int64, actor string) error {
	st, err := repo.GetStore(ctx, storeID)
	if err != nil {
		return err
	}

	user, err := repo.GetUserByEmail(ctx, actor)
	if errors.Is(err, store.ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return fmt.Errorf("failed to resolve actor %q: %w", actor, err)
	}

	if user.ID != st.OwnerID {
		return ErrForbidden
	}
	return nil
}
