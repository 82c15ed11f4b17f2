package service

import (
	"context"
	"fmt"

	"inventory-service/internal/store"
	"inventory-service/internal/util"
)

// ValidationResult lists every identifier that made a submission invalid
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Duplicates []string `json:"duplicates,omitempty"`
}

// Err converts an invalid result into a DuplicateDeviceIDsError
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	util.ValidationRejectionsTotal.WithLabelValues("duplicate_device_id").Inc()
	return &DuplicateDeviceIDsError{IDs: r.Duplicates}
}

// DeviceValidator checks device IDs for uniqueness within a submission and
// across the rest of the store's catalog.
type DeviceValidator struct {
	repo store.Repository
}

func NewDeviceValidator(repo store.Repository) *DeviceValidator {
	return &DeviceValidator{repo: repo}
}

// Validate reports the candidates that repeat within the batch or already
// belong to a product other than excludeProductID. Each offender is reported
// once, in order of first appearance. Blank candidates are ignored.
func (v *DeviceValidator) Validate(ctx context.Context, storeID int64, candidates []string, excludeProductID int64) (*ValidationResult, error) {
	return validateDevices(ctx, v.repo, storeID, candidates, excludeProductID)
}

func validateDevices(ctx context.Context, repo store.Repository, storeID int64, candidates []string, excludeProductID int64) (*ValidationResult, error) {
	ids := NormalizeDeviceIDs(candidates)
	if len(ids) == 0 {
		return &ValidationResult{Valid: true}, nil
	}

	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[normalizeKey(id)]++
	}

	conflicts, err := repo.FindDeviceConflicts(ctx, storeID, ids, excludeProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to check device ids: %w", err)
	}
	taken := keySet(conflicts)

	reported := make(map[string]bool)
	var duplicates []string
	for _, id := range ids {
		k := normalizeKey(id)
		if reported[k] || (counts[k] < 2 && !taken[k]) {
			continue
		}
		reported[k] = true
		duplicates = append(duplicates, id)
	}

	return &ValidationResult{Valid: len(duplicates) == 0, Duplicates: duplicates}, nil
}
