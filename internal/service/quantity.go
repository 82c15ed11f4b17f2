package service

import "strings"

// NormalizeDeviceIDs trims every identifier and drops the blank ones. Order and
// repeated entries are kept so the validator can still report them.
func NormalizeDeviceIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// DeriveInitialQuantity sets the quantity of a new product. Device IDs win over
// a bulk quantity; a product with neither is rejected.
func DeriveInitialQuantity(ids []string, bulkQty int) (qty int, tracked bool, err error) {
	ids = NormalizeDeviceIDs(ids)
	switch {
	case len(ids) > 0:
		return len(ids), true, nil
	case bulkQty > 0:
		return bulkQty, false, nil
	default:
		return 0, false, reject("missing_stock", "a product needs at least one device ID or a positive quantity")
	}
}

// DiffDeviceIDs compares two device sets case-insensitively. Returned ids keep
// the spelling of the side they come from.
func DiffDeviceIDs(original, submitted []string) (added, removed []string) {
	orig := keySet(original)
	sub := keySet(submitted)

	for _, id := range NormalizeDeviceIDs(submitted) {
		k := normalizeKey(id)
		if !orig[k] {
			added = append(added, id)
			orig[k] = true
		}
	}
	for _, id := range NormalizeDeviceIDs(original) {
		k := normalizeKey(id)
		if !sub[k] {
			removed = append(removed, id)
			sub[k] = true
		}
	}
	return added, removed
}

// EditQuantity is the outcome of recomputing stock for an edited product
type EditQuantity struct {
	Added     []string
	Removed   []string
	Delta     int
	Committed int
}

// DeriveEditQuantity applies an edit as a delta on top of current. Device
// changes count one unit each; without submitted IDs a positive restockQty
// is added to what is already there. The result never drops below zero.
func DeriveEditQuantity(current int, original, submitted []string, restockQty int) EditQuantity {
	added, removed := DiffDeviceIDs(original, submitted)
	delta := len(added) - len(removed)
	if len(NormalizeDeviceIDs(submitted)) == 0 && restockQty > 0 {
		delta += restockQty
	}

	committed := current + delta
	if committed < 0 {
		committed = 0
	}
	return EditQuantity{
		Added:     added,
		Removed:   removed,
		Delta:     delta,
		Committed: committed,
	}
}

func normalizeKey(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func keySet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if k := normalizeKey(id); k != "" {
			set[k] = true
		}
	}
	return set
}
