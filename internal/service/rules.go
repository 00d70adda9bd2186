package service

import "fulfillment-service/internal/models"

// legalTargets maps each order status to the statuses reachable from it.
// Delivered and cancelled are terminal. Partial is entered through a
// scoped ship, never requested against an already-partial order except
// to ship more lines.
var legalTargets = map[string][]string{
	models.OrderStatusPending: {
		models.OrderStatusConfirmed,
		models.OrderStatusShipped,
		models.OrderStatusPartial,
		models.OrderStatusCancelled,
		models.OrderStatusDelivered,
	},
	models.OrderStatusConfirmed: {
		models.OrderStatusShipped,
		models.OrderStatusPartial,
		models.OrderStatusCancelled,
		models.OrderStatusDelivered,
	},
	models.OrderStatusPartial: {
		models.OrderStatusShipped,
		models.OrderStatusPartial,
		models.OrderStatusDelivered,
	},
	models.OrderStatusShipped: {
		models.OrderStatusCancelled,
		models.OrderStatusDelivered,
	},
}

// transitionAllowed reports whether target is reachable from current.
func transitionAllowed(current, target string) bool {
	for _, t := range legalTargets[current] {
		if t == target {
			return true
		}
	}
	return false
}

// deriveOrderStatus computes an order's status from the full set of its
// line statuses. It is recomputed on every scoped transition rather
// than tracked incrementally, so it cannot drift.
func deriveOrderStatus(lines []models.OrderLine) string {
	if len(lines) == 0 {
		return models.OrderStatusPending
	}
	shipped := 0
	for _, l := range lines {
		if l.Status == models.LineStatusShipped {
			shipped++
		}
	}
	switch shipped {
	case 0:
		return models.OrderStatusPending
	case len(lines):
		return models.OrderStatusShipped
	default:
		return models.OrderStatusPartial
	}
}
