package service

import (
	"go.uber.org/zap"

	"github.com/rlin26/cart-engine/internal/core/domain"
)

// ReconcileReport summarizes one catalog reconciliation batch.
type ReconcileReport struct {
	Touched          int // cart lines matched by an update
	PricesChanged    int // lines newly flagged with a price change
	NewlyUnavailable int // lines that transitioned to unavailable
	Clamped          int // lines whose quantity was cut to the stock limit
}

// ApplyCatalogUpdates folds a batch of server-sourced price, discount,
// stock and availability updates into the cart. Updates for ids not in
// the cart are ignored. A price differing from the current one shifts
// it into previousPrice and raises the price-changed flag; re-applying
// the same price leaves the flag as it is. A stock limit of zero or
// less marks the line unavailable without touching its quantity; a
// positive limit below the current quantity clamps the quantity down.
// The whole batch schedules at most one persist.
func (s *CartService) ApplyCatalogUpdates(updates []domain.CatalogUpdate) (ReconcileReport, *PendingWrite) {
	var report ReconcileReport
	if len(updates) == 0 {
		return report, nil
	}

	byID := make(map[string]domain.CatalogUpdate, len(updates))
	for _, u := range updates {
		byID[u.ID] = u
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		u, ok := byID[s.items[i].ID]
		if !ok {
			continue
		}
		it := &s.items[i]
		report.Touched++

		if u.Price != nil && *u.Price != it.UnitPrice {
			it.PreviousPrice = it.UnitPrice
			it.UnitPrice = *u.Price
			it.PriceChanged = true
			report.PricesChanged++
		} else if u.Price != nil {
			it.UnitPrice = *u.Price
		}

		if u.DiscountPercent != nil {
			it.DiscountPercent = domain.ClampDiscount(*u.DiscountPercent)
		}

		if u.StockLimit != nil {
			limit := *u.StockLimit
			it.StockLimit = &limit
			if limit <= 0 {
				if !it.Unavailable {
					report.NewlyUnavailable++
				}
				it.Unavailable = true
			} else if int64(it.Quantity) > limit {
				it.Quantity = int(limit)
				report.Clamped++
			}
		}

		if u.Active != nil {
			if !*u.Active {
				if !it.Unavailable {
					report.NewlyUnavailable++
				}
				it.Unavailable = true
			} else {
				it.Unavailable = false
			}
		}
	}

	if report.Touched == 0 {
		return report, nil
	}

	s.log.Debug("catalog reconciliation applied",
		zap.Int("touched", report.Touched),
		zap.Int("prices_changed", report.PricesChanged),
		zap.Int("newly_unavailable", report.NewlyUnavailable),
		zap.Int("clamped", report.Clamped))

	return report, s.scheduleLocked()
}
