package service

import (
	"context"
	"errors"

	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/inventory"
	"stockpilot/backend/internal/metrics"
	"stockpilot/backend/internal/store"
)

func (s *Service) AdjustStock(ctx context.Context, productID string, req domain.StockAdjustmentRequest) (domain.StockAdjustmentResult, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.StockAdjustmentResult{}, err
	}
	if req.Quantity > MaxQuantity {
		return domain.StockAdjustmentResult{}, invalid("quantity", "quantity is too large")
	}
	if req.Cost != nil {
		if err := checkAmount("cost", *req.Cost); err != nil {
			return domain.StockAdjustmentResult{}, err
		}
	}

	now := s.now()
	writes, err := s.repo.AdjustStock(ctx, actor.OrganizationID, productID, func(p domain.Product) (store.AdjustmentWrites, error) {
		return inventory.PlanAdjustment(p, req, actor.UserID, now)
	})
	s.metrics.IncStockAdjustment(req.Type, adjustmentResult(err))
	if err != nil {
		return domain.StockAdjustmentResult{}, classified(err)
	}

	ctx = s.log.WithFields(ctx, map[string]any{
		"product_id":      productID,
		"type":            req.Type,
		"quantity_change": writes.Ledger.QuantityChange,
		"stock_after":     writes.Ledger.StockAfter,
	})
	s.log.Info(ctx, "stock adjusted")

	return domain.StockAdjustmentResult{
		Product: writes.Product,
		Ledger:  writes.Ledger,
		Expense: writes.Expense,
	}, nil
}

func adjustmentResult(err error) string {
	if errors.Is(err, store.ErrInsufficientStock) {
		return "insufficient_stock"
	}
	return metrics.Result(err)
}

// ProductHistory lists the ledger newest first. Deleted products keep their history.
func (s *Service) ProductHistory(ctx context.Context, productID string, limit int) ([]domain.LedgerEntry, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetProduct(ctx, actor.OrganizationID, productID); err != nil {
		return nil, classified(err)
	}
	entries, err := s.repo.ListLedger(ctx, actor.OrganizationID, productID, clampLimit(limit))
	return entries, classified(err)
}

// ReconcileStock replays the full ledger of a product against its stock.
func (s *Service) ReconcileStock(ctx context.Context, productID string) (domain.StockReconciliation, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.StockReconciliation{}, err
	}
	product, err := s.repo.GetProduct(ctx, actor.OrganizationID, productID)
	if err != nil {
		return domain.StockReconciliation{}, classified(err)
	}
	entries, err := s.repo.ListLedger(ctx, actor.OrganizationID, productID, 0)
	if err != nil {
		return domain.StockReconciliation{}, classified(err)
	}

	rec := inventory.Reconcile(*product, entries)
	if !rec.Consistent {
		ctx = s.log.WithFields(ctx, map[string]any{
			"product_id":   productID,
			"stock":        rec.Stock,
			"ledger_total": rec.LedgerTotal,
		})
		s.log.Warn(ctx, "ledger does not match stock")
	}
	return rec, nil
}
