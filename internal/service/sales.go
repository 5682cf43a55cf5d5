package service

import (
	"context"
	"errors"
	"strings"

	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/inventory"
	"stockpilot/backend/internal/metrics"
	"stockpilot/backend/internal/store"
	"stockpilot/backend/internal/xid"
)

// Checkout records a sale and everything it implies in one atomic unit. A
// line larger than the current stock rejects the whole cart.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.Sale, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	if err := checkAmount("discount", req.Discount); err != nil {
		return domain.Sale{}, err
	}
	lines := inventory.MergeLines(req.Items)
	if len(lines) == 0 {
		return domain.Sale{}, invalid("items", "cart is empty")
	}
	for _, line := range lines {
		if line.Quantity > MaxQuantity {
			return domain.Sale{}, invalid("items", "quantity is too large")
		}
	}

	draft := domain.CheckoutDraft{
		OrganizationID: actor.OrganizationID,
		SaleID:         xid.New(),
		CustomerName:   strings.TrimSpace(req.CustomerName),
		Discount:       req.Discount,
		Lines:          lines,
		CreatedBy:      actor.UserID,
		CreatedAt:      s.now(),
	}
	sale, err := s.repo.CreateCheckout(ctx, actor.OrganizationID, inventory.ProductIDs(lines), func(products map[string]domain.Product) (store.CheckoutWrites, error) {
		return inventory.PlanCheckout(draft, products)
	})
	s.metrics.IncCheckout(checkoutResult(err))
	if err != nil {
		return domain.Sale{}, classified(err)
	}

	ctx = s.log.WithFields(ctx, map[string]any{
		"sale_id": sale.ID,
		"lines":   len(sale.Items),
		"total":   sale.TotalAmount.String(),
	})
	s.log.Info(ctx, "checkout completed")
	return *sale, nil
}

func checkoutResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	}
	return metrics.Result(err)
}

func (s *Service) ListSales(ctx context.Context, search string, limit int) ([]domain.Sale, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := s.repo.ListSales(ctx, actor.OrganizationID, domain.SaleFilter{
		Search: strings.TrimSpace(search),
		Limit:  clampLimit(limit),
	})
	return sales, classified(err)
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	sale, err := s.repo.GetSale(ctx, actor.OrganizationID, id)
	if err != nil {
		return domain.Sale{}, classified(err)
	}
	return *sale, nil
}
