package service

import (
	"context"
	"strings"

	"stockpilot/backend/internal/apperr"
	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/inventory"
	"stockpilot/backend/internal/store"
	"stockpilot/backend/internal/xid"
)

func (s *Service) ListProducts(ctx context.Context, sort string) ([]domain.Product, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	switch sort {
	case "", store.ProductSortCreated:
		sort = store.ProductSortCreated
	case store.ProductSortStock:
	default:
		return nil, invalid("sort", "sort must be created or stock")
	}
	products, err := s.repo.ListProducts(ctx, actor.OrganizationID, sort)
	return products, classified(err)
}

// GetProduct hides soft-deleted products.
func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, actor.OrganizationID, id)
	if err != nil {
		return domain.Product{}, classified(err)
	}
	if product.DeletedAt != nil {
		return domain.Product{}, apperr.New(apperr.CodeNotFound, "product not found")
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	minStock := domain.DefaultMinStock
	if req.MinStock != nil {
		minStock = *req.MinStock
	}
	now := s.now()
	product := domain.Product{
		ID:             xid.New(),
		OrganizationID: actor.OrganizationID,
		Name:           strings.TrimSpace(req.Name),
		Size:           strings.TrimSpace(req.Size),
		Price:          req.Price,
		Cost:           req.Cost,
		Stock:          req.Stock,
		MinStock:       minStock,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := validateProduct(product); err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.CreateProduct(ctx, product, inventory.PlanOpeningStock(product, actor.UserID, now))
	if err != nil {
		return domain.Product{}, classified(err)
	}
	s.log.Info(s.log.WithField(ctx, "product_id", created.ID), "product created")
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	now := s.now()
	updated, err := s.repo.EditProduct(ctx, actor.OrganizationID, id, func(current domain.Product) (domain.Product, *domain.LedgerEntry, error) {
		next := current
		if req.Name != nil {
			next.Name = strings.TrimSpace(*req.Name)
		}
		if req.Size != nil {
			next.Size = strings.TrimSpace(*req.Size)
		}
		if req.Price != nil {
			next.Price = *req.Price
		}
		if req.Cost != nil {
			next.Cost = *req.Cost
		}
		if req.Stock != nil {
			next.Stock = *req.Stock
		}
		if req.MinStock != nil {
			next.MinStock = *req.MinStock
		}
		next.UpdatedAt = now
		if err := validateProduct(next); err != nil {
			return domain.Product{}, nil, err
		}
		return next, inventory.PlanStockEdit(current, next, actor.UserID, now), nil
	})
	if err != nil {
		return domain.Product{}, classified(err)
	}
	return *updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, actor.OrganizationID, id); err != nil {
		return classified(err)
	}
	s.log.Info(s.log.WithField(ctx, "product_id", id), "product deleted")
	return nil
}

func validateProduct(p domain.Product) error {
	switch {
	case p.Name == "":
		return invalid("name", "name is required")
	case p.Stock < 0:
		return invalid("stock", "stock must not be negative")
	case p.Stock > MaxQuantity:
		return invalid("stock", "stock is too large")
	case p.MinStock < 0:
		return invalid("min_stock", "min stock must not be negative")
	case p.MinStock > MaxQuantity:
		return invalid("min_stock", "min stock is too large")
	}
	if err := checkAmount("price", p.Price); err != nil {
		return err
	}
	return checkAmount("cost", p.Cost)
}
