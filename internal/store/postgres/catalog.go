package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/store"
)

const productColumns = `id, organization_id, name, COALESCE(size, '') AS size, price, cost,
	stock, min_stock, created_at, updated_at, deleted_at`

const ledgerColumns = `id, organization_id, product_id, transaction_type, quantity_change, stock_after,
	COALESCE(related_sale_id, '') AS related_sale_id, COALESCE(created_by, '') AS created_by, created_at`

func (s *Store) ListProducts(ctx context.Context, orgID string, sort string) ([]domain.Product, error) {
	order := "created_at DESC, id"
	if sort == store.ProductSortStock {
		order = "stock ASC, created_at DESC"
	}

	products := make([]domain.Product, 0, 64)
	err := s.db.SelectContext(ctx, &products, `
		SELECT `+productColumns+`
		FROM products
		WHERE organization_id = $1 AND deleted_at IS NULL
		ORDER BY `+order, orgID)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, orgID string, id string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.GetContext(ctx, &product, `
		SELECT `+productColumns+` FROM products WHERE organization_id = $1 AND id = $2
	`, orgID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product, opening domain.OpeningStock) (*domain.Product, error) {
	if product.ID == "" || product.OrganizationID == "" {
		return nil, store.ErrInvalidInput
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, organization_id, name, size, price, cost, stock, min_stock, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, product.ID, product.OrganizationID, product.Name, nullIfEmpty(product.Size), product.Price, product.Cost,
			product.Stock, product.MinStock, product.CreatedAt, product.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrConflict
			}
			return err
		}
		if opening.Ledger != nil {
			if err := insertLedger(ctx, tx, *opening.Ledger); err != nil {
				return err
			}
		}
		if opening.Expense != nil {
			if err := insertTransaction(ctx, tx, *opening.Expense); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) EditProduct(ctx context.Context, orgID string, id string, edit store.ProductEditor) (*domain.Product, error) {
	var updated domain.Product
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		current, err := lockProduct(ctx, tx, orgID, id)
		if err != nil {
			return err
		}

		next, entry, err := edit(current)
		if err != nil {
			return err
		}
		if next.Stock < 0 {
			return store.ErrInsufficientStock
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET name = $3, size = $4, price = $5, cost = $6, stock = $7, min_stock = $8, updated_at = $9
			WHERE organization_id = $1 AND id = $2
		`, orgID, id, next.Name, nullIfEmpty(next.Size), next.Price, next.Cost, next.Stock, next.MinStock, next.UpdatedAt)
		if err != nil {
			return err
		}
		if entry != nil {
			if err := insertLedger(ctx, tx, *entry); err != nil {
				return err
			}
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, orgID string, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET deleted_at = now(), updated_at = now()
		WHERE organization_id = $1 AND id = $2 AND deleted_at IS NULL
	`, orgID, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AdjustStock(ctx context.Context, orgID string, productID string, plan store.AdjustmentPlanner) (*store.AdjustmentWrites, error) {
	var writes store.AdjustmentWrites
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		current, err := lockProduct(ctx, tx, orgID, productID)
		if err != nil {
			return err
		}

		writes, err = plan(current)
		if err != nil {
			return err
		}
		if writes.Product.Stock < 0 {
			return store.ErrInsufficientStock
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET stock = $3, cost = $4, updated_at = $5
			WHERE organization_id = $1 AND id = $2
		`, orgID, productID, writes.Product.Stock, writes.Product.Cost, writes.Product.UpdatedAt); err != nil {
			return err
		}
		if err := insertLedger(ctx, tx, writes.Ledger); err != nil {
			return err
		}
		if writes.Expense != nil {
			if err := insertTransaction(ctx, tx, *writes.Expense); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &writes, nil
}

func (s *Store) ListLedger(ctx context.Context, orgID string, productID string, limit int) ([]domain.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM inventory_ledger
		WHERE organization_id = $1 AND product_id = $2
		ORDER BY created_at DESC, seq DESC`
	args := []any{orgID, productID}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	entries := make([]domain.LedgerEntry, 0, 32)
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, err
	}
	return entries, nil
}

func lockProduct(ctx context.Context, tx *sqlx.Tx, orgID string, id string) (domain.Product, error) {
	var product domain.Product
	err := tx.GetContext(ctx, &product, `
		SELECT `+productColumns+`
		FROM products
		WHERE organization_id = $1 AND id = $2 AND deleted_at IS NULL
		FOR UPDATE
	`, orgID, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, notFound(err))
	}
	return product, nil
}

func insertLedger(ctx context.Context, tx *sqlx.Tx, entry domain.LedgerEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_ledger (
			id, organization_id, product_id, transaction_type, quantity_change, stock_after,
			related_sale_id, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.OrganizationID, entry.ProductID, entry.TransactionType, entry.QuantityChange, entry.StockAfter,
		nullIfEmpty(entry.RelatedSaleID), nullIfEmpty(entry.CreatedBy), entry.CreatedAt)
	return err
}
