package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/store"
)

const saleColumns = `id, organization_id, COALESCE(customer_name, '') AS customer_name, total_amount, discount,
	COALESCE(created_by, '') AS created_by, created_at`

func (s *Store) CreateCheckout(ctx context.Context, orgID string, productIDs []string, plan store.CheckoutPlanner) (*domain.Sale, error) {
	if len(productIDs) == 0 {
		return nil, store.ErrInvalidInput
	}

	var sale domain.Sale
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		// Lock in id order so concurrent carts touching the same rows cannot deadlock.
		locked := make([]domain.Product, 0, len(productIDs))
		if err := tx.SelectContext(ctx, &locked, `
			SELECT `+productColumns+`
			FROM products
			WHERE organization_id = $1 AND id = ANY($2) AND deleted_at IS NULL
			ORDER BY id
			FOR UPDATE
		`, orgID, productIDs); err != nil {
			return err
		}
		products := make(map[string]domain.Product, len(locked))
		for _, p := range locked {
			products[p.ID] = p
		}

		writes, err := plan(products)
		if err != nil {
			return err
		}
		sale = writes.Sale

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sales (id, organization_id, customer_name, total_amount, discount, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, sale.ID, sale.OrganizationID, nullIfEmpty(sale.CustomerName), sale.TotalAmount, sale.Discount,
			nullIfEmpty(sale.CreatedBy), sale.CreatedAt); err != nil {
			return err
		}

		for _, item := range sale.Items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sale_items (id, sale_id, product_id, product_name, quantity, price_at_sale)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, item.ID, item.SaleID, item.ProductID, item.ProductName, item.Quantity, item.PriceAtSale); err != nil {
				return err
			}
		}

		for id, qty := range writes.Decrements {
			res, err := tx.ExecContext(ctx, `
				UPDATE products SET stock = stock - $3, updated_at = $4
				WHERE organization_id = $1 AND id = $2 AND stock >= $3
			`, orgID, id, qty, sale.CreatedAt)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return fmt.Errorf("product %s: %w", id, store.ErrInsufficientStock)
			}
		}

		for _, entry := range writes.Ledger {
			if err := insertLedger(ctx, tx, entry); err != nil {
				return err
			}
		}
		return insertTransaction(ctx, tx, writes.Income)
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, orgID string, filter domain.SaleFilter) ([]domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE organization_id = $1`
	args := []any{orgID}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%", escapeLike(strings.ToLower(search))+"%")
		query += fmt.Sprintf(` AND (customer_name ILIKE $%d OR lower(id) LIKE $%d)`, len(args)-1, len(args))
	}
	query += ` ORDER BY created_at DESC, seq DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	sales := make([]domain.Sale, 0, 32)
	if err := s.db.SelectContext(ctx, &sales, query, args...); err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) GetSale(ctx context.Context, orgID string, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.GetContext(ctx, &sale, `SELECT `+saleColumns+` FROM sales WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return nil, notFound(err)
	}
	sales := []domain.Sale{sale}
	if err := s.attachItems(ctx, sales); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

func (s *Store) attachItems(ctx context.Context, sales []domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]string, 0, len(sales))
	index := make(map[string]int, len(sales))
	for i := range sales {
		ids = append(ids, sales[i].ID)
		index[sales[i].ID] = i
		sales[i].Items = make([]domain.SaleItem, 0, 4)
	}

	items := make([]domain.SaleItem, 0, len(sales)*2)
	err := s.db.SelectContext(ctx, &items, `
		SELECT id, sale_id, product_id, product_name, quantity, price_at_sale
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, product_id
	`, ids)
	if err != nil {
		return err
	}
	for _, item := range items {
		i := index[item.SaleID]
		sales[i].Items = append(sales[i].Items, item)
	}
	return nil
}

func escapeLike(val string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(val)
}
