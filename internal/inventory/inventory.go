// Package inventory holds the stock and costing rules shared by every storage
// backend. Stores call these planners inside their atomic section and persist
// the returned rows verbatim.
package inventory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/store"
	"stockpilot/backend/internal/xid"
)

// CostPrecision is the scale of the averaged unit cost quotient. Rendering
// drops trailing zeros, so exact averages read back unchanged.
const CostPrecision = 16

// MaxStock bounds a product's on-hand quantity.
const MaxStock = 1_000_000_000

// ShortageError reports the first cart line or adjustment that would drive
// stock below zero.
type ShortageError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}

func (e *ShortageError) Unwrap() error {
	return store.ErrInsufficientStock
}

// WeightedAverageCost blends qty units bought at unitCost into a holding of
// oldStock units valued at oldCost.
func WeightedAverageCost(oldStock int, oldCost decimal.Decimal, qty int, unitCost decimal.Decimal) decimal.Decimal {
	newStock := oldStock + qty
	if newStock <= 0 {
		return unitCost
	}
	held := oldCost.Mul(decimal.NewFromInt(int64(oldStock)))
	incoming := unitCost.Mul(decimal.NewFromInt(int64(qty)))
	return held.Add(incoming).DivRound(decimal.NewFromInt(int64(newStock)), CostPrecision)
}

// SaleTotal is max(0, subtotal - discount).
func SaleTotal(subtotal, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// PlanAdjustment applies a signed stock movement to product. ADDITION adds
// quantity and may re-average cost; ADJUSTMENT removes quantity.
func PlanAdjustment(product domain.Product, req domain.StockAdjustmentRequest, by string, at time.Time) (store.AdjustmentWrites, error) {
	if req.Quantity < 1 {
		return store.AdjustmentWrites{}, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
	}

	var change int
	switch req.Type {
	case domain.LedgerAddition:
		change = req.Quantity
	case domain.LedgerAdjustment:
		change = -req.Quantity
	default:
		return store.AdjustmentWrites{}, fmt.Errorf("unknown adjustment type %q: %w", req.Type, store.ErrInvalidInput)
	}

	newStock := product.Stock + change
	if newStock > MaxStock {
		return store.AdjustmentWrites{}, fmt.Errorf("stock would exceed %d: %w", MaxStock, store.ErrInvalidInput)
	}
	if newStock < 0 {
		return store.AdjustmentWrites{}, &ShortageError{
			ProductID: product.ID,
			Name:      product.Name,
			Requested: req.Quantity,
			Available: product.Stock,
		}
	}

	oldCost := product.Cost
	suppliedCost := decimal.Zero
	if req.Cost != nil {
		if req.Cost.IsNegative() {
			return store.AdjustmentWrites{}, fmt.Errorf("cost must not be negative: %w", store.ErrInvalidInput)
		}
		suppliedCost = *req.Cost
	}

	newCost := oldCost
	if change > 0 && suppliedCost.IsPositive() {
		newCost = WeightedAverageCost(product.Stock, oldCost, req.Quantity, suppliedCost)
	}

	updated := product
	updated.Stock = newStock
	updated.Cost = newCost
	updated.UpdatedAt = at

	plan := store.AdjustmentWrites{
		Product: updated,
		Ledger: domain.LedgerEntry{
			ID:              xid.New(),
			OrganizationID:  product.OrganizationID,
			ProductID:       product.ID,
			TransactionType: req.Type,
			QuantityChange:  change,
			StockAfter:      newStock,
			CreatedBy:       by,
			CreatedAt:       at,
		},
	}

	if change > 0 {
		unit := oldCost
		if suppliedCost.IsPositive() {
			unit = suppliedCost
		}
		amount := unit.Mul(decimal.NewFromInt(int64(req.Quantity)))
		if amount.IsPositive() {
			plan.Expense = &domain.FinancialTransaction{
				ID:             xid.New(),
				OrganizationID: product.OrganizationID,
				Type:           domain.TxExpense,
				Amount:         amount,
				Description:    fmt.Sprintf("Restock: %s (+%d)", product.Name, req.Quantity),
				CreatedBy:      by,
				CreatedAt:      at,
			}
		}
	}

	return plan, nil
}

// PlanOpeningStock returns the ledger entry and expense a new product writes
// for the stock it is created with.
func PlanOpeningStock(product domain.Product, by string, at time.Time) domain.OpeningStock {
	var opening domain.OpeningStock
	if product.Stock <= 0 {
		return opening
	}

	opening.Ledger = &domain.LedgerEntry{
		ID:              xid.New(),
		OrganizationID:  product.OrganizationID,
		ProductID:       product.ID,
		TransactionType: domain.LedgerAddition,
		QuantityChange:  product.Stock,
		StockAfter:      product.Stock,
		CreatedBy:       by,
		CreatedAt:       at,
	}

	if product.Cost.IsPositive() {
		opening.Expense = &domain.FinancialTransaction{
			ID:             xid.New(),
			OrganizationID: product.OrganizationID,
			Type:           domain.TxExpense,
			Amount:         product.InventoryValue(),
			Description:    fmt.Sprintf("Initial Inventory: %s", product.Name),
			CreatedBy:      by,
			CreatedAt:      at,
		}
	}
	return opening
}

// PlanStockEdit returns the ADJUSTMENT entry recording a direct stock edit, or
// nil when the stock did not change.
func PlanStockEdit(before, after domain.Product, by string, at time.Time) *domain.LedgerEntry {
	delta := after.Stock - before.Stock
	if delta == 0 {
		return nil
	}
	return &domain.LedgerEntry{
		ID:              xid.New(),
		OrganizationID:  after.OrganizationID,
		ProductID:       after.ID,
		TransactionType: domain.LedgerAdjustment,
		QuantityChange:  delta,
		StockAfter:      after.Stock,
		CreatedBy:       by,
		CreatedAt:       at,
	}
}

// MergeLines folds duplicate products together and orders lines by product id,
// which is also the row-lock order.
func MergeLines(lines []domain.CartLine) []domain.CartLine {
	agg := make(map[string]int, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		if id == "" || line.Quantity < 1 {
			continue
		}
		agg[id] += line.Quantity
	}

	merged := make([]domain.CartLine, 0, len(agg))
	for id, qty := range agg {
		merged = append(merged, domain.CartLine{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ProductID < merged[j].ProductID
	})
	return merged
}

// ProductIDs lists the ids of merged lines, in lock order.
func ProductIDs(lines []domain.CartLine) []string {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

// PlanCheckout prices draft against the current product rows. Lines must
// already be merged. Any line larger than its product's stock fails the whole
// checkout.
func PlanCheckout(draft domain.CheckoutDraft, products map[string]domain.Product) (store.CheckoutWrites, error) {
	if len(draft.Lines) == 0 {
		return store.CheckoutWrites{}, fmt.Errorf("cart is empty: %w", store.ErrInvalidInput)
	}
	if draft.Discount.IsNegative() {
		return store.CheckoutWrites{}, fmt.Errorf("discount must not be negative: %w", store.ErrInvalidInput)
	}

	for _, line := range draft.Lines {
		product, ok := products[line.ProductID]
		if !ok {
			return store.CheckoutWrites{}, fmt.Errorf("product %s: %w", line.ProductID, store.ErrNotFound)
		}
		if line.Quantity > product.Stock {
			return store.CheckoutWrites{}, &ShortageError{
				ProductID: product.ID,
				Name:      product.Name,
				Requested: line.Quantity,
				Available: product.Stock,
			}
		}
	}

	subtotal := decimal.Zero
	items := make([]domain.SaleItem, 0, len(draft.Lines))
	ledger := make([]domain.LedgerEntry, 0, len(draft.Lines))
	decrements := make(map[string]int, len(draft.Lines))
	for _, line := range draft.Lines {
		product := products[line.ProductID]
		item := domain.SaleItem{
			ID:          xid.New(),
			SaleID:      draft.SaleID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			PriceAtSale: product.Price,
		}
		subtotal = subtotal.Add(item.LineTotal())
		items = append(items, item)

		ledger = append(ledger, domain.LedgerEntry{
			ID:              xid.New(),
			OrganizationID:  draft.OrganizationID,
			ProductID:       product.ID,
			TransactionType: domain.LedgerSale,
			QuantityChange:  -line.Quantity,
			StockAfter:      product.Stock - line.Quantity,
			RelatedSaleID:   draft.SaleID,
			CreatedBy:       draft.CreatedBy,
			CreatedAt:       draft.CreatedAt,
		})
		decrements[product.ID] = line.Quantity
	}

	total := SaleTotal(subtotal, draft.Discount)
	sale := domain.Sale{
		ID:             draft.SaleID,
		OrganizationID: draft.OrganizationID,
		CustomerName:   strings.TrimSpace(draft.CustomerName),
		TotalAmount:    total,
		Discount:       draft.Discount,
		CreatedBy:      draft.CreatedBy,
		CreatedAt:      draft.CreatedAt,
		Items:          items,
	}

	return store.CheckoutWrites{
		Sale:   sale,
		Ledger: ledger,
		Income: domain.FinancialTransaction{
			ID:             xid.New(),
			OrganizationID: draft.OrganizationID,
			Type:           domain.TxIncome,
			Amount:         total,
			Description:    fmt.Sprintf("Sale #%s", xid.Short(draft.SaleID)),
			RelatedSaleID:  draft.SaleID,
			CreatedBy:      draft.CreatedBy,
			CreatedAt:      draft.CreatedAt,
		},
		Decrements: decrements,
	}, nil
}

// Reconcile replays entries (any order) and compares the sum with stock.
func Reconcile(product domain.Product, entries []domain.LedgerEntry) domain.StockReconciliation {
	total := 0
	for _, entry := range entries {
		total += entry.QuantityChange
	}
	return domain.StockReconciliation{
		ProductID:   product.ID,
		Stock:       product.Stock,
		LedgerTotal: total,
		Entries:     len(entries),
		Consistent:  total == product.Stock,
	}
}
