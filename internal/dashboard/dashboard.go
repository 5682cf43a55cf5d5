package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"stockpilot/backend/internal/domain"
)

const (
	TrendDays       = 7
	RecentSalesSize = 5
)

// Snapshot is the bulk read the dashboard reduces over.
type Snapshot struct {
	Sales        []domain.Sale
	Transactions []domain.FinancialTransaction
	Products     []domain.Product
}

// Reader is the slice of the repository a snapshot is read from.
type Reader interface {
	ListSales(ctx context.Context, orgID string, filter domain.SaleFilter) ([]domain.Sale, error)
	ListTransactions(ctx context.Context, orgID string, filter domain.TransactionFilter) ([]domain.FinancialTransaction, error)
	ListProducts(ctx context.Context, orgID string, sort string) ([]domain.Product, error)
}

// Load performs the bulk read for one organization. Sales come back newest first.
func Load(ctx context.Context, r Reader, orgID string) (Snapshot, error) {
	sales, err := r.ListSales(ctx, orgID, domain.SaleFilter{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("load sales: %w", err)
	}
	txs, err := r.ListTransactions(ctx, orgID, domain.TransactionFilter{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("load transactions: %w", err)
	}
	products, err := r.ListProducts(ctx, orgID, "")
	if err != nil {
		return Snapshot{}, fmt.Errorf("load products: %w", err)
	}
	return Snapshot{Sales: sales, Transactions: txs, Products: products}, nil
}

type Totals struct {
	Revenue        decimal.Decimal
	Expenses       decimal.Decimal
	NetProfit      decimal.Decimal
	InventoryValue decimal.Decimal
	SalesCount     int
	ProductCount   int
	LowStockCount  int
}

func Summarize(snap Snapshot) Totals {
	totals := Totals{
		Revenue:        decimal.Zero,
		Expenses:       decimal.Zero,
		InventoryValue: decimal.Zero,
		SalesCount:     len(snap.Sales),
		ProductCount:   len(snap.Products),
	}
	for _, sale := range snap.Sales {
		totals.Revenue = totals.Revenue.Add(sale.TotalAmount)
	}
	for _, tx := range snap.Transactions {
		if tx.Type == domain.TxExpense {
			totals.Expenses = totals.Expenses.Add(tx.Amount)
		}
	}
	for _, p := range snap.Products {
		if p.IsLowStock() {
			totals.LowStockCount++
		}
		totals.InventoryValue = totals.InventoryValue.Add(p.InventoryValue())
	}
	totals.NetProfit = totals.Revenue.Sub(totals.Expenses)
	return totals
}

// Trend buckets sale totals into the trailing TrendDays calendar days of loc,
// today included, oldest first.
func Trend(sales []domain.Sale, now time.Time, loc *time.Location) []domain.TrendPoint {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	points := make([]domain.TrendPoint, TrendDays)
	starts := make([]time.Time, TrendDays)
	for i := 0; i < TrendDays; i++ {
		day := today.AddDate(0, 0, i-(TrendDays-1))
		starts[i] = day
		points[i] = domain.TrendPoint{
			Date:  day.Format("2006-01-02"),
			Label: day.Format("Mon"),
			Total: decimal.Zero,
		}
	}
	windowEnd := today.AddDate(0, 0, 1)

	for _, sale := range sales {
		at := sale.CreatedAt.In(loc)
		if at.Before(starts[0]) || !at.Before(windowEnd) {
			continue
		}
		// Walk back from the newest bucket; AddDate keeps DST days correct.
		for i := TrendDays - 1; i >= 0; i-- {
			if !at.Before(starts[i]) {
				points[i].Total = points[i].Total.Add(sale.TotalAmount)
				break
			}
		}
	}
	return points
}

// LowStock returns products at or under their reorder threshold, lowest stock first.
func LowStock(products []domain.Product) []domain.Product {
	low := make([]domain.Product, 0)
	for _, p := range products {
		if p.IsLowStock() {
			low = append(low, p)
		}
	}
	sort.SliceStable(low, func(i, j int) bool {
		return low[i].Stock < low[j].Stock
	})
	return low
}

// TopByInventoryValue returns up to n products with the highest stock*cost.
func TopByInventoryValue(products []domain.Product, n int) []domain.Product {
	ranked := make([]domain.Product, len(products))
	copy(ranked, products)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].InventoryValue().GreaterThan(ranked[j].InventoryValue())
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Build reduces snap into the dashboard view. Sales are expected newest first.
// The financial KPI block is only filled when includeKPIs is set.
func Build(snap Snapshot, now time.Time, loc *time.Location, includeKPIs bool) domain.Dashboard {
	totals := Summarize(snap)

	recent := snap.Sales
	if len(recent) > RecentSalesSize {
		recent = recent[:RecentSalesSize]
	}
	recentCopy := make([]domain.Sale, len(recent))
	copy(recentCopy, recent)

	view := domain.Dashboard{
		SalesCount:    totals.SalesCount,
		ProductCount:  totals.ProductCount,
		LowStockCount: totals.LowStockCount,
		Trend:         Trend(snap.Sales, now, loc),
		RecentSales:   recentCopy,
		LowStock:      LowStock(snap.Products),
	}
	if includeKPIs {
		view.KPIs = &domain.DashboardKPIs{
			TotalRevenue:   totals.Revenue,
			TotalExpenses:  totals.Expenses,
			NetProfit:      totals.NetProfit,
			InventoryValue: totals.InventoryValue,
		}
	}
	return view
}
