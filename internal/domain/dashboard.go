package domain

import "github.com/shopspring/decimal"

type TrendPoint struct {
	Date  string          `json:"date"`
	Label string          `json:"label"`
	Total decimal.Decimal `json:"total"`
}

// DashboardKPIs is the financial block only owners receive.
type DashboardKPIs struct {
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	TotalExpenses  decimal.Decimal `json:"total_expenses"`
	NetProfit      decimal.Decimal `json:"net_profit"`
	InventoryValue decimal.Decimal `json:"inventory_value"`
}

type Dashboard struct {
	KPIs          *DashboardKPIs `json:"kpis,omitempty"`
	SalesCount    int            `json:"sales_count"`
	ProductCount  int            `json:"product_count"`
	LowStockCount int            `json:"low_stock_count"`
	Trend         []TrendPoint   `json:"trend"`
	RecentSales   []Sale         `json:"recent_sales"`
	LowStock      []Product      `json:"low_stock"`
}
