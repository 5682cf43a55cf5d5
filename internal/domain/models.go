package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleOwner    = "owner"
	RoleEmployee = "employee"
)

const (
	LedgerAddition   = "ADDITION"
	LedgerSale       = "SALE"
	LedgerAdjustment = "ADJUSTMENT"
)

const (
	TxIncome  = "INCOME"
	TxExpense = "EXPENSE"
)

const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
)

const DefaultMinStock = 5

// Actor is the authenticated caller. It travels in the request context.
type Actor struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
}

func (a Actor) IsOwner() bool {
	return a.Role == RoleOwner
}

type Organization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Profile struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Role           string    `json:"role" db:"role"`
	FullName       string    `json:"full_name" db:"full_name"`
	Email          string    `json:"email" db:"email"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Account pairs a profile with its credential. It never leaves the backend.
type Account struct {
	Profile
	PasswordHash string `json:"-" db:"password_hash"`
}

type Product struct {
	ID             string          `json:"id" db:"id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	Name           string          `json:"name" db:"name"`
	Size           string          `json:"size,omitempty" db:"size"`
	Price          decimal.Decimal `json:"price" db:"price"`
	Cost           decimal.Decimal `json:"cost" db:"cost"`
	Stock          int             `json:"stock" db:"stock"`
	MinStock       int             `json:"min_stock" db:"min_stock"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}

func (p Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

// InventoryValue is stock valued at the running average cost.
func (p Product) InventoryValue() decimal.Decimal {
	return p.Cost.Mul(decimal.NewFromInt(int64(p.Stock)))
}

type LedgerEntry struct {
	ID              string    `json:"id" db:"id"`
	OrganizationID  string    `json:"organization_id" db:"organization_id"`
	ProductID       string    `json:"product_id" db:"product_id"`
	TransactionType string    `json:"transaction_type" db:"transaction_type"`
	QuantityChange  int       `json:"quantity_change" db:"quantity_change"`
	StockAfter      int       `json:"stock_after" db:"stock_after"`
	RelatedSaleID   string    `json:"related_sale_id,omitempty" db:"related_sale_id"`
	CreatedBy       string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

type Sale struct {
	ID             string          `json:"id" db:"id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	CustomerName   string          `json:"customer_name,omitempty" db:"customer_name"`
	TotalAmount    decimal.Decimal `json:"total_amount" db:"total_amount"`
	Discount       decimal.Decimal `json:"discount" db:"discount"`
	CreatedBy      string          `json:"created_by,omitempty" db:"created_by"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	Items          []SaleItem      `json:"items" db:"-"`
}

type SaleItem struct {
	ID          string          `json:"id" db:"id"`
	SaleID      string          `json:"sale_id" db:"sale_id"`
	ProductID   string          `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name,omitempty" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	PriceAtSale decimal.Decimal `json:"price_at_sale" db:"price_at_sale"`
}

func (i SaleItem) LineTotal() decimal.Decimal {
	return i.PriceAtSale.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type FinancialTransaction struct {
	ID             string          `json:"id" db:"id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	Type           string          `json:"type" db:"type"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Description    string          `json:"description" db:"description"`
	RelatedSaleID  string          `json:"related_sale_id,omitempty" db:"related_sale_id"`
	CreatedBy      string          `json:"created_by,omitempty" db:"created_by"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

type Invitation struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Email          string    `json:"email" db:"email"`
	Role           string    `json:"role" db:"role"`
	Status         string    `json:"status" db:"status"`
	InvitedBy      string    `json:"invited_by,omitempty" db:"invited_by"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ChatTurn is one message in an assistant conversation. Role is "user" or "model".
type ChatTurn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// AssistantSession is the server-side conversation for one user. The first
// turn is the hidden instruction carrying the business context.
type AssistantSession struct {
	Turns     []ChatTurn `json:"turns"`
	StartedAt time.Time  `json:"started_at"`
}
