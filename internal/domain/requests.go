package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SignupRequest struct {
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=6"`
	ConfirmPassword  string `json:"confirm_password" validate:"required"`
	FullName         string `json:"full_name" validate:"required,max=120"`
	Role             string `json:"role" validate:"required,oneof=owner employee"`
	OrganizationName string `json:"organization_name,omitempty" validate:"max=120"`
	OrganizationID   string `json:"organization_id,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	ExpiresAt    string       `json:"expires_at"`
	Profile      Profile      `json:"profile"`
	Organization Organization `json:"organization"`
}

type MeResponse struct {
	Profile      Profile      `json:"profile"`
	Organization Organization `json:"organization"`
}

type ProductCreateRequest struct {
	Name     string          `json:"name" validate:"required,max=200"`
	Size     string          `json:"size,omitempty" validate:"max=60"`
	Price    decimal.Decimal `json:"price"`
	Cost     decimal.Decimal `json:"cost"`
	Stock    int             `json:"stock" validate:"min=0"`
	MinStock *int            `json:"min_stock,omitempty" validate:"omitempty,min=0"`
}

type ProductUpdateRequest struct {
	Name     *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Size     *string          `json:"size,omitempty" validate:"omitempty,max=60"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Cost     *decimal.Decimal `json:"cost,omitempty"`
	Stock    *int             `json:"stock,omitempty" validate:"omitempty,min=0"`
	MinStock *int             `json:"min_stock,omitempty" validate:"omitempty,min=0"`
}

// OpeningStock is what a newly created product writes besides its own row.
type OpeningStock struct {
	Ledger  *LedgerEntry
	Expense *FinancialTransaction
}

type StockAdjustmentRequest struct {
	Type     string           `json:"type" validate:"required,oneof=ADDITION ADJUSTMENT"`
	Quantity int              `json:"quantity" validate:"required,min=1"`
	Cost     *decimal.Decimal `json:"cost,omitempty"`
}

type StockAdjustmentResult struct {
	Product Product               `json:"product"`
	Ledger  LedgerEntry           `json:"ledger_entry"`
	Expense *FinancialTransaction `json:"expense,omitempty"`
}

type CartLine struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type CheckoutRequest struct {
	Items        []CartLine      `json:"items" validate:"required,min=1,dive"`
	CustomerName string          `json:"customer_name,omitempty" validate:"max=120"`
	Discount     decimal.Decimal `json:"discount"`
}

// CheckoutDraft is a validated checkout handed to the store, which prices and
// applies it atomically against the current product rows.
type CheckoutDraft struct {
	OrganizationID string
	SaleID         string
	CustomerName   string
	Discount       decimal.Decimal
	Lines          []CartLine
	CreatedBy      string
	CreatedAt      time.Time
}

type SaleFilter struct {
	Search string
	Limit  int
}

type TransactionCreateRequest struct {
	Type        string          `json:"type" validate:"required,oneof=INCOME EXPENSE"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"required,max=500"`
}

type TransactionFilter struct {
	Type  string
	Limit int
}

type TransactionTotals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

type StockReconciliation struct {
	ProductID   string `json:"product_id"`
	Stock       int    `json:"stock"`
	LedgerTotal int    `json:"ledger_total"`
	Entries     int    `json:"entries"`
	Consistent  bool   `json:"consistent"`
}

type InvitationCreateRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type AssistantMessageRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type AssistantReply struct {
	Reply      ChatTurn   `json:"reply"`
	Transcript []ChatTurn `json:"transcript"`
}
