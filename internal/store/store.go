package store

import (
	"context"
	"errors"

	"stockpilot/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
)

const (
	ProductSortCreated = "created"
	ProductSortStock   = "stock"
)

// CheckoutPlanner prices a checkout against the locked product rows.
// Implementations must not write anything themselves.
type CheckoutPlanner func(products map[string]domain.Product) (CheckoutWrites, error)

// CheckoutWrites is everything a checkout persists in one unit.
type CheckoutWrites struct {
	Sale       domain.Sale
	Ledger     []domain.LedgerEntry
	Income     domain.FinancialTransaction
	Decrements map[string]int
}

// AdjustmentPlanner turns the locked product row into the rows to persist.
type AdjustmentPlanner func(product domain.Product) (AdjustmentWrites, error)

type AdjustmentWrites struct {
	Product domain.Product
	Ledger  domain.LedgerEntry
	Expense *domain.FinancialTransaction
}

// ProductEditor applies a patch to the locked product row and returns the new
// row plus the ledger entry for any stock change.
type ProductEditor func(product domain.Product) (domain.Product, *domain.LedgerEntry, error)

// Signup carries the rows created for a new account. Organization is nil when
// the account joins an existing one.
type Signup struct {
	Organization *domain.Organization
	Account      domain.Account
	// AcceptInvitation marks the pending invitation for the account's email in
	// its organization as accepted, if one exists.
	AcceptInvitation bool
}

type OrganizationRepository interface {
	CreateSignup(ctx context.Context, signup Signup) error
	GetOrganization(ctx context.Context, id string) (*domain.Organization, error)
	ListOrganizations(ctx context.Context) ([]domain.Organization, error)
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	ListProfiles(ctx context.Context, orgID string) ([]domain.Profile, error)
}

type CatalogRepository interface {
	ListProducts(ctx context.Context, orgID string, sort string) ([]domain.Product, error)
	// GetProduct returns soft-deleted rows too; callers decide visibility.
	GetProduct(ctx context.Context, orgID string, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product, opening domain.OpeningStock) (*domain.Product, error)
	EditProduct(ctx context.Context, orgID string, id string, edit ProductEditor) (*domain.Product, error)
	DeleteProduct(ctx context.Context, orgID string, id string) error
}

type InventoryRepository interface {
	AdjustStock(ctx context.Context, orgID string, productID string, plan AdjustmentPlanner) (*AdjustmentWrites, error)
	ListLedger(ctx context.Context, orgID string, productID string, limit int) ([]domain.LedgerEntry, error)
}

type SalesRepository interface {
	CreateCheckout(ctx context.Context, orgID string, productIDs []string, plan CheckoutPlanner) (*domain.Sale, error)
	ListSales(ctx context.Context, orgID string, filter domain.SaleFilter) ([]domain.Sale, error)
	GetSale(ctx context.Context, orgID string, id string) (*domain.Sale, error)
}

type FinanceRepository interface {
	CreateTransaction(ctx context.Context, tx domain.FinancialTransaction) error
	ListTransactions(ctx context.Context, orgID string, filter domain.TransactionFilter) ([]domain.FinancialTransaction, error)
}

type TeamRepository interface {
	CreateInvitation(ctx context.Context, inv domain.Invitation) error
	GetInvitation(ctx context.Context, orgID string, id string) (*domain.Invitation, error)
	ListInvitations(ctx context.Context, orgID string) ([]domain.Invitation, error)
	DeleteInvitation(ctx context.Context, orgID string, id string) error
}

type Repository interface {
	OrganizationRepository
	CatalogRepository
	InventoryRepository
	SalesRepository
	FinanceRepository
	TeamRepository
}
