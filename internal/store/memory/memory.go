package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/inventory"
	"stockpilot/backend/internal/store"
	"stockpilot/backend/internal/xid"
)

// Store keeps every table in process memory. Each write method holds the
// write lock for its whole unit, which gives the same all-or-nothing behaviour
// as a database transaction.
type Store struct {
	mu            sync.RWMutex
	organizations map[string]domain.Organization
	orgOrder      []string
	accounts      map[string]domain.Account // by profile id
	emailIndex    map[string]string         // lower-cased email -> profile id
	products      map[string]domain.Product
	productOrder  []string
	ledger        []domain.LedgerEntry
	sales         []domain.Sale
	transactions  []domain.FinancialTransaction
	invitations   []domain.Invitation
}

func New() *Store {
	return &Store{
		organizations: make(map[string]domain.Organization),
		accounts:      make(map[string]domain.Account),
		emailIndex:    make(map[string]string),
		products:      make(map[string]domain.Product),
	}
}

// Seed describes the demo tenant NewSeeded creates.
type Seed struct {
	OrganizationName string
	OwnerEmail       string
	OwnerPassword    string
	EmployeeEmail    string
	EmployeePassword string
}

// DefaultSeed reads SEED_OWNER_PASSWORD and SEED_EMPLOYEE_PASSWORD, falling back
// to dev defaults. UsesDefaultPasswords reports whether the fallback was taken.
func DefaultSeed() Seed {
	return Seed{
		OrganizationName: "Stockpilot Demo",
		OwnerEmail:       "owner@stockpilot.local",
		OwnerPassword:    envOr("SEED_OWNER_PASSWORD", "owner123"),
		EmployeeEmail:    "employee@stockpilot.local",
		EmployeePassword: envOr("SEED_EMPLOYEE_PASSWORD", "employee123"),
	}
}

func UsesDefaultPasswords() bool {
	return os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_EMPLOYEE_PASSWORD") == ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s, err := NewWithSeed(DefaultSeed())
	if err != nil {
		panic(fmt.Sprintf("memory store seed: %v", err))
	}
	return s
}

// NewWithSeed builds a store holding one organization with an owner, an
// employee and a small catalog whose opening stock is recorded in the ledger.
func NewWithSeed(seed Seed) (*Store, error) {
	s := New()
	now := time.Now().UTC()

	org := domain.Organization{ID: xid.New(), Name: seed.OrganizationName, CreatedAt: now}

	owner, err := seedAccount(org.ID, domain.RoleOwner, "Demo Owner", seed.OwnerEmail, seed.OwnerPassword, now)
	if err != nil {
		return nil, err
	}
	if err := s.CreateSignup(context.Background(), store.Signup{Organization: &org, Account: owner}); err != nil {
		return nil, err
	}

	employee, err := seedAccount(org.ID, domain.RoleEmployee, "Demo Employee", seed.EmployeeEmail, seed.EmployeePassword, now)
	if err != nil {
		return nil, err
	}
	if err := s.CreateSignup(context.Background(), store.Signup{Account: employee}); err != nil {
		return nil, err
	}

	catalog := []struct {
		name, size, price, cost string
		stock, minStock         int
	}{
		{"Cotton T-Shirt", "M", "19.99", "8.50", 40, 10},
		{"Denim Jacket", "L", "79.00", "41.00", 12, 4},
		{"Canvas Tote", "", "14.50", "4.75", 25, 5},
		{"Wool Beanie", "", "22.00", "9.20", 3, 5},
		{"Leather Belt", "32", "35.00", "15.00", 8, 5},
	}
	for i, item := range catalog {
		at := now.Add(time.Duration(i) * time.Millisecond)
		product := domain.Product{
			ID:             xid.New(),
			OrganizationID: org.ID,
			Name:           item.name,
			Size:           item.size,
			Price:          decimal.RequireFromString(item.price),
			Cost:           decimal.RequireFromString(item.cost),
			Stock:          item.stock,
			MinStock:       item.minStock,
			CreatedAt:      at,
			UpdatedAt:      at,
		}
		if _, err := s.CreateProduct(context.Background(), product, inventory.PlanOpeningStock(product, owner.ID, at)); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func seedAccount(orgID, role, name, email, password string, at time.Time) (domain.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash seed password for %s: %w", email, err)
	}
	return domain.Account{
		Profile: domain.Profile{
			ID:             xid.New(),
			OrganizationID: orgID,
			Role:           role,
			FullName:       name,
			Email:          strings.ToLower(email),
			CreatedAt:      at,
		},
		PasswordHash: string(hash),
	}, nil
}

// Organizations and accounts

func (s *Store) CreateSignup(_ context.Context, signup store.Signup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(signup.Account.Email))
	if email == "" || signup.Account.ID == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.emailIndex[email]; exists {
		return fmt.Errorf("email %s: %w", email, store.ErrConflict)
	}

	orgID := signup.Account.OrganizationID
	if signup.Organization != nil {
		if signup.Organization.ID != orgID {
			return store.ErrInvalidInput
		}
	} else if _, ok := s.organizations[orgID]; !ok {
		return fmt.Errorf("organization %s: %w", orgID, store.ErrNotFound)
	}

	if signup.Organization != nil {
		s.organizations[orgID] = *signup.Organization
		s.orgOrder = append(s.orgOrder, orgID)
	}
	account := signup.Account
	account.Email = email
	s.accounts[account.ID] = account
	s.emailIndex[email] = account.ID

	if signup.AcceptInvitation {
		for i := range s.invitations {
			inv := &s.invitations[i]
			if inv.OrganizationID == orgID && inv.Email == email && inv.Status == domain.InvitationPending {
				inv.Status = domain.InvitationAccepted
			}
		}
	}
	return nil
}

func (s *Store) GetOrganization(_ context.Context, id string) (*domain.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.organizations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &org, nil
}

func (s *Store) ListOrganizations(_ context.Context) ([]domain.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orgs := make([]domain.Organization, 0, len(s.orgOrder))
	for _, id := range s.orgOrder {
		orgs = append(orgs, s.organizations[id])
	}
	slices.SortStableFunc(orgs, func(a, b domain.Organization) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return orgs, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emailIndex[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, store.ErrNotFound
	}
	account := s.accounts[id]
	return &account, nil
}

func (s *Store) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	profile := account.Profile
	return &profile, nil
}

func (s *Store) ListProfiles(_ context.Context, orgID string) ([]domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]domain.Profile, 0)
	for _, account := range s.accounts {
		if account.OrganizationID == orgID {
			profiles = append(profiles, account.Profile)
		}
	}
	slices.SortFunc(profiles, func(a, b domain.Profile) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return profiles, nil
}

// Catalog

func (s *Store) ListProducts(_ context.Context, orgID string, sort string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productOrder))
	// Newest first.
	for i := len(s.productOrder) - 1; i >= 0; i-- {
		p := s.products[s.productOrder[i]]
		if p.OrganizationID != orgID || p.DeletedAt != nil {
			continue
		}
		products = append(products, p)
	}
	if sort == store.ProductSortStock {
		slices.SortStableFunc(products, func(a, b domain.Product) int {
			return a.Stock - b.Stock
		})
	}
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, orgID string, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok || p.OrganizationID != orgID {
		return nil, store.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product, opening domain.OpeningStock) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || product.OrganizationID == "" {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrConflict
	}

	s.products[product.ID] = product
	s.productOrder = append(s.productOrder, product.ID)
	if opening.Ledger != nil {
		s.ledger = append(s.ledger, *opening.Ledger)
	}
	if opening.Expense != nil {
		s.transactions = append(s.transactions, *opening.Expense)
	}
	return cloneProduct(product), nil
}

func (s *Store) EditProduct(_ context.Context, orgID string, id string, edit store.ProductEditor) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[id]
	if !ok || current.OrganizationID != orgID || current.DeletedAt != nil {
		return nil, store.ErrNotFound
	}

	updated, entry, err := edit(*cloneProduct(current))
	if err != nil {
		return nil, err
	}
	if updated.Stock < 0 {
		return nil, store.ErrInsufficientStock
	}
	updated.ID = current.ID
	updated.OrganizationID = current.OrganizationID

	s.products[id] = updated
	if entry != nil {
		s.ledger = append(s.ledger, *entry)
	}
	return cloneProduct(updated), nil
}

func (s *Store) DeleteProduct(_ context.Context, orgID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok || p.OrganizationID != orgID || p.DeletedAt != nil {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	p.DeletedAt = &now
	p.UpdatedAt = now
	s.products[id] = p
	return nil
}

// Inventory

func (s *Store) AdjustStock(_ context.Context, orgID string, productID string, plan store.AdjustmentPlanner) (*store.AdjustmentWrites, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[productID]
	if !ok || current.OrganizationID != orgID || current.DeletedAt != nil {
		return nil, store.ErrNotFound
	}

	writes, err := plan(*cloneProduct(current))
	if err != nil {
		return nil, err
	}
	if writes.Product.Stock < 0 {
		return nil, store.ErrInsufficientStock
	}

	s.products[productID] = writes.Product
	s.ledger = append(s.ledger, writes.Ledger)
	if writes.Expense != nil {
		s.transactions = append(s.transactions, *writes.Expense)
	}
	return &writes, nil
}

func (s *Store) ListLedger(_ context.Context, orgID string, productID string, limit int) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.LedgerEntry, 0)
	for i := len(s.ledger) - 1; i >= 0; i-- {
		entry := s.ledger[i]
		if entry.OrganizationID != orgID || entry.ProductID != productID {
			continue
		}
		entries = append(entries, entry)
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries, nil
}

// Sales

func (s *Store) CreateCheckout(_ context.Context, orgID string, productIDs []string, plan store.CheckoutPlanner) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked := make(map[string]domain.Product, len(productIDs))
	for _, id := range productIDs {
		p, ok := s.products[id]
		if !ok || p.OrganizationID != orgID || p.DeletedAt != nil {
			continue
		}
		locked[id] = p
	}

	writes, err := plan(locked)
	if err != nil {
		return nil, err
	}

	// Validate every decrement before touching anything.
	for id, qty := range writes.Decrements {
		p, ok := locked[id]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", id, store.ErrNotFound)
		}
		if p.Stock < qty {
			return nil, store.ErrInsufficientStock
		}
	}

	for id, qty := range writes.Decrements {
		p := locked[id]
		p.Stock -= qty
		p.UpdatedAt = writes.Sale.CreatedAt
		s.products[id] = p
	}
	s.sales = append(s.sales, cloneSale(writes.Sale))
	s.ledger = append(s.ledger, writes.Ledger...)
	s.transactions = append(s.transactions, writes.Income)

	sale := cloneSale(writes.Sale)
	return &sale, nil
}

func (s *Store) ListSales(_ context.Context, orgID string, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	sales := make([]domain.Sale, 0)
	for i := len(s.sales) - 1; i >= 0; i-- {
		sale := s.sales[i]
		if sale.OrganizationID != orgID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(sale.CustomerName), search) &&
			!strings.HasPrefix(strings.ToLower(sale.ID), search) {
			continue
		}
		sales = append(sales, cloneSale(sale))
		if filter.Limit > 0 && len(sales) >= filter.Limit {
			break
		}
	}
	return sales, nil
}

func (s *Store) GetSale(_ context.Context, orgID string, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sale := range s.sales {
		if sale.ID == id && sale.OrganizationID == orgID {
			found := cloneSale(sale)
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

// Finance

func (s *Store) CreateTransaction(_ context.Context, tx domain.FinancialTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" || tx.OrganizationID == "" {
		return store.ErrInvalidInput
	}
	s.transactions = append(s.transactions, tx)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, orgID string, filter domain.TransactionFilter) ([]domain.FinancialTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := make([]domain.FinancialTransaction, 0)
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		if tx.OrganizationID != orgID {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		txs = append(txs, tx)
		if filter.Limit > 0 && len(txs) >= filter.Limit {
			break
		}
	}
	return txs, nil
}

// Team

func (s *Store) CreateInvitation(_ context.Context, inv domain.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.invitations {
		if existing.OrganizationID == inv.OrganizationID && existing.Email == inv.Email && existing.Status == domain.InvitationPending {
			return fmt.Errorf("pending invitation for %s: %w", inv.Email, store.ErrConflict)
		}
	}
	s.invitations = append(s.invitations, inv)
	return nil
}

func (s *Store) GetInvitation(_ context.Context, orgID string, id string) (*domain.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inv := range s.invitations {
		if inv.ID == id && inv.OrganizationID == orgID {
			found := inv
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListInvitations(_ context.Context, orgID string) ([]domain.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invs := make([]domain.Invitation, 0)
	for i := len(s.invitations) - 1; i >= 0; i-- {
		if s.invitations[i].OrganizationID == orgID {
			invs = append(invs, s.invitations[i])
		}
	}
	return invs, nil
}

func (s *Store) DeleteInvitation(_ context.Context, orgID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, inv := range s.invitations {
		if inv.ID == id && inv.OrganizationID == orgID {
			s.invitations = slices.Delete(s.invitations, i, i+1)
			return nil
		}
	}
	return store.ErrNotFound
}

func cloneSale(sale domain.Sale) domain.Sale {
	out := sale
	out.Items = slices.Clone(sale.Items)
	return out
}

func cloneProduct(p domain.Product) *domain.Product {
	out := p
	if p.DeletedAt != nil {
		at := *p.DeletedAt
		out.DeletedAt = &at
	}
	return &out
}
