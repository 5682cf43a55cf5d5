package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/inventory"
	"stockpilot/backend/internal/store"
	"stockpilot/backend/internal/xid"
)

var _ store.Repository = (*Store)(nil)

func seeded(t *testing.T) (*Store, domain.Account) {
	t.Helper()
	s, err := NewWithSeed(Seed{
		OrganizationName: "Test Shop",
		OwnerEmail:       "Owner@Test.local",
		OwnerPassword:    "owner-pass",
		EmployeeEmail:    "staff@test.local",
		EmployeePassword: "staff-pass",
	})
	require.NoError(t, err)
	owner, err := s.GetAccountByEmail(context.Background(), "owner@test.local")
	require.NoError(t, err)
	return s, *owner
}

func TestSeedIsLedgerConsistent(t *testing.T) {
	s, owner := seeded(t)
	ctx := context.Background()

	products, err := s.ListProducts(ctx, owner.OrganizationID, store.ProductSortCreated)
	require.NoError(t, err)
	require.NotEmpty(t, products)

	for _, p := range products {
		entries, err := s.ListLedger(ctx, owner.OrganizationID, p.ID, 0)
		require.NoError(t, err)
		assert.True(t, inventory.Reconcile(p, entries).Consistent, p.Name)
	}

	profiles, err := s.ListProfiles(ctx, owner.OrganizationID)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	s, owner := seeded(t)

	dup := owner
	dup.ID = xid.New()
	dup.Email = "OWNER@test.local"
	err := s.CreateSignup(context.Background(), store.Signup{Account: dup})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestSignupAcceptsPendingInvitation(t *testing.T) {
	s, owner := seeded(t)
	ctx := context.Background()

	inv := domain.Invitation{
		ID: xid.New(), OrganizationID: owner.OrganizationID, Email: "new@test.local",
		Role: domain.RoleEmployee, Status: domain.InvitationPending, CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateInvitation(ctx, inv))
	assert.ErrorIs(t, s.CreateInvitation(ctx, inv), store.ErrConflict)

	account := domain.Account{Profile: domain.Profile{
		ID: xid.New(), OrganizationID: owner.OrganizationID, Role: domain.RoleEmployee,
		FullName: "New Hire", Email: "new@test.local", CreatedAt: time.Now(),
	}}
	require.NoError(t, s.CreateSignup(ctx, store.Signup{Account: account, AcceptInvitation: true}))

	got, err := s.GetInvitation(ctx, owner.OrganizationID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationAccepted, got.Status)
}

func TestSignupIntoUnknownOrganization(t *testing.T) {
	s := New()
	account := domain.Account{Profile: domain.Profile{ID: xid.New(), OrganizationID: "missing", Email: "a@b.c"}}
	assert.ErrorIs(t, s.CreateSignup(context.Background(), store.Signup{Account: account}), store.ErrNotFound)
}

func TestProductsAreScopedToOrganization(t *testing.T) {
	s, owner := seeded(t)
	ctx := context.Background()

	products, err := s.ListProducts(ctx, owner.OrganizationID, store.ProductSortCreated)
	require.NoError(t, err)

	_, err = s.GetProduct(ctx, "other-org", products[0].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	others, err := s.ListProducts(ctx, "other-org", store.ProductSortCreated)
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestListProductsSortsByStock(t *testing.T) {
	s, owner := seeded(t)

	products, err := s.ListProducts(context.Background(), owner.OrganizationID, store.ProductSortStock)
	require.NoError(t, err)
	for i := 1; i < len(products); i++ {
		assert.LessOrEqual(t, products[i-1].Stock, products[i].Stock)
	}
}

func TestDeleteProductIsSoft(t *testing.T) {
	s, owner := seeded(t)
	ctx := context.Background()

	products, err := s.ListProducts(ctx, owner.OrganizationID, store.ProductSortCreated)
	require.NoError(t, err)
	target := products[0]

	require.NoError(t, s.DeleteProduct(ctx, owner.OrganizationID, target.ID))
	assert.ErrorIs(t, s.DeleteProduct(ctx, owner.OrganizationID, target.ID), store.ErrNotFound)

	after, err := s.ListProducts(ctx, owner.OrganizationID, store.ProductSortCreated)
	require.NoError(t, err)
	assert.Len(t, after, len(products)-1)

	got, err := s.GetProduct(ctx, owner.OrganizationID, target.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)
}

func TestAdjustStockPersistsPlan(t *testing.T) {
	s, owner := seeded(t)
	ctx := context.Background()
	products, _ := s.ListProducts(ctx, owner.OrganizationID, store.ProductSortCreated)
	target := products[0]
	cost := decimal.RequireFromString("100")

	writes, err := s.AdjustStock(ctx, owner.OrganizationID, target.ID, func(p domain.Product) (store.AdjustmentWrites, error) {
		return inventory.PlanAdjustment(p, domain.StockAdjustmentRequest{Type: domain.LedgerAddition, Quantity: 2, Cost: &cost}, owner.ID, time.Now())
	})
	require.NoError(t, err)
	require.NotNil(t, writes.Expense)

	got, _ := s.GetProduct(ctx, owner.OrganizationID, target.ID)
	assert.Equal(t, target.Stock+2, got.Stock)

	entries, _ := s.ListLedger(ctx, owner.OrganizationID, target.ID, 1)
	require.Len(t, entries, 1)
	assert.Equal(t, writes.Ledger.ID, entries[0].ID)

	txs, _ := s.ListTransactions(ctx, owner.OrganizationID, domain.TransactionFilter{Type: domain.TxExpense, Limit: 1})
	require.Len(t, txs, 1)
	assert.Equal(t, writes.Expense.ID, txs[0].ID)
}

func TestAdjustStockPlannerErrorWritesNothing(t *testing.T) {
	s, owner := seeded(t)
	ctx := context.Background()
	products, _ := s.ListProducts(ctx, owner.OrganizationID, store.ProductSortCreated)
	target := products[0]
	before, _ := s.ListLedger(ctx, owner.OrganizationID, target.ID, 0)

	_, err := s.AdjustStock(ctx, owner.OrganizationID, target.ID, func(p domain.Product) (store.AdjustmentWrites, error) {
		return inventory.PlanAdjustment(p, domain.StockAdjustmentRequest{Type: domain.LedgerAdjustment, Quantity: p.Stock + 1}, owner.ID, time.Now())
	})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	got, _ := s.GetProduct(ctx, owner.OrganizationID, target.ID)
	assert.Equal(t, target.Stock, got.Stock)
	after, _ := s.ListLedger(ctx, owner.OrganizationID, target.ID, 0)
	assert.Len(t, after, len(before))
}

func checkoutPlan(orgID, by string, lines []domain.CartLine) (string, []string, store.CheckoutPlanner) {
	merged := inventory.MergeLines(lines)
	draft := domain.CheckoutDraft{
		OrganizationID: orgID,
		SaleID:         xid.New(),
		Lines:          merged,
		CreatedBy:      by,
		CreatedAt:      time.Now(),
	}
	return draft.SaleID, inventory.ProductIDs(merged), func(products map[string]domain.Product) (store.CheckoutWrites, error) {
		return inventory.PlanCheckout(draft, products)
	}
}

func TestCreateCheckoutIsAllOrNothing(t *testing.T) {
	s, owner := seeded(t)
	ctx := context.Background()
	products, _ := s.ListProducts(ctx, owner.OrganizationID, store.ProductSortCreated)
	a, b := products[0], products[1]

	_, ids, plan := checkoutPlan(owner.OrganizationID, owner.ID, []domain.CartLine{
		{ProductID: a.ID, Quantity: 1},
		{ProductID: b.ID, Quantity: b.Stock + 1},
	})
	_, err := s.CreateCheckout(ctx, owner.OrganizationID, ids, plan)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	gotA, _ := s.GetProduct(ctx, owner.OrganizationID, a.ID)
	assert.Equal(t, a.Stock, gotA.Stock)
	sales, _ := s.ListSales(ctx, owner.OrganizationID, domain.SaleFilter{})
	assert.Empty(t, sales)

	saleID, ids, plan := checkoutPlan(owner.OrganizationID, owner.ID, []domain.CartLine{{ProductID: a.ID, Quantity: 2}})
	sale, err := s.CreateCheckout(ctx, owner.OrganizationID, ids, plan)
	require.NoError(t, err)
	assert.Equal(t, saleID, sale.ID)
	require.Len(t, sale.Items, 1)

	gotA, _ = s.GetProduct(ctx, owner.OrganizationID, a.ID)
	assert.Equal(t, a.Stock-2, gotA.Stock)

	entries, _ := s.ListLedger(ctx, owner.OrganizationID, a.ID, 0)
	assert.True(t, inventory.Reconcile(*gotA, entries).Consistent)

	stored, err := s.GetSale(ctx, owner.OrganizationID, saleID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(a.Price.Mul(decimal.NewFromInt(2))))
}

func TestCreateCheckoutIgnoresDeletedProducts(t *testing.T) {
	s, owner := seeded(t)
	ctx := context.Background()
	products, _ := s.ListProducts(ctx, owner.OrganizationID, store.ProductSortCreated)
	require.NoError(t, s.DeleteProduct(ctx, owner.OrganizationID, products[0].ID))

	_, ids, plan := checkoutPlan(owner.OrganizationID, owner.ID, []domain.CartLine{{ProductID: products[0].ID, Quantity: 1}})
	_, err := s.CreateCheckout(ctx, owner.OrganizationID, ids, plan)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	s, owner := seeded(t)
	ctx := context.Background()
	products, _ := s.ListProducts(ctx, owner.OrganizationID, store.ProductSortCreated)
	target := products[0]

	attempts := target.Stock + 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ids, plan := checkoutPlan(owner.OrganizationID, owner.ID, []domain.CartLine{{ProductID: target.ID, Quantity: 1}})
			if _, err := s.CreateCheckout(ctx, owner.OrganizationID, ids, plan); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, target.Stock, succeeded)
	got, _ := s.GetProduct(ctx, owner.OrganizationID, target.ID)
	assert.Equal(t, 0, got.Stock)
}

func TestListSalesSearch(t *testing.T) {
	s, owner := seeded(t)
	ctx := context.Background()
	products, _ := s.ListProducts(ctx, owner.OrganizationID, store.ProductSortCreated)

	for _, name := range []string{"Alice Smith", "Bob Jones", ""} {
		merged := inventory.MergeLines([]domain.CartLine{{ProductID: products[0].ID, Quantity: 1}})
		draft := domain.CheckoutDraft{
			OrganizationID: owner.OrganizationID, SaleID: xid.New(), CustomerName: name,
			Lines: merged, CreatedAt: time.Now(),
		}
		_, err := s.CreateCheckout(ctx, owner.OrganizationID, inventory.ProductIDs(merged), func(m map[string]domain.Product) (store.CheckoutWrites, error) {
			return inventory.PlanCheckout(draft, m)
		})
		require.NoError(t, err)
	}

	all, _ := s.ListSales(ctx, owner.OrganizationID, domain.SaleFilter{})
	require.Len(t, all, 3)
	assert.Equal(t, "", all[0].CustomerName, "newest first")

	found, _ := s.ListSales(ctx, owner.OrganizationID, domain.SaleFilter{Search: "alice"})
	require.Len(t, found, 1)
	assert.Equal(t, "Alice Smith", found[0].CustomerName)

	byID, _ := s.ListSales(ctx, owner.OrganizationID, domain.SaleFilter{Search: all[1].ID[:8]})
	require.Len(t, byID, 1)
	assert.Equal(t, all[1].ID, byID[0].ID)

	limited, _ := s.ListSales(ctx, owner.OrganizationID, domain.SaleFilter{Limit: 2})
	assert.Len(t, limited, 2)
}

func TestDeleteInvitation(t *testing.T) {
	s, owner := seeded(t)
	ctx := context.Background()
	inv := domain.Invitation{ID: xid.New(), OrganizationID: owner.OrganizationID, Email: "x@test.local", Status: domain.InvitationPending}
	require.NoError(t, s.CreateInvitation(ctx, inv))

	assert.ErrorIs(t, s.DeleteInvitation(ctx, "other", inv.ID), store.ErrNotFound)
	require.NoError(t, s.DeleteInvitation(ctx, owner.OrganizationID, inv.ID))

	invs, _ := s.ListInvitations(ctx, owner.OrganizationID)
	assert.Empty(t, invs)
}
