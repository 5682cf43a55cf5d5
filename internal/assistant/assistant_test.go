package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/backend/internal/cache"
	"stockpilot/backend/internal/dashboard"
	"stockpilot/backend/internal/domain"
)

type fakeReader struct {
	mu    sync.Mutex
	snap  dashboard.Snapshot
	reads int
}

func (f *fakeReader) ListSales(context.Context, string, domain.SaleFilter) ([]domain.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.snap.Sales, nil
}

func (f *fakeReader) ListTransactions(context.Context, string, domain.TransactionFilter) ([]domain.FinancialTransaction, error) {
	return f.snap.Transactions, nil
}

func (f *fakeReader) ListProducts(context.Context, string, string) ([]domain.Product, error) {
	return f.snap.Products, nil
}

type fakeModel struct {
	mu       sync.Mutex
	err      error
	replies  int
	lastSeen []domain.ChatTurn
}

func (f *fakeModel) Generate(_ context.Context, history []domain.ChatTurn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSeen = append([]domain.ChatTurn(nil), history...)
	if f.err != nil {
		return "", f.err
	}
	f.replies++
	return "reply " + history[len(history)-1].Text, nil
}

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func sampleSnapshot() dashboard.Snapshot {
	return dashboard.Snapshot{
		Sales: []domain.Sale{{TotalAmount: money("120.5")}, {TotalAmount: money("30")}},
		Transactions: []domain.FinancialTransaction{
			{Type: domain.TxIncome, Amount: money("150.5")},
			{Type: domain.TxExpense, Amount: money("40.25")},
		},
		Products: []domain.Product{
			{Name: "Tee", Stock: 2, MinStock: 5, Cost: money("3")},
			{Name: "Jacket", Stock: 10, MinStock: 2, Cost: money("40")},
			{Name: "Cap", Stock: 7, MinStock: 1, Cost: money("1")},
		},
	}
}

func TestBuildContext(t *testing.T) {
	now := time.Date(2026, 5, 14, 9, 0, 0, 0, time.UTC)
	text := BuildContext(sampleSnapshot(), now)

	expected := strings.Join([]string{
		"Date: Thu May 14 2026",
		"Total Revenue: 150.50",
		"Total Expenses: 40.25",
		"Net Profit: 110.25",
		"Total Sales Count: 2",
		"Inventory Count: 3",
		"Low Stock Items: Tee (2)",
		"Top Inventory Value: Jacket, Cap, Tee",
	}, "\n")
	assert.Equal(t, expected, text)

	empty := BuildContext(dashboard.Snapshot{}, now)
	assert.Contains(t, empty, "Low Stock Items: None")
	assert.Contains(t, empty, "Total Revenue: 0.00")
}

func newBridge(model ChatModel) (*Bridge, *fakeReader) {
	reader := &fakeReader{snap: sampleSnapshot()}
	return NewBridge(model, reader, cache.NewMemorySessionCache(), Options{Location: time.UTC}), reader
}

func TestDisabledBridge(t *testing.T) {
	b, _ := newBridge(nil)
	ctx := context.Background()

	assert.False(t, b.Enabled())
	_, err := b.Start(ctx, "org", "u")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = b.Send(ctx, "org", "u", "hi")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = b.Insight(ctx, "org")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestStartHidesInstructionTurn(t *testing.T) {
	b, _ := newBridge(&fakeModel{})

	turns, err := b.Start(context.Background(), "org", "u")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, RoleModel, turns[0].Role)
	assert.Equal(t, greeting, turns[0].Text)
}

func TestSendStartsLazilyAndKeepsHistory(t *testing.T) {
	model := &fakeModel{}
	b, _ := newBridge(model)
	ctx := context.Background()

	reply, err := b.Send(ctx, "org", "u", "  how are sales?  ")
	require.NoError(t, err)
	assert.Equal(t, "reply how are sales?", reply.Reply.Text)
	require.Len(t, reply.Transcript, 3)

	require.Len(t, model.lastSeen, 3)
	assert.Equal(t, RoleUser, model.lastSeen[0].Role)
	assert.Contains(t, model.lastSeen[0].Text, "You are Stockpilot AI")
	assert.Contains(t, model.lastSeen[0].Text, "Total Revenue: 150.50")

	_, err = b.Send(ctx, "org", "u", "and stock?")
	require.NoError(t, err)
	transcript, err := b.Transcript(ctx, "org", "u")
	require.NoError(t, err)
	assert.Len(t, transcript, 5)

	other, err := b.Transcript(ctx, "org", "someone-else")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSendFailureKeepsTranscript(t *testing.T) {
	model := &fakeModel{}
	b, _ := newBridge(model)
	ctx := context.Background()

	_, err := b.Send(ctx, "org", "u", "first")
	require.NoError(t, err)

	model.err = errors.New("upstream down")
	_, err = b.Send(ctx, "org", "u", "second")
	assert.ErrorIs(t, err, ErrModel)

	transcript, err := b.Transcript(ctx, "org", "u")
	require.NoError(t, err)
	assert.Len(t, transcript, 3)
}

func TestResetRebuildsContext(t *testing.T) {
	b, reader := newBridge(&fakeModel{})
	ctx := context.Background()

	_, err := b.Send(ctx, "org", "u", "hi")
	require.NoError(t, err)
	reads := reader.reads

	turns, err := b.Reset(ctx, "org", "u")
	require.NoError(t, err)
	assert.Len(t, turns, 1)
	assert.Equal(t, reads+1, reader.reads)
}

func TestInsightDoesNotPersist(t *testing.T) {
	model := &fakeModel{}
	b, _ := newBridge(model)
	ctx := context.Background()

	turn, err := b.Insight(ctx, "org")
	require.NoError(t, err)
	assert.Equal(t, "reply "+insightPrompt, turn.Text)

	transcript, err := b.Transcript(ctx, "org", "u")
	require.NoError(t, err)
	assert.Empty(t, transcript)
}

func TestConcurrentSendsAreSerialised(t *testing.T) {
	model := &fakeModel{}
	b, _ := newBridge(model)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.Send(ctx, "org", "u", "ping")
		}()
	}
	wg.Wait()

	transcript, err := b.Transcript(ctx, "org", "u")
	require.NoError(t, err)
	assert.Len(t, transcript, 1+8*2)
}

func TestSessionLocksAreReleased(t *testing.T) {
	b, _ := newBridge(&fakeModel{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = b.Send(ctx, "org", "user-"+string(rune('a'+i%4)), "ping")
		}(i)
	}
	wg.Wait()

	b.locksMu.Lock()
	defer b.locksMu.Unlock()
	assert.Empty(t, b.locks)
}
