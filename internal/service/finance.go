package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/xid"
)

func (s *Service) RecordTransaction(ctx context.Context, req domain.TransactionCreateRequest) (domain.FinancialTransaction, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.FinancialTransaction{}, err
	}
	if req.Type != domain.TxIncome && req.Type != domain.TxExpense {
		return domain.FinancialTransaction{}, invalid("type", "type must be INCOME or EXPENSE")
	}
	if !req.Amount.IsPositive() {
		return domain.FinancialTransaction{}, invalid("amount", "amount must be positive")
	}
	if err := checkAmount("amount", req.Amount); err != nil {
		return domain.FinancialTransaction{}, err
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return domain.FinancialTransaction{}, invalid("description", "description is required")
	}

	tx := domain.FinancialTransaction{
		ID:             xid.New(),
		OrganizationID: actor.OrganizationID,
		Type:           req.Type,
		Amount:         req.Amount,
		Description:    description,
		CreatedBy:      actor.UserID,
		CreatedAt:      s.now(),
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return domain.FinancialTransaction{}, classified(err)
	}
	return tx, nil
}

func (s *Service) ListTransactions(ctx context.Context, txType string, limit int) ([]domain.FinancialTransaction, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	txType = strings.ToUpper(strings.TrimSpace(txType))
	if txType != "" && txType != domain.TxIncome && txType != domain.TxExpense {
		return nil, invalid("type", "type must be INCOME or EXPENSE")
	}
	txs, err := s.repo.ListTransactions(ctx, actor.OrganizationID, domain.TransactionFilter{Type: txType, Limit: clampLimit(limit)})
	return txs, classified(err)
}

// TransactionTotals sums the whole log. Owner only.
func (s *Service) TransactionTotals(ctx context.Context) (domain.TransactionTotals, error) {
	actor, err := requireOwner(ctx)
	if err != nil {
		return domain.TransactionTotals{}, err
	}
	txs, err := s.repo.ListTransactions(ctx, actor.OrganizationID, domain.TransactionFilter{})
	if err != nil {
		return domain.TransactionTotals{}, classified(err)
	}

	totals := domain.TransactionTotals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, tx := range txs {
		switch tx.Type {
		case domain.TxIncome:
			totals.Income = totals.Income.Add(tx.Amount)
		case domain.TxExpense:
			totals.Expense = totals.Expense.Add(tx.Amount)
		}
	}
	totals.Net = totals.Income.Sub(totals.Expense)
	return totals, nil
}
