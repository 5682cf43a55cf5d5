package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/store"
)

const transactionColumns = `id, organization_id, type, amount, description,
	COALESCE(related_sale_id, '') AS related_sale_id, COALESCE(created_by, '') AS created_by, created_at`

const invitationColumns = `id, organization_id, email, role, status, COALESCE(invited_by, '') AS invited_by, created_at`

func (s *Store) CreateTransaction(ctx context.Context, tx domain.FinancialTransaction) error {
	if tx.ID == "" || tx.OrganizationID == "" {
		return store.ErrInvalidInput
	}
	return insertTransaction(ctx, s.db, tx)
}

func (s *Store) ListTransactions(ctx context.Context, orgID string, filter domain.TransactionFilter) ([]domain.FinancialTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM financial_transactions WHERE organization_id = $1`
	args := []any{orgID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(` AND type = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, seq DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	txs := make([]domain.FinancialTransaction, 0, 64)
	if err := s.db.SelectContext(ctx, &txs, query, args...); err != nil {
		return nil, err
	}
	return txs, nil
}

func insertTransaction(ctx context.Context, exec sqlx.ExecerContext, tx domain.FinancialTransaction) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO financial_transactions (id, organization_id, type, amount, description, related_sale_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, tx.ID, tx.OrganizationID, tx.Type, tx.Amount, tx.Description,
		nullIfEmpty(tx.RelatedSaleID), nullIfEmpty(tx.CreatedBy), tx.CreatedAt)
	return outOfRange(err)
}

// Team

func (s *Store) CreateInvitation(ctx context.Context, inv domain.Invitation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invitations (id, organization_id, email, role, status, invited_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, inv.ID, inv.OrganizationID, inv.Email, inv.Role, inv.Status, nullIfEmpty(inv.InvitedBy), inv.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("pending invitation for %s: %w", inv.Email, store.ErrConflict)
		}
		return err
	}
	return nil
}

func (s *Store) GetInvitation(ctx context.Context, orgID string, id string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := s.db.GetContext(ctx, &inv, `
		SELECT `+invitationColumns+` FROM invitations WHERE organization_id = $1 AND id = $2
	`, orgID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}

func (s *Store) ListInvitations(ctx context.Context, orgID string) ([]domain.Invitation, error) {
	invs := make([]domain.Invitation, 0, 16)
	err := s.db.SelectContext(ctx, &invs, `
		SELECT `+invitationColumns+` FROM invitations WHERE organization_id = $1 ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, err
	}
	return invs, nil
}

func (s *Store) DeleteInvitation(ctx context.Context, orgID string, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM invitations WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
