package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/store"
)

// serializeRetries bounds how often a transaction is replayed after a
// serialization failure.
const serializeRetries = 3

type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type Store struct {
	db *sqlx.DB
}

func New(ctx context.Context, databaseURL string, opts Options) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 8
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 30
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 30 * time.Minute
	}
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: sqlx.NewDb(db, "pgx")}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// inTx runs fn inside a serializable transaction, replaying it when Postgres
// reports a serialization failure.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	var err error
	for attempt := 0; attempt < serializeRetries; attempt++ {
		err = s.runTx(ctx, fn)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("transaction retries exhausted: %w", store.ErrConflict)
}

func (s *Store) runTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return outOfRange(err)
	}
	return outOfRange(tx.Commit())
}

// Organizations and accounts

const profileColumns = `id, organization_id, role, full_name, email, created_at`

func (s *Store) CreateSignup(ctx context.Context, signup store.Signup) error {
	account := signup.Account
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	if account.Email == "" || account.ID == "" {
		return store.ErrInvalidInput
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if signup.Organization != nil {
			if signup.Organization.ID != account.OrganizationID {
				return store.ErrInvalidInput
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO organizations (id, name, created_at) VALUES ($1, $2, $3)
			`, signup.Organization.ID, signup.Organization.Name, signup.Organization.CreatedAt); err != nil {
				return err
			}
		} else {
			var exists bool
			if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM organizations WHERE id = $1)`, account.OrganizationID); err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("organization %s: %w", account.OrganizationID, store.ErrNotFound)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (id, organization_id, role, full_name, email, password_hash, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, account.ID, account.OrganizationID, account.Role, account.FullName, account.Email, account.PasswordHash, account.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("email %s: %w", account.Email, store.ErrConflict)
			}
			return err
		}

		if signup.AcceptInvitation {
			if _, err := tx.ExecContext(ctx, `
				UPDATE invitations SET status = $1
				WHERE organization_id = $2 AND email = $3 AND status = $4
			`, domain.InvitationAccepted, account.OrganizationID, account.Email, domain.InvitationPending); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	var org domain.Organization
	err := s.db.GetContext(ctx, &org, `SELECT id, name, created_at FROM organizations WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &org, nil
}

func (s *Store) ListOrganizations(ctx context.Context) ([]domain.Organization, error) {
	orgs := make([]domain.Organization, 0, 16)
	if err := s.db.SelectContext(ctx, &orgs, `SELECT id, name, created_at FROM organizations ORDER BY lower(name)`); err != nil {
		return nil, err
	}
	return orgs, nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var account domain.Account
	err := s.db.GetContext(ctx, &account, `
		SELECT `+profileColumns+`, password_hash FROM profiles WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	var profile domain.Profile
	if err := s.db.GetContext(ctx, &profile, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &profile, nil
}

func (s *Store) ListProfiles(ctx context.Context, orgID string) ([]domain.Profile, error) {
	profiles := make([]domain.Profile, 0, 8)
	err := s.db.SelectContext(ctx, &profiles, `
		SELECT `+profileColumns+` FROM profiles WHERE organization_id = $1 ORDER BY created_at
	`, orgID)
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// outOfRange maps numeric overflow to invalid input.
func outOfRange(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22003" {
		return fmt.Errorf("%s: %w", pgErr.Message, store.ErrInvalidInput)
	}
	return err
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
