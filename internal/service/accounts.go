package service

import (
	"context"
	"errors"
	"strings"

	"stockpilot/backend/internal/apperr"
	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/store"
	"stockpilot/backend/internal/xid"
)

// RegisterAccount creates the profile (and, for owners, the organization)
// behind a signup. The password must already be hashed.
func (s *Service) RegisterAccount(ctx context.Context, req domain.SignupRequest, passwordHash string) (domain.Profile, domain.Organization, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	fullName := strings.TrimSpace(req.FullName)
	if email == "" {
		return domain.Profile{}, domain.Organization{}, invalid("email", "email is required")
	}
	if fullName == "" {
		return domain.Profile{}, domain.Organization{}, invalid("full_name", "full name is required")
	}
	if err := checkText("full_name", fullName); err != nil {
		return domain.Profile{}, domain.Organization{}, err
	}

	now := s.now()
	account := domain.Account{
		Profile: domain.Profile{
			ID:        xid.New(),
			Role:      req.Role,
			FullName:  fullName,
			Email:     email,
			CreatedAt: now,
		},
		PasswordHash: passwordHash,
	}

	var signup store.Signup
	var org domain.Organization
	switch req.Role {
	case domain.RoleOwner:
		name := strings.TrimSpace(req.OrganizationName)
		if name == "" {
			return domain.Profile{}, domain.Organization{}, invalid("organization_name", "organization name is required for owners")
		}
		if err := checkText("organization_name", name); err != nil {
			return domain.Profile{}, domain.Organization{}, err
		}
		org = domain.Organization{ID: xid.New(), Name: name, CreatedAt: now}
		account.OrganizationID = org.ID
		signup = store.Signup{Organization: &org, Account: account}
	case domain.RoleEmployee:
		orgID := strings.TrimSpace(req.OrganizationID)
		if orgID == "" {
			return domain.Profile{}, domain.Organization{}, invalid("organization_id", "organization is required for employees")
		}
		existing, err := s.repo.GetOrganization(ctx, orgID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Profile{}, domain.Organization{}, invalid("organization_id", "organization does not exist")
			}
			return domain.Profile{}, domain.Organization{}, classified(err)
		}
		org = *existing
		account.OrganizationID = org.ID
		signup = store.Signup{Account: account, AcceptInvitation: true}
	default:
		return domain.Profile{}, domain.Organization{}, invalid("role", "role must be owner or employee")
	}

	if err := s.repo.CreateSignup(ctx, signup); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Profile{}, domain.Organization{}, apperr.Wrap(apperr.CodeConflict, err, "email is already registered")
		}
		return domain.Profile{}, domain.Organization{}, classified(err)
	}

	ctx = s.log.WithActor(ctx, account.ID, org.ID, account.Role)
	s.log.Info(ctx, "account registered")
	return account.Profile, org, nil
}

// AccountByEmail returns the stored credential and its organization.
func (s *Service) AccountByEmail(ctx context.Context, email string) (domain.Account, domain.Organization, error) {
	account, err := s.repo.GetAccountByEmail(ctx, email)
	if err != nil {
		return domain.Account{}, domain.Organization{}, classified(err)
	}
	org, err := s.repo.GetOrganization(ctx, account.OrganizationID)
	if err != nil {
		return domain.Account{}, domain.Organization{}, classified(err)
	}
	return *account, *org, nil
}

func (s *Service) ListOrganizations(ctx context.Context) ([]domain.Organization, error) {
	orgs, err := s.repo.ListOrganizations(ctx)
	return orgs, classified(err)
}

func (s *Service) Me(ctx context.Context) (domain.MeResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.MeResponse{}, err
	}
	profile, err := s.repo.GetProfile(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.MeResponse{}, apperr.New(apperr.CodeUnauthorized, "account no longer exists")
		}
		return domain.MeResponse{}, classified(err)
	}
	org, err := s.repo.GetOrganization(ctx, profile.OrganizationID)
	if err != nil {
		return domain.MeResponse{}, classified(err)
	}
	return domain.MeResponse{Profile: *profile, Organization: *org}, nil
}

func (s *Service) ListMembers(ctx context.Context) ([]domain.Profile, error) {
	actor, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := s.repo.ListProfiles(ctx, actor.OrganizationID)
	return profiles, classified(err)
}
