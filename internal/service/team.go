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

// CreateInvitation stores a pending invitation and mails it. A failed
// delivery removes the row again.
func (s *Service) CreateInvitation(ctx context.Context, req domain.InvitationCreateRequest) (domain.Invitation, error) {
	actor, err := requireOwner(ctx)
	if err != nil {
		return domain.Invitation{}, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.Invitation{}, invalid("email", "a valid email is required")
	}

	org, err := s.repo.GetOrganization(ctx, actor.OrganizationID)
	if err != nil {
		return domain.Invitation{}, classified(err)
	}

	inv := domain.Invitation{
		ID:             xid.New(),
		OrganizationID: actor.OrganizationID,
		Email:          email,
		Role:           domain.RoleEmployee,
		Status:         domain.InvitationPending,
		InvitedBy:      actor.UserID,
		CreatedAt:      s.now(),
	}
	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Invitation{}, apperr.Wrap(apperr.CodeConflict, err, "a pending invitation already exists for this email")
		}
		return domain.Invitation{}, classified(err)
	}

	ctx = s.log.WithField(ctx, "invitation_id", inv.ID)
	if err := s.mailer.SendInvitation(ctx, inv, *org); err != nil {
		s.log.Error(ctx, "invitation delivery failed", err)
		if delErr := s.repo.DeleteInvitation(ctx, inv.OrganizationID, inv.ID); delErr != nil {
			s.log.Error(ctx, "rolling back undelivered invitation failed", delErr)
		}
		return domain.Invitation{}, apperr.Wrap(apperr.CodeDependency, err, "invitation email could not be sent")
	}
	s.log.Info(ctx, "invitation sent")
	return inv, nil
}

func (s *Service) ListInvitations(ctx context.Context) ([]domain.Invitation, error) {
	actor, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	invs, err := s.repo.ListInvitations(ctx, actor.OrganizationID)
	return invs, classified(err)
}

// DeleteInvitation revokes a pending invitation.
func (s *Service) DeleteInvitation(ctx context.Context, id string) error {
	actor, err := requireOwner(ctx)
	if err != nil {
		return err
	}
	inv, err := s.repo.GetInvitation(ctx, actor.OrganizationID, id)
	if err != nil {
		return classified(err)
	}
	if inv.Status != domain.InvitationPending {
		return apperr.New(apperr.CodeStateConflict, "only pending invitations can be deleted")
	}
	return classified(s.repo.DeleteInvitation(ctx, actor.OrganizationID, id))
}
