package service

import (
	"context"

	"stockpilot/backend/internal/dashboard"
	"stockpilot/backend/internal/domain"
)

// Dashboard reduces one bulk read. The financial KPI block is owner only.
func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}
	snap, err := dashboard.Load(ctx, s.repo, actor.OrganizationID)
	if err != nil {
		return domain.Dashboard{}, classified(err)
	}
	return dashboard.Build(snap, s.now(), s.loc, actor.IsOwner()), nil
}
