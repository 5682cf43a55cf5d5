// Package service holds the tenant-scoped business operations. Every method
// reads the caller from the context and returns *apperr.Error values.
package service

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"stockpilot/backend/internal/apperr"
	"stockpilot/backend/internal/assistant"
	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/invite"
	"stockpilot/backend/internal/logger"
	"stockpilot/backend/internal/metrics"
	"stockpilot/backend/internal/store"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200

	// MaxQuantity bounds stock and cart quantities in a single request.
	MaxQuantity = 1_000_000_000
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Assistant *assistant.Bridge
	Mailer    invite.Mailer
	Logger    *logger.Logger
	Metrics   *metrics.Metrics
	// Location sets the calendar days of the dashboard trend.
	Location *time.Location
}

type Service struct {
	repo      store.Repository
	assistant *assistant.Bridge
	mailer    invite.Mailer
	log       *logger.Logger
	metrics   *metrics.Metrics
	loc       *time.Location
	now       func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Mailer == nil {
		opts.Mailer = invite.NewLogMailer(opts.Logger, "")
	}
	return &Service{
		repo:      repo,
		assistant: opts.Assistant,
		mailer:    opts.Mailer,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		loc:       opts.Location,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == "" || actor.OrganizationID == "" {
		return domain.Actor{}, apperr.New(apperr.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

func requireOwner(ctx context.Context) (domain.Actor, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if !actor.IsOwner() {
		return domain.Actor{}, apperr.New(apperr.CodeForbidden, "owner role required")
	}
	return actor, nil
}

// clampLimit applies the list default and ceiling.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func invalid(field, message string) *apperr.Error {
	return apperr.New(apperr.CodeValidation, message).WithDetails(map[string]string{field: message})
}

// maxAmount caps money inputs.
var maxAmount = decimal.New(1, 12)

func checkAmount(field string, v decimal.Decimal) error {
	switch {
	case v.IsNegative():
		return invalid(field, field+" must not be negative")
	case v.GreaterThan(maxAmount):
		return invalid(field, field+" must be at most "+maxAmount.String())
	}
	return nil
}

// checkText rejects control characters in names that end up in mail headers
// and model prompts.
func checkText(field, v string) error {
	if strings.IndexFunc(v, unicode.IsControl) >= 0 {
		return invalid(field, field+" must not contain control characters")
	}
	return nil
}
