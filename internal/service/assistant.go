package service

import (
	"context"
	"errors"
	"strings"

	"stockpilot/backend/internal/assistant"
	"stockpilot/backend/internal/domain"
)

func (s *Service) StartAssistant(ctx context.Context) ([]domain.ChatTurn, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	turns, err := s.assistant.Reset(ctx, actor.OrganizationID, actor.UserID)
	return turns, s.assistantError(ctx, err)
}

func (s *Service) SendAssistantMessage(ctx context.Context, req domain.AssistantMessageRequest) (domain.AssistantReply, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.AssistantReply{}, err
	}
	if strings.TrimSpace(req.Message) == "" {
		return domain.AssistantReply{}, invalid("message", "message is required")
	}
	reply, err := s.assistant.Send(ctx, actor.OrganizationID, actor.UserID, req.Message)
	return reply, s.assistantError(ctx, err)
}

func (s *Service) AssistantTranscript(ctx context.Context) ([]domain.ChatTurn, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	turns, err := s.assistant.Transcript(ctx, actor.OrganizationID, actor.UserID)
	return turns, s.assistantError(ctx, err)
}

func (s *Service) AssistantInsight(ctx context.Context) (domain.ChatTurn, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ChatTurn{}, err
	}
	turn, err := s.assistant.Insight(ctx, actor.OrganizationID)
	return turn, s.assistantError(ctx, err)
}

func (s *Service) assistantError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, assistant.ErrDisabled) {
		s.log.Error(ctx, "assistant request failed", err)
	}
	return Classify(err)
}
