package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"stockpilot/backend/internal/domain"
)

// ChatModel produces the next model turn for a conversation.
type ChatModel interface {
	Generate(ctx context.Context, history []domain.ChatTurn) (string, error)
}

var ErrEmptyReply = errors.New("chat model returned no text")

// GeminiModel calls the Generative Language API.
type GeminiModel struct {
	svc     *generativelanguage.Service
	model   string
	timeout time.Duration
}

func NewGeminiModel(ctx context.Context, apiKey string, model string, timeout time.Duration) (*GeminiModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	svc, err := generativelanguage.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create generativelanguage service: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiModel{svc: svc, model: model, timeout: timeout}, nil
}

func (g *GeminiModel) Generate(ctx context.Context, history []domain.ChatTurn) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req := &generativelanguage.GenerateContentRequest{
		Contents: make([]*generativelanguage.Content, 0, len(history)),
	}
	for _, turn := range history {
		req.Contents = append(req.Contents, &generativelanguage.Content{
			Role:  turn.Role,
			Parts: []*generativelanguage.Part{{Text: turn.Text}},
		})
	}

	resp, err := g.svc.Models.GenerateContent("models/"+g.model, req).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("gemini %s: status %d: %w", g.model, apiErr.Code, err)
		}
		return "", fmt.Errorf("gemini %s: %w", g.model, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyReply
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}
