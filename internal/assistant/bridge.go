// Package assistant keeps per-user conversations with the chat model, primed
// with a snapshot of the organization's business data.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"stockpilot/backend/internal/cache"
	"stockpilot/backend/internal/dashboard"
	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/logger"
	"stockpilot/backend/internal/metrics"
)

// ErrDisabled is returned by every operation when no chat model is configured.
var ErrDisabled = errors.New("assistant is not configured")

// ErrModel wraps chat model failures.
var ErrModel = errors.New("chat model request failed")

type Options struct {
	SessionTTL time.Duration
	Location   *time.Location
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
}

type Bridge struct {
	model    ChatModel
	reader   dashboard.Reader
	sessions cache.SessionCache
	ttl      time.Duration
	loc      *time.Location
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	locksMu sync.Mutex
	locks   map[string]*keyLock
}

// keyLock serialises one conversation; refs counts holders and waiters so
// the entry can be dropped once nobody needs it.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewBridge returns a bridge; a nil model leaves it disabled.
func NewBridge(model ChatModel, reader dashboard.Reader, sessions cache.SessionCache, opts Options) *Bridge {
	if sessions == nil {
		sessions = cache.NewMemorySessionCache()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Bridge{
		model:    model,
		reader:   reader,
		sessions: sessions,
		ttl:      opts.SessionTTL,
		loc:      opts.Location,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		now:      time.Now,
		locks:    make(map[string]*keyLock),
	}
}

func (b *Bridge) Enabled() bool {
	return b != nil && b.model != nil
}

func sessionKey(orgID, userID string) string {
	return orgID + ":" + userID
}

func (b *Bridge) lock(key string) func() {
	b.locksMu.Lock()
	l, ok := b.locks[key]
	if !ok {
		l = &keyLock{}
		b.locks[key] = l
	}
	l.refs++
	b.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		b.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(b.locks, key)
		}
		b.locksMu.Unlock()
	}
}

func (b *Bridge) newSession(ctx context.Context, orgID string) (*domain.AssistantSession, error) {
	snap, err := dashboard.Load(ctx, b.reader, orgID)
	if err != nil {
		return nil, err
	}
	now := b.now()
	return &domain.AssistantSession{
		Turns:     seedTurns(BuildContext(snap, now.In(b.loc)), now),
		StartedAt: now,
	}, nil
}

// Start discards any existing conversation and primes a new one from a fresh
// read. It returns the visible transcript.
func (b *Bridge) Start(ctx context.Context, orgID, userID string) ([]domain.ChatTurn, error) {
	if !b.Enabled() {
		return nil, ErrDisabled
	}
	key := sessionKey(orgID, userID)
	defer b.lock(key)()

	session, err := b.newSession(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := b.sessions.Set(ctx, key, session, b.ttl); err != nil {
		return nil, fmt.Errorf("store assistant session: %w", err)
	}
	b.log.Info(ctx, "assistant session started")
	return visible(session.Turns), nil
}

func (b *Bridge) Reset(ctx context.Context, orgID, userID string) ([]domain.ChatTurn, error) {
	return b.Start(ctx, orgID, userID)
}

// Send appends message to the user's conversation and blocks for the reply.
// On a model failure the conversation is left as it was.
func (b *Bridge) Send(ctx context.Context, orgID, userID, message string) (domain.AssistantReply, error) {
	if !b.Enabled() {
		return domain.AssistantReply{}, ErrDisabled
	}
	message = strings.TrimSpace(message)
	key := sessionKey(orgID, userID)
	defer b.lock(key)()

	session, ok, err := b.sessions.Get(ctx, key)
	if err != nil {
		return domain.AssistantReply{}, fmt.Errorf("load assistant session: %w", err)
	}
	if !ok {
		if session, err = b.newSession(ctx, orgID); err != nil {
			return domain.AssistantReply{}, err
		}
	}

	history := append(session.Turns, domain.ChatTurn{Role: RoleUser, Text: message, At: b.now()})
	text, err := b.model.Generate(ctx, history)
	b.metrics.IncAssistant(metrics.Result(err))
	if err != nil {
		return domain.AssistantReply{}, fmt.Errorf("%w: %w", ErrModel, err)
	}

	reply := domain.ChatTurn{Role: RoleModel, Text: text, At: b.now()}
	session.Turns = append(history, reply)
	if err := b.sessions.Set(ctx, key, session, b.ttl); err != nil {
		return domain.AssistantReply{}, fmt.Errorf("store assistant session: %w", err)
	}
	return domain.AssistantReply{Reply: reply, Transcript: visible(session.Turns)}, nil
}

// Transcript returns the visible turns, or an empty list without a session.
func (b *Bridge) Transcript(ctx context.Context, orgID, userID string) ([]domain.ChatTurn, error) {
	if !b.Enabled() {
		return nil, ErrDisabled
	}
	session, ok, err := b.sessions.Get(ctx, sessionKey(orgID, userID))
	if err != nil {
		return nil, fmt.Errorf("load assistant session: %w", err)
	}
	if !ok {
		return []domain.ChatTurn{}, nil
	}
	return visible(session.Turns), nil
}

// Insight asks for an executive summary on a throwaway conversation.
func (b *Bridge) Insight(ctx context.Context, orgID string) (domain.ChatTurn, error) {
	if !b.Enabled() {
		return domain.ChatTurn{}, ErrDisabled
	}
	session, err := b.newSession(ctx, orgID)
	if err != nil {
		return domain.ChatTurn{}, err
	}
	history := append(session.Turns, domain.ChatTurn{Role: RoleUser, Text: insightPrompt, At: b.now()})
	text, err := b.model.Generate(ctx, history)
	b.metrics.IncAssistant(metrics.Result(err))
	if err != nil {
		return domain.ChatTurn{}, fmt.Errorf("%w: %w", ErrModel, err)
	}
	return domain.ChatTurn{Role: RoleModel, Text: text, At: b.now()}, nil
}
