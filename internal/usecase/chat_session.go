package usecase

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"instapro/internal/domain/entity"
	"instapro/internal/infrastructure/metrics"
	"instapro/pkg/errors"
	"instapro/pkg/live"
	"instapro/pkg/logger"
)

type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateResolving SessionState = "resolving"
	StateReady     SessionState = "ready"
	StateSending   SessionState = "sending"
	StateClosed    SessionState = "closed"
)

// SessionSnapshot is what a chat view renders. Err holds the last
// subscription failure; the data before it stays visible.
type SessionSnapshot struct {
	State        SessionState        `json:"state"`
	Conversation entity.Conversation `json:"conversation,omitempty"`
	Messages     []*entity.Message   `json:"messages"`
	Limit        int                 `json:"limit"`
	HasMore      bool                `json:"has_more"`
	Err          error               `json:"-"`
}

// ChatSession drives one open conversation view for one caller. It owns
// its subscriptions and all of its state; nothing is shared across
// sessions.
type ChatSession struct {
	caller        entity.Identity
	conversations *ConversationUseCase
	messages      *MessageUseCase
	pipeline      *SendPipeline

	mu       sync.Mutex
	state    SessionState
	ref      entity.ConversationRef
	conv     entity.Conversation
	window   []*entity.Message
	limit    int
	loading  bool
	lastErr  error
	convSub  *live.Subscription[entity.Conversation]
	msgSub   *live.Subscription[[]*entity.Message]
	ctx      context.Context
	cancel   context.CancelFunc
	snapshot *live.Subscription[SessionSnapshot]
}

func NewChatSession(caller entity.Identity, conversations *ConversationUseCase, messages *MessageUseCase, pipeline *SendPipeline) *ChatSession {
	return &ChatSession{
		caller:        caller,
		conversations: conversations,
		messages:      messages,
		pipeline:      pipeline,
		state:         StateIdle,
		snapshot:      live.New[SessionSnapshot](nil),
	}
}

// Updates streams a snapshot after every state or data change. It is
// closed by Close.
func (s *ChatSession) Updates() <-chan SessionSnapshot {
	return s.snapshot.Updates()
}

func (s *ChatSession) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Open resolves conversationID and subscribes to the conversation record
// and the first page of messages concurrently. The session becomes Ready
// once both have delivered a first value.
func (s *ChatSession) Open(ctx context.Context, conversationID string) error {
	ref, err := entity.ParseConversationRef(conversationID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return errors.Conflict("Session is already open")
	}
	s.state = StateResolving
	s.ref = ref
	s.limit = s.messages.PageSize()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	limit, sessionCtx := s.limit, s.ctx
	s.publishLocked()
	s.mu.Unlock()

	convSub, err := s.conversations.Watch(sessionCtx, s.caller, ref)
	if err != nil {
		s.resetToIdle()
		return err
	}
	msgSub := s.messages.Subscribe(sessionCtx, ref, limit)

	var (
		conv   entity.Conversation
		window []*entity.Message
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := firstValue(gctx, convSub)
		conv = v
		return err
	})
	g.Go(func() error {
		v, err := firstValue(gctx, msgSub)
		window = v
		return err
	})
	if err := g.Wait(); err != nil {
		convSub.Close()
		msgSub.Close()
		s.resetToIdle()
		logger.Warn("OpenChat Error: user=%s, conversation=%s: %v", s.caller.Username, ref.ID, err)
		return err
	}

	s.mu.Lock()
	if s.state != StateResolving {
		// closed while resolving
		s.mu.Unlock()
		convSub.Close()
		msgSub.Close()
		return errors.Conflict("Session closed while opening")
	}
	s.conv = conv
	s.window = window
	s.convSub = convSub
	s.msgSub = msgSub
	s.state = StateReady
	s.publishLocked()
	s.mu.Unlock()

	metrics.OpenSessions.Inc()
	go s.pumpConversation(convSub)
	go s.pumpMessages(msgSub)
	return nil
}

// Send runs the send pipeline. Only one send may be in flight per session.
func (s *ChatSession) Send(ctx context.Context, input SendInput, onProgress func(entity.UploadProgress)) (*entity.Message, error) {
	s.mu.Lock()
	switch s.state {
	case StateReady:
	case StateSending:
		s.mu.Unlock()
		return nil, errors.Conflict("A message is already being sent")
	default:
		s.mu.Unlock()
		return nil, errors.Conflict("Chat is not ready")
	}
	s.state = StateSending
	conv := s.conv
	s.publishLocked()
	s.mu.Unlock()

	message, err := s.pipeline.Send(ctx, s.caller, conv, input, onProgress)

	s.mu.Lock()
	if s.state == StateSending {
		s.state = StateReady
		s.publishLocked()
	}
	s.mu.Unlock()
	return message, err
}

// LoadMore grows the window by one page. It reports false without error
// when the request is ignored: another load is in progress or the store
// has already returned everything.
func (s *ChatSession) LoadMore(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.state != StateReady && s.state != StateSending {
		s.mu.Unlock()
		return false, errors.Conflict("Chat is not ready")
	}
	if s.loading || len(s.window) < s.limit {
		s.mu.Unlock()
		return false, nil
	}
	s.loading = true
	limit := s.limit + s.messages.PageSize()
	ref, sessionCtx := s.ref, s.ctx
	s.mu.Unlock()

	sub := s.messages.Subscribe(sessionCtx, ref, limit)
	window, err := firstValue(ctx, sub)

	s.mu.Lock()
	s.loading = false
	if err != nil || s.state == StateClosed {
		s.mu.Unlock()
		sub.Close()
		return false, err
	}
	old := s.msgSub
	s.msgSub = sub
	s.limit = limit
	s.window = window
	s.publishLocked()
	s.mu.Unlock()

	go s.pumpMessages(sub)
	// the new window is a superset of the old one
	old.Close()
	return true, nil
}

// Unsend removes one of the caller's own messages.
func (s *ChatSession) Unsend(ctx context.Context, messageID string) error {
	s.mu.Lock()
	if s.state != StateReady && s.state != StateSending {
		s.mu.Unlock()
		return errors.Conflict("Chat is not ready")
	}
	ref := s.ref
	s.mu.Unlock()

	return s.messages.Remove(ctx, s.caller, ref, messageID)
}

// Close cancels both subscriptions and ends Updates. It is idempotent.
func (s *ChatSession) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	wasOpen := s.state == StateReady || s.state == StateSending
	s.state = StateClosed
	convSub, msgSub, cancel := s.convSub, s.msgSub, s.cancel
	s.publishLocked()
	s.mu.Unlock()

	if convSub != nil {
		convSub.Close()
	}
	if msgSub != nil {
		msgSub.Close()
	}
	if cancel != nil {
		cancel()
	}
	if wasOpen {
		metrics.OpenSessions.Dec()
	}
	s.snapshot.Close()
}

func (s *ChatSession) pumpConversation(sub *live.Subscription[entity.Conversation]) {
	for conv := range sub.Updates() {
		s.mu.Lock()
		if s.convSub == sub && s.state != StateClosed {
			s.conv = conv
			s.publishLocked()
		}
		s.mu.Unlock()
	}
	s.subscriptionEnded(sub.Err())
}

func (s *ChatSession) pumpMessages(sub *live.Subscription[[]*entity.Message]) {
	for window := range sub.Updates() {
		s.mu.Lock()
		if s.msgSub == sub && s.state != StateClosed {
			s.window = window
			s.publishLocked()
		}
		s.mu.Unlock()
	}
	s.mu.Lock()
	current := s.msgSub == sub
	s.mu.Unlock()
	if current {
		s.subscriptionEnded(sub.Err())
	}
}

// subscriptionEnded keeps the last good data and surfaces the failure.
func (s *ChatSession) subscriptionEnded(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	if !errors.Is(err, errors.CodeUnavailable) && !errors.Is(err, errors.CodeNotFound) {
		err = errors.Unavailable("Live updates stopped", err)
	}
	s.lastErr = err
	s.publishLocked()
}

func (s *ChatSession) resetToIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.state == StateResolving {
		s.state = StateIdle
		s.publishLocked()
	}
}

func (s *ChatSession) snapshotLocked() SessionSnapshot {
	messages := s.window
	if messages == nil {
		messages = []*entity.Message{}
	}
	return SessionSnapshot{
		State:        s.state,
		Conversation: s.conv,
		Messages:     messages,
		Limit:        s.limit,
		HasMore:      s.limit > 0 && len(s.window) >= s.limit,
		Err:          s.lastErr,
	}
}

func (s *ChatSession) publishLocked() {
	s.snapshot.Publish(s.snapshotLocked())
}

// firstValue waits for the initial snapshot of sub.
func firstValue[T any](ctx context.Context, sub *live.Subscription[T]) (T, error) {
	var zero T
	select {
	case v, ok := <-sub.Updates():
		if !ok {
			if err := sub.Err(); err != nil {
				return zero, err
			}
			return zero, errors.Unavailable("Subscription closed before first update", nil)
		}
		return v, nil
	case <-ctx.Done():
		return zero, errors.Unavailable("Timed out waiting for data", ctx.Err())
	}
}
