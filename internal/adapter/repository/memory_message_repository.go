package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"instapro/internal/domain/entity"
	"instapro/internal/domain/repository"
	"instapro/pkg/errors"
	"instapro/pkg/live"
)

type MemoryMessageRepository struct {
	mu            sync.Mutex
	now           func() time.Time
	conversations map[string][]*entity.Message
	watchers      watchSet[[]*entity.Message]
}

var _ repository.MessageRepository = (*MemoryMessageRepository)(nil)

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{
		now:           time.Now,
		conversations: make(map[string][]*entity.Message),
		watchers:      make(watchSet[[]*entity.Message]),
	}
}

func (r *MemoryMessageRepository) Append(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.conversations[message.ConversationID]

	message.ID = uuid.Must(uuid.NewV7()).String()
	message.Timestamp = r.now()
	// server clock may step back; readers must never see time go backwards
	if n := len(log); n > 0 && message.Timestamp.Before(log[n-1].Timestamp) {
		message.Timestamp = log[n-1].Timestamp
	}

	stored := *message
	r.conversations[message.ConversationID] = append(log, &stored)
	r.notify(message.ConversationID)
	return nil
}

func (r *MemoryMessageRepository) GetByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.conversations[conversationID] {
		if m.ID == messageID {
			return m, nil
		}
	}
	return nil, errors.NotFound("Message", nil)
}

func (r *MemoryMessageRepository) Remove(ctx context.Context, conversationID, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.conversations[conversationID]
	for i, m := range log {
		if m.ID == messageID {
			kept := make([]*entity.Message, 0, len(log)-1)
			kept = append(kept, log[:i]...)
			kept = append(kept, log[i+1:]...)
			r.conversations[conversationID] = kept
			r.notify(conversationID)
			return nil
		}
	}
	return errors.NotFound("Message", nil)
}

func (r *MemoryMessageRepository) Window(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.window(conversationID, limit), nil
}

func (r *MemoryMessageRepository) WatchWindow(ctx context.Context, conversationID string, limit int) *live.Subscription[[]*entity.Message] {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sub *live.Subscription[[]*entity.Message]
	sub = live.New[[]*entity.Message](func() {
		r.mu.Lock()
		r.watchers.remove(conversationID, sub)
		r.mu.Unlock()
	})
	r.watchers.add(conversationID, sub, limit)
	sub.Publish(r.window(conversationID, limit))
	closeWithContext(ctx, sub)
	return sub
}

// window must be called with r.mu held.
func (r *MemoryMessageRepository) window(conversationID string, limit int) []*entity.Message {
	log := r.conversations[conversationID]
	start := 0
	if limit > 0 && len(log) > limit {
		start = len(log) - limit
	}
	out := make([]*entity.Message, len(log)-start)
	copy(out, log[start:])
	return out
}

func (r *MemoryMessageRepository) notify(conversationID string) {
	for sub, limit := range r.watchers[conversationID] {
		sub.Publish(r.window(conversationID, limit))
	}
}
