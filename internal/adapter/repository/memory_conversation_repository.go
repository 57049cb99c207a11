package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"instapro/internal/domain/entity"
	"instapro/internal/domain/repository"
	"instapro/pkg/errors"
	"instapro/pkg/live"
)

type MemoryConversationRepository struct {
	mu       sync.Mutex
	now      func() time.Time
	direct   map[string]*entity.DirectChat
	groups   map[string]*entity.Group
	watchers watchSet[entity.Conversation]
}

var _ repository.ConversationRepository = (*MemoryConversationRepository)(nil)

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{
		now:      time.Now,
		direct:   make(map[string]*entity.DirectChat),
		groups:   make(map[string]*entity.Group),
		watchers: make(watchSet[entity.Conversation]),
	}
}

func (r *MemoryConversationRepository) Get(ctx context.Context, ref entity.ConversationRef) (entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(ref)
}

func (r *MemoryConversationRepository) Watch(ctx context.Context, ref entity.ConversationRef) *live.Subscription[entity.Conversation] {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, err := r.get(ref)
	if err != nil {
		// never registered, so there is nothing to unhook
		failed := live.New[entity.Conversation](nil)
		failed.Fail(err)
		return failed
	}

	var sub *live.Subscription[entity.Conversation]
	sub = live.New[entity.Conversation](func() {
		r.mu.Lock()
		r.watchers.remove(ref.ID, sub)
		r.mu.Unlock()
	})
	r.watchers.add(ref.ID, sub, 0)
	sub.Publish(conv)
	closeWithContext(ctx, sub)
	return sub
}

func (r *MemoryConversationRepository) ListByMember(ctx context.Context, username string, limit int) ([]entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []entity.Conversation
	for _, d := range r.direct {
		if d.HasMember(username) {
			c := *d
			out = append(out, &c)
		}
	}
	for _, g := range r.groups {
		if g.HasMember(username) {
			out = append(out, cloneGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt().After(out[j].LastActivityAt())
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryConversationRepository) CreateGroup(ctx context.Context, group *entity.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.groups[group.ID]; exists {
		return errors.Conflict("Group already exists")
	}
	if group.LastActivity.IsZero() {
		group.LastActivity = r.now()
	}
	r.groups[group.ID] = cloneGroup(group)
	return nil
}

func (r *MemoryConversationRepository) UpdateGroup(ctx context.Context, groupID string, mutate repository.GroupMutation) (*entity.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.groups[groupID]
	if !ok {
		return nil, errors.NotFound("Group", nil)
	}
	next := cloneGroup(current)
	if err := mutate(next); err != nil {
		return nil, err
	}
	r.groups[groupID] = next
	r.notify(groupID)
	return cloneGroup(next), nil
}

func (r *MemoryConversationRepository) UpdateMetadata(ctx context.Context, groupID string, patch entity.MetadataPatch) error {
	_, err := r.UpdateGroup(ctx, groupID, func(g *entity.Group) error {
		patch.ApplyTo(g)
		return nil
	})
	return err
}

func (r *MemoryConversationRepository) Touch(ctx context.Context, ref entity.ConversationRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if ref.IsGroup() {
		g, ok := r.groups[ref.ID]
		if !ok {
			return errors.NotFound("Group", nil)
		}
		if now.After(g.LastActivity) {
			g.LastActivity = now
		}
	} else {
		d, ok := r.direct[ref.ID]
		if !ok {
			d = entity.NewDirectChat(ref)
			r.direct[ref.ID] = d
		}
		if now.After(d.LastActivity) {
			d.LastActivity = now
		}
	}
	r.notify(ref.ID)
	return nil
}

// get must be called with r.mu held.
func (r *MemoryConversationRepository) get(ref entity.ConversationRef) (entity.Conversation, error) {
	if ref.IsGroup() {
		g, ok := r.groups[ref.ID]
		if !ok {
			return nil, errors.NotFound("Group", nil)
		}
		return cloneGroup(g), nil
	}
	if d, ok := r.direct[ref.ID]; ok {
		c := *d
		return &c, nil
	}
	return entity.NewDirectChat(ref), nil
}

func (r *MemoryConversationRepository) notify(id string) {
	subs := r.watchers[id]
	if len(subs) == 0 {
		return
	}
	ref, err := entity.ParseConversationRef(id)
	if err != nil {
		return
	}
	conv, err := r.get(ref)
	if err != nil {
		return
	}
	for sub := range subs {
		sub.Publish(conv)
	}
}

func cloneGroup(g *entity.Group) *entity.Group {
	c := *g
	c.Members = append([]entity.Member(nil), g.Members...)
	return &c
}
