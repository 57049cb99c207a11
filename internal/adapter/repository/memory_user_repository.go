package repository

import (
	"context"
	"sync"
	"time"

	"instapro/internal/domain/entity"
	"instapro/internal/domain/repository"
	"instapro/pkg/errors"
	"instapro/pkg/live"
)

const allUsersKey = "*"

// MemoryUserRepository backs both the directory and presence in memory.
// Presence lives on the user record, as it does on the profile document.
type MemoryUserRepository struct {
	mu        sync.Mutex
	now       func() time.Time
	users     map[string]*entity.User
	byUID     map[string]string
	lists     watchSet[[]*entity.User]
	presences watchSet[entity.Presence]
}

var (
	_ repository.UserRepository     = (*MemoryUserRepository)(nil)
	_ repository.PresenceRepository = (*MemoryUserRepository)(nil)
)

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		now:       time.Now,
		users:     make(map[string]*entity.User),
		byUID:     make(map[string]string),
		lists:     make(watchSet[[]*entity.User]),
		presences: make(watchSet[entity.Presence]),
	}
}

// Put inserts or replaces a profile. Profiles are owned outside the chat
// engine; Put exists for seeding and tests.
func (r *MemoryUserRepository) Put(user *entity.User) error {
	if !entity.ValidUsername(user.Username) {
		return errors.BadRequest("Invalid username", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *user
	if old, ok := r.users[user.Username]; ok && old.UID != user.UID {
		delete(r.byUID, old.UID)
	}
	r.users[user.Username] = &stored
	if user.UID != "" {
		r.byUID[user.UID] = user.Username
	}
	r.notifyList()
	r.notifyPresence(user.Username)
	return nil
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[username]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	u := *user
	return &u, nil
}

func (r *MemoryUserRepository) GetByUID(ctx context.Context, uid string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.byUID[uid]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	u := *r.users[username]
	return &u, nil
}

func (r *MemoryUserRepository) WatchAll(ctx context.Context) *live.Subscription[[]*entity.User] {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sub *live.Subscription[[]*entity.User]
	sub = live.New[[]*entity.User](func() {
		r.mu.Lock()
		r.lists.remove(allUsersKey, sub)
		r.mu.Unlock()
	})
	r.lists.add(allUsersKey, sub, 0)
	sub.Publish(r.snapshot())
	closeWithContext(ctx, sub)
	return sub
}

func (r *MemoryUserRepository) SetActive(ctx context.Context, username string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[username]
	if !ok {
		return errors.NotFound("User", nil)
	}
	user.Active = active
	user.LastSeen = r.now()
	r.notifyList()
	r.notifyPresence(username)
	return nil
}

func (r *MemoryUserRepository) Get(ctx context.Context, username string) (*entity.Presence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[username]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	p := presenceOf(user)
	return &p, nil
}

func (r *MemoryUserRepository) Watch(ctx context.Context, username string) *live.Subscription[entity.Presence] {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[username]
	if !ok {
		failed := live.New[entity.Presence](nil)
		failed.Fail(errors.NotFound("User", nil))
		return failed
	}

	var sub *live.Subscription[entity.Presence]
	sub = live.New[entity.Presence](func() {
		r.mu.Lock()
		r.presences.remove(username, sub)
		r.mu.Unlock()
	})
	r.presences.add(username, sub, 0)
	sub.Publish(presenceOf(user))
	closeWithContext(ctx, sub)
	return sub
}

func (r *MemoryUserRepository) snapshot() []*entity.User {
	out := make([]*entity.User, 0, len(r.users))
	for _, u := range r.users {
		c := *u
		out = append(out, &c)
	}
	return out
}

func (r *MemoryUserRepository) notifyList() {
	subs := r.lists[allUsersKey]
	if len(subs) == 0 {
		return
	}
	users := r.snapshot()
	for sub := range subs {
		sub.Publish(users)
	}
}

func (r *MemoryUserRepository) notifyPresence(username string) {
	user, ok := r.users[username]
	if !ok {
		return
	}
	for sub := range r.presences[username] {
		sub.Publish(presenceOf(user))
	}
}

func presenceOf(user *entity.User) entity.Presence {
	return entity.Presence{Username: user.Username, Active: user.Active, LastSeen: user.LastSeen}
}
