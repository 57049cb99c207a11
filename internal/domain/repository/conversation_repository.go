package repository

import (
	"context"

	"instapro/internal/domain/entity"
	"instapro/pkg/live"
)

// GroupMutation edits a group inside a read-modify-write transaction. An
// error aborts the write.
type GroupMutation func(group *entity.Group) error

type ConversationRepository interface {
	// Get returns the stored conversation. A direct chat that was never
	// written resolves to its implied, empty DirectChat.
	Get(ctx context.Context, ref entity.ConversationRef) (entity.Conversation, error)
	Watch(ctx context.Context, ref entity.ConversationRef) *live.Subscription[entity.Conversation]
	ListByMember(ctx context.Context, username string, limit int) ([]entity.Conversation, error)

	CreateGroup(ctx context.Context, group *entity.Group) error
	UpdateGroup(ctx context.Context, groupID string, mutate GroupMutation) (*entity.Group, error)
	UpdateMetadata(ctx context.Context, groupID string, patch entity.MetadataPatch) error
	// Touch sets lastActivity, creating a direct chat record if needed.
	Touch(ctx context.Context, ref entity.ConversationRef) error
}
