package repository

import (
	"context"

	"instapro/internal/domain/entity"
	"instapro/pkg/live"
)

type MessageRepository interface {
	// Append assigns ID and Timestamp and stores the message.
	Append(ctx context.Context, message *entity.Message) error
	GetByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error)
	Remove(ctx context.Context, conversationID, messageID string) error
	// Window returns the newest limit messages, oldest first.
	Window(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error)
	// WatchWindow re-delivers the whole window on every insert or delete.
	WatchWindow(ctx context.Context, conversationID string, limit int) *live.Subscription[[]*entity.Message]
}
