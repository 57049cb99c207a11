package repository

import (
	"context"

	"instapro/internal/domain/entity"
	"instapro/pkg/live"
)

// UserRepository is the read side of the user directory.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByUID(ctx context.Context, uid string) (*entity.User, error)
	// WatchAll streams the full user list; order is not meaningful.
	WatchAll(ctx context.Context) *live.Subscription[[]*entity.User]
}
