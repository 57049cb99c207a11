package repository

import (
	"context"

	"instapro/internal/domain/entity"
	"instapro/pkg/live"
)

type PresenceRepository interface {
	SetActive(ctx context.Context, username string, active bool) error
	Get(ctx context.Context, username string) (*entity.Presence, error)
	Watch(ctx context.Context, username string) *live.Subscription[entity.Presence]
}
