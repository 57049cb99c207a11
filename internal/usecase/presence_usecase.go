package usecase

import (
	"context"

	"instapro/internal/domain/entity"
	"instapro/internal/domain/repository"
	"instapro/pkg/errors"
	"instapro/pkg/live"
	"instapro/pkg/logger"
)

// PresenceUseCase is last-write-wins. There is no liveness timeout: a flag
// left by an abrupt disconnect stays until it is cleared.
type PresenceUseCase struct {
	presenceRepo repository.PresenceRepository
}

func NewPresenceUseCase(presenceRepo repository.PresenceRepository) *PresenceUseCase {
	return &PresenceUseCase{
		presenceRepo: presenceRepo,
	}
}

func (uc *PresenceUseCase) SetActive(ctx context.Context, username string, active bool) error {
	if err := uc.presenceRepo.SetActive(ctx, username, active); err != nil {
		logger.Error("SetActive Error: username=%s, active=%t: %v", username, active, err)
		return err
	}
	return nil
}

func (uc *PresenceUseCase) Get(ctx context.Context, username string) (*entity.Presence, error) {
	if !entity.ValidUsername(username) {
		return nil, errors.BadRequest("Invalid username", nil)
	}
	return uc.presenceRepo.Get(ctx, username)
}

func (uc *PresenceUseCase) Observe(ctx context.Context, username string) *live.Subscription[entity.Presence] {
	return uc.presenceRepo.Watch(ctx, username)
}
