package usecase

import (
	"context"

	"instapro/internal/domain/entity"
	"instapro/internal/domain/repository"
	"instapro/pkg/errors"
	"instapro/pkg/live"
)

// DirectoryUseCase is the read-only view of user records.
type DirectoryUseCase struct {
	userRepo repository.UserRepository
}

func NewDirectoryUseCase(userRepo repository.UserRepository) *DirectoryUseCase {
	return &DirectoryUseCase{
		userRepo: userRepo,
	}
}

func (uc *DirectoryUseCase) LookupByUsername(ctx context.Context, username string) (*entity.User, error) {
	if !entity.ValidUsername(username) {
		return nil, errors.BadRequest("Invalid username", nil)
	}
	return uc.userRepo.GetByUsername(ctx, username)
}

// Identity maps an authenticated uid to the caller's chat identity.
func (uc *DirectoryUseCase) Identity(ctx context.Context, uid string) (entity.Identity, error) {
	user, err := uc.userRepo.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return entity.Identity{}, errors.Unauthorized("No profile for this account", err)
		}
		return entity.Identity{}, err
	}
	return entity.Identity{UID: user.UID, Username: user.Username}, nil
}

func (uc *DirectoryUseCase) AllUsers(ctx context.Context) *live.Subscription[[]*entity.User] {
	return uc.userRepo.WatchAll(ctx)
}
