package repository

import (
	"context"

	"instapro/internal/domain/entity"
)

type FileMetadataRepository interface {
	Create(ctx context.Context, metadata *entity.FileMetadata) error
	// ListByUploader returns the newest records first.
	ListByUploader(ctx context.Context, username string, limit int) ([]*entity.FileMetadata, error)
}
