package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"instapro/internal/domain/entity"
	"instapro/internal/domain/repository"
)

type MemoryFileMetadataRepository struct {
	mu    sync.Mutex
	files map[string]*entity.FileMetadata
}

var _ repository.FileMetadataRepository = (*MemoryFileMetadataRepository)(nil)

func NewMemoryFileMetadataRepository() *MemoryFileMetadataRepository {
	return &MemoryFileMetadataRepository{files: make(map[string]*entity.FileMetadata)}
}

func (r *MemoryFileMetadataRepository) Create(ctx context.Context, metadata *entity.FileMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if metadata.ID == "" {
		metadata.ID = uuid.New().String()
	}
	stored := *metadata
	r.files[metadata.ID] = &stored
	return nil
}

func (r *MemoryFileMetadataRepository) ListByUploader(ctx context.Context, username string, limit int) ([]*entity.FileMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entity.FileMetadata
	for _, f := range r.files {
		if f.UploadedBy == username {
			c := *f
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
