package usecase

import (
	"bytes"
	"context"
	"io"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"instapro/internal/domain/entity"
	"instapro/internal/domain/repository"
	"instapro/internal/domain/service"
	"instapro/internal/infrastructure/metrics"
	"instapro/pkg/errors"
	"instapro/pkg/live"
	"instapro/pkg/logger"
)

// sniffLen is how much of a file is read to detect its type.
const sniffLen = 3072

type UploadUseCase struct {
	storage  service.ObjectStorage
	fileRepo repository.FileMetadataRepository
	now      func() time.Time
}

func NewUploadUseCase(storage service.ObjectStorage, fileRepo repository.FileMetadataRepository) *UploadUseCase {
	return &UploadUseCase{
		storage:  storage,
		fileRepo: fileRepo,
		now:      time.Now,
	}
}

// UploadJob is one in-flight transfer. Progress delivers intermediate events
// latest-value-wins and always ends with exactly one terminal event.
type UploadJob struct {
	Kind     entity.MediaKind
	MimeType string

	progress *live.Subscription[entity.UploadProgress]
	cancel   context.CancelFunc
	done     chan struct{}

	mu     sync.Mutex
	result entity.UploadProgress
}

func (j *UploadJob) Progress() <-chan entity.UploadProgress {
	return j.progress.Updates()
}

// Cancel aborts the transfer. The job still ends with a failed event.
func (j *UploadJob) Cancel() {
	j.cancel()
}

// Wait blocks until the job is terminal and returns the terminal event.
func (j *UploadJob) Wait(ctx context.Context) (entity.UploadProgress, error) {
	select {
	case <-j.done:
		j.mu.Lock()
		defer j.mu.Unlock()
		return j.result, nil
	case <-ctx.Done():
		return entity.UploadProgress{}, ctx.Err()
	}
}

// Classify decides the media kind of file and checks it against the
// surface's ceilings. It never touches storage. The returned reader must be
// used in place of file.Reader since sniffing consumes bytes.
func (uc *UploadUseCase) Classify(file entity.FileInput, surface entity.UploadSurface) (entity.MediaKind, string, io.Reader, error) {
	if !surface.Valid() {
		return "", "", nil, errors.BadRequest("Unknown upload surface", nil)
	}
	if file.Reader == nil || file.Size <= 0 {
		return "", "", nil, errors.BadRequest("File is empty", nil)
	}

	reader := file.Reader
	mimeType := baseMimeType(file.ContentType)
	if kindOf(mimeType) == "" {
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(file.Reader, head)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return "", "", nil, errors.BadRequest("Failed to read file", err)
		}
		head = head[:n]
		mimeType = baseMimeType(mimetype.Detect(head).String())
		reader = io.MultiReader(bytes.NewReader(head), file.Reader)
	}

	kind := kindOf(mimeType)
	if kind == "" {
		return "", "", nil, errors.BadRequest("Unsupported file type "+mimeType, nil)
	}
	limit, ok := surface.Limit(kind)
	if !ok {
		return "", "", nil, errors.BadRequest("This surface does not accept "+string(kind)+" files", nil)
	}
	if limit != entity.Unlimited && file.Size > limit {
		return "", "", nil, errors.TooLarge(string(kind), limit)
	}
	return kind, mimeType, reader, nil
}

// Start validates file and, only if it passes, begins the transfer in the
// background. Validation errors are returned directly and create no job.
func (uc *UploadUseCase) Start(ctx context.Context, uploader string, file entity.FileInput, surface entity.UploadSurface) (*UploadJob, error) {
	kind, mimeType, reader, err := uc.Classify(file, surface)
	if err != nil {
		logger.Warn("Upload Error: uploader=%s, file=%s: %v", uploader, file.Name, err)
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	job := &UploadJob{
		Kind:     kind,
		MimeType: mimeType,
		progress: live.New[entity.UploadProgress](nil),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	job.progress.Publish(entity.UploadProgress{Kind: kind, Status: entity.UploadPending})

	key := string(surface) + "/" + string(kind) + "/" + uploader + "-" + uuid.New().String()
	go uc.run(ctx, job, key, uploader, file, surface, io.LimitReader(reader, file.Size))
	return job, nil
}

func (uc *UploadUseCase) run(ctx context.Context, job *UploadJob, key, uploader string, file entity.FileInput, surface entity.UploadSurface, r io.Reader) {
	defer job.cancel()

	lastPercent := -1
	onProgress := func(written int64) {
		percent := int(written * 100 / file.Size)
		if percent > 100 {
			percent = 100
		}
		// 100 is reserved for the terminal event
		if percent == 100 || percent == lastPercent {
			return
		}
		lastPercent = percent
		job.progress.Publish(entity.UploadProgress{Kind: job.Kind, Percent: percent, Status: entity.UploadUploading})
	}
	onProgress(0)

	url, err := uc.storage.Upload(ctx, key, job.MimeType, r, onProgress)
	if err == nil && ctx.Err() != nil {
		// cancelled after the bytes landed; drop the object
		if delErr := uc.storage.Delete(context.Background(), url); delErr != nil {
			logger.Warn("Upload: failed to discard cancelled object %s: %v", key, delErr)
		}
		err = ctx.Err()
	}

	var terminal entity.UploadProgress
	if err != nil {
		logger.Error("Upload Error: key=%s: %v", key, err)
		terminal = entity.UploadProgress{
			Kind:    job.Kind,
			Percent: max(lastPercent, 0),
			Status:  entity.UploadFailed,
			Err:     errors.TransferFailed("Upload failed", err),
		}
	} else {
		terminal = entity.UploadProgress{
			Kind:     job.Kind,
			Percent:  100,
			Status:   entity.UploadSucceeded,
			URL:      url,
			MimeType: job.MimeType,
		}
		metrics.UploadBytes.Add(float64(file.Size))
		uc.record(key, url, uploader, file, surface, job)
	}
	metrics.UploadsTotal.WithLabelValues(string(surface), string(terminal.Status)).Inc()

	job.mu.Lock()
	job.result = terminal
	job.mu.Unlock()

	job.progress.Publish(terminal)
	job.progress.Close()
	close(job.done)
}

// record writes upload metadata. A failure here does not fail the upload.
func (uc *UploadUseCase) record(key, url, uploader string, file entity.FileInput, surface entity.UploadSurface, job *UploadJob) {
	if uc.fileRepo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := uc.fileRepo.Create(ctx, &entity.FileMetadata{
		URL:        url,
		ObjectName: key,
		Surface:    surface,
		Kind:       job.Kind,
		UploadedBy: uploader,
		Filename:   file.Name,
		FileType:   job.MimeType,
		FileSize:   file.Size,
		CreatedAt:  uc.now(),
	})
	if err != nil {
		logger.Warn("Upload: failed to record metadata for %s: %v", key, err)
	}
}

// ListUploads returns the caller's stored files, newest first. Chat media
// that never made it into a message shows up here too.
func (uc *UploadUseCase) ListUploads(ctx context.Context, uploader string, limit int) ([]*entity.FileMetadata, error) {
	if uc.fileRepo == nil {
		return []*entity.FileMetadata{}, nil
	}
	records, err := uc.fileRepo.ListByUploader(ctx, uploader, limit)
	if err != nil {
		logger.Error("ListUploads Error: uploader=%s: %v", uploader, err)
		return nil, err
	}
	if records == nil {
		records = []*entity.FileMetadata{}
	}
	return records, nil
}

// Upload runs a job to completion, for callers that have no progress UI.
func (uc *UploadUseCase) Upload(ctx context.Context, uploader string, file entity.FileInput, surface entity.UploadSurface) (entity.UploadProgress, error) {
	job, err := uc.Start(ctx, uploader, file, surface)
	if err != nil {
		return entity.UploadProgress{}, err
	}
	result, err := job.Wait(ctx)
	if err != nil {
		job.Cancel()
		return entity.UploadProgress{}, err
	}
	if result.Status == entity.UploadFailed {
		return result, result.Err
	}
	return result, nil
}

func baseMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

func kindOf(mimeType string) entity.MediaKind {
	major, _, _ := strings.Cut(mimeType, "/")
	kind := entity.MediaKind(major)
	if kind.Valid() {
		return kind
	}
	return ""
}
