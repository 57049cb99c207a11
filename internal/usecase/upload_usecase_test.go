package usecase

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instapro/internal/domain/entity"
	"instapro/pkg/errors"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func fileOf(name, contentType string, data []byte) entity.FileInput {
	return entity.FileInput{Name: name, ContentType: contentType, Size: int64(len(data)), Reader: bytes.NewReader(data)}
}

func drain(job *UploadJob) []entity.UploadProgress {
	var events []entity.UploadProgress
	for e := range job.Progress() {
		events = append(events, e)
	}
	return events
}

func TestUploadUseCase_TooLargePostImageNeverTransfers(t *testing.T) {
	f := newFixture(t)
	file := fileOf("big.jpg", "image/jpeg", make([]byte, 4*1024*1024))

	job, err := f.uploads.Start(context.Background(), "alice", file, entity.SurfacePost)
	assert.Nil(t, job)
	assert.True(t, errors.Is(err, errors.CodeTooLarge))
	assert.Equal(t, 0, f.storage.uploads())

	// the same file is fine as a profile picture
	file = fileOf("big.jpg", "image/jpeg", make([]byte, 4*1024*1024))
	result, err := f.uploads.Upload(context.Background(), "alice", file, entity.SurfaceProfile)
	require.NoError(t, err)
	assert.Equal(t, entity.UploadSucceeded, result.Status)
}

func TestUploadUseCase_SurfaceCeilings(t *testing.T) {
	f := newFixture(t)
	mb := 1024 * 1024

	tests := []struct {
		name        string
		contentType string
		size        int
		surface     entity.UploadSurface
		code        string
	}{
		{"chat image over 3mb", "image/png", 3*mb + 1, entity.SurfaceChat, errors.CodeTooLarge},
		{"chat video over 50mb", "video/mp4", 50*mb + 1, entity.SurfaceChat, errors.CodeTooLarge},
		{"post video over 20mb", "video/mp4", 20*mb + 1, entity.SurfacePost, errors.CodeTooLarge},
		{"profile video", "video/mp4", 10, entity.SurfaceProfile, errors.CodeBadRequest},
		{"post audio", "audio/webm", 10, entity.SurfacePost, errors.CodeBadRequest},
		{"pdf", "application/pdf", 10, entity.SurfaceChat, errors.CodeBadRequest},
		{"empty file", "image/png", 0, entity.SurfaceChat, errors.CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := entity.FileInput{Name: tt.name, ContentType: tt.contentType, Size: int64(tt.size), Reader: bytes.NewReader(nil)}
			_, _, _, err := f.uploads.Classify(file, tt.surface)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
	assert.Equal(t, 0, f.storage.uploads())
}

func TestUploadUseCase_LargeAudioIsUnlimitedInChat(t *testing.T) {
	f := newFixture(t)
	file := entity.FileInput{Name: "memo.webm", ContentType: "audio/webm;codecs=opus", Size: 60 * 1024 * 1024}

	_, _, _, err := f.uploads.Classify(file, entity.SurfaceChat)
	// no reader: rejected as empty before the size check
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	file.Reader = bytes.NewReader(nil)
	kind, mimeType, _, err := f.uploads.Classify(file, entity.SurfaceChat)
	require.NoError(t, err)
	assert.Equal(t, entity.MediaAudio, kind)
	assert.Equal(t, "audio/webm", mimeType)
}

func TestUploadUseCase_ProgressEndsWithOneTerminalEvent(t *testing.T) {
	f := newFixture(t)
	data := append(append([]byte{}, pngHeader...), make([]byte, 10*1024)...)

	job, err := f.uploads.Start(context.Background(), "alice", fileOf("pic", "", data), entity.SurfaceChat)
	require.NoError(t, err)
	assert.Equal(t, entity.MediaImage, job.Kind)
	assert.Equal(t, "image/png", job.MimeType)

	events := drain(job)
	require.NotEmpty(t, events)

	terminal := 0
	for _, e := range events {
		if e.Status.Terminal() {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal)

	last := events[len(events)-1]
	assert.Equal(t, entity.UploadSucceeded, last.Status)
	assert.Equal(t, 100, last.Percent)
	assert.Contains(t, last.URL, "mem://bucket/chats/image/alice-")

	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Percent, events[i-1].Percent)
	}

	result, err := job.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, last, result)

	records, err := f.uploads.ListUploads(context.Background(), "alice", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, last.URL, records[0].URL)
	assert.Equal(t, entity.SurfaceChat, records[0].Surface)
	assert.Equal(t, int64(len(data)), records[0].FileSize)
}

func TestUploadUseCase_TransferFailure(t *testing.T) {
	f := newFixture(t)
	f.storage.failErr = fmt.Errorf("connection reset")

	job, err := f.uploads.Start(context.Background(), "alice", fileOf("a.png", "image/png", pngHeader), entity.SurfaceChat)
	require.NoError(t, err)

	events := drain(job)
	last := events[len(events)-1]
	assert.Equal(t, entity.UploadFailed, last.Status)
	assert.True(t, errors.Is(last.Err, errors.CodeTransferFailed))
	assert.Empty(t, last.URL)

	records, err := f.uploads.ListUploads(context.Background(), "alice", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUploadUseCase_Cancel(t *testing.T) {
	f := newFixture(t)
	f.storage.gate = make(chan struct{})

	job, err := f.uploads.Start(context.Background(), "alice", fileOf("a.png", "image/png", pngHeader), entity.SurfaceChat)
	require.NoError(t, err)
	job.Cancel()

	result, err := job.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entity.UploadFailed, result.Status)
	assert.True(t, errors.Is(result.Err, errors.CodeTransferFailed))
}
