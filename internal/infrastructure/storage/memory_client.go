package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"instapro/internal/domain/service"
)

// MemoryStorage keeps objects in process. It reports progress per chunk the
// same way the GCS writer does.
type MemoryStorage struct {
	mu        sync.Mutex
	baseURL   string
	chunkSize int
	objects   map[string][]byte
}

var _ service.ObjectStorage = (*MemoryStorage)(nil)

func NewMemoryStorage(baseURL string, chunkSize int) *MemoryStorage {
	if chunkSize <= 0 {
		chunkSize = 256 * 1024
	}
	return &MemoryStorage{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		chunkSize: chunkSize,
		objects:   make(map[string][]byte),
	}
}

func (m *MemoryStorage) Upload(ctx context.Context, key, contentType string, r io.Reader, onProgress func(int64)) (string, error) {
	var buf bytes.Buffer
	chunk := make([]byte, m.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := io.ReadFull(r, chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if onProgress != nil {
				onProgress(int64(buf.Len()))
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read upload: %v", err)
		}
	}

	m.mu.Lock()
	m.objects[key] = buf.Bytes()
	m.mu.Unlock()

	return m.baseURL + "/" + key, nil
}

func (m *MemoryStorage) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, m.baseURL+"/")
	if !ok {
		return fmt.Errorf("unknown object url %q", url)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[key]; !exists {
		return fmt.Errorf("object %q not found", key)
	}
	delete(m.objects, key)
	return nil
}

// Object returns a stored object by key.
func (m *MemoryStorage) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}

func (m *MemoryStorage) Close() error { return nil }
