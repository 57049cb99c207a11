package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"instapro/internal/domain/service"
	"instapro/pkg/logger"
)

const publicHost = "https://storage.googleapis.com/"

type CloudStorageClient struct {
	client     *storage.Client
	bucketName string
	chunkSize  int
}

var _ service.ObjectStorage = (*CloudStorageClient)(nil)

func NewCloudStorageClient(ctx context.Context, bucketName string, chunkSize int, opts ...option.ClientOption) (*CloudStorageClient, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	storageClient := &CloudStorageClient{
		client:     client,
		bucketName: bucketName,
		chunkSize:  chunkSize,
	}

	if err := storageClient.setBucketCORS(ctx); err != nil {
		logger.Warn("Failed to set CORS configuration: %v", err)
	}

	return storageClient, nil
}

func (c *CloudStorageClient) setBucketCORS(ctx context.Context) error {
	bucket := c.client.Bucket(c.bucketName)

	corsConfig := storage.CORS{
		MaxAge:          3600,
		Methods:         []string{"GET", "OPTIONS"},
		Origins:         []string{"*"},
		ResponseHeaders: []string{"Content-Type", "x-goog-resumable"},
	}

	bucketAttrs, err := bucket.Attrs(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bucket attributes: %v", err)
	}

	if len(bucketAttrs.CORS) == 0 {
		_, err := bucket.Update(ctx, storage.BucketAttrsToUpdate{
			CORS: []storage.CORS{corsConfig},
		})
		if err != nil {
			return fmt.Errorf("failed to update bucket CORS: %v", err)
		}
	}

	return nil
}

// Upload streams r with a resumable, chunked write. onProgress receives the
// bytes acknowledged so far after each chunk.
func (c *CloudStorageClient) Upload(ctx context.Context, key, contentType string, r io.Reader, onProgress func(int64)) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	obj := c.client.Bucket(c.bucketName).Object(key)
	wc := obj.NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=86400"
	wc.ChunkSize = c.chunkSize
	if onProgress != nil {
		wc.ProgressFunc = onProgress
	}

	if _, err := io.Copy(wc, r); err != nil {
		// cancelling ctx aborts the resumable session
		cancel()
		return "", fmt.Errorf("failed to copy file to GCS: %v", err)
	}

	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %v", err)
	}

	return publicHost + c.bucketName + "/" + key, nil
}

func (c *CloudStorageClient) Delete(ctx context.Context, fileURL string) error {
	path, ok := strings.CutPrefix(fileURL, publicHost)
	if !ok {
		return fmt.Errorf("invalid GCS URL format")
	}

	bucket, objectName, ok := strings.Cut(path, "/")
	if !ok || bucket != c.bucketName {
		return fmt.Errorf("invalid GCS URL format or bucket mismatch")
	}

	if err := c.client.Bucket(c.bucketName).Object(objectName).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete file: %v", err)
	}

	return nil
}

func (c *CloudStorageClient) Close() error {
	return c.client.Close()
}
