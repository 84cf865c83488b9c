package supabase

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	storage "github.com/supabase-community/storage-go"
	"virtual-tryon-backend/internal/models"
	objstore "virtual-tryon-backend/internal/storage"
)

// StorageClient keeps images in a Supabase Storage bucket under
// {category}/{filename}.
type StorageClient struct {
	client *storage.Client
	bucket string
}

func NewStorageClient(c *Client, bucket string) *StorageClient {
	return newStorageClient(c.Supabase.Storage, bucket)
}

func newStorageClient(client *storage.Client, bucket string) *StorageClient {
	return &StorageClient{client: client, bucket: bucket}
}

func (s *StorageClient) Fetch(ctx context.Context, category models.Category, filename string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := objstore.ObjectKey(category, filename)
	if err != nil {
		return nil, err
	}

	data, err := s.client.DownloadFile(s.bucket, key)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", objstore.ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	return data, nil
}

func (s *StorageClient) Store(ctx context.Context, category models.Category, filename string, data []byte, mimeType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := objstore.ObjectKey(category, filename)
	if err != nil {
		return err
	}

	upsert := false
	_, err = s.client.UploadFile(s.bucket, key, bytes.NewReader(data), storage.FileOptions{
		ContentType: &mimeType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

func (s *StorageClient) Delete(ctx context.Context, category models.Category, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := objstore.ObjectKey(category, filename)
	if err != nil {
		return err
	}
	if _, err := s.client.RemoveFile(s.bucket, []string{key}); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Storage API errors are plain messages; a missing object reports
// "Object not found" with a 404 status code in the body.
func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "404")
}
