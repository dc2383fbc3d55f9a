package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"lumen/lumen/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOClient stores attachment blobs referenced by message file parts.
// Objects are keyed "attachments/<chat-id>/<name>" so everything a chat
// owns can be removed by prefix.
type MinIOClient struct {
	client *minio.Client
	bucket string
}

func NewMinIOClient(cfg config.Config) (*MinIOClient, error) {
	// Use insecure for local (no HTTPS)
	bucket := cfg.MinIOBucket
	client, err := minio.New(
		cfg.MinIOEndpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: false,
		},
	)
	if err != nil {
		return nil, err
	}
	exists, err := client.BucketExists(context.Background(), bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(context.Background(), bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}
	return &MinIOClient{client: client, bucket: bucket}, nil
}

func chatPrefix(chatID uuid.UUID) string {
	return filepath.Join("attachments", chatID.String())
}

func (m *MinIOClient) UploadAttachment(ctx context.Context, chatID uuid.UUID, name, contentType string, data []byte) (string, error) {
	key := filepath.Join(chatPrefix(chatID), name)
	_, err := m.client.PutObject(ctx, m.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}
	return key, nil
}

// RemoveChatObjects deletes every blob under the chat's prefix. Callers
// treat failures as best-effort; the chat row is the record of truth.
func (m *MinIOClient) RemoveChatObjects(ctx context.Context, chatID uuid.UUID) error {
	objects := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    chatPrefix(chatID) + "/",
		Recursive: true,
	})
	var firstErr error
	for obj := range objects {
		if obj.Err != nil {
			if firstErr == nil {
				firstErr = obj.Err
			}
			continue
		}
		if err := m.client.RemoveObject(ctx, m.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return fmt.Errorf("remove chat objects: %w", firstErr)
	}
	return nil
}
