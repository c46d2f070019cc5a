package quest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

const questObjectPrefix = "quests/"

// StorageProvider reads quest JSON documents from a Cloud Storage bucket, one object per region
// at quests/{region}.json.
type StorageProvider struct {
	client     *storage.Client
	bucketName string
}

// NewStorageProvider creates a Cloud Storage backed provider.
func NewStorageProvider(ctx context.Context, bucketName string) (*StorageProvider, error) {
	if bucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &StorageProvider{client: client, bucketName: bucketName}, nil
}

func objectPath(regionID string) string {
	return questObjectPrefix + regionID + ".json"
}

// Quest downloads and decodes the region's quest.
func (p *StorageProvider) Quest(ctx context.Context, regionID string) (Quest, error) {
	reader, err := p.client.Bucket(p.bucketName).Object(objectPath(regionID)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return Quest{}, fmt.Errorf("%w: %s", ErrQuestNotFound, regionID)
		}
		return Quest{}, fmt.Errorf("failed to open quest object: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return Quest{}, fmt.Errorf("failed to read quest object: %w", err)
	}
	var q Quest
	if err := json.Unmarshal(data, &q); err != nil {
		return Quest{}, fmt.Errorf("decode quest %s: %w", regionID, err)
	}
	if q.Region == "" {
		q.Region = regionID
	}
	return q, nil
}

// Publish uploads a quest document, replacing any existing object for the region.
func (p *StorageProvider) Publish(ctx context.Context, q Quest) error {
	if err := q.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quest: %w", err)
	}
	writer := p.client.Bucket(p.bucketName).Object(objectPath(q.Region)).NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "public, max-age=300"
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to storage: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// Close closes the storage client.
func (p *StorageProvider) Close() error {
	return p.client.Close()
}
