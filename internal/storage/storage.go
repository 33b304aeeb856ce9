package storage

import (
	"context"
	"errors"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// ErrStorageDisabled is returned when no bucket is configured.
var ErrStorageDisabled = errors.New("object storage is not configured")

// FileStorage defines the interface for object storage operations.
type FileStorage interface {
	// PutObject uploads body under objectKey.
	PutObject(ctx context.Context, objectKey string, contentType string, body []byte) error

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)
}

// disabledStorage is used when archiving is turned off.
type disabledStorage struct{}

// NewDisabledStorage returns a FileStorage whose every call fails with ErrStorageDisabled.
func NewDisabledStorage() FileStorage { return disabledStorage{} }

func (disabledStorage) PutObject(context.Context, string, string, []byte) error {
	return ErrStorageDisabled
}

func (disabledStorage) GeneratePresignedDownloadURL(context.Context, string, time.Duration) (string, error) {
	return "", ErrStorageDisabled
}
