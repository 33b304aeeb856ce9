package storage

import (
	"alcyxob/meal-planner/internal/config"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewS3StorageWithoutBucketIsDisabled(t *testing.T) {
	fs, err := NewS3Storage(context.Background(), config.S3Config{})
	if err != nil {
		t.Fatalf("NewS3Storage: %v", err)
	}
	if err := fs.PutObject(context.Background(), "k", "application/json", []byte("{}")); !errors.Is(err, ErrStorageDisabled) {
		t.Errorf("expected ErrStorageDisabled, got %v", err)
	}
}

func TestPresignedDownloadURL(t *testing.T) {
	fs, err := NewS3Storage(context.Background(), config.S3Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		BucketName:      "transcripts",
	})
	if err != nil {
		t.Fatalf("NewS3Storage: %v", err)
	}

	url, err := fs.GeneratePresignedDownloadURL(context.Background(), "generation-transcripts/abc.json", 0)
	if err != nil {
		t.Fatalf("GeneratePresignedDownloadURL: %v", err)
	}
	if !strings.HasPrefix(url, "http://localhost:9000/transcripts/generation-transcripts/abc.json?") {
		t.Errorf("unexpected url %s", url)
	}
	if !strings.Contains(url, "X-Amz-Expires=900") {
		t.Errorf("expected the default 15 minute expiry in %s", url)
	}
}
