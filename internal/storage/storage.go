// Package storage keeps uploaded files (task attachments, project photos) on local disk or in S3.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"realtycrm/internal/config"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrFileNotFound = errors.New("storage: file not found")
	ErrInvalidKey   = errors.New("storage: invalid key")
)

// Storage defines the interface for file storage operations
type Storage interface {
	// Store saves content under a key derived from prefix and filename and returns the key.
	Store(ctx context.Context, prefix, filename string, content io.Reader, contentType string) (string, error)
	Retrieve(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// GetURL returns a presigned URL (S3) or the path the file route serves (local).
	GetURL(ctx context.Context, key string, expiration time.Duration) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	GetMetadata(ctx context.Context, key string) (FileMetadata, error)
}

type FileMetadata struct {
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag"`
}

// New selects the backend named by the configuration.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "local", "":
		path := cfg.LocalPath
		if path == "" {
			path = "./uploads"
		}
		return NewLocalStorage(path, cfg.LocalBaseURL)
	case "s3":
		return NewS3Storage(ctx, S3Config{Bucket: cfg.S3Bucket, Region: cfg.S3Region, Endpoint: cfg.S3Endpoint})
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// newKey builds prefix/yyyy/mm/uuid_filename.
func newKey(prefix, filename string, now time.Time) string {
	return fmt.Sprintf("%s/%d/%02d/%s_%s",
		strings.Trim(prefix, "/"),
		now.Year(),
		now.Month(),
		uuid.New().String(),
		sanitizeFilename(filename),
	)
}

// sniffLen matches the amount of data mimetype inspects by default.
const sniffLen = 3072

// DetectContentType sniffs the leading bytes of content. The returned reader yields the full
// content including the sniffed bytes.
func DetectContentType(content io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, fmt.Errorf("failed to read content: %w", err)
	}
	head = head[:n]
	return mimetype.Detect(head).String(), io.MultiReader(bytes.NewReader(head), content), nil
}

func sanitizeFilename(filename string) string {
	r := strings.NewReplacer(
		"/", "_", "\\", "_", "..", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	filename = r.Replace(strings.TrimSpace(filename))
	if filename == "" {
		return "file"
	}
	return filename
}
