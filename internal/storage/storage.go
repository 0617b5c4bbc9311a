package storage

import (
	"context"
	"io"
)

// Storage is an interface for uploading export artifacts.
type Storage interface {
	UploadFile(ctx context.Context, objectName, contentType string, reader io.Reader) error
}
