package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/estensen/contract-activity/internal/config"
)

type MinIOStorage struct {
	Client     *minio.Client
	BucketName string
	logger     *zap.Logger
}

// SetupMinIOStorage initializes MinIO storage from configuration.
func SetupMinIOStorage(ctx context.Context, cfg config.MinIO, logger *zap.Logger) (*MinIOStorage, error) {
	storage, err := NewMinIOStorage(ctx, cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Bucket, cfg.UseSSL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO storage: %w", err)
	}
	logger.Info("Initialized MinIO storage", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return storage, nil
}

// NewMinIOStorage initializes and returns a new MinIOStorage instance,
// creating the bucket when it does not exist yet.
func NewMinIOStorage(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool, logger *zap.Logger) (*MinIOStorage, error) {
	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, errBucketExists := minioClient.BucketExists(ctx, bucketName)
	if errBucketExists != nil {
		return nil, fmt.Errorf("error checking bucket existence: %w", errBucketExists)
	}
	if !exists {
		err = minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("Bucket created", zap.String("bucket", bucketName))
	} else {
		logger.Debug("Bucket already exists", zap.String("bucket", bucketName))
	}

	return &MinIOStorage{
		Client:     minioClient,
		BucketName: bucketName,
		logger:     logger,
	}, nil
}

// UploadFile uploads a file to the configured MinIO bucket.
func (m *MinIOStorage) UploadFile(ctx context.Context, objectName, contentType string, data io.Reader) error {
	_, err := m.Client.PutObject(ctx, m.BucketName, objectName, data, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file '%s' to MinIO: %w", objectName, err)
	}
	m.logger.Info("File uploaded", zap.String("object", objectName), zap.String("bucket", m.BucketName))
	return nil
}
