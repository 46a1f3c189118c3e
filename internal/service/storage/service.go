package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"eduadvise-backend/internal/domain"
	"eduadvise-backend/pkg/constants"
	"eduadvise-backend/pkg/errors"
	"eduadvise-backend/pkg/logger"
	"eduadvise-backend/pkg/sanitize"
)

// downloadURLTTL bounds how long a handed-out object link stays valid.
const downloadURLTTL = time.Hour

// ObjectStore is the object-storage surface the service needs. MinIO
// implements it in production; tests swap in a fake.
type ObjectStore interface {
	Put(ctx context.Context, objectName, contentType string, reader io.Reader, size int64) error
	PresignedGet(ctx context.Context, objectName string, expiry time.Duration) (*url.URL, error)
	Remove(ctx context.Context, objectName string) error
}

// FileRepository persists file metadata rows.
type FileRepository interface {
	Create(ctx context.Context, file *domain.UploadedFile) error
	GetByID(ctx context.Context, fileID uuid.UUID) (*domain.UploadedFile, error)
	Delete(ctx context.Context, fileID uuid.UUID) error
}

// MinioStore adapts a MinIO client and bucket to the ObjectStore interface.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// MinioConfig holds MinIO connection settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinioStore connects to MinIO and ensures the bucket exists.
func NewMinioStore(ctx context.Context, cfg *MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("created storage bucket", zap.String("bucket", cfg.Bucket))
	}

	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func (m *MinioStore) Put(ctx context.Context, objectName, contentType string, reader io.Reader, size int64) error {
	_, err := m.client.PutObject(ctx, m.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (m *MinioStore) PresignedGet(ctx context.Context, objectName string, expiry time.Duration) (*url.URL, error) {
	return m.client.PresignedGetObject(ctx, m.bucket, objectName, expiry, nil)
}

func (m *MinioStore) Remove(ctx context.Context, objectName string) error {
	return m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{})
}

// Service stores chat attachments: bytes in object storage, metadata in
// CockroachDB. Files shared in a conversation are fetched by id by
// either side, so reads are open to any authenticated user while
// deletion stays with the uploader.
type Service struct {
	store ObjectStore
	files FileRepository
}

// NewService creates a new storage service
func NewService(store ObjectStore, files FileRepository) *Service {
	return &Service{store: store, files: files}
}

// Upload stores one attachment and returns its metadata with a
// time-limited download URL.
func (s *Service) Upload(ctx context.Context, userID uuid.UUID, fileName, contentType string, size int64, reader io.Reader) (*domain.UploadedFile, error) {
	name := sanitize.FileName(fileName)
	if name == "" {
		return nil, errors.InvalidInputError("file name is required")
	}
	if size <= 0 {
		return nil, errors.InvalidInputError("file is empty")
	}
	if size > constants.MaxUploadSize {
		return nil, errors.ValidationError(fmt.Sprintf("file exceeds the %d MB limit", constants.MaxUploadSize>>20))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	fileID := uuid.New()
	stored := storedName(userID, fileID, name)

	if err := s.store.Put(ctx, stored, contentType, reader, size); err != nil {
		return nil, errors.StorageError(err)
	}

	file := &domain.UploadedFile{
		FileID:       fileID,
		OriginalName: name,
		StoredName:   stored,
		Size:         size,
		ContentType:  contentType,
		UploadedBy:   userID,
	}
	if err := s.files.Create(ctx, file); err != nil {
		// metadata write failed; the object would be orphaned otherwise
		if rmErr := s.store.Remove(ctx, stored); rmErr != nil {
			logger.Warn("orphaned object cleanup failed",
				zap.String("object", stored),
				zap.Error(rmErr))
		}
		return nil, err
	}

	downloadURL, err := s.store.PresignedGet(ctx, stored, downloadURLTTL)
	if err != nil {
		return nil, errors.StorageError(err)
	}
	file.URL = downloadURL.String()

	logger.Info("file uploaded",
		zap.String("file_id", fileID.String()),
		zap.String("uploaded_by", userID.String()),
		zap.Int64("size", size))
	return file, nil
}

// Get returns file metadata with a fresh download URL.
func (s *Service) Get(ctx context.Context, fileID uuid.UUID) (*domain.UploadedFile, error) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	downloadURL, err := s.store.PresignedGet(ctx, file.StoredName, downloadURLTTL)
	if err != nil {
		return nil, errors.StorageError(err)
	}
	file.URL = downloadURL.String()
	return file, nil
}

// Delete removes the object and its metadata. Only the uploader may delete.
func (s *Service) Delete(ctx context.Context, requesterID, fileID uuid.UUID) error {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if file.UploadedBy != requesterID {
		return errors.ForbiddenError("Only the uploader can delete this file")
	}
	if err := s.store.Remove(ctx, file.StoredName); err != nil {
		return errors.StorageError(err)
	}
	return s.files.Delete(ctx, fileID)
}

// storedName namespaces objects per uploader and keeps the original
// extension so content sniffing on download still works.
func storedName(userID, fileID uuid.UUID, original string) string {
	return fmt.Sprintf("uploads/%s/%s%s", userID, fileID, filepath.Ext(original))
}
