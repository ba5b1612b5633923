package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/letterstack/ms-go-account/app/entity"
	"github.com/letterstack/ms-go-account/config"
)

var (
	ErrInvalidUpload = errors.New("invalid upload")
	ErrStorageFailed = errors.New("object storage operation failed")
	ErrCVNotFound    = errors.New("cv not found")
)

// pdfMagic is the header every PDF starts with.
const pdfMagic = "%PDF-"

// ObjectStore abstracts the S3 bucket holding uploaded files. Get returns
// (nil, nil) when the key does not exist.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType, tagging string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type userFinder interface {
	FindByID(ctx context.Context, id uint64) (*entity.User, error)
}

type cvRepository interface {
	Create(ctx context.Context, cv *entity.UserCV) error
	ListByUser(ctx context.Context, userID uint64) ([]entity.UserCV, error)
	FindByID(ctx context.Context, userID uint64, id string) (*entity.UserCV, error)
	Delete(ctx context.Context, userID uint64, id string) (bool, error)
}

// Upload carries one multipart file as received from the client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

type CVService interface {
	Upload(ctx context.Context, userID uint64, upload *Upload) (*entity.UserCV, error)
	List(ctx context.Context, userID uint64) ([]entity.UserCV, error)
	Delete(ctx context.Context, userID uint64, cvID string) error
}

type cvService struct {
	users  userFinder
	cvRepo cvRepository
	store  ObjectStore
	cfg    *config.Config
}

func NewCVService(users userFinder, cvRepo cvRepository, store ObjectStore, cfg *config.Config) CVService {
	return &cvService{users: users, cvRepo: cvRepo, store: store, cfg: cfg}
}

// Upload validates the file, writes it to object storage under a fresh UUID
// key and records the metadata row. The original filename travels as an
// object tag so the bucket stays queryable without the database.
func (s *cvService) Upload(ctx context.Context, userID uint64, upload *Upload) (*entity.UserCV, error) {
	if upload.ContentType != "application/pdf" {
		return nil, fmt.Errorf("%w: Only PDF files are allowed.", ErrInvalidUpload)
	}

	maxBytes := int64(s.cfg.Upload.MaxFileSizeMB) << 20
	if upload.Size > maxBytes {
		return nil, fmt.Errorf("%w: File size exceeds %dMB limit.", ErrInvalidUpload, s.cfg.Upload.MaxFileSizeMB)
	}

	content, err := io.ReadAll(io.LimitReader(upload.Content, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > maxBytes {
		return nil, fmt.Errorf("%w: File size exceeds %dMB limit.", ErrInvalidUpload, s.cfg.Upload.MaxFileSizeMB)
	}
	if !strings.HasPrefix(string(content[:min(len(content), len(pdfMagic))]), pdfMagic) {
		return nil, fmt.Errorf("%w: Uploaded file is not a valid PDF.", ErrInvalidUpload)
	}

	// The access token may outlive the account; resolve the caller before
	// touching the bucket.
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	cv := &entity.UserCV{
		ID:           uuid.New().String(),
		UserID:       userID,
		OriginalName: upload.Filename,
		CreatedAt:    time.Now(),
	}
	cv.S3Key = cv.ID + ".pdf"

	tagging := "original_name=" + url.QueryEscape(upload.Filename)
	if err = s.store.Put(ctx, cv.S3Key, content, upload.ContentType, tagging); err != nil {
		logrus.WithError(err).WithField("key", cv.S3Key).Error("Failed to store uploaded file")
		return nil, ErrStorageFailed
	}

	if err = s.cvRepo.Create(ctx, cv); err != nil {
		if delErr := s.store.Delete(ctx, cv.S3Key); delErr != nil {
			logrus.WithError(delErr).WithField("key", cv.S3Key).Warn("Failed to remove orphaned object")
		}
		return nil, err
	}

	return cv, nil
}

func (s *cvService) List(ctx context.Context, userID uint64) ([]entity.UserCV, error) {
	return s.cvRepo.ListByUser(ctx, userID)
}

// Delete removes the metadata row first; the object delete is best effort
// because a dangling object is harmless while a dangling row is not.
func (s *cvService) Delete(ctx context.Context, userID uint64, cvID string) error {
	cv, err := s.cvRepo.FindByID(ctx, userID, cvID)
	if err != nil {
		return err
	}
	if cv == nil {
		return ErrCVNotFound
	}

	deleted, err := s.cvRepo.Delete(ctx, userID, cvID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrCVNotFound
	}

	if err = s.store.Delete(ctx, cv.S3Key); err != nil {
		logrus.WithError(err).WithField("key", cv.S3Key).Warn("Failed to delete stored object")
	}
	return nil
}
