package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/letterstack/ms-go-account/app/pdf"
)

var ErrGenerationFailed = errors.New("letter generation failed")

// TextGenerator produces a cover letter from the extracted CV text and the
// job description. Backed by an LLM API in production.
type TextGenerator interface {
	GenerateCoverLetter(ctx context.Context, cvText, jobDescription string) (string, error)
}

type LetterService interface {
	// Generate returns the finished cover letter as a rendered PDF.
	Generate(ctx context.Context, userID uint64, cvID, jobDescription string) ([]byte, error)
}

type letterService struct {
	cvRepo    cvRepository
	store     ObjectStore
	generator TextGenerator
}

func NewLetterService(cvRepo cvRepository, store ObjectStore, generator TextGenerator) LetterService {
	return &letterService{cvRepo: cvRepo, store: store, generator: generator}
}

func (s *letterService) Generate(ctx context.Context, userID uint64, cvID, jobDescription string) ([]byte, error) {
	cv, err := s.cvRepo.FindByID(ctx, userID, cvID)
	if err != nil {
		return nil, err
	}
	if cv == nil {
		return nil, ErrCVNotFound
	}

	content, err := s.store.Get(ctx, cv.S3Key)
	if err != nil {
		logrus.WithError(err).WithField("key", cv.S3Key).Error("Failed to fetch stored CV")
		return nil, ErrStorageFailed
	}
	if content == nil {
		// Row exists but the object is gone; treat it the same as no CV.
		return nil, ErrCVNotFound
	}

	cvText, err := pdf.ExtractText(content)
	if err != nil {
		logrus.WithError(err).WithField("cv_id", cv.ID).Error("Failed to extract CV text")
		return nil, ErrGenerationFailed
	}

	letter, err := s.generator.GenerateCoverLetter(ctx, cvText, jobDescription)
	if err != nil {
		logrus.WithError(err).WithField("cv_id", cv.ID).Error("Failed to generate letter text")
		return nil, ErrGenerationFailed
	}

	rendered, err := pdf.Render(letter)
	if err != nil {
		return nil, ErrGenerationFailed
	}
	return rendered, nil
}
