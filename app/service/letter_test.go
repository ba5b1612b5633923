package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/letterstack/ms-go-account/app/entity"
	"github.com/letterstack/ms-go-account/app/service"
)

type fakeGenerator struct {
	letter string
	err    error
	calls  int
}

func (g *fakeGenerator) GenerateCoverLetter(_ context.Context, _, _ string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.letter, nil
}

func TestLetterService_Generate_CVNotFound(t *testing.T) {
	svc := service.NewLetterService(newFakeCVRepo(), newFakeObjectStore(), &fakeGenerator{})

	_, err := svc.Generate(context.Background(), 1, "missing", "a job description")
	if !errors.Is(err, service.ErrCVNotFound) {
		t.Fatalf("expected ErrCVNotFound, got %v", err)
	}
}

func TestLetterService_Generate_OtherUsersCV(t *testing.T) {
	repo := newFakeCVRepo()
	repo.cvs["cv-1"] = &entity.UserCV{ID: "cv-1", UserID: 2, S3Key: "cv-1.pdf", CreatedAt: time.Now()}
	svc := service.NewLetterService(repo, newFakeObjectStore(), &fakeGenerator{})

	_, err := svc.Generate(context.Background(), 1, "cv-1", "a job description")
	if !errors.Is(err, service.ErrCVNotFound) {
		t.Fatalf("expected ErrCVNotFound for another user's cv, got %v", err)
	}
}

func TestLetterService_Generate_MissingObject(t *testing.T) {
	repo := newFakeCVRepo()
	repo.cvs["cv-1"] = &entity.UserCV{ID: "cv-1", UserID: 1, S3Key: "cv-1.pdf", CreatedAt: time.Now()}
	gen := &fakeGenerator{}
	svc := service.NewLetterService(repo, newFakeObjectStore(), gen)

	_, err := svc.Generate(context.Background(), 1, "cv-1", "a job description")
	if !errors.Is(err, service.ErrCVNotFound) {
		t.Fatalf("expected ErrCVNotFound for a row without an object, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatal("generator must not be called without CV content")
	}
}

func TestLetterService_Generate_StorageFailure(t *testing.T) {
	repo := newFakeCVRepo()
	repo.cvs["cv-1"] = &entity.UserCV{ID: "cv-1", UserID: 1, S3Key: "cv-1.pdf", CreatedAt: time.Now()}
	store := newFakeObjectStore()
	store.getErr = errors.New("bucket unavailable")
	svc := service.NewLetterService(repo, store, &fakeGenerator{})

	_, err := svc.Generate(context.Background(), 1, "cv-1", "a job description")
	if !errors.Is(err, service.ErrStorageFailed) {
		t.Fatalf("expected ErrStorageFailed, got %v", err)
	}
}

func TestLetterService_Generate_UnparseableCV(t *testing.T) {
	repo := newFakeCVRepo()
	repo.cvs["cv-1"] = &entity.UserCV{ID: "cv-1", UserID: 1, S3Key: "cv-1.pdf", CreatedAt: time.Now()}
	store := newFakeObjectStore()
	store.objects["cv-1.pdf"] = []byte("%PDF-1.7 but not really a document")
	svc := service.NewLetterService(repo, store, &fakeGenerator{letter: "Dear team"})

	_, err := svc.Generate(context.Background(), 1, "cv-1", "a job description")
	if !errors.Is(err, service.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed for unparseable content, got %v", err)
	}
}
