package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/letterstack/ms-go-account/app/apperror"
	httpdto "github.com/letterstack/ms-go-account/app/dto/http"
	"github.com/letterstack/ms-go-account/app/middleware"
	"github.com/letterstack/ms-go-account/app/service"
)

type LetterController struct {
	letterService service.LetterService
}

func NewLetterController(letterService service.LetterService) *LetterController {
	return &LetterController{letterService: letterService}
}

// Generate responds with the finished letter as a PDF attachment rather
// than a JSON envelope.
func (c *LetterController) Generate(ctx echo.Context) error {
	userID := middleware.UserID(ctx)

	req, err := httpdto.NewGenerateLetterRequestFromContext(ctx)
	if err != nil {
		return apperror.New(apperror.KindBadRequest, "Invalid request body")
	}
	if err = req.Validate(); err != nil {
		return err
	}

	letter, err := c.letterService.Generate(ctx.Request().Context(), userID, req.CVID, req.JobDesc)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCVNotFound):
			return apperror.New(apperror.KindNotFound, "CV not found")
		case errors.Is(err, service.ErrGenerationFailed), errors.Is(err, service.ErrStorageFailed):
			return apperror.New(apperror.KindBadGateway, "Failed to generate a letter")
		}
		return err
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "cv_id": req.CVID}).Info("Cover letter generated")

	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="cover_letter.pdf"`)
	return ctx.Blob(http.StatusOK, "application/pdf", letter)
}
