package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/letterstack/ms-go-account/app/apperror"
	httpdto "github.com/letterstack/ms-go-account/app/dto/http"
	"github.com/letterstack/ms-go-account/app/middleware"
	"github.com/letterstack/ms-go-account/app/service"
)

type CVController struct {
	cvService service.CVService
}

func NewCVController(cvService service.CVService) *CVController {
	return &CVController{cvService: cvService}
}

func (c *CVController) Upload(ctx echo.Context) error {
	userID := middleware.UserID(ctx)

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return apperror.New(apperror.KindBadRequest, "No file provided")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	cv, err := c.cvService.Upload(ctx.Request().Context(), userID, &service.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Content:     file,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUpload):
			return apperror.New(apperror.KindBadRequest, invalidUploadMessage(err))
		case errors.Is(err, service.ErrUserNotFound):
			return apperror.New(apperror.KindNotFound, []string{"User not found"})
		case errors.Is(err, service.ErrStorageFailed):
			return apperror.New(apperror.KindBadGateway, "Failed to upload a file")
		}
		return err
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "cv_id": cv.ID}).Info("CV uploaded")
	return ctx.JSON(http.StatusOK, httpdto.DataResponse{
		Data: httpdto.UploadCVData{
			ID:           cv.ID,
			OriginalName: cv.OriginalName,
			Message:      "CV uploaded successfully",
		},
	})
}

func (c *CVController) List(ctx echo.Context) error {
	userID := middleware.UserID(ctx)

	cvs, err := c.cvService.List(ctx.Request().Context(), userID)
	if err != nil {
		return err
	}

	items := make([]httpdto.CVListItem, 0, len(cvs))
	for _, cv := range cvs {
		items = append(items, httpdto.CVListItem{
			ID:           cv.ID,
			OriginalName: cv.OriginalName,
			CreatedAt:    cv.CreatedAt,
		})
	}

	return ctx.JSON(http.StatusOK, httpdto.DataResponse{Data: items})
}

func (c *CVController) Delete(ctx echo.Context) error {
	userID := middleware.UserID(ctx)
	cvID := ctx.Param("cv_id")

	if err := c.cvService.Delete(ctx.Request().Context(), userID, cvID); err != nil {
		if errors.Is(err, service.ErrCVNotFound) {
			return apperror.New(apperror.KindNotFound, "CV not found")
		}
		return err
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "cv_id": cvID}).Info("CV deleted")
	return ctx.NoContent(http.StatusNoContent)
}

func invalidUploadMessage(err error) string {
	return strings.TrimPrefix(err.Error(), service.ErrInvalidUpload.Error()+": ")
}
