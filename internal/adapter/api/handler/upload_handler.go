package handler

import (
	"mime/multipart"

	"github.com/labstack/echo/v4"

	"instapro/internal/adapter/api/middleware"
	"instapro/internal/domain/entity"
	"instapro/internal/usecase"
	"instapro/pkg/errors"
	"instapro/pkg/response"
	"instapro/pkg/utils"
)

type UploadHandler struct {
	uploadUseCase *usecase.UploadUseCase
}

func NewUploadHandler(uploadUseCase *usecase.UploadUseCase) *UploadHandler {
	return &UploadHandler{
		uploadUseCase: uploadUseCase,
	}
}

// Upload stores a post or profile file and waits for the transfer.
// Chat media goes through the message endpoint instead.
func (h *UploadHandler) Upload(c echo.Context) error {
	caller, err := middleware.CurrentIdentity(c)
	if err != nil {
		return response.Error(c, err)
	}

	surface := entity.UploadSurface(c.QueryParam("surface"))
	if surface != entity.SurfacePost && surface != entity.SurfaceProfile {
		return response.Error(c, errors.BadRequest("surface must be one of: posts profile", nil))
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, errors.BadRequest("File is required", err))
	}
	file, closeFile, err := openFormFile(fileHeader)
	if err != nil {
		return response.Error(c, err)
	}
	defer closeFile()

	result, err := h.uploadUseCase.Upload(c.Request().Context(), caller.Username, file, surface)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, result)
}

// ListUploads returns the caller's own files, newest first.
func (h *UploadHandler) ListUploads(c echo.Context) error {
	caller, err := middleware.CurrentIdentity(c)
	if err != nil {
		return response.Error(c, err)
	}

	records, err := h.uploadUseCase.ListUploads(c.Request().Context(), caller.Username, utils.GetLimitParam(c, 50))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, records)
}

func openFormFile(fileHeader *multipart.FileHeader) (entity.FileInput, func(), error) {
	src, err := fileHeader.Open()
	if err != nil {
		return entity.FileInput{}, nil, errors.BadRequest("Failed to open file", err)
	}
	return entity.FileInput{
		Name:        fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Reader:      src,
	}, func() { src.Close() }, nil
}
