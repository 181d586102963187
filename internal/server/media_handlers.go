package server

import (
	"errors"

	"devsnippet/internal/media"
	"devsnippet/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker"
)

// UploadMedia handles POST /api/media/upload
// @Summary Upload media
// @Description Forwards an image or video to the media delegate
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image or video"
// @Success 201 {object} media.Asset
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /media/upload [post]
func (s *Server) UploadMedia(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return models.RespondWithError(c, models.NewBadRequestError("No file uploaded"))
	}

	file, err := header.Open()
	if err != nil {
		return models.RespondWithError(c, models.NewInternalError(err))
	}
	defer func() { _ = file.Close() }()

	asset, err := s.media.Upload(c.UserContext(), media.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Size:        header.Size,
		Body:        file,
	})
	switch {
	case err == nil:
		return c.Status(fiber.StatusCreated).JSON(asset)
	case errors.Is(err, media.ErrUnsupportedType):
		return models.RespondWithError(c, models.NewBadRequestError(err.Error()))
	case errors.Is(err, media.ErrNotConfigured), errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Message: "Media storage is unavailable",
		})
	default:
		return models.RespondWithError(c, err)
	}
}
