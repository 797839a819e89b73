package handlers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-chat/internal/api/dto"
	"github.com/spec-kit/support-chat/internal/blob"
	apperrors "github.com/spec-kit/support-chat/pkg/util"
)

const maxAttachmentSize = 10 << 20 // 10 MiB

// AttachmentsHandler uploads and serves message attachments.
type AttachmentsHandler struct {
	storage blob.Storage
}

// NewAttachmentsHandler constructs handler.
func NewAttachmentsHandler(storage blob.Storage) *AttachmentsHandler {
	return &AttachmentsHandler{storage: storage}
}

// Upload POST /attachments (multipart form, field "file").
func (h *AttachmentsHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file field required", nil)
	}
	if fileHeader.Size > maxAttachmentSize {
		return apperrors.NewValidationError("file too large", map[string]any{"max_bytes": maxAttachmentSize})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	att, err := h.storage.Put(c.Context(), fileHeader.Filename, mimeType, data)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.AttachmentResponse{
		ID:       att.ID,
		Name:     att.Name,
		MimeType: att.MimeType,
		Size:     att.Size,
		CacheKey: att.CacheKey,
		Preview:  att.Preview,
	}})
}

// Download GET /attachments/:cacheKey.
func (h *AttachmentsHandler) Download(c *fiber.Ctx) error {
	data, err := h.storage.Get(c.Context(), c.Params("cacheKey"))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return apperrors.NewNotFound("attachment", map[string]any{"cache_key": c.Params("cacheKey")})
		}
		return apperrors.NewInternalError(err)
	}
	return c.Send(data)
}
