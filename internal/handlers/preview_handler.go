package handlers

import (
	"acey/internal/blobstore"

	"github.com/gofiber/fiber/v2"
)

// PreviewHandler serves and releases short-lived preview blobs
type PreviewHandler struct {
	blobs *blobstore.Store
}

// NewPreviewHandler creates a preview handler
func NewPreviewHandler(blobs *blobstore.Store) *PreviewHandler {
	return &PreviewHandler{blobs: blobs}
}

// GetBlob serves the binary content for a preview handle
func (h *PreviewHandler) GetBlob(c *fiber.Ctx) error {
	handle := c.Params("handle")

	blob, err := h.blobs.Get(handle)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Preview not found or expired",
		})
	}

	c.Set(fiber.HeaderContentType, blob.ContentType)
	return c.Send(blob.Data)
}

// ReleaseBlob frees a preview handle once the client is done with it
func (h *PreviewHandler) ReleaseBlob(c *fiber.Ctx) error {
	handle := c.Params("handle")
	h.blobs.Release(handle)
	return c.JSON(fiber.Map{"released": true})
}
