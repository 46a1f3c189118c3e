package file

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"eduadvise-backend/internal/service/storage"
	"eduadvise-backend/pkg/constants"
	"eduadvise-backend/pkg/response"
)

// Handler handles HTTP requests for file attachments
type Handler struct {
	storageService *storage.Service
}

// NewHandler creates a new file handler
func NewHandler(storageService *storage.Service) *Handler {
	return &Handler{storageService: storageService}
}

// Upload stores a multipart file and returns its metadata with a
// presigned download URL.
// POST /api/files (multipart form, field "file")
func (h *Handler) Upload(c *gin.Context) {
	userID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.ValidationError(c, "multipart field 'file' is required")
		return
	}
	if header.Size > constants.MaxUploadSize {
		response.ValidationError(c, "file exceeds the upload size limit")
		return
	}

	src, err := header.Open()
	if err != nil {
		response.ValidationError(c, "could not read uploaded file")
		return
	}
	defer src.Close()

	uploaded, err := h.storageService.Upload(
		c.Request.Context(),
		userID,
		header.Filename,
		header.Header.Get("Content-Type"),
		header.Size,
		src,
	)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"file": uploaded})
}

// Get returns file metadata with a fresh download URL
// GET /api/files/:file_id
func (h *Handler) Get(c *gin.Context) {
	fileID, err := uuid.Parse(c.Param("file_id"))
	if err != nil {
		response.ValidationError(c, "invalid file ID")
		return
	}

	file, err := h.storageService.Get(c.Request.Context(), fileID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"file": file})
}

// Delete removes a file. Uploader only.
// DELETE /api/files/:file_id
func (h *Handler) Delete(c *gin.Context) {
	userID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	fileID, err := uuid.Parse(c.Param("file_id"))
	if err != nil {
		response.ValidationError(c, "invalid file ID")
		return
	}

	if err := h.storageService.Delete(c.Request.Context(), userID, fileID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "file deleted"})
}
