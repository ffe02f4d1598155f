// handlers_archive.go - Archive upload and management handlers
package api

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/alonraif/NGL-sub000/internal/models"
	"github.com/alonraif/NGL-sub000/internal/session"
	"github.com/alonraif/NGL-sub000/internal/storage"
)

// ArchiveHandlerImpl implements the ArchiveHandler interface
type ArchiveHandlerImpl struct {
	store         storage.Store
	cache         *session.ResultCache
	allowedTypes  []string
	allowDeletion bool
}

// NewArchiveHandler creates a new archive handler instance
func NewArchiveHandler(store storage.Store, cache *session.ResultCache, allowedTypes string, allowDeletion bool) ArchiveHandler {
	h := &ArchiveHandlerImpl{
		store:         store,
		cache:         cache,
		allowDeletion: allowDeletion,
	}
	for _, t := range strings.Split(allowedTypes, ",") {
		if t = strings.TrimSpace(t); t != "" {
			h.allowedTypes = append(h.allowedTypes, strings.ToLower(t))
		}
	}
	return h
}

// HandleUploadArchive accepts a raw archive upload (multipart/form-data)
func (h *ArchiveHandlerImpl) HandleUploadArchive(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	if !h.nameAllowed(file.Filename) {
		return NewBadRequestError("unsupported file type: "+file.Filename, nil)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save archive", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleUploadChunk accepts a single chunk of a chunked upload
func (h *ArchiveHandlerImpl) HandleUploadChunk(c echo.Context) error {
	var req uploadChunkRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	if err := h.store.SaveChunk(req.UploadID, req.ChunkIndex, bytes.NewReader(decoded)); err != nil {
		return NewInternalError("failed to save chunk", err)
	}

	return c.NoContent(http.StatusAccepted)
}

// HandleCompleteUpload assembles a chunked upload into a stored archive
func (h *ArchiveHandlerImpl) HandleCompleteUpload(c echo.Context) error {
	var req completeUploadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	if !h.nameAllowed(req.Name) {
		return NewBadRequestError("unsupported file type: "+req.Name, nil)
	}

	info, err := h.store.CompleteChunkedUpload(req.UploadID, req.Name, req.TotalChunks)
	if err != nil {
		return NewInternalError("failed to assemble upload", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleGetRecentArchives returns recently uploaded archives, newest first
func (h *ArchiveHandlerImpl) HandleGetRecentArchives(c echo.Context) error {
	archives, err := h.store.List(20)
	if err != nil {
		return NewInternalError("failed to list archives", err)
	}

	if archives == nil {
		archives = []*models.FileInfo{}
	}
	return c.JSON(http.StatusOK, archives)
}

// HandleGetArchive returns metadata for a specific archive
func (h *ArchiveHandlerImpl) HandleGetArchive(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("archive", id)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleDeleteArchive deletes an archive and its cached extraction results
func (h *ArchiveHandlerImpl) HandleDeleteArchive(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if !h.allowDeletion {
		return NewForbiddenError("archive deletion is disabled")
	}

	if err := h.store.Delete(id); err != nil {
		return NewNotFoundError("archive", id)
	}

	if h.cache != nil {
		h.cache.Delete(id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleRenameArchive updates the display name of an archive
func (h *ArchiveHandlerImpl) HandleRenameArchive(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameArchiveRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if req.Name == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return NewNotFoundError("archive", id)
	}

	return c.JSON(http.StatusOK, info)
}

// nameAllowed checks the filename against the configured extension allow-list.
// An empty list allows everything.
func (h *ArchiveHandlerImpl) nameAllowed(name string) bool {
	if len(h.allowedTypes) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, ext := range h.allowedTypes {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Request/Response types

type uploadChunkRequest struct {
	UploadID    string `json:"uploadId"`
	ChunkIndex  int    `json:"chunkIndex"`
	Data        string `json:"data"` // Base64-encoded chunk
	TotalChunks int    `json:"totalChunks"`
}

func (r *uploadChunkRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type completeUploadRequest struct {
	UploadID    string `json:"uploadId"`
	Name        string `json:"name"`
	TotalChunks int    `json:"totalChunks"`
}

func (r *completeUploadRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.TotalChunks <= 0 {
		return NewBadRequestError("totalChunks must be positive", nil)
	}
	return nil
}

type renameArchiveRequest struct {
	Name string `json:"name"`
}
