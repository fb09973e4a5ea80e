package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"media-vault/controller/middleware"
	"media-vault/controller/respond"
	"media-vault/model"
)

// FileReader finalized file lookup
type FileReader interface {
	GetByID(ctx context.Context, id string) (*model.FinalizedFile, error)
}

// ObjectSigner signs download urls
type ObjectSigner interface {
	PresignGetObject(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// FileHandler finalized file query handler
type FileHandler struct {
	files  FileReader
	signer ObjectSigner
	expiry time.Duration
}

// NewFileHandler create file handler instance
func NewFileHandler(files FileReader, signer ObjectSigner, expiry time.Duration) *FileHandler {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &FileHandler{files: files, signer: signer, expiry: expiry}
}

// FileResponse finalized file record
type FileResponse struct {
	FileId        string         `json:"fileId"`
	Name          string         `json:"name"`
	Key           string         `json:"key"`
	Url           string         `json:"url"`
	Size          int64          `json:"size"`
	MimeType      string         `json:"mimeType"`
	FileType      model.FileType `json:"fileType" example:"video"`
	FolderId      *string        `json:"folderId,omitempty"`
	VideoDuration *float64       `json:"videoDuration,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// DownloadURLResponse signed download url
type DownloadURLResponse struct {
	Url       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"`
}

func toFileResponse(f *model.FinalizedFile) FileResponse {
	return FileResponse{
		FileId:        f.ID,
		Name:          f.Name,
		Key:           f.Path,
		Url:           f.Url,
		Size:          f.Size,
		MimeType:      f.MimeType,
		FileType:      f.FileType,
		FolderId:      f.FolderId,
		VideoDuration: f.VideoDuration,
		CreatedAt:     f.CreatedAt,
	}
}

// lookup loads a file owned by the caller; other owners' files read as missing
func (h *FileHandler) lookup(c *gin.Context) (*model.FinalizedFile, bool) {
	fileId := c.Param("fileId")
	file, err := h.files.GetByID(c.Request.Context(), fileId)
	if err != nil {
		respond.ServerError(c, err.Error())
		return nil, false
	}
	if file == nil || file.UserId != middleware.Principal(c) {
		respond.NotFound(c, "file not found")
		return nil, false
	}
	return file, true
}

// GetFile query a finalized file
// @Summary      Get file
// @Description  Return a finalized file owned by the caller, including the probed duration once known
// @Tags         Files
// @Produce      json
// @Param        X-User-Id  header  string  true  "Authenticated user id"
// @Param        fileId     path    string  true  "File id"
// @Success      200  {object}  FileResponse
// @Failure      404  {object}  respond.ErrorResponse  "File not found"
// @Router       /s3/files/{fileId} [get]
func (h *FileHandler) GetFile(c *gin.Context) {
	file, ok := h.lookup(c)
	if !ok {
		return
	}
	respond.Success(c, toFileResponse(file))
}

// GetDownloadURL sign a download url for a finalized file
// @Summary      Get download url
// @Description  Issue a time-boxed URL for reading the assembled object
// @Tags         Files
// @Produce      json
// @Param        X-User-Id  header  string  true  "Authenticated user id"
// @Param        fileId     path    string  true  "File id"
// @Success      200  {object}  DownloadURLResponse
// @Failure      404  {object}  respond.ErrorResponse  "File not found"
// @Failure      500  {object}  respond.ErrorResponse  "Signing failed"
// @Router       /s3/files/{fileId}/download-url [get]
func (h *FileHandler) GetDownloadURL(c *gin.Context) {
	file, ok := h.lookup(c)
	if !ok {
		return
	}
	url, err := h.signer.PresignGetObject(c.Request.Context(), file.Path, h.expiry)
	if err != nil {
		respond.ServerError(c, err.Error())
		return
	}
	respond.Success(c, DownloadURLResponse{Url: url, ExpiresIn: int(h.expiry / time.Second)})
}
