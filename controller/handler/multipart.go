package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"media-vault/controller/middleware"
	"media-vault/controller/respond"
	"media-vault/service/upload_service"
	"media-vault/storage"
)

// UploadCoordinator multipart lifecycle operations
type UploadCoordinator interface {
	Init(ctx context.Context, req *upload_service.InitRequest) (*upload_service.InitResponse, error)
	IssuePartURL(ctx context.Context, uploadId, key string, partNumber int) (*upload_service.PartURLResponse, error)
	Complete(ctx context.Context, req *upload_service.CompleteRequest) (*upload_service.CompleteResponse, error)
	Abort(ctx context.Context, uploadId, key string) error
}

// MultipartHandler multipart upload handler
type MultipartHandler struct {
	coordinator UploadCoordinator
}

// NewMultipartHandler create multipart handler instance
func NewMultipartHandler(coordinator UploadCoordinator) *MultipartHandler {
	return &MultipartHandler{coordinator: coordinator}
}

// InitUploadRequest init multipart upload request
type InitUploadRequest struct {
	FileName    string  `json:"fileName" binding:"required" example:"clip.mp4"`
	ContentType string  `json:"contentType" binding:"required" example:"video/mp4"`
	Directory   string  `json:"directory" example:"uploads/videos"`
	FolderId    *string `json:"folderId" example:"65f0c2a1e4b0a1b2c3d4e5f6"`
}

// PresignUrlRequest presign part url request
type PresignUrlRequest struct {
	UploadId   string `json:"uploadId" binding:"required"`
	Key        string `json:"key" binding:"required" example:"uploads/videos/clip-1718000000000000000.mp4"`
	PartNumber int    `json:"partNumber" binding:"required" example:"1"`
}

// CompletedPartRequest part receipt reported by the client
type CompletedPartRequest struct {
	ETag       string `json:"ETag" binding:"required" example:"\"5d41402abc4b2a76b9719d911017c592\""`
	PartNumber int    `json:"PartNumber" binding:"required" example:"1"`
}

// CompleteUploadRequest complete multipart upload request
type CompleteUploadRequest struct {
	UploadId    string                 `json:"uploadId" binding:"required"`
	Key         string                 `json:"key" binding:"required"`
	Parts       []CompletedPartRequest `json:"parts" binding:"dive"`
	FileName    string                 `json:"fileName" binding:"required" example:"clip.mp4"`
	ContentType string                 `json:"contentType" binding:"required" example:"video/mp4"`
	FileSize    int64                  `json:"fileSize" example:"1048576"`
	FolderId    *string                `json:"folderId"`
}

// AbortUploadRequest abort multipart upload request
type AbortUploadRequest struct {
	UploadId string `json:"uploadId" binding:"required"`
	Key      string `json:"key" binding:"required"`
}

// InitUpload open a multipart session
// @Summary      Init multipart upload
// @Description  Open a provider multipart session under a unique key derived from the file name
// @Tags         Multipart Upload
// @Accept       json
// @Produce      json
// @Param        X-User-Id  header    string             true  "Authenticated user id"
// @Param        request    body      InitUploadRequest  true  "Init request"
// @Success      201  {object}  upload_service.InitResponse
// @Failure      400  {object}  respond.ErrorResponse  "Parameter error"
// @Failure      401  {object}  respond.ErrorResponse  "Missing principal"
// @Failure      500  {object}  respond.ErrorResponse  "SessionInitError"
// @Router       /s3/init-upload [post]
func (h *MultipartHandler) InitUpload(c *gin.Context) {
	var req InitUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.InvalidParam(c, err.Error())
		return
	}

	res, err := h.coordinator.Init(c.Request.Context(), &upload_service.InitRequest{
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Directory:   req.Directory,
		Owner:       middleware.Principal(c),
		FolderId:    req.FolderId,
	})
	if err != nil {
		writeUploadError(c, err)
		return
	}

	respond.Created(c, res)
}

// PresignUrl sign a part upload url
// @Summary      Presign part url
// @Description  Issue a time-boxed URL for uploading one part directly to storage
// @Tags         Multipart Upload
// @Accept       json
// @Produce      json
// @Param        X-User-Id  header    string             true  "Authenticated user id"
// @Param        request    body      PresignUrlRequest  true  "Presign request"
// @Success      200  {object}  upload_service.PartURLResponse
// @Failure      400  {object}  respond.ErrorResponse  "Parameter error"
// @Failure      500  {object}  respond.ErrorResponse  "PartUrlError"
// @Router       /s3/presign-url [post]
func (h *MultipartHandler) PresignUrl(c *gin.Context) {
	var req PresignUrlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.InvalidParam(c, err.Error())
		return
	}

	res, err := h.coordinator.IssuePartURL(c.Request.Context(), req.UploadId, req.Key, req.PartNumber)
	if err != nil {
		writeUploadError(c, err)
		return
	}

	respond.Success(c, res)
}

// CompleteUpload assemble the object and record it
// @Summary      Complete multipart upload
// @Description  Finalize the session with the reported parts (sorted server-side) and persist the file record
// @Tags         Multipart Upload
// @Accept       json
// @Produce      json
// @Param        X-User-Id  header    string                 true  "Authenticated user id"
// @Param        request    body      CompleteUploadRequest  true  "Complete request"
// @Success      200  {object}  upload_service.CompleteResponse
// @Failure      400  {object}  respond.ErrorResponse  "Parameter error"
// @Failure      500  {object}  respond.ErrorResponse  "CompleteError or CompleteValidationError"
// @Router       /s3/complete-upload [post]
func (h *MultipartHandler) CompleteUpload(c *gin.Context) {
	var req CompleteUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.InvalidParam(c, err.Error())
		return
	}

	parts := make([]storage.PartInfo, 0, len(req.Parts))
	for _, p := range req.Parts {
		parts = append(parts, storage.PartInfo{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	res, err := h.coordinator.Complete(c.Request.Context(), &upload_service.CompleteRequest{
		UploadId:    req.UploadId,
		Key:         req.Key,
		Parts:       parts,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		FileSize:    req.FileSize,
		Owner:       middleware.Principal(c),
		FolderId:    req.FolderId,
	})
	if err != nil {
		writeUploadError(c, err)
		return
	}

	respond.Success(c, res)
}

// AbortUpload cancel a multipart session
// @Summary      Abort multipart upload
// @Description  Discard the session and its uploaded parts
// @Tags         Multipart Upload
// @Accept       json
// @Param        X-User-Id  header  string              true  "Authenticated user id"
// @Param        request    body    AbortUploadRequest  true  "Abort request"
// @Success      204  "Aborted"
// @Failure      400  {object}  respond.ErrorResponse  "Parameter error"
// @Failure      500  {object}  respond.ErrorResponse  "AbortError"
// @Router       /s3/abort-upload [post]
func (h *MultipartHandler) AbortUpload(c *gin.Context) {
	var req AbortUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.InvalidParam(c, err.Error())
		return
	}

	if err := h.coordinator.Abort(c.Request.Context(), req.UploadId, req.Key); err != nil {
		writeUploadError(c, err)
		return
	}

	respond.NoContent(c)
}

// writeUploadError argument errors are 400; everything else is a 500
// carrying the error kind
func writeUploadError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, upload_service.ErrInvalidArgument) {
		status = http.StatusBadRequest
	}
	respond.Fail(c, status, upload_service.KindName(err), err.Error(), upload_service.IsTerminal(err))
}
