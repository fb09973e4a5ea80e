package handler

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"media-vault/controller/respond"
	"media-vault/storage"
)

// LocalStorageHandler serves signed part uploads and object reads for the
// filesystem gateway
type LocalStorageHandler struct {
	gateway *storage.LocalGateway
}

// NewLocalStorageHandler create local storage handler instance
func NewLocalStorageHandler(gateway *storage.LocalGateway) *LocalStorageHandler {
	return &LocalStorageHandler{gateway: gateway}
}

// UploadPart accept one part body against a signed url
// @Summary      Upload part (local storage)
// @Description  Target of presigned part urls when storage.type is local; the ETag header carries the part receipt
// @Tags         Local Storage
// @Accept       application/octet-stream
// @Param        uploadId    path   string  true  "Upload id"
// @Param        partNumber  path   int     true  "Part number"
// @Param        key         query  string  true  "Object key"
// @Param        expires     query  int     true  "Unix expiry"
// @Param        signature   query  string  true  "HMAC signature"
// @Success      200  "Part stored"
// @Failure      403  {object}  respond.ErrorResponse  "Bad signature or expired url"
// @Failure      404  {object}  respond.ErrorResponse  "Unknown or closed session"
// @Router       /local/parts/{uploadId}/{partNumber} [put]
func (h *LocalStorageHandler) UploadPart(c *gin.Context) {
	partNumber, err := strconv.Atoi(c.Param("partNumber"))
	if err != nil {
		respond.InvalidParam(c, "invalid part number")
		return
	}
	expires, err := strconv.ParseInt(c.Query("expires"), 10, 64)
	if err != nil {
		respond.Forbidden(c, "missing or invalid expires")
		return
	}

	etag, err := h.gateway.AcceptPart(c.Request.Context(), storage.PartUpload{
		UploadId:   c.Param("uploadId"),
		PartNumber: partNumber,
		Key:        c.Query("key"),
		Expires:    expires,
		Signature:  c.Query("signature"),
	}, c.Request.Body)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrBadSignature), errors.Is(err, storage.ErrURLExpired):
			respond.Forbidden(c, err.Error())
		case errors.Is(err, storage.ErrNoSuchUpload):
			respond.Fail(c, http.StatusNotFound, "NoSuchUpload", err.Error(), true)
		case errors.Is(err, storage.ErrInvalidParts):
			respond.InvalidParam(c, err.Error())
		default:
			respond.ServerError(c, err.Error())
		}
		return
	}

	c.Header("ETag", etag)
	c.Status(http.StatusOK)
}

// GetObject stream an assembled object
// @Summary      Get object (local storage)
// @Tags         Local Storage
// @Produce      application/octet-stream
// @Param        key  path  string  true  "Object key"
// @Success      200  "Object body"
// @Failure      404  {object}  respond.ErrorResponse  "Object not found"
// @Router       /local/objects/{key} [get]
func (h *LocalStorageHandler) GetObject(c *gin.Context) {
	target, err := h.gateway.ObjectPath(c.Param("key"))
	if err != nil {
		respond.InvalidParam(c, err.Error())
		return
	}
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		respond.NotFound(c, "object not found")
		return
	}
	c.File(target)
}
