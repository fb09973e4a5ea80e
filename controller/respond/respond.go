package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse error body returned by every failing endpoint
type ErrorResponse struct {
	Success  bool   `json:"success" example:"false"`
	Error    string `json:"error" example:"PartUrlError"`
	Message  string `json:"message" example:"issue part url upload_id=abc key=uploads/a-1.mp4: part url issuance failed"`
	Terminal bool   `json:"terminal" example:"false" description:"Provider reported the session as unknown, completed or aborted"`
}

// Success 200 with the payload as the body
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 201 with the payload as the body
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent 204 with an empty body
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Fail writes an error body with the given status
func Fail(c *gin.Context, status int, kind, message string, terminal bool) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Success:  false,
		Error:    kind,
		Message:  message,
		Terminal: terminal,
	})
}

func InvalidParam(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, "InvalidParam", message, false)
}

func Unauthorized(c *gin.Context, message string) {
	Fail(c, http.StatusUnauthorized, "Unauthorized", message, false)
}

func Forbidden(c *gin.Context, message string) {
	Fail(c, http.StatusForbidden, "Forbidden", message, false)
}

func NotFound(c *gin.Context, message string) {
	Fail(c, http.StatusNotFound, "NotFound", message, false)
}

func ServerError(c *gin.Context, message string) {
	Fail(c, http.StatusInternalServerError, "InternalError", message, false)
}
