// Package response writes the JSON error envelope shared by every handler.
package response

import (
	"forum-service/internal/models"

	"github.com/gin-gonic/gin"
)

// Error writes models.ErrorResponse with status as both HTTP status and code.
func Error(c *gin.Context, status int, message string, details ...string) {
	body := models.ErrorResponse{Code: status, Message: message}
	if len(details) > 0 {
		body.Details = details[0]
	}
	c.JSON(status, body)
}

// Abort is Error followed by c.Abort, for middleware.
func Abort(c *gin.Context, status int, message string, details ...string) {
	Error(c, status, message, details...)
	c.Abort()
}
