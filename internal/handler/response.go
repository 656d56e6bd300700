package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskmanager/internal/apperr"
	"taskmanager/pkg/logger"
)

// ContextUserID is the gin context key holding the authenticated uuid.UUID.
const ContextUserID = "user_id"

// respondError writes {"error", "issues"?} with the status of the error kind.
// Internal details are logged, never returned.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	appErr := apperr.From(err)
	if appErr.Kind == apperr.KindInternal {
		logger.WithTrace(c.Request.Context(), log).Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	body := gin.H{"error": appErr.Message}
	if len(appErr.Issues) > 0 {
		body["issues"] = appErr.Issues
	}
	c.AbortWithStatusJSON(appErr.Status(), body)
}

// bindJSON decodes the request body into dst. Malformed bodies become a
// validation error on the "body" field.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		msg := "must be a valid JSON object"
		if errors.Is(err, io.EOF) {
			msg = "is required"
		}
		return apperr.Validation(apperr.FieldIssue{Field: "body", Message: msg})
	}
	return nil
}

// userID reads the id the auth middleware stored on the context.
func userID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func requireUserID(c *gin.Context, log *zap.Logger) (uuid.UUID, bool) {
	id, ok := userID(c)
	if !ok {
		respondError(c, log, apperr.Unauthorized(""))
		return uuid.Nil, false
	}
	return id, true
}
