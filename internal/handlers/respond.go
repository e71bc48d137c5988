package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/soundvault/backend/internal/errs"
	"github.com/soundvault/backend/internal/logger"
)

// respondError writes the JSON error body for err. Unclassified errors are
// logged and reported without their message.
func respondError(c *gin.Context, err error) {
	status := errs.Status(err)
	msg := err.Error()
	if !errs.Kind(err) {
		logger.Error("request failed",
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.ErrorField(err))
		msg = "Internal server error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": errs.Code(err)})
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	return parseUUID(c, param, c.Param(param))
}

func parseUUID(c *gin.Context, name, value string) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		respondError(c, fmt.Errorf("invalid %s: %w", name, errs.ErrInvalidInput))
		return uuid.Nil, false
	}
	return id, true
}
