package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vireo-social/vireo/internal/apperr"
)

// respondError translates an error into its HTTP representation. Tagged
// errors map to their kind's status; anything else is logged and surfaces
// as a generic internal error.
func respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		c.JSON(apperr.HTTPStatus(appErr.Kind), gin.H{"error": appErr.Message, "kind": appErr.Kind})
		return
	}
	log.WithError(err).Error("unhandled error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error.", "kind": apperr.KindInternal})
}

// getUserID returns the authenticated user id bound by the access guard,
// or zero when the request is unauthenticated.
func getUserID(c *gin.Context) uint64 {
	v, ok := c.Get("userID")
	if !ok {
		return 0
	}
	id, ok := v.(uint64)
	if !ok {
		return 0
	}
	return id
}
