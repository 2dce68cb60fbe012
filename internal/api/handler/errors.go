package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/doclens/internal/api/middleware"
	"github.com/timmy/doclens/internal/domain"
)

// statusFor maps a service error to the HTTP status a client should see.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnsupportedContentType),
		errors.Is(err, domain.ErrEmptyQuestion),
		errors.Is(err, domain.ErrInvalidQueryMode):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrQueueFull), errors.Is(err, domain.ErrDispatcherClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": ...}. Server-side failures are logged and
// their detail is kept out of the response.
func respondError(c *gin.Context, err error, action string) {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		middleware.GetLogger(c).WithError(err).Errorf("%s failed", action)
		c.JSON(status, gin.H{"error": action + " failed"})
	case http.StatusServiceUnavailable:
		c.Header("Retry-After", "5")
		c.JSON(status, gin.H{"error": err.Error()})
	case http.StatusNotFound:
		c.JSON(status, gin.H{"error": "Not found"})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}

// pathID parses the :id parameter, writing a 400 when it is not a positive integer.
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, strconv.IntSize)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return uint(id), true
}

// owner returns the authenticated user, writing a 401 if the auth middleware did not run.
func owner(c *gin.Context) (uint, bool) {
	id, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid user identity"})
		return 0, false
	}
	return id, true
}
