package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/doclens/internal/logger"
)

// OwnerIDKey is the gin context key holding the authenticated user ID.
const OwnerIDKey = "owner_id"

// DefaultUserHeader is the header an upstream gateway sets after authenticating.
const DefaultUserHeader = "X-User-ID"

// Auth returns a middleware that trusts the user ID passed by the gateway in header.
// Requests without a positive integer ID are rejected with 401.
// Parameters:
//   - header: header name; empty selects DefaultUserHeader.
// Returns:
//   - gin.HandlerFunc: middleware handler.
func Auth(header string) gin.HandlerFunc {
	if header == "" {
		header = DefaultUserHeader
	}
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(header))
		id, err := strconv.ParseUint(raw, 10, strconv.IntSize)
		if raw == "" || err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or invalid user identity",
			})
			return
		}

		ownerID := uint(id)
		ctx := logger.WithField(c.Request.Context(), logger.FieldOwnerID, ownerID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(OwnerIDKey, ownerID)
		c.Set("logger", logger.FromContext(ctx))

		c.Next()
	}
}

// OwnerID returns the authenticated user ID set by Auth.
func OwnerID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(OwnerIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
