package middleware

import (
	"github.com/JonnyWalker81/nillabg/internal/apierror"
	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/gin-gonic/gin"
)

// HeaderRequestID carries the correlation ID in both directions
const HeaderRequestID = "X-Request-ID"

// RequestID reuses the caller's X-Request-ID or generates one, stores it on
// the gin context and the request context, and echoes it in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := logger.WithRequestID(c.Request.Context(), c.GetHeader(HeaderRequestID))
		id := logger.RequestIDFromContext(ctx)

		c.Request = c.Request.WithContext(ctx)
		c.Set(apierror.RequestIDKey, id)
		c.Header(HeaderRequestID, id)

		c.Next()
	}
}
