package middleware

import (
	"fmt"

	"github.com/JonnyWalker81/nillabg/internal/apierror"
	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/gin-gonic/gin"
)

// Recovery turns a handler panic into a problem+json 500
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithContext(c.Request.Context()).Error("panic recovered",
					logger.String("panic", fmt.Sprint(r)),
					logger.String("path", c.Request.URL.Path),
				)
				apierror.WriteProblem(c, apierror.NewInternalError(apierror.GetRequestID(c)))
			}
		}()
		c.Next()
	}
}
