package apierror

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContentTypeProblemJSON is the MIME type for RFC 9457 Problem Details.
const ContentTypeProblemJSON = "application/problem+json"

// RequestIDKey is the gin context key the request ID middleware stores under
const RequestIDKey = "request_id"

// WriteProblem writes a ProblemDetails response to the gin context and aborts
// the handler chain.
func WriteProblem(c *gin.Context, problem *ProblemDetails) {
	if problem.Instance == "" && c.Request != nil {
		problem.Instance = c.Request.URL.Path
	}
	c.Header("Content-Type", ContentTypeProblemJSON)
	c.AbortWithStatusJSON(problem.Status, problem)
}

// GetRequestID extracts the request ID from the gin context.
// Returns empty string if not found.
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return c.GetHeader("X-Request-ID")
}

// NewBadRequestError creates a 400 response for a malformed query parameter.
func NewBadRequestError(requestID, field, detail string) *ProblemDetails {
	return &ProblemDetails{
		Type:      TypeBadRequest,
		Title:     TitleBadRequest,
		Status:    http.StatusBadRequest,
		Detail:    detail,
		RequestID: requestID,
		Errors:    []FieldError{{Field: field, Message: detail, Code: "invalid"}},
	}
}

// NewInvalidDateError creates a 400 response for a date that is not YYYY-MM-DD.
func NewInvalidDateError(requestID, field, value string) *ProblemDetails {
	return &ProblemDetails{
		Type:      TypeInvalidDate,
		Title:     TitleInvalidDate,
		Status:    http.StatusBadRequest,
		Detail:    fmt.Sprintf("Invalid date for '%s': '%s'", field, value),
		RequestID: requestID,
		Errors: []FieldError{
			{Field: field, Message: "must be a date in YYYY-MM-DD format", Code: "invalid_date"},
		},
	}
}

// NewNotFoundError creates a 404 response for an unknown route.
func NewNotFoundError(requestID, path string) *ProblemDetails {
	return &ProblemDetails{
		Type:      TypeNotFound,
		Title:     TitleNotFound,
		Status:    http.StatusNotFound,
		Detail:    fmt.Sprintf("No route matches '%s'", path),
		RequestID: requestID,
	}
}

// NewInternalError creates a 500 response.
// The underlying error is logged server-side and never sent to the client.
func NewInternalError(requestID string) *ProblemDetails {
	return &ProblemDetails{
		Type:      TypeInternal,
		Title:     TitleInternal,
		Status:    http.StatusInternalServerError,
		Detail:    "An unexpected error occurred",
		RequestID: requestID,
	}
}

// NewUnavailableError creates a 503 response for an unreachable database.
func NewUnavailableError(requestID string) *ProblemDetails {
	return &ProblemDetails{
		Type:      TypeUnavailable,
		Title:     TitleUnavailable,
		Status:    http.StatusServiceUnavailable,
		Detail:    "The warehouse database is unavailable",
		RequestID: requestID,
	}
}
