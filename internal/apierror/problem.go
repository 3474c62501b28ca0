// Package apierror provides RFC 9457 Problem Details error responses for the
// read-only warehouse API.
package apierror

// ProblemDetails represents an RFC 9457 Problem Details response.
// See https://www.rfc-editor.org/rfc/rfc9457.html
type ProblemDetails struct {
	Type     string `json:"type"`               // URI reference identifying the problem type
	Title    string `json:"title"`              // Short human-readable summary
	Status   int    `json:"status"`             // HTTP status code
	Detail   string `json:"detail,omitempty"`   // Explanation specific to this occurrence
	Instance string `json:"instance,omitempty"` // Request path

	RequestID string       `json:"request_id,omitempty"` // Correlation ID from X-Request-ID header
	Errors    []FieldError `json:"errors,omitempty"`     // Offending query parameters
}

// FieldError names one query parameter that failed validation
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error implements the error interface for ProblemDetails.
func (p *ProblemDetails) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}
