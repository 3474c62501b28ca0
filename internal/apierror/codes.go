package apierror

// Error type URIs following the urn:nillabg:error:* pattern.
// These are used as the "type" field in RFC 9457 Problem Details.
const (
	// TypeBadRequest indicates a malformed query parameter (400)
	TypeBadRequest = "urn:nillabg:error:bad_request"

	// TypeInvalidDate indicates a date that is not YYYY-MM-DD (400)
	TypeInvalidDate = "urn:nillabg:error:invalid_date"

	// TypeNotFound indicates the requested route does not exist (404)
	TypeNotFound = "urn:nillabg:error:not_found"

	// TypeInternal indicates an unexpected server error (500)
	TypeInternal = "urn:nillabg:error:internal"

	// TypeUnavailable indicates the warehouse database cannot be reached (503)
	TypeUnavailable = "urn:nillabg:error:unavailable"
)

// Titles for each error type
const (
	TitleBadRequest  = "Bad Request"
	TitleInvalidDate = "Invalid Date"
	TitleNotFound    = "Resource Not Found"
	TitleInternal    = "Internal Server Error"
	TitleUnavailable = "Service Unavailable"
)
