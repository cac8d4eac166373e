package errors

import "net/http"

// Error code constants.
// Messages attached by the constructors below are the fixed user-facing texts
// shown on the error view; backend logs carry the wrapped cause.

// Upload form codes (client-side validation, never sent upstream).
const (
	CodeInvalidFileType = "INVALID_FILE_TYPE"
	CodeFileRequired    = "FILE_REQUIRED"
)

// Upload and staging codes.
const (
	CodeUploadFailed     = "UPLOAD_FAILED"
	CodeUploadTimeout    = "UPLOAD_TIMEOUT"
	CodeStagingFailed    = "STAGING_FAILED"
	CodeStagingNotReady  = "STAGING_NOT_READY"
	CodeStageNotFound    = "STAGE_NOT_FOUND"
	CodeStagePending     = "STAGE_PENDING"
	CodeReportNotFound   = "REPORT_NOT_FOUND"
	CodeActionInFlight   = "ACTION_IN_FLIGHT"
	CodeCommitFailed     = "COMMIT_FAILED"
	CodeDiscardFailed    = "DISCARD_FAILED"
	CodeUpstreamError    = "UPSTREAM_ERROR"
	CodeRateLimited      = "RATE_LIMITED"
	CodeWorkflowRejected = "WORKFLOW_REJECTED"
	CodeInternal         = "INTERNAL_ERROR"
)

// Registration lookup codes.
const (
	CodeInvalidSearch = "INVALID_SEARCH"
	CodeLookupFailed  = "LOOKUP_FAILED"
)

// API contract codes.
const (
	CodeOpenAPIRouteInvalid   = "OPENAPI_ROUTE_INVALID"
	CodeOpenAPIRequestInvalid = "OPENAPI_REQUEST_INVALID"
)

// Auth codes.
const (
	CodeAuthFailed   = "AUTH_FAILED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeAccessDenied = "ACCESS_DENIED"
)

// User-facing messages.
const (
	MsgFileFormat        = "The file format must be .CSV"
	MsgStagingFailed     = "Staging failed, please try again later"
	MsgNoStageID         = "No stage_id found"
	MsgCommitFailed      = "Error committing registrations"
	MsgDiscardFailed     = "Error discarding registrations"
	MsgActionInFlight    = "This request is already being processed"
	MsgStagePending      = "A previous upload is waiting to be confirmed or discarded"
	MsgSessionExpired    = "Your session has expired, please sign in again"
	MsgAuthFailed        = "You need to sign in to upload registrations"
	MsgAccessDenied      = "You do not have permission to upload registrations"
	MsgGettingRecords    = "Getting records failed try again later!"
	MsgReportUnavailable = "The upload report is not available yet"
	MsgInternal          = "An internal error occurred"
	MsgInvalidSearch     = "Invalid search input"
)

// ErrInvalidFileTypef creates the form error for a non-CSV file.
func ErrInvalidFileTypef(filename string) *AppError {
	return BadRequest(CodeInvalidFileType, MsgFileFormat).
		WithParams(map[string]interface{}{"filename": filename}).
		WithFieldErrors([]FieldError{{Field: "file", Code: CodeInvalidFileType, Message: "Please provide the file in .CSV format"}})
}

// ErrFileRequired creates the form error for a submission without a file.
func ErrFileRequired() *AppError {
	return BadRequest(CodeFileRequired, MsgFileFormat).
		WithFieldErrors([]FieldError{{Field: "file", Code: CodeFileRequired, Message: "Please provide the file in .CSV format"}})
}

// ErrStagingFailedf creates the error returned when the poll budget is exhausted.
func ErrStagingFailedf(stageID string, attempts int) *AppError {
	return New(CodeStagingFailed, MsgStagingFailed, http.StatusGatewayTimeout).
		WithParams(map[string]interface{}{"stage_id": stageID, "attempts": attempts})
}

// ErrStagePendingf creates the error returned when an unresolved batch blocks a new upload.
func ErrStagePendingf(stageID string) *AppError {
	return Conflict(CodeStagePending, MsgStagePending).
		WithParams(map[string]interface{}{"stage_id": stageID})
}

// ErrStageNotFound creates the error returned when no stage pointer is held.
func ErrStageNotFound() *AppError {
	return NotFound(CodeStageNotFound, MsgNoStageID)
}

// ErrActionInFlightf creates the re-entrancy guard rejection.
func ErrActionInFlightf(stageID string) *AppError {
	return Conflict(CodeActionInFlight, MsgActionInFlight).
		WithParams(map[string]interface{}{"stage_id": stageID})
}

// ErrInvalidSearchf creates the rejection of a search with malformed filters.
func ErrInvalidSearchf(fields []FieldError) *AppError {
	return BadRequest(CodeInvalidSearch, MsgInvalidSearch).WithFieldErrors(fields)
}
