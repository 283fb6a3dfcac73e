package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error

	// Sync errors
	CodeInvalidPath     = "E_INVALID_PATH"      // the supplied path is malformed or escapes the content root.
	CodeFileNotFound    = "E_FILE_NOT_FOUND"    // the requested file does not exist on the server.
	CodePayloadTooLarge = "E_PAYLOAD_TOO_LARGE" // the uploaded file exceeds the configured size limit.
	CodeCommitFailed    = "E_COMMIT_FAILED"     // a failure while applying a commit session.
)
