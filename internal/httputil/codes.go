package httputil

// Machine-readable error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequestBody    = "INVALID_REQUEST_BODY"
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeAlreadyRegistered     = "ALREADY_REGISTERED"
	CodeNotFound              = "NOT_FOUND"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeInvalidOrExpiredCode  = "INVALID_OR_EXPIRED_CODE"
	CodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	CodeUnauthenticated       = "UNAUTHENTICATED"
	CodeInvalidAuthHeader     = "INVALID_AUTH_HEADER"
	CodeTokenExpired          = "TOKEN_EXPIRED"
	CodeInternalError         = "INTERNAL_ERROR"
)
