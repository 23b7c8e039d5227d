package models

// ErrorCode is the code field of a lobby:error event.
type ErrorCode string

const (
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeFull           ErrorCode = "FULL"
	ErrCodeAlreadyStarted ErrorCode = "ALREADY_STARTED"
	ErrCodeNotHost        ErrorCode = "NOT_HOST"
	ErrCodeInvalidState   ErrorCode = "INVALID_STATE"
	ErrCodeNameRequired   ErrorCode = "NAME_REQUIRED"
)
