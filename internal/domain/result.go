package domain

import "errors"

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrorKind classifies a failed Result. Empty for successful results.
type ErrorKind string

const (
	KindNotConnected      ErrorKind = "not_connected"
	KindUnknownCommand    ErrorKind = "unknown_command"
	KindHandlerFailure    ErrorKind = "handler_failure"
	KindValidationFailure ErrorKind = "validation_failure"
)

// ErrValidation is wrapped by handlers that reject their parameters.
var ErrValidation = errors.New("validation failed")

// Result is what every command returns. Speech is read aloud, Message is
// meant for logs and UIs. They may be identical.
type Result struct {
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Speech  string         `json:"speech"`
	Data    map[string]any `json:"data,omitempty"`
	Code    ErrorKind      `json:"code,omitempty"`
}

// Success builds a result whose message is also spoken.
func Success(message string) Result {
	return Result{Status: StatusSuccess, Message: message, Speech: message}
}

func Failure(kind ErrorKind, message string) Result {
	return Result{Status: StatusError, Message: message, Code: kind}
}

func (r Result) OK() bool {
	return r.Status == StatusSuccess
}
