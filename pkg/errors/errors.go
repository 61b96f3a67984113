package errors

import "fmt"

/*
AgentError represents a protocol-level failure in the research mesh.
The code identifies the failure class so handlers can convert it into
the right terminal message without string matching.
*/
type AgentError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

/*
Error implements the error interface for AgentError.
*/
func (e *AgentError) Error() string {
	return fmt.Sprintf("agent error %d: %s", e.Code, e.Message)
}

// Failure classes. 1xx are pre-execution rejections resolved locally,
// 2xx happen during or after execution, 3xx are infrastructure.
var (
	ErrMalformedMessage = &AgentError{Code: 100, Message: "Malformed message"}
	ErrToolNotFound     = &AgentError{Code: 101, Message: "Tool not found"}
	ErrValidation       = &AgentError{Code: 102, Message: "Invalid inputs"}
	ErrConstraint       = &AgentError{Code: 103, Message: "Constraint violated"}
	ErrUnauthorized     = &AgentError{Code: 104, Message: "Not authorized"}

	ErrExecution      = &AgentError{Code: 200, Message: "Execution failed"}
	ErrApprovalDenied = &AgentError{Code: 201, Message: "Approval denied"}

	ErrTransport = &AgentError{Code: 300, Message: "Transport failure"}
)

// WithMessagef creates a *copy* of an AgentError with a formatted message.
// It does not modify the original error variable.
func (e *AgentError) WithMessagef(format string, args ...any) *AgentError {
	newErr := *e // Create a shallow copy
	newErr.Message = fmt.Sprintf(format, args...)
	return &newErr
}

// Is allows errors.Is checks against the sentinel values by code.
func (e *AgentError) Is(target error) bool {
	other, ok := target.(*AgentError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}
