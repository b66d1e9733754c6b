package app

import "fmt"

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	errSessionNotFound = domainError(404, "SESSION_NOT_FOUND", "Edit session not found", nil)
	errNoPreview       = domainError(409, "NO_PREVIEW", "No extraction preview to confirm", nil)
	errMediaNotFound   = domainError(404, "NOT_FOUND", "Not found", nil)
)
