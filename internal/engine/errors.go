package engine

import "fmt"

type AppError struct {
	Code    string        `json:"code"`
	Status  int           `json:"-"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func NotFoundError(entity, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s with id %s not found", entity, id),
	}
}

func UnknownEntityError(name string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_ENTITY",
		Status:  404,
		Message: fmt.Sprintf("Unknown entity: %s", name),
	}
}

func ValidationError(details []ErrorDetail) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Status:  422,
		Message: "Validation failed",
		Details: details,
	}
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

func ForbiddenError(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}

func ConflictError(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Status: 409, Message: msg}
}

// Relation integrity failures. Each one aborts the current apply/resolve
// call before any getter is installed.

func NotAppliedError(target string) *AppError {
	return &AppError{
		Code:    "RELATION_NOT_APPLIED",
		Status:  500,
		Message: fmt.Sprintf("relation to %s resolved before apply", target),
	}
}

func TargetUnresolvableError(target string) *AppError {
	return &AppError{
		Code:    "TARGET_UNRESOLVABLE",
		Status:  422,
		Message: fmt.Sprintf("target model %s does not exist or has no primary key", target),
	}
}

func TargetKeyMissingError(target string) *AppError {
	return &AppError{
		Code:    "TARGET_KEY_MISSING",
		Status:  500,
		Message: fmt.Sprintf("primary key of target model %s is unresolved", target),
	}
}

func NullNotAllowedError(model, path string) *AppError {
	return &AppError{
		Code:    "NULL_NOT_ALLOWED",
		Status:  422,
		Message: fmt.Sprintf("relation at %s.%s is not nullable", model, path),
	}
}

func DanglingReferenceError(target string, id any) *AppError {
	return &AppError{
		Code:    "DANGLING_REFERENCE",
		Status:  422,
		Message: fmt.Sprintf("referenced %s with id %v does not exist", target, id),
	}
}

func UniquenessViolationError(target string, targetID any, ownerID any) *AppError {
	return &AppError{
		Code:    "UNIQUE_VIOLATION",
		Status:  422,
		Message: fmt.Sprintf("%s with id %v is already referenced by entity %v", target, targetID, ownerID),
	}
}
