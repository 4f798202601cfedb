package service

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidMode     = errors.New("invalid edit mode")
	ErrInvalidStatus   = errors.New("invalid session status")
	ErrNoImage         = errors.New("session has no image")
	ErrProcessingBusy  = errors.New("processing queue is full")
	ErrUnavailable     = errors.New("processing backend unavailable")
)

// ErrorCode 结构化错误码
type ErrorCode string

const (
	ErrorSessionNotFound  ErrorCode = "SESSION_NOT_FOUND"
	ErrorInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrorProcessingBusy   ErrorCode = "PROCESSING_BUSY"
	ErrorDetectionFailed  ErrorCode = "DETECTION_FAILED"
	ErrorProcessingFailed ErrorCode = "PROCESSING_FAILED"
	ErrorStorageFailed    ErrorCode = "STORAGE_FAILED"
	ErrorUnavailable      ErrorCode = "UNAVAILABLE"
)

// SessionError 会话操作错误
type SessionError struct {
	Code      ErrorCode
	Message   string
	SessionID string
	Cause     error
}

func (e *SessionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

func NewNotFoundError(sessionID string) *SessionError {
	return &SessionError{
		Code:      ErrorSessionNotFound,
		Message:   fmt.Sprintf("session %s not found", sessionID),
		SessionID: sessionID,
		Cause:     ErrSessionNotFound,
	}
}

func NewInvalidRequestError(sessionID string, cause error) *SessionError {
	return &SessionError{
		Code:      ErrorInvalidRequest,
		Message:   "invalid request",
		SessionID: sessionID,
		Cause:     cause,
	}
}

func NewBusyError(sessionID string) *SessionError {
	return &SessionError{
		Code:      ErrorProcessingBusy,
		Message:   "processing queue is full, retry later",
		SessionID: sessionID,
		Cause:     ErrProcessingBusy,
	}
}

func NewDetectionFailedError(sessionID string, cause error) *SessionError {
	return &SessionError{
		Code:      ErrorDetectionFailed,
		Message:   "text detection failed",
		SessionID: sessionID,
		Cause:     cause,
	}
}

func NewProcessingFailedError(sessionID, stage string, cause error) *SessionError {
	return &SessionError{
		Code:      ErrorProcessingFailed,
		Message:   fmt.Sprintf("%s failed", stage),
		SessionID: sessionID,
		Cause:     cause,
	}
}

func NewStorageFailedError(sessionID string, cause error) *SessionError {
	return &SessionError{
		Code:      ErrorStorageFailed,
		Message:   "failed to persist session",
		SessionID: sessionID,
		Cause:     cause,
	}
}

func NewUnavailableError(sessionID, backend string) *SessionError {
	return &SessionError{
		Code:      ErrorUnavailable,
		Message:   fmt.Sprintf("%s is not configured", backend),
		SessionID: sessionID,
		Cause:     ErrUnavailable,
	}
}

// CodeOf 返回错误码，非 SessionError 返回空
func CodeOf(err error) ErrorCode {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
