package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okunev/bookshelf-bot/pkg/log"
)

type ErrorType int

const (
	ErrFileNotFound ErrorType = iota
	ErrFileRead
	ErrFileWrite
	ErrParse
	ErrValidation
	ErrConfig
	ErrConversion
	ErrStorage
	ErrForbidden
	ErrUnknown
)

// BotError carries a typed failure with optional key/value context, so
// callers can branch on the type while logs keep the detail.
type BotError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *BotError {
	return &BotError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *BotError {
	return &BotError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *BotError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *BotError) Unwrap() error {
	return e.Cause
}

func (e *BotError) WithContext(key string, value any) *BotError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrFileNotFound:
		return "FileNotFound"
	case ErrFileRead:
		return "FileRead"
	case ErrFileWrite:
		return "FileWrite"
	case ErrParse:
		return "Parse"
	case ErrValidation:
		return "Validation"
	case ErrConfig:
		return "Config"
	case ErrConversion:
		return "Conversion"
	case ErrStorage:
		return "Storage"
	case ErrForbidden:
		return "Forbidden"
	default:
		return "Unknown"
	}
}

type ErrorHandler interface {
	Handle(err error) bool
	GetAdvice(err *BotError) string
}

type DefaultErrorHandler struct{}

func NewDefaultErrorHandler() ErrorHandler {
	return &DefaultErrorHandler{}
}

func (h *DefaultErrorHandler) Handle(err error) bool {
	var botErr *BotError
	if !errors.As(err, &botErr) {
		log.Error("Unknown Error: %v", err)
		return false
	}

	advice := h.GetAdvice(botErr)
	log.Error("Error Detail: %v\n advice: %s", err, advice)

	return true
}

// GetAdvice returns error handling advice
func (h *DefaultErrorHandler) GetAdvice(err *BotError) string {
	switch err.Type {
	case ErrFileNotFound:
		return "Please check that the book file path is correct and the file exists with read permissions"
	case ErrFileRead:
		return "Please check file permissions and verify the book file is not corrupted"
	case ErrFileWrite:
		return "Please ensure the data and upload directories exist and have write permissions"
	case ErrParse:
		return "Please verify the uploaded file is a valid FB2 document or a zip archive containing one"
	case ErrValidation:
		return "Please verify input parameters are correct—titles and event dates cannot be empty"
	case ErrConfig:
		return "Please check that configuration files or environment variables are set correctly"
	case ErrConversion:
		return "Please check that the calibre converter is installed and the source book opens in a reader"
	case ErrStorage:
		return "Please check the data directory for disk space and file permissions"
	case ErrForbidden:
		return "This operation is restricted to administrators"
	default:
		return "Please review detailed error information and check relevant configuration and files"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var botErr *BotError
	if errors.As(err, &botErr) {
		return botErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *BotError {
	return NewErrorWithCause(errorType, message, err)
}
