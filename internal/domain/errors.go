package domain

import (
	"errors"
	"fmt"
)

// ErrorKind identifies a failure reported by the extraction pipeline
type ErrorKind string

const (
	KindValidation            ErrorKind = "validation"
	KindInvalidEndpoint       ErrorKind = "invalid_endpoint"
	KindInvalidServerResponse ErrorKind = "invalid_server_response"
	KindServerStatus          ErrorKind = "server_status"
	KindServerMessage         ErrorKind = "server_message"
	KindEmptyVideoURL         ErrorKind = "empty_video_url"
	KindInvalidPayload        ErrorKind = "invalid_payload"
	KindNetwork               ErrorKind = "network"
	KindNoVideoAvailable      ErrorKind = "no_video_available"
	KindFileSaveFailed        ErrorKind = "file_save_failed"
	KindPermissionDenied      ErrorKind = "permission_denied"
	KindLibrarySaveFailed     ErrorKind = "library_save_failed"
)

// ErrorCategory groups error kinds the way they are presented to users
type ErrorCategory string

const (
	CategoryValidation   ErrorCategory = "validation"
	CategoryNetwork      ErrorCategory = "network"
	CategoryServer       ErrorCategory = "server"
	CategoryLocalStorage ErrorCategory = "local_storage"
	CategoryPermission   ErrorCategory = "permission"
)

// ErrHistoryNotFound is returned when a history record id does not exist
var ErrHistoryNotFound = errors.New("history record not found")

// ExtractError is the error type surfaced by every pipeline stage
type ExtractError struct {
	Kind       ErrorKind
	StatusCode int    // set for server_status, and for server_message when it came with a non-2xx
	Message    string // server_message text or validation reason
	Cause      error
}

func (e *ExtractError) Error() string {
	var msg string
	switch e.Kind {
	case KindServerStatus:
		msg = fmt.Sprintf("%s (%d)", e.Kind, e.StatusCode)
	case KindServerMessage, KindValidation:
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ExtractError) Unwrap() error {
	return e.Cause
}

// Category reports whether the failure came from the network, the server,
// local storage, permissions or input validation.
func (e *ExtractError) Category() ErrorCategory {
	switch e.Kind {
	case KindValidation:
		return CategoryValidation
	case KindNetwork:
		return CategoryNetwork
	case KindFileSaveFailed, KindNoVideoAvailable, KindLibrarySaveFailed:
		return CategoryLocalStorage
	case KindPermissionDenied:
		return CategoryPermission
	default:
		return CategoryServer
	}
}

// UserMessage returns a short human-readable reason
func (e *ExtractError) UserMessage() string {
	switch e.Kind {
	case KindValidation:
		return e.Message
	case KindInvalidEndpoint:
		return "Extraction service address is invalid"
	case KindInvalidServerResponse:
		return "Service response was malformed, please retry later"
	case KindServerStatus:
		return fmt.Sprintf("Extraction service error (%d)", e.StatusCode)
	case KindServerMessage:
		return e.Message
	case KindEmptyVideoURL:
		return "No usable video URL was returned"
	case KindInvalidPayload:
		return "Failed to decode the service response"
	case KindNetwork:
		if e.Cause != nil {
			return "Network error: " + e.Cause.Error()
		}
		return "Network error"
	case KindNoVideoAvailable:
		return "No video is available to download"
	case KindFileSaveFailed:
		return "Video download failed, please retry"
	case KindPermissionDenied:
		return "Allow access to the media library in system settings"
	case KindLibrarySaveFailed:
		return "Saving to the media library failed, please retry"
	default:
		return "Extraction failed, please retry later"
	}
}

func NewValidationError(message string) *ExtractError {
	return &ExtractError{Kind: KindValidation, Message: message}
}

func NewServerStatusError(code int) *ExtractError {
	return &ExtractError{Kind: KindServerStatus, StatusCode: code}
}

func NewServerMessageError(code int, message string) *ExtractError {
	return &ExtractError{Kind: KindServerMessage, StatusCode: code, Message: message}
}

// NewTransportError wraps an error returned by an HTTP round trip. Transient
// transport failures become network errors; anything else means the peer did
// not produce a usable HTTP reply.
func NewTransportError(err error) *ExtractError {
	switch ClassifyNetError(err) {
	case NetErrorOther:
		return &ExtractError{Kind: KindInvalidServerResponse, Cause: err}
	default:
		return &ExtractError{Kind: KindNetwork, Cause: err}
	}
}

// NewKindError creates an error of the given kind with an optional cause
func NewKindError(kind ErrorKind, cause error) *ExtractError {
	return &ExtractError{Kind: kind, Cause: cause}
}

// AsExtractError unwraps err into an ExtractError
func AsExtractError(err error) (*ExtractError, bool) {
	var extractErr *ExtractError
	if errors.As(err, &extractErr) {
		return extractErr, true
	}
	return nil, false
}

// IsKind reports whether err is an ExtractError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	extractErr, ok := AsExtractError(err)
	return ok && extractErr.Kind == kind
}

// UserMessage returns the user-facing reason for any error
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if extractErr, ok := AsExtractError(err); ok {
		return extractErr.UserMessage()
	}
	return "Extraction failed, please retry later"
}
