package utils

import "fmt"

type AppError struct {
	Code    string
	Message string
	Origin  error // Original error that caused this error, if any
}

func (appErr *AppError) Error() string {
	if appErr.Origin != nil {
		return appErr.Message + ": " + appErr.Origin.Error()
	}
	return appErr.Message
}

// Standard error codes for the application
const (
	// Resource errors
	ErrNotFound     = "NOT_FOUND"
	ErrDuplicate    = "DUPLICATE"
	ErrInvalidInput = "INVALID_INPUT"

	// Authentication/Authorization errors
	ErrUnauthorized = "UNAUTHORIZED"
	ErrForbidden    = "FORBIDDEN" // User is authenticated but doesn't have permission
	ErrInvalidToken = "INVALID_TOKEN"

	// User-specific errors
	ErrUserNotFound       = "USER_NOT_FOUND"
	ErrUserAlreadyExists  = "USER_ALREADY_EXISTS"
	ErrInvalidCredentials = "INVALID_CREDENTIALS"

	// Conversation-specific errors
	ErrConversationNotFound = "CONVERSATION_NOT_FOUND"
	ErrNotMember            = "NOT_A_MEMBER"
	ErrAlreadyMember        = "ALREADY_MEMBER"
	ErrMemberLimitExceeded  = "MEMBER_LIMIT_EXCEEDED"

	// Message-specific errors
	ErrMessageNotFound   = "MESSAGE_NOT_FOUND"
	ErrDuplicateMessage  = "DUPLICATE_MESSAGE"
	ErrEmptyContent      = "MSG_EMPTY_CONTENT"
	ErrContentTooLong    = "MSG_TOO_LONG"
	ErrEditWindowExpired = "MSG_EDIT_WINDOW_EXPIRED"
	ErrAlreadyDeleted    = "MSG_ALREADY_DELETED"

	// Call-specific errors
	ErrCallNotFound = "CALL_NOT_FOUND"
	ErrUserBusy     = "USER_BUSY"

	// Actor communication errors
	ErrActorTimeout    = "ACTOR_TIMEOUT"
	ErrActorNotFound   = "ACTOR_NOT_FOUND"
	ErrMessageRejected = "MESSAGE_REJECTED"

	// Rate limiting
	ErrTooManyRequests = "TOO_MANY_REQUESTS"

	ErrDatabase = "database_error"
)

// Error creation helper functions
func NewAppError(code string, message string, originalErr error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Origin:  originalErr,
	}
}

// Specific error creators for common cases
func NewUserNotFoundError(userID string) *AppError {
	return &AppError{
		Code:    ErrUserNotFound,
		Message: "User not found: " + userID,
	}
}

func NewConversationNotFoundError(conversationID string) *AppError {
	return &AppError{
		Code:    ErrConversationNotFound,
		Message: "Conversation not found: " + conversationID,
	}
}

func NewNotMemberError(userID string, conversationID string) *AppError {
	return &AppError{
		Code:    ErrNotMember,
		Message: fmt.Sprintf("User %s is not a member of conversation %s", userID, conversationID),
	}
}

func NewForbiddenError(reason string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: "Forbidden: " + reason,
	}
}

func NewUnauthorizedError(reason string) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "Unauthorized: " + reason,
	}
}

func NewUserBusyError(userID string) *AppError {
	return &AppError{
		Code:    ErrUserBusy,
		Message: "User is already in an active call: " + userID,
	}
}

func NewActorTimeoutError(actorName string) *AppError {
	return &AppError{
		Code:    ErrActorTimeout,
		Message: "Actor communication timeout: " + actorName,
	}
}

// Helper method to check if an error is of a specific type
func IsErrorCode(err error, code string) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// Helper method to check if an error is related to authentication
func IsAuthError(err error) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == ErrUnauthorized ||
			appErr.Code == ErrForbidden ||
			appErr.Code == ErrInvalidToken
	}
	return false
}

// AppErrorToHTTPStatus converts an AppError code to an HTTP status code.
func AppErrorToHTTPStatus(errorCode string) int {
	switch errorCode {
	case ErrNotFound, ErrUserNotFound, ErrConversationNotFound, ErrMessageNotFound, ErrCallNotFound, ErrActorNotFound:
		return 404 // http.StatusNotFound
	case ErrInvalidInput, ErrInvalidCredentials, ErrEmptyContent, ErrContentTooLong:
		return 400 // http.StatusBadRequest
	case ErrUnauthorized, ErrInvalidToken:
		return 401 // http.StatusUnauthorized
	case ErrForbidden, ErrNotMember, ErrEditWindowExpired:
		return 403 // http.StatusForbidden
	case ErrDuplicate, ErrDuplicateMessage, ErrUserAlreadyExists, ErrAlreadyMember, ErrAlreadyDeleted, ErrUserBusy:
		return 409 // http.StatusConflict
	case ErrMemberLimitExceeded:
		return 422 // http.StatusUnprocessableEntity
	case ErrTooManyRequests:
		return 429 // http.StatusTooManyRequests
	case ErrDatabase, ErrActorTimeout, ErrMessageRejected:
		return 500 // http.StatusInternalServerError
	default:
		return 500 // http.StatusInternalServerError for unknown errors
	}
}
