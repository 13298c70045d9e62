package app

import "errors"

var (
	// ErrValidation marks bad input; the wrapping ValidationError carries the message.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthenticated indicates a missing or invalid session.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidCredentials is returned by Login for an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound covers missing entities and entities the caller does not own.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyDecided indicates a swap or payment has already left its pending state.
	ErrAlreadyDecided = errors.New("already decided")
	// ErrOwnBook rejects buying a book the caller owns.
	ErrOwnBook = errors.New("cannot purchase your own book")
	// ErrBookSold rejects buying a book that is already sold.
	ErrBookSold = errors.New("book already sold")
	// ErrUsernameTaken indicates the username belongs to another account.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrRateLimited indicates the caller exceeded a request quota.
	ErrRateLimited = errors.New("too many requests")
)

// ValidationError is a user-facing input error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
