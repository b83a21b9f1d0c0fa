package main

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	ErrBookNotFound         = errors.New("book not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrReviewNotFound       = errors.New("review not found")
	ErrNotificationNotFound = errors.New("notification not found")

	ErrDuplicateBook     = errors.New("a book with the same isbn already exists")
	ErrDuplicateCategory = errors.New("a category with the same name already exists")

	ErrEmptyRequestBody   = errors.New("request body is empty")
	ErrInvalidRequestBody = errors.New("request body is not valid json")
	ErrInvalidID          = errors.New("identifier provided is not valid")

	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrMissingToken       = errors.New("missing authentication token")
	ErrInvalidToken       = errors.New("invalid or expired authentication token")

	ErrUnknownChannel = errors.New("unknown notification channel")
)

// StatusFromError maps an error returned by the services to the http status
// code sent to the client. Unknown errors are reported as internal errors.
func StatusFromError(err error) int {
	var verrs validation.Errors
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrBookNotFound),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrCategoryNotFound),
		errors.Is(err, ErrReviewNotFound),
		errors.Is(err, ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateBook),
		errors.Is(err, ErrDuplicateCategory):
		return http.StatusConflict
	case errors.Is(err, ErrEmptyRequestBody),
		errors.Is(err, ErrInvalidRequestBody),
		errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrUnknownChannel),
		errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrMissingToken),
		errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// ErrorData returns the payload to attach to an error response. Validation
// failures expose their field-level messages, client errors their own text
// and server errors nothing at all.
func ErrorData(err error) interface{} {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return verrs
	}
	if StatusFromError(err) == http.StatusInternalServerError {
		return EmptyData
	}
	return err.Error()
}
