package errs

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error to the HTTP status its API response carries.
func HTTPStatus(err error) int {
	switch Code(err) {
	case CodeAuthRequired, CodeInvalidToken, CodeInvalidPassword:
		return http.StatusUnauthorized
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the API-facing message for an error. Internal errors keep
// their detail out of responses.
func Message(err error) string {
	var ce *CodeError
	if errors.As(err, &ce) {
		if ce.Detail != "" {
			return ce.Detail
		}
		return ce.Msg
	}
	return ErrInternal.Msg
}
