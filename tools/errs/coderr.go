package errs

import (
	"errors"
	"strconv"
	"strings"
)

// ===== error codes =====
//
// Codes ride on the JSON API responses and the websocket error frames, so
// they stay stable once clients depend on them.
const (
	CodeAuthRequired    = 10001 // missing credential
	CodeInvalidToken    = 10002 // credential rejected
	CodeBadRequest      = 10400 // malformed or incomplete input
	CodeNotFound        = 10404 // record does not exist
	CodeForbidden       = 10403 // caller is not a participant
	CodeConflict        = 10409 // duplicate pending invitation etc.
	CodeInternal        = 10500 // store or server failure
	CodeInvalidPassword = 10011 // login with wrong credentials
)

var (
	ErrAuthRequired = NewCodeError(CodeAuthRequired, "Authentication required")
	ErrInvalidToken = NewCodeError(CodeInvalidToken, "Invalid token")
	ErrBadRequest   = NewCodeError(CodeBadRequest, "bad request")
	ErrNotFound     = NewCodeError(CodeNotFound, "record not found")
	ErrForbidden    = NewCodeError(CodeForbidden, "not authorized")
	ErrConflict     = NewCodeError(CodeConflict, "conflict")
	ErrInternal     = NewCodeError(CodeInternal, "internal server error")
)

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

// WithDetail returns a copy carrying extra context; the receiver is shared
// package state and must not be mutated.
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

func (e *CodeError) Is(err error) bool {
	var ce *CodeError
	if !errors.As(err, &ce) {
		return false
	}
	return e.Code == ce.Code
}

// Code extracts the numeric code from err, falling back to CodeInternal for
// plain errors.
func Code(err error) int {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeInternal
}
