package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInvalidInput   = "invalid_input"
	CodeContentInvalid = "content_invalid"
	CodeNotFound       = "not_found"
	CodeReferential    = "referential_error"
	CodeStreamFailed   = "stream_failed"
	CodeInternal       = "internal_error"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// InputFormat covers bad extensions, encodings, delimiters and request fields.
func InputFormat(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeInvalidInput, fmt.Errorf(format, args...))
}

// ContentValidation covers well-formed input whose content is rejected.
func ContentValidation(format string, args ...any) *Error {
	return New(http.StatusUnprocessableEntity, CodeContentInvalid, fmt.Errorf(format, args...))
}

func NotFound(err error) *Error {
	return New(http.StatusNotFound, CodeNotFound, err)
}

func Referential(err error) *Error {
	return New(http.StatusInternalServerError, CodeReferential, err)
}

func StreamFailure(err error) *Error {
	return New(http.StatusBadGateway, CodeStreamFailed, err)
}

// From extracts an *Error from err, falling back to a 500 wrapper.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return New(http.StatusInternalServerError, CodeInternal, err)
}

func Is(err error, code string) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}
