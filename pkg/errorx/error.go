package errorx

import (
	"errors"
	"fmt"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func New(code Code, format string, a ...any) Error {
	return Error{Code: code, Message: fmt.Sprintf(format, a...)}
}

func (e Error) Error() string {
	return e.Message
}

// Is reports whether any error in err's chain is an errorx.Error with the
// given code.
func Is(err error, code Code) bool {
	var e Error
	if !errors.As(err, &e) {
		return false
	}

	return e.Code == code
}

// Wrap converts an arbitrary error into an errorx.Error. Errors which are
// already errorx.Error are returned unchanged, anything else is reported with
// the given code and its own message.
func Wrap(err error, code Code) Error {
	var e Error
	if errors.As(err, &e) {
		return e
	}

	return Error{Code: code, Message: err.Error()}
}
