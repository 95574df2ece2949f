package cdpcontrol

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CodeValidation     = "VALIDATION"
	CodeTargetNotFound = "TARGET_NOT_FOUND"
	CodeTabNotFound    = "TAB_NOT_FOUND"
	CodeCDPUnavailable = "CDP_UNAVAILABLE"
	CodeHostRejected   = "HOST_REJECTED"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// NewError builds a CodedError for callers outside the package.
func NewError(code, msg string, cause error) error {
	return newError(code, msg, cause)
}

// ErrorCode returns the code of the first CodedError in err's chain, or "".
func ErrorCode(err error) string {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// protocolError is an error object returned by the browser for a command.
type protocolError struct {
	Method  string
	Code    int64
	Message string
}

func (e *protocolError) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Method, e.Message, e.Code)
}

// classify wraps a failed command in a CodedError. Protocol errors mean the
// browser refused the command; anything else means the connection failed.
func classify(method string, err error) error {
	var pe *protocolError
	if errors.As(err, &pe) {
		if strings.Contains(strings.ToLower(pe.Message), "no target with given id") {
			return newError(CodeTabNotFound, method+" failed: tab not found", err)
		}
		return newError(CodeHostRejected, method+" rejected", err)
	}
	return newError(CodeCDPUnavailable, method+" failed", err)
}
