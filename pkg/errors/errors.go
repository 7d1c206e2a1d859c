// Package errors provides the operator's error type: a code, a human
// message, an optional wrapped error and a captured call stack, with
// fluent builders so call sites can attach context without an if-chain.
package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// Error is the operator-wide error type. Code is a short machine-matchable
// string (e.g. "PARSE_ERROR", "PRIORITY_EXHAUSTED"); Message is for humans.
type Error struct {
	Code       string
	Message    string
	InnerError error
	Stack      []runtime.Frame
}

// New creates an Error with the call stack captured at the call site.
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Stack:   captureStack(),
	}
}

// Wrap creates an Error around an existing error, capturing the call stack
// at the call site. If err is nil, Wrap returns nil.
func Wrap(err error, code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:       code,
		Message:    message,
		InnerError: err,
		Stack:      captureStack(),
	}
}

func captureStack() []runtime.Frame {
	pcs := make([]uintptr, 32)
	// skip Callers, captureStack, and New/Wrap.
	n := runtime.Callers(3, pcs)
	if n == 0 {
		return []runtime.Frame{}
	}
	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]runtime.Frame, 0, n)
	for {
		frame, more := frames.Next()
		stack = append(stack, frame)
		if !more {
			break
		}
	}
	return stack
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.InnerError != nil {
		fmt.Fprintf(&b, "error %s, ", e.InnerError.Error())
	}
	fmt.Fprintf(&b, "code %s, message %s", e.Code, e.Message)
	return b.String()
}

// Unwrap allows errors.Is / errors.As to see through to InnerError.
func (e *Error) Unwrap() error {
	return e.InnerError
}

// WithCode sets the error code and returns the receiver, for chaining.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithMessage sets the message and returns the receiver, for chaining.
func (e *Error) WithMessage(message string) *Error {
	e.Message = message
	return e
}

// WithError sets the inner error and returns the receiver, for chaining.
func (e *Error) WithError(err error) *Error {
	e.InnerError = err
	return e
}

// GetTopStackString renders the innermost frame as "file:line func".
func (e *Error) GetTopStackString() string {
	if len(e.Stack) == 0 {
		return ""
	}
	return formatFrame(e.Stack[0])
}

// GetStackString renders every captured frame, one per line.
func (e *Error) GetStackString() string {
	if len(e.Stack) == 0 {
		return ""
	}
	lines := make([]string, len(e.Stack))
	for i, f := range e.Stack {
		lines[i] = formatFrame(f)
	}
	return strings.Join(lines, "\n")
}

func formatFrame(f runtime.Frame) string {
	name := "unknown"
	if f.Func != nil {
		name = f.Func.Name()
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
	}
	return fmt.Sprintf("%s:%d %s", f.File, f.Line, name)
}
