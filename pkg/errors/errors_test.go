package errors

import (
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestError_Error_WithoutInnerError(t *testing.T) {
	err := &Error{
		Code:    "TEST_CODE",
		Message: "test message",
		Stack:   []runtime.Frame{},
	}

	result := err.Error()

	assert.Contains(t, result, "code TEST_CODE")
	assert.Contains(t, result, "message test message")
	assert.NotContains(t, result, "error")
}

func TestError_Error_WithInnerError(t *testing.T) {
	innerErr := errors.New("inner error message")
	err := &Error{
		Code:       "TEST_CODE",
		Message:    "test message",
		InnerError: innerErr,
		Stack:      []runtime.Frame{},
	}

	result := err.Error()

	assert.Contains(t, result, "error inner error message")
	assert.Contains(t, result, "code TEST_CODE")
	assert.Contains(t, result, "message test message")
}

func TestError_GetTopStackString_EmptyStack(t *testing.T) {
	err := &Error{Stack: []runtime.Frame{}}
	assert.Empty(t, err.GetTopStackString())
}

func TestError_GetStackString_WithMultipleFrames(t *testing.T) {
	err := New("CODE", "message")
	result := err.GetStackString()
	lines := strings.Split(strings.TrimSpace(result), "\n")
	assert.GreaterOrEqual(t, len(lines), 1)
}

func TestError_Chaining(t *testing.T) {
	innerErr := errors.New("inner error")
	err := &Error{}

	err.WithCode("CHAINED_CODE").
		WithMessage("chained message").
		WithError(innerErr)

	assert.Equal(t, "CHAINED_CODE", err.Code)
	assert.Equal(t, "chained message", err.Message)
	assert.Equal(t, innerErr, err.InnerError)
}

func TestError_ImplementsErrorInterface(t *testing.T) {
	var _ error = &Error{}
}

func TestError_Unwrap(t *testing.T) {
	innerErr := errors.New("inner")
	err := Wrap(innerErr, "CODE", "wrapped")

	assert.Same(t, innerErr, errors.Unwrap(err))
	assert.True(t, errors.Is(err, innerErr))
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(nil, "CODE", "message"))
}

func TestNew_CapturesStack(t *testing.T) {
	err := New("CODE", "message")
	assert.NotEmpty(t, err.Stack)
	assert.NotEmpty(t, err.GetTopStackString())
}

func TestTemporaryError_Error(t *testing.T) {
	err := NewTemporaryError("not ready", 5*time.Second)
	assert.Equal(t, "not ready", err.Error())
}

func TestAsTemporary(t *testing.T) {
	delay, ok := AsTemporary(NewIncompleteResults(10 * time.Second))
	assert.True(t, ok)
	assert.Equal(t, 10*time.Second, delay)

	_, ok = AsTemporary(errors.New("plain"))
	assert.False(t, ok)
}

func TestNewParseError(t *testing.T) {
	inner := errors.New("bad line")
	err := NewParseError("could not parse result", inner)

	assert.Equal(t, "PARSE_ERROR", err.Code)
	assert.Same(t, inner, err.InnerError)
}
