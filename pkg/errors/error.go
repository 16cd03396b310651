// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package errors implements the runtime's typed domain error: a builder-style
// value carrying a stable code, a human message, an optional wrapped cause,
// and the stack captured at construction time.
package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// Error is the single error type every service-layer operation returns.
type Error struct {
	Code       int
	Message    string
	InnerError error
	Stack      []runtime.Frame
}

// NewError starts a new Error, capturing the current call stack.
func NewError() *Error {
	return &Error{
		Stack: captureStack(2),
	}
}

// WithCode sets the domain error code.
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// WithMessage sets a human-readable message.
func (e *Error) WithMessage(message string) *Error {
	e.Message = message
	return e
}

// WithMessagef sets a formatted human-readable message.
func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// WithError attaches the wrapped cause.
func (e *Error) WithError(err error) *Error {
	e.InnerError = err
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "code %d message %s", e.Code, e.Message)
	if e.InnerError != nil {
		fmt.Fprintf(&b, " error %s", e.InnerError.Error())
	}
	fmt.Fprintf(&b, " stack %s", e.GetStackString())
	return b.String()
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.InnerError
}

// GetStackString renders the captured stack as "file:line function" lines.
func (e *Error) GetStackString() string {
	if len(e.Stack) == 0 {
		return ""
	}
	var b strings.Builder
	for _, frame := range e.Stack {
		fmt.Fprintf(&b, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
	}
	return b.String()
}

// WrapError builds an Error from an existing cause in one call.
func WrapError(err error, message string, code int) *Error {
	return NewError().WithCode(code).WithMessage(message).WithError(err)
}

// WrapMessage builds a causeless Error in one call.
func WrapMessage(message string, code int) *Error {
	return NewError().WithCode(code).WithMessage(message)
}

func captureStack(skip int) []runtime.Frame {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return nil
	}
	framesIter := runtime.CallersFrames(pcs[:n])
	frames := make([]runtime.Frame, 0, n)
	for {
		frame, more := framesIter.Next()
		frames = append(frames, frame)
		if !more {
			break
		}
	}
	return frames
}
