// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports an invalid configuration or nil argument.
	ErrInvalidArgument = errors.New("pipeline: invalid argument")

	// ErrTooLong reports that a frame or message length exceeds a configured limit.
	ErrTooLong = errors.New("pipeline: message too long")

	// ErrClosedChannel is raised when an outbound operation targets an
	// already-closed transport. Transport-specific "socket closed" conditions
	// should be normalized onto this sentinel via errors.Is.
	ErrClosedChannel = errors.New("pipeline: channel is closed")

	// ErrNameInUse reports that a context name is already registered on the pipeline.
	ErrNameInUse = errors.New("pipeline: context name already in use")

	// ErrNoSuchContext reports that Pipeline.Get found no context with the given name.
	ErrNoSuchContext = errors.New("pipeline: no such context")
)

// BoundsError reports an out-of-range index or length against a Buffer.
type BoundsError struct {
	Op       string // accessor that failed, e.g. "getByte", "setBytes"
	Index    int
	Length   int
	Capacity int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("pipeline: %s out of bounds: index=%d length=%d capacity=%d",
		e.Op, e.Index, e.Length, e.Capacity)
}

// NoBufferError reports that a context was asked for a buffer kind it never declared.
type NoBufferError struct {
	Context string
	Kind    string // "inbound byte", "outbound message", ...
}

func (e *NoBufferError) Error() string {
	return fmt.Sprintf("pipeline: context %q has no %s buffer", e.Context, e.Kind)
}

// PipelineError reports that a handler failed to produce its buffer holder at
// registration time. It is fatal to the add/addFirst/addLast/addBefore/addAfter
// call that triggered registration.
type PipelineError struct {
	Context string
	Cause   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline: context %q failed to register: %v", e.Context, e.Cause)
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// HandlerException wraps an arbitrary panic/error recovered from user handler
// code. It is never propagated synchronously into the executor; the dispatcher
// captures it and routes it through Pipeline.notifyHandlerException instead.
type HandlerException struct {
	Context string
	Event   string // "channelActive", "inboundBufferUpdated", "flush", ...
	Cause   error
}

func (e *HandlerException) Error() string {
	return fmt.Sprintf("pipeline: handler %q panicked in %s: %v", e.Context, e.Event, e.Cause)
}

func (e *HandlerException) Unwrap() error { return e.Cause }

// CodecException is the base kind for exceptions owned by a codec layered
// above the core. The core never raises it itself; it only guarantees the
// value passes through fireExceptionCaught unchanged.
type CodecException struct {
	Cause error
}

func (e *CodecException) Error() string { return fmt.Sprintf("pipeline: codec error: %v", e.Cause) }
func (e *CodecException) Unwrap() error { return e.Cause }

// EncoderException distinguishes a codec failure that occurred while encoding
// (outbound) from the general CodecException (typically inbound/decoding).
type EncoderException struct {
	Cause error
}

func (e *EncoderException) Error() string {
	return fmt.Sprintf("pipeline: encoder error: %v", e.Cause)
}
func (e *EncoderException) Unwrap() error { return e.Cause }

// TooLongFrameError is produced by framing codecs layered above the core
// (e.g. a delimiter-based frame decoder) and must pass through the pipeline
// unchanged, alongside the package-level ErrTooLong sentinel it wraps.
type TooLongFrameError struct {
	MaxLength int
}

func (e *TooLongFrameError) Error() string {
	return fmt.Sprintf("pipeline: frame exceeds maximum length %d", e.MaxLength)
}

func (e *TooLongFrameError) Unwrap() error { return ErrTooLong }
