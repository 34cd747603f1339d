// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"encoding/binary"
	"runtime"
	"time"

	"code.hybscloud.com/pipeline/internal/bo"
	"go.uber.org/zap"
)

// BufferOptions configures Buffer construction.
type BufferOptions struct {
	ByteOrder binary.ByteOrder
	Factory   BufferFactory
}

var defaultBufferOptions = BufferOptions{
	ByteOrder: binary.BigEndian,
	Factory:   DefaultBufferFactory,
}

// BufferOption mutates BufferOptions; see NewHeapBuffer/NewExternalBuffer.
type BufferOption func(*BufferOptions)

// WithByteOrder sets the byte order multi-byte accessors use.
func WithByteOrder(order binary.ByteOrder) BufferOption {
	return func(o *BufferOptions) { o.ByteOrder = order }
}

// WithNativeByteOrder selects the architecture's native byte order, the
// same choice the teacher's WithReadLocal/WithWriteLocal make for local
// (same-host) transports.
func WithNativeByteOrder() BufferOption {
	return func(o *BufferOptions) { o.ByteOrder = bo.Native() }
}

// WithBufferFactory overrides the pool a dynamic Buffer grows through.
func WithBufferFactory(f BufferFactory) BufferOption {
	return func(o *BufferOptions) { o.Factory = f }
}

// WithPlainAllocator disables the tiered pool, always calling make.
func WithPlainAllocator() BufferOption {
	return func(o *BufferOptions) { o.Factory = plainFactory{} }
}

// PipelineOptions configures Pipeline construction.
type PipelineOptions struct {
	// ExecutorFactory builds the default Executor new contexts are pinned
	// to when registered without an explicit one. One instance is created
	// lazily per Pipeline and reused by every context that doesn't request
	// its own executor.
	ExecutorFactory func() Executor

	// Logger receives the ambient logging described in SPEC_FULL.md §4.2:
	// handler exceptions and dropped exceptions at error level, topology
	// mutations at debug level.
	// A no-op logger is used if nil.
	Logger *zap.Logger

	// BridgeRetry controls how a bridge's fill behaves when the exchange
	// queue is full and reports lfq.ErrWouldBlock (flush never waits on an
	// empty queue), mirroring the teacher's
	// RetryDelay knob (see retryPolicy).
	BridgeRetry retryPolicy
}

var defaultPipelineOptions = PipelineOptions{
	ExecutorFactory: func() Executor { return NewSerialExecutor() },
	Logger:          zap.NewNop(),
	BridgeRetry:     retryNonblock,
}

// PipelineOption mutates PipelineOptions; see NewPipeline.
type PipelineOption func(*PipelineOptions)

// WithExecutorFactory overrides how the pipeline's default executor is built.
func WithExecutorFactory(factory func() Executor) PipelineOption {
	return func(o *PipelineOptions) { o.ExecutorFactory = factory }
}

// WithLogger attaches a structured logger for exception-drop and
// topology-mutation diagnostics.
func WithLogger(logger *zap.Logger) PipelineOption {
	return func(o *PipelineOptions) { o.Logger = logger }
}

// retryPolicy mirrors the teacher's RetryDelay knob (options.go in framer):
// how a bridge waiting on its exchange queue should behave when it reports
// lfq.ErrWouldBlock.
//   - negative: nonblock, give up immediately
//   - zero: yield (runtime.Gosched) and retry
//   - positive: sleep for the duration and retry
type retryPolicy time.Duration

const (
	retryNonblock retryPolicy = -1
	retryYield    retryPolicy = 0
)

// WithBridgeRetry sets the wait policy a bridge's fill uses against a full
// exchange queue, the same three-way choice the teacher's
// WithRetryDelay/WithNonblock/WithYield give a framer Writer/Reader.
func WithBridgeRetry(d time.Duration) PipelineOption {
	return func(o *PipelineOptions) { o.BridgeRetry = retryPolicy(d) }
}

// WithBridgeNonblock makes a bridge's fill give up immediately on
// ErrWouldBlock instead of retrying, returning the error and leaving the
// data in the producer's buffer. This is the default.
func WithBridgeNonblock() PipelineOption {
	return func(o *PipelineOptions) { o.BridgeRetry = retryNonblock }
}

// WithBridgeYieldRetry makes a bridge retry on ErrWouldBlock after yielding
// the goroutine, rather than giving up.
func WithBridgeYieldRetry() PipelineOption {
	return func(o *PipelineOptions) { o.BridgeRetry = retryYield }
}

// waitOnceOnWouldBlock reports whether the caller should retry after seeing
// ErrWouldBlock under policy p, sleeping or yielding first as appropriate.
func (p retryPolicy) waitOnceOnWouldBlock() bool {
	if p < 0 {
		return false
	}
	if p == 0 {
		runtime.Gosched()
		return true
	}
	time.Sleep(time.Duration(p))
	return true
}
