// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// HandlerContext is a node in the pipeline's doubly-linked chain: identity
// (name, handler, capability set, pipeline/channel backrefs) is fixed at
// construction; prev/next links change as the pipeline is edited; the
// executor pin is set at most once.
type HandlerContext struct {
	name     string
	handler  any
	caps     Capability
	pipeline *Pipeline

	prev, next *HandlerContext

	// executor is installed exactly once, at registration (the pipeline's
	// default executor or a parent's child executor). Later writes are
	// rejected: spec.md §4.3 "a context's executor must not change after it
	// first processes an event."
	executor atomic.Pointer[Executor]

	inbound  BufferHolder
	outbound BufferHolder

	inboundBridge      holderBridge
	inboundBridgeOnce  sync.Once
	outboundBridge     holderBridge
	outboundBridgeOnce sync.Once

	attrs sync.Map

	logger *zap.Logger
}

// Name returns the context's registration name.
func (c *HandlerContext) Name() string { return c.name }

// Handler returns the user handler this context wraps.
func (c *HandlerContext) Handler() any { return c.handler }

// Capabilities returns the set computed at registration.
func (c *HandlerContext) Capabilities() Capability { return c.caps }

// Pipeline returns the owning pipeline.
func (c *HandlerContext) Pipeline() *Pipeline { return c.pipeline }

// Channel returns the pipeline's channel backref.
func (c *HandlerContext) Channel() ChannelHandle { return c.pipeline.channel }

// Executor returns the context's pinned executor, or nil if not yet assigned.
func (c *HandlerContext) Executor() Executor {
	p := c.executor.Load()
	if p == nil {
		return nil
	}
	return *p
}

// bindExecutor installs ex as the context's executor pin if none is set yet.
// Returns the winning executor (the caller's ex on first call, the
// previously-installed one on any later call), matching "must not change
// after it first processes an event" via compare-and-swap rather than a lock.
func (c *HandlerContext) bindExecutor(ex Executor) Executor {
	for {
		cur := c.executor.Load()
		if cur != nil {
			return *cur
		}
		if c.executor.CompareAndSwap(nil, &ex) {
			return ex
		}
	}
}

// Attr returns the value stored under key, if any.
func (c *HandlerContext) Attr(key string) (any, bool) { return c.attrs.Load(key) }

// SetAttr stores val under key.
func (c *HandlerContext) SetAttr(key string, val any) { c.attrs.Store(key, val) }

// NewFuture returns a fresh, unfulfilled Future paired with its completion
// function for an outbound operation issued from this context.
func (c *HandlerContext) NewFuture() (Future, func(err error)) { return NewFuture() }

// Next returns the next context in pipeline order, or nil at the tail.
func (c *HandlerContext) Next() *HandlerContext { return c.next }

// Prev returns the previous context in pipeline order, or nil at the head.
func (c *HandlerContext) Prev() *HandlerContext { return c.prev }

// inboundByteBuffer returns this context's local inbound byte buffer.
func (c *HandlerContext) inboundByteBuffer() (Buffer, error) {
	if c.inbound.Kind != KindBytes {
		return nil, &NoBufferError{Context: c.name, Kind: "inbound byte"}
	}
	return c.inbound.Bytes, nil
}

// inboundMessageBuffer returns this context's local inbound message queue.
func (c *HandlerContext) inboundMessageBuffer() (*MessageQueue, error) {
	if c.inbound.Kind != KindMessages {
		return nil, &NoBufferError{Context: c.name, Kind: "inbound message"}
	}
	return c.inbound.Messages, nil
}

// outboundByteBuffer returns this context's local outbound byte buffer.
func (c *HandlerContext) outboundByteBuffer() (Buffer, error) {
	if c.outbound.Kind != KindBytes {
		return nil, &NoBufferError{Context: c.name, Kind: "outbound byte"}
	}
	return c.outbound.Bytes, nil
}

// outboundMessageBuffer returns this context's local outbound message queue.
func (c *HandlerContext) outboundMessageBuffer() (*MessageQueue, error) {
	if c.outbound.Kind != KindMessages {
		return nil, &NoBufferError{Context: c.name, Kind: "outbound message"}
	}
	return c.outbound.Messages, nil
}

// InboundByteBuffer returns this context's local inbound byte buffer.
func (c *HandlerContext) InboundByteBuffer() (Buffer, error) { return c.inboundByteBuffer() }

// InboundMessageBuffer returns this context's local inbound message queue.
func (c *HandlerContext) InboundMessageBuffer() (*MessageQueue, error) { return c.inboundMessageBuffer() }

// OutboundByteBuffer returns this context's local outbound byte buffer.
func (c *HandlerContext) OutboundByteBuffer() (Buffer, error) { return c.outboundByteBuffer() }

// OutboundMessageBuffer returns this context's local outbound message queue.
func (c *HandlerContext) OutboundMessageBuffer() (*MessageQueue, error) { return c.outboundMessageBuffer() }

// NextOutboundByteBuffer returns nextOutboundByteBuffer; see its doc comment.
func (c *HandlerContext) NextOutboundByteBuffer() (Buffer, error) { return c.nextOutboundByteBuffer() }

// NextInboundByteBuffer returns the inbound byte buffer of the nearest
// INBOUND-capable context further along the forward chain, for a codec
// that hands its transformed output to the next stage's own inbound buffer
// rather than relying on the bridge (valid when both share an executor).
// The caller is expected to follow up with Pipeline.FireInboundBufferUpdated
// to actually schedule the next stage's handler.
func (c *HandlerContext) NextInboundByteBuffer() (Buffer, error) {
	nc := c.pipeline.nextContext(c, CapInbound, true)
	if nc == nil {
		return nil, &NoBufferError{Context: c.name, Kind: "next inbound byte"}
	}
	return nc.inboundByteBuffer()
}

// NextInboundMessageBuffer is NextInboundByteBuffer's message-queue
// counterpart, for a handler whose next INBOUND-capable successor declared
// a message-form rather than byte-form inbound holder.
func (c *HandlerContext) NextInboundMessageBuffer() (*MessageQueue, error) {
	nc := c.pipeline.nextContext(c, CapInbound, true)
	if nc == nil {
		return nil, &NoBufferError{Context: c.name, Kind: "next inbound message"}
	}
	return nc.inboundMessageBuffer()
}

// nextOutboundByteBuffer returns the outbound byte buffer of the nearest
// OUTBOUND-capable context toward the transport-facing end of the chain
// (walking backward, toward head), for handlers such as an echo stage that
// write their result directly into that stage's local buffer. Valid when
// both contexts share an executor; a handler split across executors from
// its outbound neighbor should instead own its own outbound buffer and let
// Flush's bridge handoff carry the data across.
func (c *HandlerContext) nextOutboundByteBuffer() (Buffer, error) {
	nc := c.pipeline.nextContext(c, CapOutbound, false)
	if nc == nil {
		return nil, &NoBufferError{Context: c.name, Kind: "next outbound byte"}
	}
	return nc.outboundByteBuffer()
}

// NextOutboundMessageBuffer is NextOutboundByteBuffer's message-queue
// counterpart, for a handler whose next OUTBOUND-capable predecessor
// declared a message-form rather than byte-form outbound holder.
func (c *HandlerContext) NextOutboundMessageBuffer() (*MessageQueue, error) {
	nc := c.pipeline.nextContext(c, CapOutbound, false)
	if nc == nil {
		return nil, &NoBufferError{Context: c.name, Kind: "next outbound message"}
	}
	return nc.outboundMessageBuffer()
}

// ensureInboundBridge lazily creates the bridge feeding this context's
// inbound buffer, the first time a cross-executor predecessor needs it.
func (c *HandlerContext) ensureInboundBridge() holderBridge {
	c.inboundBridgeOnce.Do(func() { c.inboundBridge = newBridgeFor(c.inbound, c.pipeline.opts.BridgeRetry) })
	return c.inboundBridge
}

// ensureOutboundBridge lazily creates the bridge feeding this context's
// outbound buffer, the first time a cross-executor successor needs it.
func (c *HandlerContext) ensureOutboundBridge() holderBridge {
	c.outboundBridgeOnce.Do(func() { c.outboundBridge = newBridgeFor(c.outbound, c.pipeline.opts.BridgeRetry) })
	return c.outboundBridge
}

// sameExecutor reports whether a and b are currently pinned to the same
// executor (both nil counts as "same", since dispatch then runs inline).
func sameExecutor(a, b *HandlerContext) bool {
	return a.Executor() == b.Executor()
}

// Bind requests the transport bind to localAddr, walking backward through
// OPERATION-capable predecessors.
func (c *HandlerContext) Bind(localAddr string) Future {
	return c.pipeline.doOperation(c, "bind", func(oh OperationHandler, ctx *HandlerContext, f Future) {
		oh.Bind(ctx, localAddr, f)
	})
}

// Connect requests the transport connect to remoteAddr.
func (c *HandlerContext) Connect(remoteAddr string) Future {
	return c.pipeline.doOperation(c, "connect", func(oh OperationHandler, ctx *HandlerContext, f Future) {
		oh.Connect(ctx, remoteAddr, f)
	})
}

// Disconnect requests the transport disconnect.
func (c *HandlerContext) Disconnect() Future {
	return c.pipeline.doOperation(c, "disconnect", func(oh OperationHandler, ctx *HandlerContext, f Future) {
		oh.Disconnect(ctx, f)
	})
}

// Close requests the transport close. Writes issued after Close completes
// fail with ErrClosedChannel (spec.md §8 S6).
func (c *HandlerContext) Close() Future {
	return c.pipeline.doOperation(c, "close", func(oh OperationHandler, ctx *HandlerContext, f Future) {
		oh.Close(ctx, f)
	})
}

// Deregister requests the channel deregister from its event loop.
func (c *HandlerContext) Deregister() Future {
	return c.pipeline.doOperation(c, "deregister", func(oh OperationHandler, ctx *HandlerContext, f Future) {
		oh.Deregister(ctx, f)
	})
}

// Flush requests the transport-facing stage flush its buffered outbound
// data. Per spec.md §4.3, data this context already placed in an
// OUTBOUND-capable predecessor's buffer (directly, or in its own buffer
// awaiting bridge handoff) becomes visible to that predecessor before its
// Flush handler runs.
func (c *HandlerContext) Flush() Future {
	return c.pipeline.doFlushOrWrite(c, "flush", func(oh OperationHandler, ctx *HandlerContext, f Future) {
		oh.Flush(ctx, f)
	})
}

// Write signals that this context's outbound data (already placed in the
// next OPERATION-capable predecessor's buffer) is ready; Flush is still
// required to actually push it out.
func (c *HandlerContext) Write() Future {
	return c.pipeline.doFlushOrWrite(c, "write", func(oh OperationHandler, ctx *HandlerContext, f Future) {
		oh.Write(ctx, f)
	})
}

// runOrSubmit runs fn inline if the context's executor is the caller's own,
// otherwise submits it. Dispatch helpers use this to honor "never re-enter
// the same executor synchronously from a different thread."
func (c *HandlerContext) runOrSubmit(fn func()) {
	ex := c.Executor()
	if ex == nil {
		fn()
		return
	}
	if ex.InEventLoop() {
		fn()
		return
	}
	ex.Submit(fn)
}

// invoke wraps a handler callback with panic recovery, turning it into a
// HandlerException routed through notifyHandlerException rather than left to
// crash the executor goroutine.
func (c *HandlerContext) invoke(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = &panicValue{v: r}
			}
			c.pipeline.notifyHandlerException(c, &HandlerException{Context: c.name, Event: event, Cause: cause})
		}
	}()
	fn()
}

// panicValue wraps a non-error panic value (a string or arbitrary type) as
// an error so it can travel through the error-based exception plumbing.
type panicValue struct{ v any }

func (p *panicValue) Error() string { return fmt.Sprintf("panic: %v", p.v) }
