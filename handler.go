// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

// Handler is the minimal contract every pipeline stage satisfies: it is
// asked once, at registration, for the buffer holders it wants to own on
// each side. A handler that has no use for a direction's buffer returns a
// holder with KindNone (see BufferHolder).
//
// Concrete transports, codecs and business logic implement Handler plus any
// of StateHandler, InboundHandler, OutboundHandler, OperationHandler below;
// registration computes CapState/CapOperation via type assertions
// (capabilitiesOf), never reflection, and CapInbound/CapOutbound from the
// holders the two methods below return.
type Handler interface {
	// NewInboundBuffer is called once at registration for every handler. It
	// returns the buffer holder this handler's context should own (KindNone
	// for none); PipelineError wraps any error.
	NewInboundBuffer(ctx *HandlerContext) (BufferHolder, error)

	// NewOutboundBuffer mirrors NewInboundBuffer for outbound traffic.
	NewOutboundBuffer(ctx *HandlerContext) (BufferHolder, error)
}

// StateHandler receives channel lifecycle transitions. Each callback is
// delivered at most once per context, in pipeline order.
type StateHandler interface {
	Handler
	ChannelRegistered(ctx *HandlerContext)
	ChannelUnregistered(ctx *HandlerContext)
	ChannelActive(ctx *HandlerContext)
	ChannelInactive(ctx *HandlerContext)
	InboundBufferUpdated(ctx *HandlerContext)
}

// InboundHandler is implemented by a handler that wants
// fireInboundBufferUpdated delivered to it. Whether a context actually owns
// a local inbound buffer (CapInbound) is decided separately, by whether
// NewInboundBuffer returned a non-KindNone holder; a handler can implement
// this method and still be skipped by fireInboundBufferUpdated if it
// declined an inbound buffer.
type InboundHandler interface {
	Handler
	InboundBufferUpdated(ctx *HandlerContext)
}

// OutboundHandler is a documentation-only marker: CapOutbound is decided by
// whether NewOutboundBuffer returns a non-KindNone holder, not by a method
// set, since owning an outbound buffer carries no handler-visible callback
// of its own (outbound data flows out via flush/write, not a fired event).
type OutboundHandler interface {
	Handler
}

// OperationHandler participates in outbound operations walking backward
// through the pipeline toward the transport-facing tail.
type OperationHandler interface {
	Handler
	Bind(ctx *HandlerContext, localAddr string, future Future)
	Connect(ctx *HandlerContext, remoteAddr string, future Future)
	Disconnect(ctx *HandlerContext, future Future)
	Close(ctx *HandlerContext, future Future)
	Deregister(ctx *HandlerContext, future Future)
	Flush(ctx *HandlerContext, future Future)
	Write(ctx *HandlerContext, future Future)
}

// ExceptionHandler is an optional callback a handler of any capability may
// additionally implement to observe exceptions travelling down the chain
// via fireExceptionCaught. Unlike STATE/INBOUND/OUTBOUND/OPERATION,
// implementing it does not gate propagation: exceptionCaught reaches every
// context in order regardless of whether it implements this interface.
type ExceptionHandler interface {
	Handler
	ExceptionCaught(ctx *HandlerContext, cause error)
}

// UserEventHandler is an optional callback a handler of any capability may
// additionally implement to observe events fired via
// Pipeline.FireUserEventTriggered. Propagation is unconditional, same as
// ExceptionHandler.
type UserEventHandler interface {
	Handler
	UserEventTriggered(ctx *HandlerContext, event any)
}

// BaseHandler implements Handler with holders of KindNone on both sides.
// Embed it in every handler; it deliberately does not also implement
// StateHandler or OperationHandler, since doing so would make every handler
// trivially satisfy those capabilities through promoted no-op methods rather
// than by actually opting in. A handler that wants CapState embeds
// BaseStateHandler alongside it; one that wants CapOperation embeds
// BasePassthroughOperations alongside it.
type BaseHandler struct{}

func (BaseHandler) NewInboundBuffer(*HandlerContext) (BufferHolder, error) {
	return BufferHolder{Kind: KindNone}, nil
}

func (BaseHandler) NewOutboundBuffer(*HandlerContext) (BufferHolder, error) {
	return BufferHolder{Kind: KindNone}, nil
}

// BaseStateHandler implements StateHandler with no-op lifecycle callbacks.
// Embed it alongside BaseHandler in a handler that wants channel lifecycle
// events delivered but only cares about a subset, overriding the rest.
type BaseStateHandler struct{}

func (BaseStateHandler) ChannelRegistered(*HandlerContext)    {}
func (BaseStateHandler) ChannelUnregistered(*HandlerContext)  {}
func (BaseStateHandler) ChannelActive(*HandlerContext)        {}
func (BaseStateHandler) ChannelInactive(*HandlerContext)      {}
func (BaseStateHandler) InboundBufferUpdated(*HandlerContext) {}

// BasePassthroughOperations implements OperationHandler by forwarding every
// outbound operation unchanged to the previous OPERATION-capable context.
// Embed it alongside BaseHandler in handlers that only care about a subset
// of outbound operations.
type BasePassthroughOperations struct{}

func (BasePassthroughOperations) Bind(ctx *HandlerContext, localAddr string, future Future) {
	ctx.pipeline.bind(ctx, localAddr, future)
}
func (BasePassthroughOperations) Connect(ctx *HandlerContext, remoteAddr string, future Future) {
	ctx.pipeline.connect(ctx, remoteAddr, future)
}
func (BasePassthroughOperations) Disconnect(ctx *HandlerContext, future Future) {
	ctx.pipeline.disconnect(ctx, future)
}
func (BasePassthroughOperations) Close(ctx *HandlerContext, future Future) {
	ctx.pipeline.close(ctx, future)
}
func (BasePassthroughOperations) Deregister(ctx *HandlerContext, future Future) {
	ctx.pipeline.deregister(ctx, future)
}
func (BasePassthroughOperations) Flush(ctx *HandlerContext, future Future) {
	ctx.pipeline.flush(ctx, future)
}
func (BasePassthroughOperations) Write(ctx *HandlerContext, future Future) {
	ctx.pipeline.write(ctx, future)
}
