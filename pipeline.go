// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"sync"

	"go.uber.org/zap"
)

// ChannelHandle is the minimal channel backref a Pipeline exposes to its
// contexts. Concrete transports implement it; the core never depends on
// any one transport's type.
type ChannelHandle interface {
	LocalAddr() string
	RemoteAddr() string
	IsActive() bool
}

// Pipeline is an ordered, doubly-linked list of HandlerContexts bounded by
// fixed, buffer-less head and tail sentinels. Head is where forward
// (inbound) dispatch starts and where AddFirst splices in the
// transport-facing stage; backward (outbound) dispatch walks from the
// calling context toward head.
type Pipeline struct {
	channel ChannelHandle
	opts    PipelineOptions

	mu       sync.Mutex // serializes topology mutation against itself and dispatch starts
	head     *HandlerContext
	tail     *HandlerContext
	byName   map[string]*HandlerContext
	defaultExecutor Executor
	childExecutors  map[Executor]Executor // parent -> lazily created child, stable per spec.md §4.3
}

// NewPipeline constructs an empty pipeline (head directly linked to tail)
// bound to channel.
func NewPipeline(channel ChannelHandle, opts ...PipelineOption) *Pipeline {
	o := defaultPipelineOptions
	for _, opt := range opts {
		opt(&o)
	}
	p := &Pipeline{
		channel: channel,
		opts:    o,
		byName:  make(map[string]*HandlerContext),
	}
	p.head = &HandlerContext{name: "head", pipeline: p}
	p.tail = &HandlerContext{name: "tail", pipeline: p}
	p.head.next = p.tail
	p.tail.prev = p.head
	return p
}

// Channel returns the pipeline's channel backref.
func (p *Pipeline) Channel() ChannelHandle { return p.channel }

func (p *Pipeline) logger() *zap.Logger {
	if p.opts.Logger != nil {
		return p.opts.Logger
	}
	return zap.NewNop()
}

// executorFor returns the pipeline's default executor, creating it on
// first use, or the stable child mapped to parent if parent is non-nil.
func (p *Pipeline) executorFor(parent Executor) Executor {
	if parent == nil {
		if p.defaultExecutor == nil {
			p.defaultExecutor = p.opts.ExecutorFactory()
		}
		return p.defaultExecutor
	}
	if p.childExecutors == nil {
		p.childExecutors = make(map[Executor]Executor)
	}
	if child, ok := p.childExecutors[parent]; ok {
		return child
	}
	child := p.opts.ExecutorFactory()
	p.childExecutors[parent] = child
	return child
}

// newContext builds and registers ctx's buffer holders from handler, but
// does not yet splice it into the chain.
func (p *Pipeline) newContext(name string, handler any) (*HandlerContext, error) {
	h, ok := handler.(Handler)
	if !ok {
		return nil, &PipelineError{Context: name, Cause: ErrInvalidArgument}
	}
	caps := capabilitiesOf(handler)
	ctx := &HandlerContext{
		name:     name,
		handler:  handler,
		caps:     caps,
		pipeline: p,
		logger:   p.logger().With(zap.String("context", name)),
	}
	inHolder, err := h.NewInboundBuffer(ctx)
	if err != nil {
		return nil, &PipelineError{Context: name, Cause: err}
	}
	ctx.inbound = inHolder
	if inHolder.Kind != KindNone {
		ctx.caps |= CapInbound
	}
	outHolder, err := h.NewOutboundBuffer(ctx)
	if err != nil {
		return nil, &PipelineError{Context: name, Cause: err}
	}
	ctx.outbound = outHolder
	if outHolder.Kind != KindNone {
		ctx.caps |= CapOutbound
	}
	var parent Executor
	if ep, ok := handler.(executorProvider); ok {
		parent = ep.ParentExecutor()
	}
	ctx.bindExecutor(p.executorFor(parent))
	return ctx, nil
}

// executorProvider is an optional handler-side hook requesting that its
// context share a specific parent executor's child (spec.md §4.3 "stable
// mapping from parent to child"), instead of the pipeline's shared default.
type executorProvider interface {
	ParentExecutor() Executor
}

// AddLast appends handler under name just before the tail sentinel.
func (p *Pipeline) AddLast(name string, handler any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.insert(name, handler, p.tail.prev, p.tail)
}

// AddFirst prepends handler under name just after the head sentinel.
// The transport-facing stage is conventionally registered this way.
func (p *Pipeline) AddFirst(name string, handler any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.insert(name, handler, p.head, p.head.next)
}

// AddBefore inserts handler immediately before the context named anchor.
func (p *Pipeline) AddBefore(anchor, name string, handler any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	at, ok := p.byName[anchor]
	if !ok {
		return ErrNoSuchContext
	}
	return p.insert(name, handler, at.prev, at)
}

// AddAfter inserts handler immediately after the context named anchor.
func (p *Pipeline) AddAfter(anchor, name string, handler any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	at, ok := p.byName[anchor]
	if !ok {
		return ErrNoSuchContext
	}
	return p.insert(name, handler, at, at.next)
}

func (p *Pipeline) insert(name string, handler any, before, after *HandlerContext) error {
	if _, exists := p.byName[name]; exists {
		return ErrNameInUse
	}
	ctx, err := p.newContext(name, handler)
	if err != nil {
		return err
	}
	ctx.prev, ctx.next = before, after
	before.next, after.prev = ctx, ctx
	p.byName[name] = ctx
	p.logger().Debug("context added", zap.String("context", name), zap.Int("chainLength", len(p.byName)))
	return nil
}

// Remove unlinks the named context. Per spec.md §5/§9(c), this must run on
// the context's own executor if it has already processed an event, so the
// removal itself is submitted there; removal drains and discards the
// context's bridges and buffers exactly once.
func (p *Pipeline) Remove(name string) error {
	p.mu.Lock()
	ctx, ok := p.byName[name]
	if !ok {
		p.mu.Unlock()
		return ErrNoSuchContext
	}
	delete(p.byName, name)
	p.mu.Unlock()

	remove := func() {
		p.mu.Lock()
		ctx.prev.next, ctx.next.prev = ctx.next, ctx.prev
		p.mu.Unlock()
		ctx.release()
		p.logger().Debug("context removed", zap.String("context", name))
	}
	if ex := ctx.Executor(); ex != nil {
		ctx.runOrSubmit(remove)
	} else {
		remove()
	}
	return nil
}

// Replace swaps the named context's handler for a new one under newName,
// in place. The old context is released exactly as Remove does.
func (p *Pipeline) Replace(name, newName string, handler any) error {
	p.mu.Lock()
	old, ok := p.byName[name]
	if !ok {
		p.mu.Unlock()
		return ErrNoSuchContext
	}
	if newName != name {
		if _, exists := p.byName[newName]; exists {
			p.mu.Unlock()
			return ErrNameInUse
		}
	}
	ctx, err := p.newContext(newName, handler)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	ctx.prev, ctx.next = old.prev, old.next
	old.prev.next, old.next.prev = ctx, ctx
	delete(p.byName, name)
	p.byName[newName] = ctx
	p.mu.Unlock()
	old.release()
	p.logger().Debug("context replaced", zap.String("old", name), zap.String("new", newName))
	return nil
}

// Get returns the named context, or ErrNoSuchContext.
func (p *Pipeline) Get(name string) (*HandlerContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx, ok := p.byName[name]
	if !ok {
		return nil, ErrNoSuchContext
	}
	return ctx, nil
}

// release drains whatever bridges ctx installed and drops its buffers. It
// runs at most once per context (Remove/Replace each call it exactly once).
func (c *HandlerContext) release() {
	if c.inboundBridge != nil {
		_ = c.inboundBridge.FlushHolder(c.inbound)
	}
	if c.outboundBridge != nil {
		_ = c.outboundBridge.FlushHolder(c.outbound)
	}
	c.inbound = BufferHolder{Kind: KindNone}
	c.outbound = BufferHolder{Kind: KindNone}
}

// nextContext walks from ctx toward tail (forward=true) or toward head
// (forward=false), skipping sentinels and contexts lacking cap, and
// returns nil if the walk reaches the opposite sentinel first.
func (p *Pipeline) nextContext(ctx *HandlerContext, cap Capability, forward bool) *HandlerContext {
	cur := ctx
	for {
		if forward {
			cur = cur.next
		} else {
			cur = cur.prev
		}
		if cur == nil || cur == p.head || cur == p.tail {
			return nil
		}
		if cur.caps.Has(cap) {
			return cur
		}
	}
}

// --- inbound (forward) propagation ---

// FireChannelRegistered delivers ChannelRegistered to every STATE-capable
// context in order, starting just after head.
func (p *Pipeline) FireChannelRegistered() {
	p.fireState(func(ctx *HandlerContext) {
		ctx.handler.(StateHandler).ChannelRegistered(ctx)
	})
}

// FireChannelUnregistered delivers ChannelUnregistered to every
// STATE-capable context in order.
func (p *Pipeline) FireChannelUnregistered() {
	p.fireState(func(ctx *HandlerContext) {
		ctx.handler.(StateHandler).ChannelUnregistered(ctx)
	})
}

// FireChannelActive delivers ChannelActive to every STATE-capable context
// in order.
func (p *Pipeline) FireChannelActive() {
	p.fireState(func(ctx *HandlerContext) {
		ctx.handler.(StateHandler).ChannelActive(ctx)
	})
}

// FireChannelInactive delivers ChannelInactive to every STATE-capable
// context in order.
func (p *Pipeline) FireChannelInactive() {
	p.fireState(func(ctx *HandlerContext) {
		ctx.handler.(StateHandler).ChannelInactive(ctx)
	})
}

func (p *Pipeline) fireState(deliver func(ctx *HandlerContext)) {
	ctx := p.nextContext(p.head, CapState, true)
	var walk func(ctx *HandlerContext)
	walk = func(ctx *HandlerContext) {
		if ctx == nil {
			return
		}
		ctx.runOrSubmit(func() {
			ctx.invoke("state", func() { deliver(ctx) })
			walk(p.nextContext(ctx, CapState, true))
		})
	}
	walk(ctx)
}

// fireInboundBufferUpdated delivers InboundBufferUpdated starting from the
// given context. Per spec.md §4.3, when the producer and the consumer are
// pinned to different executors, the producer's inbound data is filled into
// the bridge feeding the consumer's inbound buffer before the consumer's
// executor drains that bridge and runs the handler; fully-read bytes are
// discarded from the consumer's local inbound buffer afterward.
func (p *Pipeline) fireInboundBufferUpdated(from *HandlerContext) {
	next := p.nextContext(from, CapInbound, true)
	if next == nil {
		return
	}
	if from.inbound.Kind != KindNone && !sameExecutor(from, next) {
		_ = next.ensureInboundBridge().FillHolder(from.inbound)
	}
	next.runOrSubmit(func() {
		if next.inboundBridge != nil {
			_ = next.inboundBridge.FlushHolder(next.inbound)
		}
		next.invoke("inboundBufferUpdated", func() {
			if ih, ok := next.handler.(InboundHandler); ok {
				ih.InboundBufferUpdated(next)
			}
		})
		if buf, err := next.inboundByteBuffer(); err == nil {
			buf.DiscardReadBytes()
		}
	})
}

// FireInboundBufferUpdated runs fireInboundBufferUpdated starting at from.
// Transport-facing contexts call this after appending freshly received
// bytes/messages to their own local inbound buffer.
func (p *Pipeline) FireInboundBufferUpdated(from *HandlerContext) {
	p.fireInboundBufferUpdated(from)
}

// FireExceptionCaught delivers cause to the next context after from,
// regardless of capability. If none exists, cause is logged and dropped.
func (p *Pipeline) FireExceptionCaught(from *HandlerContext, cause error) {
	p.fireExceptionCaught(from, cause)
}

func (p *Pipeline) fireExceptionCaught(from *HandlerContext, cause error) {
	next := from.next
	if next == nil || next == p.tail {
		p.logger().Error("exception dropped at tail", zap.Error(cause))
		return
	}
	eh, hasEH := next.handler.(ExceptionHandler)
	next.runOrSubmit(func() {
		if hasEH {
			next.invoke("exceptionCaught", func() { eh.ExceptionCaught(next, cause) })
		}
		p.fireExceptionCaught(next, cause)
	})
}

// notifyHandlerException is the single entry point dispatch helpers use to
// report a recovered panic/error: it logs at error level and fires
// exceptionCaught down the chain starting at ctx.
func (p *Pipeline) notifyHandlerException(ctx *HandlerContext, cause error) {
	p.logger().Error("handler exception",
		zap.String("context", ctx.name),
		zap.Uint8("capabilities", uint8(ctx.caps)),
		zap.Error(cause))
	p.fireExceptionCaught(ctx, cause)
}

// FireUserEventTriggered delivers event, unmodified, to the next context
// after from regardless of capability.
func (p *Pipeline) FireUserEventTriggered(from *HandlerContext, event any) {
	next := from.next
	if next == nil || next == p.tail {
		return
	}
	ueh, hasUEH := next.handler.(UserEventHandler)
	next.runOrSubmit(func() {
		if hasUEH {
			next.invoke("userEventTriggered", func() { ueh.UserEventTriggered(next, event) })
		}
		p.FireUserEventTriggered(next, event)
	})
}

// --- outbound (backward) propagation ---

// doOperation is the common shape for bind/connect/disconnect/close/
// deregister: find the previous OPERATION-capable context from ctx and
// invoke the operation on it, completing immediately with ErrClosedChannel
// if none exists.
func (p *Pipeline) doOperation(ctx *HandlerContext, event string, invoke func(oh OperationHandler, ctx *HandlerContext, f Future)) Future {
	prev := p.nextContext(ctx, CapOperation, false)
	f, complete := NewFuture()
	if prev == nil {
		complete(ErrClosedChannel)
		p.fireExceptionCaught(ctx, ErrClosedChannel)
		return f
	}
	prev.runOrSubmit(func() {
		prev.invoke(event, func() {
			invoke(prev.handler.(OperationHandler), prev, f)
		})
	})
	return f
}

// doFlushOrWrite implements flush/write's extra bridge-fill step: data
// placed by ctx into prev's outbound buffer (directly, if same executor, or
// via bridge otherwise) must become visible to prev before its handler
// runs. Per spec.md §4.3 "Flush semantics", this fill always happens on
// ctx's own executor before the operation is submitted to prev.
func (p *Pipeline) doFlushOrWrite(ctx *HandlerContext, event string, invoke func(oh OperationHandler, ctx *HandlerContext, f Future)) Future {
	prev := p.nextContext(ctx, CapOperation, false)
	f, complete := NewFuture()
	if prev == nil {
		complete(ErrClosedChannel)
		p.fireExceptionCaught(ctx, ErrClosedChannel)
		return f
	}
	if ctx.outbound.Kind != KindNone && prev.outbound.Kind != KindNone && !sameExecutor(ctx, prev) {
		_ = prev.ensureOutboundBridge().FillHolder(ctx.outbound)
	}
	prev.runOrSubmit(func() {
		if prev.outboundBridge != nil {
			_ = prev.outboundBridge.FlushHolder(prev.outbound)
		}
		prev.invoke(event, func() {
			invoke(prev.handler.(OperationHandler), prev, f)
		})
	})
	return f
}

// bind/connect/disconnect/close/deregister/flush/write are the unexported
// continuations BasePassthroughOperations forwards to when a handler wants
// to pass an operation through unchanged to the next predecessor.
func (p *Pipeline) bind(ctx *HandlerContext, localAddr string, f Future) {
	p.continueOperation(ctx, "bind", f, func(oh OperationHandler, pctx *HandlerContext, pf Future) {
		oh.Bind(pctx, localAddr, pf)
	})
}

func (p *Pipeline) connect(ctx *HandlerContext, remoteAddr string, f Future) {
	p.continueOperation(ctx, "connect", f, func(oh OperationHandler, pctx *HandlerContext, pf Future) {
		oh.Connect(pctx, remoteAddr, pf)
	})
}

func (p *Pipeline) disconnect(ctx *HandlerContext, f Future) {
	p.continueOperation(ctx, "disconnect", f, func(oh OperationHandler, pctx *HandlerContext, pf Future) {
		oh.Disconnect(pctx, pf)
	})
}

func (p *Pipeline) close(ctx *HandlerContext, f Future) {
	p.continueOperation(ctx, "close", f, func(oh OperationHandler, pctx *HandlerContext, pf Future) {
		oh.Close(pctx, pf)
	})
}

func (p *Pipeline) deregister(ctx *HandlerContext, f Future) {
	p.continueOperation(ctx, "deregister", f, func(oh OperationHandler, pctx *HandlerContext, pf Future) {
		oh.Deregister(pctx, pf)
	})
}

func (p *Pipeline) flush(ctx *HandlerContext, f Future) {
	p.continueFlushOrWrite(ctx, "flush", f, func(oh OperationHandler, pctx *HandlerContext, pf Future) {
		oh.Flush(pctx, pf)
	})
}

func (p *Pipeline) write(ctx *HandlerContext, f Future) {
	p.continueFlushOrWrite(ctx, "write", f, func(oh OperationHandler, pctx *HandlerContext, pf Future) {
		oh.Write(pctx, pf)
	})
}

// continueOperation is doOperation's shape when a Future already exists
// (the handler forwarding the call owns it; the result is wired through
// rather than a fresh one minted).
func (p *Pipeline) continueOperation(ctx *HandlerContext, event string, f Future, invoke func(oh OperationHandler, ctx *HandlerContext, f Future)) {
	prev := p.nextContext(ctx, CapOperation, false)
	if prev == nil {
		CompleteFuture(f, ErrClosedChannel)
		p.fireExceptionCaught(ctx, ErrClosedChannel)
		return
	}
	prev.runOrSubmit(func() {
		prev.invoke(event, func() {
			invoke(prev.handler.(OperationHandler), prev, f)
		})
	})
}

func (p *Pipeline) continueFlushOrWrite(ctx *HandlerContext, event string, f Future, invoke func(oh OperationHandler, ctx *HandlerContext, f Future)) {
	prev := p.nextContext(ctx, CapOperation, false)
	if prev == nil {
		CompleteFuture(f, ErrClosedChannel)
		p.fireExceptionCaught(ctx, ErrClosedChannel)
		return
	}
	if ctx.outbound.Kind != KindNone && prev.outbound.Kind != KindNone && !sameExecutor(ctx, prev) {
		_ = prev.ensureOutboundBridge().FillHolder(ctx.outbound)
	}
	prev.runOrSubmit(func() {
		if prev.outboundBridge != nil {
			_ = prev.outboundBridge.FlushHolder(prev.outbound)
		}
		prev.invoke(event, func() {
			invoke(prev.handler.(OperationHandler), prev, f)
		})
	})
}

// --- buffer discovery ---

// HasNextInboundByteBuffer reports whether a successor in inbound order
// from ctx exposes a byte buffer.
func (p *Pipeline) HasNextInboundByteBuffer(ctx *HandlerContext) bool {
	nc := p.nextContext(ctx, CapInbound, true)
	return nc != nil && nc.inbound.Kind == KindBytes
}

// HasNextInboundMessageBuffer reports whether a successor in inbound order
// from ctx exposes a message queue.
func (p *Pipeline) HasNextInboundMessageBuffer(ctx *HandlerContext) bool {
	nc := p.nextContext(ctx, CapInbound, true)
	return nc != nil && nc.inbound.Kind == KindMessages
}

// HasNextOutboundByteBuffer reports whether a predecessor in outbound
// order from ctx exposes a byte buffer.
func (p *Pipeline) HasNextOutboundByteBuffer(ctx *HandlerContext) bool {
	nc := p.nextContext(ctx, CapOutbound, false)
	return nc != nil && nc.outbound.Kind == KindBytes
}

// HasNextOutboundMessageBuffer reports whether a predecessor in outbound
// order from ctx exposes a message queue.
func (p *Pipeline) HasNextOutboundMessageBuffer(ctx *HandlerContext) bool {
	nc := p.nextContext(ctx, CapOutbound, false)
	return nc != nil && nc.outbound.Kind == KindMessages
}
