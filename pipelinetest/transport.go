// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipelinetest

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/pipeline"
)

// transportHandler stands in for a real transport: it owns the head
// inbound buffer a test writes into and the tail outbound buffer a test
// reads flushed bytes from, and answers every outbound operation itself
// since it has no predecessor. Once Close completes, a later Flush/Write
// fails with ErrClosedChannel and also fires exceptionCaught, so a test
// built on Embedded can exercise spec.md §8 S6 the same as a hand-rolled
// transport stub.
type transportHandler struct {
	pipeline.BaseHandler

	mu  sync.Mutex
	out []byte

	closed atomic.Bool
	ctx    *pipeline.HandlerContext
}

func newTransportHandler() *transportHandler { return &transportHandler{} }

func (t *transportHandler) NewInboundBuffer(ctx *pipeline.HandlerContext) (pipeline.BufferHolder, error) {
	t.ctx = ctx
	return pipeline.NewByteBufferHolder(pipeline.NewHeapBuffer(256)), nil
}

func (t *transportHandler) NewOutboundBuffer(_ *pipeline.HandlerContext) (pipeline.BufferHolder, error) {
	return pipeline.NewByteBufferHolder(pipeline.NewHeapBuffer(256)), nil
}

// writeInbound appends b to this context's local inbound buffer and fires
// inboundBufferUpdated from this context, as a real transport's read loop
// would.
func (t *transportHandler) writeInbound(p *pipeline.Pipeline, b []byte) error {
	ctx, err := p.Get("transport")
	if err != nil {
		return err
	}
	buf, err := ctx.InboundByteBuffer()
	if err != nil {
		return err
	}
	if _, err := buf.WriteBytes(b); err != nil {
		return err
	}
	p.FireInboundBufferUpdated(ctx)
	return nil
}

func (t *transportHandler) readOutbound() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.out
	t.out = nil
	return out
}

func (t *transportHandler) Bind(_ *pipeline.HandlerContext, _ string, future pipeline.Future) {
	pipeline.CompleteFuture(future, nil)
}

func (t *transportHandler) Connect(_ *pipeline.HandlerContext, _ string, future pipeline.Future) {
	pipeline.CompleteFuture(future, nil)
}

func (t *transportHandler) Disconnect(_ *pipeline.HandlerContext, future pipeline.Future) {
	pipeline.CompleteFuture(future, nil)
}

func (t *transportHandler) Close(_ *pipeline.HandlerContext, future pipeline.Future) {
	t.closed.Store(true)
	pipeline.CompleteFuture(future, nil)
}

func (t *transportHandler) Deregister(_ *pipeline.HandlerContext, future pipeline.Future) {
	pipeline.CompleteFuture(future, nil)
}

// Flush fails with ErrClosedChannel and routes the same cause through
// exceptionCaught once Close has completed (spec.md §8 S6).
func (t *transportHandler) Flush(ctx *pipeline.HandlerContext, future pipeline.Future) {
	if t.closed.Load() {
		pipeline.CompleteFuture(future, pipeline.ErrClosedChannel)
		ctx.Pipeline().FireExceptionCaught(ctx, pipeline.ErrClosedChannel)
		return
	}
	buf, err := ctx.OutboundByteBuffer()
	if err != nil {
		pipeline.CompleteFuture(future, err)
		return
	}
	n := buf.ReadableBytes()
	if n > 0 {
		chunk := make([]byte, n)
		_, _ = buf.ReadBytes(chunk)
		buf.DiscardReadBytes()
		t.mu.Lock()
		t.out = append(t.out, chunk...)
		t.mu.Unlock()
	}
	pipeline.CompleteFuture(future, nil)
}

func (t *transportHandler) Write(ctx *pipeline.HandlerContext, future pipeline.Future) {
	t.Flush(ctx, future)
}
