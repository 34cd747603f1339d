// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline_test

import (
	"testing"

	"code.hybscloud.com/pipeline"
)

// plainHandler embeds only BaseHandler: no lifecycle methods, no operation
// methods, no declared buffers. It must end up with an empty capability set.
type plainHandler struct {
	pipeline.BaseHandler
}

func TestPlainHandlerHasNoCapabilities(t *testing.T) {
	p := newInlinePipeline()
	if err := p.AddLast("plain", &plainHandler{}); err != nil {
		t.Fatalf("AddLast: %v", err)
	}
	ctx, _ := p.Get("plain")
	caps := ctx.Capabilities()
	for _, c := range []pipeline.Capability{pipeline.CapState, pipeline.CapInbound, pipeline.CapOutbound, pipeline.CapOperation} {
		if caps.Has(c) {
			t.Fatalf("plain handler unexpectedly has capability %d", c)
		}
	}
}

// stateOnlyHandler embeds BaseStateHandler explicitly, the only supported
// way to opt into CapState (BaseHandler alone deliberately does not provide
// it, see handler.go).
type stateOnlyHandler struct {
	pipeline.BaseHandler
	pipeline.BaseStateHandler
}

func TestBaseHandlerAloneDoesNotGrantCapState(t *testing.T) {
	p := newInlinePipeline()
	if err := p.AddLast("plain", &plainHandler{}); err != nil {
		t.Fatalf("AddLast: %v", err)
	}
	plain, _ := p.Get("plain")
	if plain.Capabilities().Has(pipeline.CapState) {
		t.Fatalf("plainHandler (BaseHandler only) has CapState, want none")
	}

	if err := p.AddLast("stateful", &stateOnlyHandler{}); err != nil {
		t.Fatalf("AddLast: %v", err)
	}
	stateful, _ := p.Get("stateful")
	if !stateful.Capabilities().Has(pipeline.CapState) {
		t.Fatalf("stateOnlyHandler (BaseHandler+BaseStateHandler) lacks CapState")
	}
}

// bufferedHandler declares both a byte inbound buffer and a message
// outbound buffer, and must end up with exactly CapInbound|CapOutbound.
type bufferedHandler struct {
	pipeline.BaseHandler
}

func (bufferedHandler) NewInboundBuffer(*pipeline.HandlerContext) (pipeline.BufferHolder, error) {
	return pipeline.NewByteBufferHolder(pipeline.NewHeapBuffer(16)), nil
}

func (bufferedHandler) NewOutboundBuffer(*pipeline.HandlerContext) (pipeline.BufferHolder, error) {
	return pipeline.NewMessageBufferHolder(), nil
}

func TestCapabilityFollowsDeclaredBuffersNotMethodSet(t *testing.T) {
	p := newInlinePipeline()
	if err := p.AddLast("buffered", &bufferedHandler{}); err != nil {
		t.Fatalf("AddLast: %v", err)
	}
	ctx, _ := p.Get("buffered")
	caps := ctx.Capabilities()
	if !caps.Has(pipeline.CapInbound) {
		t.Fatalf("bufferedHandler lacks CapInbound despite declaring a non-KindNone inbound holder")
	}
	if !caps.Has(pipeline.CapOutbound) {
		t.Fatalf("bufferedHandler lacks CapOutbound despite declaring a non-KindNone outbound holder")
	}
	if caps.Has(pipeline.CapState) || caps.Has(pipeline.CapOperation) {
		t.Fatalf("bufferedHandler unexpectedly has CapState/CapOperation: %d", caps)
	}
}

// fullHandler implements every optional interface, used to confirm the
// bits combine rather than collide.
type fullHandler struct {
	pipeline.BaseHandler
	pipeline.BaseStateHandler
	pipeline.BasePassthroughOperations
}

func (fullHandler) NewInboundBuffer(*pipeline.HandlerContext) (pipeline.BufferHolder, error) {
	return pipeline.NewByteBufferHolder(pipeline.NewHeapBuffer(16)), nil
}

func TestCapabilitiesCombine(t *testing.T) {
	p := newInlinePipeline()
	if err := p.AddLast("full", &fullHandler{}); err != nil {
		t.Fatalf("AddLast: %v", err)
	}
	ctx, _ := p.Get("full")
	caps := ctx.Capabilities()
	want := pipeline.CapState | pipeline.CapInbound | pipeline.CapOperation
	if caps != want {
		t.Fatalf("caps = %d, want %d", caps, want)
	}
}
