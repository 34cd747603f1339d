// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipelinetest provides a minimal in-process driver for exercising
// a pipeline.Pipeline without a real transport, the same role Netty's
// EmbeddedChannel plays for its test suite.
package pipelinetest

import (
	"code.hybscloud.com/pipeline"
)

// Embedded wires a pipeline.Pipeline with a synthetic transport-facing
// context installed via AddFirst, so user handlers addressed with AddLast
// can exercise nextOutboundByteBuffer/Flush/Write/Close exactly as they
// would against a real transport.
type Embedded struct {
	Pipeline  *pipeline.Pipeline
	transport *transportHandler
}

// NewEmbedded builds a pipeline over a no-op ChannelHandle, installs the
// synthetic transport context first, then appends handlers in order via
// AddLast under names "h0", "h1", ...
func NewEmbedded(handlers ...any) *Embedded {
	e := &Embedded{transport: newTransportHandler()}
	e.Pipeline = pipeline.NewPipeline(fakeChannel{}, pipeline.WithExecutorFactory(func() pipeline.Executor {
		return pipeline.InlineExecutor{}
	}))
	_ = e.Pipeline.AddFirst("transport", e.transport)
	for i, h := range handlers {
		_ = e.Pipeline.AddLast(nameFor(i), h)
	}
	return e
}

func nameFor(i int) string {
	const digits = "0123456789"
	if i < 10 {
		return "h" + string(digits[i])
	}
	buf := []byte{'h'}
	var stack []byte
	for i > 0 {
		stack = append(stack, digits[i%10])
		i /= 10
	}
	for j := len(stack) - 1; j >= 0; j-- {
		buf = append(buf, stack[j])
	}
	return string(buf)
}

// WriteInbound appends b to the transport's inbound buffer and fires
// inboundBufferUpdated starting from the transport context, exactly as a
// real transport delivering bytes would.
func (e *Embedded) WriteInbound(b []byte) error {
	return e.transport.writeInbound(e.Pipeline, b)
}

// ReadOutbound returns and clears every byte the pipeline has flushed to
// the transport-facing outbound buffer so far.
func (e *Embedded) ReadOutbound() []byte {
	return e.transport.readOutbound()
}

// Close runs the synthetic transport's own Close handler on the transport
// context, marking the transport closed, and waits for it to complete.
// (An operation issued from the transport context itself would walk past
// it toward head and find no OPERATION-capable stage.)
func (e *Embedded) Close() error {
	ctx, err := e.Pipeline.Get("transport")
	if err != nil {
		return err
	}
	f, _ := pipeline.NewFuture()
	e.transport.Close(ctx, f)
	<-f.Done()
	return f.Err()
}

type fakeChannel struct{}

func (fakeChannel) LocalAddr() string  { return "embedded:0" }
func (fakeChannel) RemoteAddr() string { return "embedded:0" }
func (fakeChannel) IsActive() bool     { return true }
