// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"code.hybscloud.com/pipeline"
)

type noopChannel struct{}

func (noopChannel) LocalAddr() string  { return "test:0" }
func (noopChannel) RemoteAddr() string { return "test:0" }
func (noopChannel) IsActive() bool     { return true }

func newInlinePipeline(opts ...pipeline.PipelineOption) *pipeline.Pipeline {
	all := append([]pipeline.PipelineOption{
		pipeline.WithExecutorFactory(func() pipeline.Executor { return pipeline.InlineExecutor{} }),
	}, opts...)
	return pipeline.NewPipeline(noopChannel{}, all...)
}

// stateCounter counts every lifecycle callback it receives.
type stateCounter struct {
	pipeline.BaseHandler
	pipeline.BaseStateHandler
	active int32
}

func (s *stateCounter) ChannelActive(*pipeline.HandlerContext) { atomic.AddInt32(&s.active, 1) }

func TestAddFirstAddLastOrderingAndLookup(t *testing.T) {
	p := newInlinePipeline()
	if err := p.AddLast("b", &stateCounter{}); err != nil {
		t.Fatalf("AddLast: %v", err)
	}
	if err := p.AddFirst("a", &stateCounter{}); err != nil {
		t.Fatalf("AddFirst: %v", err)
	}
	a, err := p.Get("a")
	if err != nil {
		t.Fatalf("Get(a): %v", err)
	}
	if a.Next().Name() != "b" {
		t.Fatalf("a.Next() = %q, want b", a.Next().Name())
	}
}

func TestAddDuplicateNameFails(t *testing.T) {
	p := newInlinePipeline()
	if err := p.AddLast("x", &stateCounter{}); err != nil {
		t.Fatalf("AddLast: %v", err)
	}
	err := p.AddLast("x", &stateCounter{})
	if !errors.Is(err, pipeline.ErrNameInUse) {
		t.Fatalf("AddLast duplicate name: err = %v, want ErrNameInUse", err)
	}
}

func TestGetMissingContextFails(t *testing.T) {
	p := newInlinePipeline()
	_, err := p.Get("nope")
	if !errors.Is(err, pipeline.ErrNoSuchContext) {
		t.Fatalf("Get missing: err = %v, want ErrNoSuchContext", err)
	}
}

// Invariant 7: after Remove(ctx), no further event is ever delivered to it.
func TestRemoveStopsFurtherDispatch(t *testing.T) {
	p := newInlinePipeline()
	sc := &stateCounter{}
	if err := p.AddLast("counter", sc); err != nil {
		t.Fatalf("AddLast: %v", err)
	}
	p.FireChannelActive()
	if atomic.LoadInt32(&sc.active) != 1 {
		t.Fatalf("active count = %d, want 1", sc.active)
	}
	if err := p.Remove("counter"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	p.FireChannelActive()
	if atomic.LoadInt32(&sc.active) != 1 {
		t.Fatalf("active count after removal = %d, want 1 (no further delivery)", sc.active)
	}
}

// exceptionSink records every exception delivered to it.
type exceptionSink struct {
	pipeline.BaseHandler
	mu    sync.Mutex
	seen  []error
}

func (s *exceptionSink) ExceptionCaught(_ *pipeline.HandlerContext, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, cause)
}

func (s *exceptionSink) last() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.seen) == 0 {
		return nil
	}
	return s.seen[len(s.seen)-1]
}

// S5: an outbound operation issued with no OPERATION-capable predecessor
// completes its Future with ErrClosedChannel and routes the same cause
// through exceptionCaught.
func TestOperationWithNoOperationHandlerRoutesException(t *testing.T) {
	p := newInlinePipeline()
	sink := &exceptionSink{}
	if err := p.AddLast("business", &stateCounter{}); err != nil {
		t.Fatalf("AddLast: %v", err)
	}
	if err := p.AddLast("sink", sink); err != nil {
		t.Fatalf("AddLast: %v", err)
	}
	ctx, err := p.Get("business")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	f := ctx.Flush()
	<-f.Done()
	if !errors.Is(f.Err(), pipeline.ErrClosedChannel) {
		t.Fatalf("Flush().Err() = %v, want ErrClosedChannel", f.Err())
	}
	if !errors.Is(sink.last(), pipeline.ErrClosedChannel) {
		t.Fatalf("sink observed %v, want ErrClosedChannel", sink.last())
	}
}

// transport is a minimal OperationHandler standing in for a real transport,
// completing every operation immediately; Close marks itself inactive so a
// later Flush through the same context can be distinguished from one issued
// before Close.
type transport struct {
	pipeline.BaseHandler
	closed atomic.Bool
}

func (t *transport) NewOutboundBuffer(*pipeline.HandlerContext) (pipeline.BufferHolder, error) {
	return pipeline.NewByteBufferHolder(pipeline.NewHeapBuffer(64)), nil
}

func (t *transport) Bind(_ *pipeline.HandlerContext, _ string, f pipeline.Future) {
	pipeline.CompleteFuture(f, nil)
}
func (t *transport) Connect(_ *pipeline.HandlerContext, _ string, f pipeline.Future) {
	pipeline.CompleteFuture(f, nil)
}
func (t *transport) Disconnect(_ *pipeline.HandlerContext, f pipeline.Future) {
	pipeline.CompleteFuture(f, nil)
}
func (t *transport) Close(_ *pipeline.HandlerContext, f pipeline.Future) {
	t.closed.Store(true)
	pipeline.CompleteFuture(f, nil)
}
func (t *transport) Deregister(_ *pipeline.HandlerContext, f pipeline.Future) {
	pipeline.CompleteFuture(f, nil)
}
func (t *transport) Flush(ctx *pipeline.HandlerContext, f pipeline.Future) {
	if t.closed.Load() {
		pipeline.CompleteFuture(f, pipeline.ErrClosedChannel)
		ctx.Pipeline().FireExceptionCaught(ctx, pipeline.ErrClosedChannel)
		return
	}
	pipeline.CompleteFuture(f, nil)
}
func (t *transport) Write(ctx *pipeline.HandlerContext, f pipeline.Future) { t.Flush(ctx, f) }

// S6: a write issued after Close has completed fails with ErrClosedChannel
// and fires exceptionCaught exactly once.
func TestWriteAfterCloseFailsWithClosedChannel(t *testing.T) {
	p := newInlinePipeline()
	tr := &transport{}
	if err := p.AddFirst("transport", tr); err != nil {
		t.Fatalf("AddFirst: %v", err)
	}
	sink := &exceptionSink{}
	if err := p.AddLast("business", sink); err != nil {
		t.Fatalf("AddLast: %v", err)
	}
	ctx, err := p.Get("business")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	closeF := ctx.Close()
	<-closeF.Done()
	if closeF.Err() != nil {
		t.Fatalf("Close().Err() = %v, want nil", closeF.Err())
	}
	writeF := ctx.Write()
	<-writeF.Done()
	if !errors.Is(writeF.Err(), pipeline.ErrClosedChannel) {
		t.Fatalf("Write after Close: err = %v, want ErrClosedChannel", writeF.Err())
	}
	sink.mu.Lock()
	seen := len(sink.seen)
	sink.mu.Unlock()
	if seen != 1 {
		t.Fatalf("exceptionCaught fired %d times, want exactly once", seen)
	}
	if !errors.Is(sink.last(), pipeline.ErrClosedChannel) {
		t.Fatalf("sink observed %v, want ErrClosedChannel", sink.last())
	}
}

func TestAddBeforeAndAddAfter(t *testing.T) {
	p := newInlinePipeline()
	if err := p.AddLast("c", &stateCounter{}); err != nil {
		t.Fatalf("AddLast c: %v", err)
	}
	if err := p.AddBefore("c", "a", &stateCounter{}); err != nil {
		t.Fatalf("AddBefore a: %v", err)
	}
	if err := p.AddAfter("a", "b", &stateCounter{}); err != nil {
		t.Fatalf("AddAfter b: %v", err)
	}
	a, _ := p.Get("a")
	if a.Next().Name() != "b" {
		t.Fatalf("order after AddBefore/AddAfter: a.Next() = %q, want b", a.Next().Name())
	}
	if a.Next().Next().Name() != "c" {
		t.Fatalf("order after AddBefore/AddAfter: a.Next().Next() = %q, want c", a.Next().Next().Name())
	}
}

func TestReplaceSwapsHandlerInPlace(t *testing.T) {
	p := newInlinePipeline()
	first := &stateCounter{}
	if err := p.AddLast("h", first); err != nil {
		t.Fatalf("AddLast: %v", err)
	}
	second := &stateCounter{}
	if err := p.Replace("h", "h2", second); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	p.FireChannelActive()
	if atomic.LoadInt32(&first.active) != 0 {
		t.Fatalf("replaced handler still received an event")
	}
	if atomic.LoadInt32(&second.active) != 1 {
		t.Fatalf("replacement handler active count = %d, want 1", second.active)
	}
	if _, err := p.Get("h"); !errors.Is(err, pipeline.ErrNoSuchContext) {
		t.Fatalf("Get(old name) after Replace: err = %v, want ErrNoSuchContext", err)
	}
}
